package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/Meeting-BaaS/status-sub000/internal/aggregate"
	"github.com/Meeting-BaaS/status-sub000/internal/filter"
	"github.com/Meeting-BaaS/status-sub000/internal/localstate"
	"github.com/Meeting-BaaS/status-sub000/internal/model"
	"github.com/Meeting-BaaS/status-sub000/internal/query"
	"github.com/Meeting-BaaS/status-sub000/internal/selection"
	"github.com/Meeting-BaaS/status-sub000/internal/urlstate"
)

// RecordCounter reports how many records the local store holds.
type RecordCounter interface {
	RecordCount(ctx context.Context) (int64, error)
}

// QueryService is the slice of the query orchestrator the API needs.
type QueryService interface {
	Get(ctx context.Context, kind query.ViewKind, q model.RecordQuery) (model.RecordPage, error)
	Refresh(ctx context.Context, q model.RecordQuery) (model.RecordPage, error)
	State(q model.RecordQuery) query.State
	Dataset(ctx context.Context, kind query.ViewKind, q model.RecordQuery) (query.Dataset, error)
	Report(ctx context.Context, kind query.ViewKind, q model.RecordQuery, opts aggregate.Options) (aggregate.Report, query.Dataset, error)
}

// Deps are the stores the API exposes. Every field is required.
type Deps struct {
	Records   RecordCounter
	Queries   QueryService
	Filters   *filter.Store
	Selection *selection.Store
	Hover     *selection.HoverDebouncer
	Prefs     *localstate.Store
	Codec     *urlstate.Codec
}

// Server provides the HTTP API over the analytics core.
type Server struct {
	addr      string
	deps      Deps
	logger    zerolog.Logger
	validate  *validator.Validate
	server    *http.Server
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
}

// NewServer creates a new HTTP API server.
func NewServer(addr string, deps Deps, logger zerolog.Logger) *Server {
	if addr == "" {
		addr = "127.0.0.1:3000"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:     addr,
		deps:     deps,
		logger:   logger.With().Str("component", "httpserver").Logger(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Handler builds the gin engine with every route registered.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	api := r.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/bots", s.handleBots)
	api.GET("/report", s.handleReport)
	api.GET("/crosstab", s.handleCrossTab)
	api.GET("/link", s.handleLink)

	api.GET("/filters", s.handleGetFilters)
	api.PUT("/filters", s.handlePutFilters)
	api.PUT("/filters/:dimension", s.handleSetFilter)
	api.DELETE("/filters", s.handleClearFilters)

	api.GET("/selection", s.handleGetSelection)
	api.DELETE("/selection", s.handleClearSelection)
	api.POST("/selection/toggle", s.handleToggle)
	api.POST("/selection/group", s.handleToggleGroup)
	api.POST("/selection/hover", s.handleHover)
	api.DELETE("/selection/hover", s.handleClearHover)

	api.GET("/prefs", s.handleGetPrefs)
	api.PUT("/prefs/pageSize", s.handlePutPageSize)
	api.PUT("/prefs/selectedErrorTypes", s.handlePutSelectedErrorTypes)
	api.PUT("/prefs/ui", s.handlePutUIPreferences)
	return r
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Handler:           s.Handler(),
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.startTime = time.Now()
	s.logger.Info().Str("addr", listener.Addr().String()).Msg("http api listening")

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("http serve failed")
		}
	}()
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	count, err := s.deps.Records.RecordCount(c.Request.Context())
	if err != nil {
		s.logger.Warn().Err(err).Msg("health: record count")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read health metrics"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"uptime":       time.Since(s.startTime).String(),
		"record_count": count,
	})
}

// fail maps err onto a status code and writes the error body.
func (s *Server) fail(c *gin.Context, err error) {
	var fetchErr *query.FetchError
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &fetchErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": fetchErr.Error(), "retryable": true})
	case errors.As(err, &verrs), errors.Is(err, model.ErrInvalidQuery), errors.Is(err, localstate.ErrInvalidPageSize):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		s.logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// bind decodes the JSON body into dest and validates it.
func (s *Server) bind(c *gin.Context, dest any) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return false
	}
	if err := s.validate.Struct(dest); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}
