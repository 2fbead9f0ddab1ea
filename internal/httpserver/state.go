package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Meeting-BaaS/status-sub000/internal/localstate"
	"github.com/Meeting-BaaS/status-sub000/internal/model"
)

type setFilterRequest struct {
	Values []string `json:"values" validate:"max=16,dive,required"`
}

type toggleRequest struct {
	ID string `json:"id" validate:"required,max=128"`
}

type groupRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,max=10000,dive,required"`
}

type hoverRequest struct {
	IDs []string `json:"ids" validate:"max=10000,dive,required"`
}

type pageSizeRequest struct {
	PageSize int `json:"pageSize" validate:"required"`
}

type errorTypesRequest struct {
	Values []string `json:"values" validate:"max=256,dive,required"`
}

func (s *Server) filtersBody() gin.H {
	return gin.H{
		"filters": s.deps.Filters.Snapshot(),
		"active":  s.deps.Filters.IsActive(),
	}
}

func (s *Server) handleGetFilters(c *gin.Context) {
	c.JSON(http.StatusOK, s.filtersBody())
}

// handlePutFilters replaces every dimension. Unknown values are dropped.
func (s *Server) handlePutFilters(c *gin.Context) {
	var v model.FilterValues
	if err := c.ShouldBindJSON(&v); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}
	s.deps.Filters.Hydrate(v)
	c.JSON(http.StatusOK, s.filtersBody())
}

func (s *Server) handleSetFilter(c *gin.Context) {
	d := model.Dimension(c.Param("dimension"))
	if !d.Valid() {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown dimension"})
		return
	}
	var req setFilterRequest
	if !s.bind(c, &req) {
		return
	}
	accepted := s.deps.Filters.Set(d, req.Values)
	if accepted == nil {
		accepted = []string{}
	}
	body := s.filtersBody()
	body["accepted"] = accepted
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleClearFilters(c *gin.Context) {
	s.deps.Filters.ClearAll()
	c.JSON(http.StatusOK, s.filtersBody())
}

func (s *Server) selectionBody() gin.H {
	return gin.H{
		"selected": s.deps.Selection.Selected(),
		"hovered":  s.deps.Selection.Hovered(),
	}
}

func (s *Server) handleGetSelection(c *gin.Context) {
	c.JSON(http.StatusOK, s.selectionBody())
}

func (s *Server) handleClearSelection(c *gin.Context) {
	s.deps.Selection.Clear()
	c.JSON(http.StatusOK, s.selectionBody())
}

func (s *Server) handleToggle(c *gin.Context) {
	var req toggleRequest
	if !s.bind(c, &req) {
		return
	}
	s.deps.Selection.Toggle(req.ID)
	body := s.selectionBody()
	body["isSelected"] = s.deps.Selection.IsSelected(req.ID)
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleToggleGroup(c *gin.Context) {
	var req groupRequest
	if !s.bind(c, &req) {
		return
	}
	size := s.deps.Selection.ToggleGroup(req.IDs)
	body := s.selectionBody()
	body["count"] = size
	c.JSON(http.StatusOK, body)
}

// handleHover is debounced: the hover state changes once the pointer has
// rested, so the response only acknowledges the request.
func (s *Server) handleHover(c *gin.Context) {
	var req hoverRequest
	if !s.bind(c, &req) {
		return
	}
	s.deps.Hover.Trigger(req.IDs)
	c.JSON(http.StatusAccepted, gin.H{"pending": true})
}

func (s *Server) handleClearHover(c *gin.Context) {
	s.deps.Hover.Trigger(nil)
	c.JSON(http.StatusAccepted, gin.H{"pending": true})
}

func (s *Server) handleGetPrefs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"pageSize":           s.deps.Prefs.PageSize(),
		"selectedErrorTypes": s.deps.Prefs.SelectedErrorTypes(),
		"ui":                 s.deps.Prefs.UIPreferences(),
	})
}

func (s *Server) handlePutPageSize(c *gin.Context) {
	var req pageSizeRequest
	if !s.bind(c, &req) {
		return
	}
	if err := s.deps.Prefs.SetPageSize(req.PageSize); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pageSize": s.deps.Prefs.PageSize()})
}

func (s *Server) handlePutSelectedErrorTypes(c *gin.Context) {
	var req errorTypesRequest
	if !s.bind(c, &req) {
		return
	}
	if err := s.deps.Prefs.SetSelectedErrorTypes(req.Values); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"selectedErrorTypes": s.deps.Prefs.SelectedErrorTypes()})
}

func (s *Server) handlePutUIPreferences(c *gin.Context) {
	var req localstate.UIPreferences
	if !s.bind(c, &req) {
		return
	}
	if req.OpenSections == nil {
		req.OpenSections = []string{}
	}
	if err := s.deps.Prefs.SetUIPreferences(req); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ui": s.deps.Prefs.UIPreferences()})
}
