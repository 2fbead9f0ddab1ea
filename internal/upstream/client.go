// Package upstream fetches bot record pages from a remote service that
// speaks the record query contract over HTTP.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Meeting-BaaS/status-sub000/internal/model"
)

// Client implements model.RecordFetcher against GET {BaseURL}/bots.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  zerolog.Logger
}

// Config configures a Client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned %d: %s", e.Code, e.Body)
}

// New returns a Client. A zero timeout defaults to 30s.
func New(cfg Config, logger zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// FetchPage implements model.RecordFetcher.
func (c *Client) FetchPage(ctx context.Context, q model.RecordQuery) (model.RecordPage, error) {
	if err := q.Validate(); err != nil {
		return model.RecordPage{}, err
	}
	endpoint := c.baseURL + "/bots?" + q.Values().Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return model.RecordPage{}, err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return model.RecordPage{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return model.RecordPage{}, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var page model.RecordPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return model.RecordPage{}, fmt.Errorf("decode record page: %w", err)
	}
	if page.Records == nil {
		page.Records = []model.BotRecord{}
	}
	c.logger.Debug().
		Int("offset", q.Offset).
		Int("records", len(page.Records)).
		Int("total", page.Total).
		Dur("took", time.Since(start)).
		Msg("fetched record page")
	return page, nil
}
