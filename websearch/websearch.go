// Package websearch provides the web search capability the orchestrator
// fans out to alongside local retrieval.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/suviet/agent/types"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Searcher is the web search capability interface.
type Searcher interface {
	Search(ctx context.Context, query string) ([]types.EvidenceItem, error)
}

// TavilyConfig configures the Tavily search client.
type TavilyConfig struct {
	APIKey     string        `yaml:"api_key"`
	BaseURL    string        `yaml:"base_url"`
	MaxResults int           `yaml:"max_results"`
	Timeout    time.Duration `yaml:"timeout"`
	// RatePerSec caps outgoing search calls; Tavily bills per request.
	RatePerSec float64 `yaml:"rate_per_sec"`
}

// DefaultTavilyConfig returns sensible defaults.
func DefaultTavilyConfig() TavilyConfig {
	return TavilyConfig{
		BaseURL:    "https://api.tavily.com",
		MaxResults: 5,
		Timeout:    15 * time.Second,
		RatePerSec: 2,
	}
}

// TavilyClient calls the Tavily search API.
type TavilyClient struct {
	cfg     TavilyConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewTavilyClient creates a rate-limited Tavily client.
func NewTavilyClient(cfg TavilyConfig, logger *zap.Logger) *TavilyClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.tavily.com"
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 2
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TavilyClient{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1),
		logger:  logger,
	}
}

type tavilyRequest struct {
	APIKey     string `json:"api_key"`
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type tavilyResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// Search implements Searcher.
func (c *TavilyClient) Search(ctx context.Context, query string) ([]types.EvidenceItem, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, types.NewError(types.ErrWebSearch, "rate limiter wait").WithCause(err)
	}

	payload, err := json.Marshal(tavilyRequest{
		APIKey:     c.cfg.APIKey,
		Query:      query,
		MaxResults: c.cfg.MaxResults,
	})
	if err != nil {
		return nil, types.NewError(types.ErrWebSearch, "marshal search request").WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/search", bytes.NewReader(payload))
	if err != nil {
		return nil, types.NewError(types.ErrWebSearch, "build search request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, types.NewError(types.ErrWebSearch, "search request failed").WithCause(err).WithRetryable(true)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.NewError(types.ErrWebSearch, "read search response").WithCause(err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, types.NewError(types.ErrWebSearch,
			fmt.Sprintf("search status %d", resp.StatusCode)).
			WithRetryable(resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests)
	}

	var parsed tavilyResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, types.NewError(types.ErrWebSearch, "decode search response").WithCause(err)
	}

	items := make([]types.EvidenceItem, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		items = append(items, types.EvidenceItem{
			Content: r.Content,
			Source:  types.SourceWeb,
			Metadata: map[string]any{
				"title": r.Title,
				"url":   r.URL,
				"score": r.Score,
			},
		})
	}
	c.logger.Debug("web search returned", zap.Int("results", len(items)))
	return items, nil
}
