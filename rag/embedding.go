package rag

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
)

// Embedder turns text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// HTTPEmbedderConfig configures an OpenAI-compatible embeddings endpoint.
type HTTPEmbedderConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// HTTPEmbedder calls a /v1/embeddings endpoint.
type HTTPEmbedder struct {
	cfg    HTTPEmbedderConfig
	client *http.Client
	logger *zap.Logger
}

// NewHTTPEmbedder creates an embedder for the given endpoint.
func NewHTTPEmbedder(cfg HTTPEmbedderConfig, logger *zap.Logger) *HTTPEmbedder {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPEmbedder{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed implements Embedder.
func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	payload, err := json.Marshal(embeddingRequest{Model: e.cfg.Model, Input: []string{text}})
	if err != nil {
		return nil, types.NewError(types.ErrEmbeddingFailed, "marshal embedding request").WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.BaseURL+"/v1/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, types.NewError(types.ErrEmbeddingFailed, "build embedding request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, types.NewError(types.ErrEmbeddingFailed, "embedding request failed").WithCause(err).WithRetryable(true)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.NewError(types.ErrEmbeddingFailed, "read embedding response").WithCause(err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, types.NewError(types.ErrEmbeddingFailed,
			fmt.Sprintf("embedding status %d", resp.StatusCode)).
			WithRetryable(resp.StatusCode >= 500)
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, types.NewError(types.ErrEmbeddingFailed, "decode embedding response").WithCause(err)
	}
	if len(parsed.Data) == 0 || len(parsed.Data[0].Embedding) == 0 {
		return nil, types.NewError(types.ErrEmbeddingFailed, "embedding response is empty")
	}
	return parsed.Data[0].Embedding, nil
}
