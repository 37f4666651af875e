package llm

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

// OpenAICompatConfig configures an OpenAI-compatible chat-completions
// provider (OpenRouter, Gemini via proxy, local gateways).
type OpenAICompatConfig struct {
	ProviderName string        `yaml:"provider_name"`
	APIKey       string        `yaml:"api_key"`
	BaseURL      string        `yaml:"base_url"`
	DefaultModel string        `yaml:"default_model"`
	EndpointPath string        `yaml:"endpoint_path"`
	Timeout      time.Duration `yaml:"timeout"`
}

// OpenAICompatProvider talks to any /v1/chat/completions endpoint.
type OpenAICompatProvider struct {
	cfg    OpenAICompatConfig
	client *http.Client
	logger *zap.Logger
}

// NewOpenAICompatProvider creates a provider with the given config.
func NewOpenAICompatProvider(cfg OpenAICompatConfig, logger *zap.Logger) *OpenAICompatProvider {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/v1/chat/completions"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAICompatProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Name returns the configured provider name.
func (p *OpenAICompatProvider) Name() string { return p.cfg.ProviderName }

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float32         `json:"temperature,omitempty"`
	TopP        float32         `json:"top_p,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Complete implements Provider.
func (p *OpenAICompatProvider) Complete(ctx context.Context, req *ChatRequest) (string, error) {
	ctx, cancel := WithTimeout(ctx, req, p.cfg.Timeout)
	defer cancel()

	model := req.Model
	if model == "" {
		model = p.cfg.DefaultModel
	}

	body := openAIRequest{
		Model:       model,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		MaxTokens:   req.MaxTokens,
	}
	for _, m := range req.Messages {
		body.Messages = append(body.Messages, openAIMessage{Role: string(m.Role), Content: m.Content})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", types.NewError(types.ErrInvalidRequest, "marshal chat request").WithCause(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+p.cfg.EndpointPath, bytes.NewReader(payload))
	if err != nil {
		return "", types.NewError(types.ErrInvalidRequest, "build chat request").WithCause(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", types.NewError(types.ErrTimeout, "chat completion timed out").WithCause(err).WithRetryable(true)
		}
		return "", types.NewError(types.ErrUpstreamError, "chat completion request failed").WithCause(err).WithRetryable(true)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", types.NewError(types.ErrUpstreamError, "read chat completion response").WithCause(err)
	}
	if resp.StatusCode != http.StatusOK {
		p.logger.Warn("chat completion non-200",
			zap.Int("status", resp.StatusCode),
			zap.String("provider", p.cfg.ProviderName))
		return "", types.NewError(types.ErrUpstreamError,
			fmt.Sprintf("chat completion status %d", resp.StatusCode)).
			WithRetryable(resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests)
	}

	var parsed openAIResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", types.NewError(types.ErrUpstreamError, "decode chat completion response").WithCause(err)
	}
	if parsed.Error != nil {
		return "", types.NewError(types.ErrUpstreamError, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", types.NewError(types.ErrUpstreamError, "chat completion returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// CompleteStructured implements Provider.
func (p *OpenAICompatProvider) CompleteStructured(ctx context.Context, req *ChatRequest, out any) error {
	reply, err := p.Complete(ctx, req)
	if err != nil {
		return err
	}
	if err := UnmarshalReply(reply, out); err != nil {
		return types.NewError(types.ErrUpstreamError, "model reply is not valid JSON").WithCause(err)
	}
	return nil
}
