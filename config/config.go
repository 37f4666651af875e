// Package config provides unified configuration loading for the suviet
// agent: defaults, then a YAML file, then environment overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete service configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	LLM        LLMConfig        `yaml:"llm"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Retriever  RetrieverConfig  `yaml:"retriever"`
	WebSearch  WebSearchConfig  `yaml:"web_search"`
	Agent      AgentConfig      `yaml:"agent"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Log        LogConfig        `yaml:"log"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// ServerConfig configures the HTTP entry point.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LLMConfig configures the chat model provider.
type LLMConfig struct {
	Provider    string        `yaml:"provider"`
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	Temperature float32       `yaml:"temperature"`
	TopP        float32       `yaml:"top_p"`
	Timeout     time.Duration `yaml:"timeout"`
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// RetrieverConfig configures the hybrid retriever.
type RetrieverConfig struct {
	TopK        int     `yaml:"top_k"`
	BM25K1      float64 `yaml:"bm25_k1"`
	BM25B       float64 `yaml:"bm25_b"`
	PostgresDSN string  `yaml:"postgres_dsn"`
	Collection  string  `yaml:"collection"`
	// Category scopes retrieval to one corpus category's source files,
	// resolved against the catalog at startup. Empty means unfiltered.
	Category string `yaml:"category"`
}

// WebSearchConfig configures the web search tool.
type WebSearchConfig struct {
	APIKey     string        `yaml:"api_key"`
	BaseURL    string        `yaml:"base_url"`
	MaxResults int           `yaml:"max_results"`
	Timeout    time.Duration `yaml:"timeout"`
	RatePerSec float64       `yaml:"rate_per_sec"`
}

// AgentConfig configures the orchestrator loop.
type AgentConfig struct {
	MaxIterations int           `yaml:"max_iterations"`
	NodeTimeout   time.Duration `yaml:"node_timeout"`
	// EvidenceTokenBudget caps evidence text in the synthesis prompt.
	EvidenceTokenBudget int `yaml:"evidence_token_budget"`
	// HistoryLimit caps how many persisted messages seed a turn.
	HistoryLimit int `yaml:"history_limit"`
}

// CheckpointConfig configures the conversation checkpoint store.
type CheckpointConfig struct {
	// Backend is one of "memory", "redis", "postgres", "sqlite".
	Backend   string `yaml:"backend"`
	DSN       string `yaml:"dsn"`
	RedisAddr string `yaml:"redis_addr"`
	RedisDB   int    `yaml:"redis_db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// LogConfig configures zap.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// TelemetryConfig configures tracing.
type TelemetryConfig struct {
	Enabled      bool   `yaml:"enabled"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	ServiceName  string `yaml:"service_name"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		LLM: LLMConfig{
			Provider:    "openaicompat",
			Model:       "gemini-2.5-flash-lite",
			Temperature: 0.3,
			TopP:        0.8,
			Timeout:     10 * time.Second,
		},
		Embedding: EmbeddingConfig{
			Model:   "qwen3-embedding-0.6b",
			Timeout: 10 * time.Second,
		},
		Retriever: RetrieverConfig{
			TopK:       5,
			BM25K1:     1.5,
			BM25B:      0.75,
			Collection: "viet_history",
		},
		WebSearch: WebSearchConfig{
			BaseURL:    "https://api.tavily.com",
			MaxResults: 5,
			Timeout:    15 * time.Second,
			RatePerSec: 2,
		},
		Agent: AgentConfig{
			MaxIterations:       3,
			NodeTimeout:         10 * time.Second,
			EvidenceTokenBudget: 6000,
			HistoryLimit:        20,
		},
		Checkpoint: CheckpointConfig{
			Backend:   "memory",
			KeyPrefix: "suviet:",
		},
		Log: LogConfig{
			Level: "info",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "suviet-agent",
		},
	}
}

// Load reads config from path (optional) over the defaults, then applies
// environment overrides. Precedence: defaults < file < env.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides secrets and endpoints from the environment so
// deployments never need credentials in the YAML file.
func (c *Config) applyEnv() {
	overrides := map[string]*string{
		"SUVIET_LLM_API_KEY":        &c.LLM.APIKey,
		"SUVIET_LLM_BASE_URL":       &c.LLM.BaseURL,
		"SUVIET_LLM_MODEL":          &c.LLM.Model,
		"SUVIET_EMBEDDING_API_KEY":  &c.Embedding.APIKey,
		"SUVIET_EMBEDDING_BASE_URL": &c.Embedding.BaseURL,
		"SUVIET_TAVILY_API_KEY":     &c.WebSearch.APIKey,
		"SUVIET_POSTGRES_DSN":       &c.Retriever.PostgresDSN,
		"SUVIET_CHECKPOINT_DSN":     &c.Checkpoint.DSN,
		"SUVIET_REDIS_ADDR":         &c.Checkpoint.RedisAddr,
		"SUVIET_SERVER_ADDR":        &c.Server.Addr,
	}
	for key, dst := range overrides {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
}

// Validate checks the invariants the orchestrator depends on.
func (c *Config) Validate() error {
	if c.Agent.MaxIterations < 1 {
		return fmt.Errorf("agent.max_iterations must be >= 1, got %d", c.Agent.MaxIterations)
	}
	if c.Retriever.TopK < 1 {
		return fmt.Errorf("retriever.top_k must be >= 1, got %d", c.Retriever.TopK)
	}
	if c.Agent.NodeTimeout <= 0 {
		return fmt.Errorf("agent.node_timeout must be positive, got %s", c.Agent.NodeTimeout)
	}
	switch c.Checkpoint.Backend {
	case "memory", "redis", "postgres", "sqlite":
	default:
		return fmt.Errorf("checkpoint.backend %q is not supported", c.Checkpoint.Backend)
	}
	return nil
}
