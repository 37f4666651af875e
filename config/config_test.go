package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 3, cfg.Agent.MaxIterations)
	assert.Equal(t, 5, cfg.Retriever.TopK)
	assert.Equal(t, "memory", cfg.Checkpoint.Backend)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
agent:
  max_iterations: 5
  node_timeout: 20s
retriever:
  top_k: 8
  category: Lich_Su_Chung
checkpoint:
  backend: sqlite
  dsn: /tmp/cp.db
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 5, cfg.Agent.MaxIterations)
	assert.Equal(t, 20*time.Second, cfg.Agent.NodeTimeout)
	assert.Equal(t, 8, cfg.Retriever.TopK)
	assert.Equal(t, "Lich_Su_Chung", cfg.Retriever.Category)
	assert.Equal(t, "sqlite", cfg.Checkpoint.Backend)
	// Untouched keys keep their defaults.
	assert.Equal(t, 0.75, cfg.Retriever.BM25B)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  api_key: from-file
`), 0o600))

	t.Setenv("SUVIET_LLM_API_KEY", "from-env")
	t.Setenv("SUVIET_SERVER_ADDR", ":7070")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.LLM.APIKey)
	assert.Equal(t, ":7070", cfg.Server.Addr)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero max_iterations", func(c *Config) { c.Agent.MaxIterations = 0 }},
		{"zero top_k", func(c *Config) { c.Retriever.TopK = 0 }},
		{"zero node_timeout", func(c *Config) { c.Agent.NodeTimeout = 0 }},
		{"unknown backend", func(c *Config) { c.Checkpoint.Backend = "dynamo" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
