// Command suviet runs the Vietnamese-history conversational agent:
// an HTTP server exposing a streaming chat endpoint backed by the
// orchestrator, the hybrid retriever and a checkpoint store.
//
// Usage:
//
//	suviet serve                      # start the server
//	suviet serve --config config.yaml # with a config file
//	suviet version                    # show version info
//	suviet health                     # probe a running server
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/suviet/agent/agent"
	"github.com/suviet/agent/checkpoint"
	"github.com/suviet/agent/config"
	"github.com/suviet/agent/internal/metrics"
	"github.com/suviet/agent/internal/telemetry"
	"github.com/suviet/agent/llm"
	"github.com/suviet/agent/rag"
	"github.com/suviet/agent/websearch"
)

// Injected at build time.
var (
	Version   = "dev"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "version":
		fmt.Printf("suviet %s (%s)\n", Version, GitCommit)
	case "health":
		runHealthCheck(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("Starting suviet agent",
		zap.String("version", Version),
		zap.String("git_commit", GitCommit),
	)

	ctx := context.Background()

	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:      cfg.Telemetry.Enabled,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		ServiceName:  cfg.Telemetry.ServiceName,
	})
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
		shutdownTracing = func(context.Context) error { return nil }
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	ag, cleanup, err := buildAgent(ctx, cfg, logger, m)
	if err != nil {
		logger.Fatal("failed to build agent", zap.Error(err))
	}

	server := NewServer(cfg, ag, registry, logger)
	if err := server.Start(); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}

	server.WaitForShutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracer shutdown failed", zap.Error(err))
	}
	cleanup()

	logger.Info("suviet agent stopped")
}

// buildAgent wires the orchestrator from config. The returned cleanup
// closes backend connections.
func buildAgent(ctx context.Context, cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) (*agent.Agent, func(), error) {
	provider := llm.NewOpenAICompatProvider(llm.OpenAICompatConfig{
		ProviderName: cfg.LLM.Provider,
		APIKey:       cfg.LLM.APIKey,
		BaseURL:      cfg.LLM.BaseURL,
		DefaultModel: cfg.LLM.Model,
		Timeout:      cfg.LLM.Timeout,
	}, logger)

	embedder := rag.NewHTTPEmbedder(rag.HTTPEmbedderConfig{
		BaseURL: cfg.Embedding.BaseURL,
		APIKey:  cfg.Embedding.APIKey,
		Model:   cfg.Embedding.Model,
		Timeout: cfg.Embedding.Timeout,
	}, logger)

	var (
		vectors rag.VectorStore
		pool    *pgxpool.Pool
	)
	if dsn := cfg.Retriever.PostgresDSN; dsn != "" {
		var err error
		pool, err = pgxpool.New(ctx, dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("connect corpus database: %w", err)
		}
		vectors = rag.NewPgvectorStore(pool, cfg.Retriever.Collection, logger)
		logger.Info("corpus store connected", zap.String("collection", cfg.Retriever.Collection))
	} else {
		vectors = rag.NewMemoryVectorStore(logger)
		logger.Warn("no corpus DSN configured, using empty in-memory store")
	}

	lexical := rag.NewLexicalIndex(vectors, rag.LexicalConfig{
		TopK:   cfg.Retriever.TopK,
		BM25K1: cfg.Retriever.BM25K1,
		BM25B:  cfg.Retriever.BM25B,
	}, logger)

	retriever := rag.NewHybridRetriever(embedder, vectors, lexical, rag.RetrieverConfig{
		TopK: cfg.Retriever.TopK,
	}, logger)

	var sourceFilter []string
	if category := cfg.Retriever.Category; category != "" {
		catalog, err := rag.BuildCatalog(ctx, vectors)
		if err != nil {
			if pool != nil {
				pool.Close()
			}
			return nil, nil, fmt.Errorf("build corpus catalog: %w", err)
		}
		sourceFilter = catalog.Sources(category)
		if len(sourceFilter) == 0 {
			logger.Warn("configured category has no source files, serving unfiltered retrieval",
				zap.String("category", category),
				zap.Strings("known_categories", catalog.Categories()))
		} else {
			logger.Info("retrieval scoped to category",
				zap.String("category", category),
				zap.Int("source_files", len(sourceFilter)))
		}
	}

	web := websearch.NewTavilyClient(websearch.TavilyConfig{
		APIKey:     cfg.WebSearch.APIKey,
		BaseURL:    cfg.WebSearch.BaseURL,
		MaxResults: cfg.WebSearch.MaxResults,
		Timeout:    cfg.WebSearch.Timeout,
		RatePerSec: cfg.WebSearch.RatePerSec,
	}, logger)

	checkpoints, err := checkpoint.NewStore(ctx, checkpoint.Config{
		Backend:   cfg.Checkpoint.Backend,
		DSN:       cfg.Checkpoint.DSN,
		RedisAddr: cfg.Checkpoint.RedisAddr,
		RedisDB:   cfg.Checkpoint.RedisDB,
		KeyPrefix: cfg.Checkpoint.KeyPrefix,
	}, logger)
	if err != nil {
		if pool != nil {
			pool.Close()
		}
		return nil, nil, fmt.Errorf("create checkpoint store: %w", err)
	}

	ag := agent.New(provider, retriever, web, checkpoints, agent.Config{
		MaxIterations:       cfg.Agent.MaxIterations,
		NodeTimeout:         cfg.Agent.NodeTimeout,
		EvidenceTokenBudget: cfg.Agent.EvidenceTokenBudget,
		HistoryLimit:        cfg.Agent.HistoryLimit,
		SourceFilter:        sourceFilter,
		Model:               cfg.LLM.Model,
		Temperature:         cfg.LLM.Temperature,
		TopP:                cfg.LLM.TopP,
	}, logger, m)

	cleanup := func() {
		if err := checkpoints.Close(); err != nil {
			logger.Warn("checkpoint store close failed", zap.Error(err))
		}
		if pool != nil {
			pool.Close()
		}
	}
	return ag, cleanup, nil
}

func runHealthCheck(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	addr := fs.String("addr", "http://localhost:8080", "Server address")
	fs.Parse(args)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(*addr + "/healthz")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: status %d\n", resp.StatusCode)
		os.Exit(1)
	}
	fmt.Println("OK")
}

func printUsage() {
	fmt.Println(`suviet - Vietnamese history conversational agent

Usage:
  suviet <command> [options]

Commands:
  serve     Start the agent server
  version   Show version information
  health    Check server health
  help      Show this help message

Options for 'serve':
  --config <path>   Path to configuration file (YAML)

Examples:
  suviet serve
  suviet serve --config /etc/suviet/config.yaml
  suviet health --addr http://localhost:8080`)
}

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	if err := level.Set(cfg.Level); err != nil {
		level = zapcore.InfoLevel
	}

	var zapConfig zap.Config
	if cfg.Development {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zapConfig = zap.NewProductionConfig()
		zapConfig.EncoderConfig.TimeKey = "timestamp"
		zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapConfig.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}
