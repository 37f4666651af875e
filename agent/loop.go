// Package agent implements the orchestrator: a bounded cyclic state
// machine driving classify -> retrieval fan-out -> synthesis ->
// reflection for each user turn.
package agent

import (
	"context"
	"time"

	"github.com/pkoukk/tiktoken-go"
	"github.com/suviet/agent/checkpoint"
	"github.com/suviet/agent/internal/metrics"
	"github.com/suviet/agent/llm"
	"github.com/suviet/agent/types"
	"github.com/suviet/agent/websearch"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Node identifies one orchestrator state.
type Node string

const (
	NodeClassify       Node = "classify"
	NodeSearchHistory  Node = "search_history"
	NodeHandleChitchat Node = "handle_chitchat"
	NodeSynthesize     Node = "synthesize"
	NodeReflect        Node = "reflect"
	NodeEnd            Node = "end"
)

// Route is the pure routing function applied after classification. It
// never silently defaults: an unrecognized query type is a hard error
// that surfaces as a turn-level failure.
func Route(state *ConversationState) (Node, error) {
	switch state.QueryType {
	case types.QueryHistory:
		return NodeSearchHistory, nil
	case types.QueryChitchat:
		return NodeHandleChitchat, nil
	default:
		return NodeEnd, types.NewError(types.ErrUnknownRoute,
			"query_type "+string(state.QueryType)+" has no route")
	}
}

// Retriever is the local evidence lookup the orchestrator fans out to.
type Retriever interface {
	Retrieve(ctx context.Context, query string, sources []string) ([]types.EvidenceItem, error)
}

// Config configures the orchestrator loop.
type Config struct {
	// MaxIterations is the hard ceiling on reflection cycles per turn,
	// independent of verdict quality. Bounds worst-case latency and cost.
	MaxIterations int `yaml:"max_iterations"`

	// NodeTimeout bounds every LLM call made by a node.
	NodeTimeout time.Duration `yaml:"node_timeout"`

	// EvidenceTokenBudget caps evidence text in the synthesis prompt.
	EvidenceTokenBudget int `yaml:"evidence_token_budget"`

	// HistoryLimit caps how many persisted messages seed a turn.
	HistoryLimit int `yaml:"history_limit"`

	// SourceFilter restricts local retrieval to these source files.
	// Nil/empty means the whole corpus.
	SourceFilter []string `yaml:"source_filter"`

	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	TopP        float32 `yaml:"top_p"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxIterations:       3,
		NodeTimeout:         10 * time.Second,
		EvidenceTokenBudget: 6000,
		HistoryLimit:        20,
		Temperature:         0.3,
		TopP:                0.8,
	}
}

// Agent drives turns. All collaborators are injected at construction;
// there is no process-wide mutable state.
type Agent struct {
	provider    llm.Provider
	retriever   Retriever
	web         websearch.Searcher
	checkpoints checkpoint.Store
	cfg         Config
	logger      *zap.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
	encoder     *tiktoken.Tiktoken
	locks       *threadLocks
}

// New creates an agent.
func New(provider llm.Provider, retriever Retriever, web websearch.Searcher, checkpoints checkpoint.Store, cfg Config, logger *zap.Logger, m *metrics.Metrics) *Agent {
	if cfg.MaxIterations < 1 {
		cfg.MaxIterations = 1
	}
	if cfg.NodeTimeout <= 0 {
		cfg.NodeTimeout = 10 * time.Second
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 20
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.New(nil)
	}

	// cl100k_base ships with tiktoken-go; a load failure only disables
	// token-exact evidence budgeting, so it degrades to a rune cap.
	encoder, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		logger.Warn("tokenizer unavailable, evidence budget falls back to runes", zap.Error(err))
	}

	return &Agent{
		provider:    provider,
		retriever:   retriever,
		web:         web,
		checkpoints: checkpoints,
		cfg:         cfg,
		logger:      logger,
		metrics:     m,
		tracer:      otel.Tracer("suviet/agent"),
		encoder:     encoder,
		locks:       newThreadLocks(),
	}
}

// executeTurn runs the state machine until a terminal node. The loop is
// an explicit driver with an iteration cap; nodes never call each other.
func (a *Agent) executeTurn(ctx context.Context, state *ConversationState) error {
	node := NodeClassify
	for node != NodeEnd {
		if err := ctx.Err(); err != nil {
			return err
		}

		nodeCtx, span := a.tracer.Start(ctx, "agent."+string(node))
		next, err := a.step(nodeCtx, node, state)
		span.End()
		if err != nil {
			return err
		}
		node = next
	}

	if state.QueryType == types.QueryHistory {
		a.metrics.ReflectionIterations.Observe(float64(state.Iterations()))
	}
	return nil
}

// step executes one node and returns the next node.
func (a *Agent) step(ctx context.Context, node Node, state *ConversationState) (Node, error) {
	switch node {
	case NodeClassify:
		a.classify(ctx, state).Apply(state)
		return Route(state)

	case NodeHandleChitchat:
		a.handleChitchat(ctx, state).Apply(state)
		return NodeEnd, nil

	case NodeSearchHistory:
		a.searchHistory(ctx, state).Apply(state)
		return NodeSynthesize, nil

	case NodeSynthesize:
		delta := a.synthesize(ctx, state)
		delta.Apply(state)
		if delta.Failed {
			// Reflecting on an apology is wasted cost.
			return NodeEnd, nil
		}
		return NodeReflect, nil

	case NodeReflect:
		a.reflect(ctx, state).Apply(state)
		return a.loopDecision(state), nil

	default:
		return NodeEnd, types.NewError(types.ErrUnknownRoute, "unknown node "+string(node))
	}
}

// loopDecision terminates on a good verdict or once the iteration cap is
// reached; otherwise it loops back to retrieval with the same query.
func (a *Agent) loopDecision(state *ConversationState) Node {
	if state.EvalVerdict == types.VerdictGood {
		return NodeEnd
	}
	if state.Iterations() >= a.cfg.MaxIterations {
		a.logger.Info("reflection budget exhausted, returning last answer",
			zap.Int("iterations", state.Iterations()))
		return NodeEnd
	}
	return NodeSearchHistory
}
