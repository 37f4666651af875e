package rag

import (
	"context"
	"sync"

	"github.com/suviet/agent/types"
	"go.uber.org/zap"
)

// RetrieverConfig configures the hybrid retriever.
type RetrieverConfig struct {
	TopK int `yaml:"top_k"`
}

// HybridRetriever runs dense vector search and sparse lexical search
// concurrently for a query and fuses the results.
//
// Each source's failure is isolated: a failing source contributes an
// empty result set and fusion proceeds with whatever succeeded. Retrieve
// only errors when the caller's context is done.
type HybridRetriever struct {
	embedder Embedder
	vectors  VectorStore
	lexical  *LexicalIndex
	cfg      RetrieverConfig
	logger   *zap.Logger
}

// NewHybridRetriever creates a retriever over the given stores.
func NewHybridRetriever(embedder Embedder, vectors VectorStore, lexical *LexicalIndex, cfg RetrieverConfig, logger *zap.Logger) *HybridRetriever {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HybridRetriever{
		embedder: embedder,
		vectors:  vectors,
		lexical:  lexical,
		cfg:      cfg,
		logger:   logger,
	}
}

// Retrieve returns deduplicated evidence for query, optionally restricted
// to the given source files. Fusion is a union: vector results first,
// then lexical results, deduplicated by exact content with first-seen
// order preserved (vector wins ties). No score-based re-ranking.
func (r *HybridRetriever) Retrieve(ctx context.Context, query string, sources []string) ([]types.EvidenceItem, error) {
	var (
		wg          sync.WaitGroup
		vectorItems []types.EvidenceItem
		lexItems    []types.EvidenceItem
	)

	// The two branches are joined unconditionally: a failure on one side
	// must not cancel or fail the other, so no errgroup here.
	wg.Add(2)

	go func() {
		defer wg.Done()
		results, err := r.vectorSearch(ctx, query, sources)
		if err != nil {
			r.logger.Warn("vector search failed, contributing no evidence", zap.Error(err))
			return
		}
		vectorItems = toEvidence(results, types.SourceVector)
	}()

	go func() {
		defer wg.Done()
		results, err := r.lexical.Search(ctx, query, sources)
		if err != nil {
			r.logger.Warn("lexical search failed, contributing no evidence", zap.Error(err))
			return
		}
		lexItems = toEvidence(results, types.SourceLexical)
	}()

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fused := types.DedupeEvidence(append(vectorItems, lexItems...))
	r.logger.Debug("hybrid retrieval fused",
		zap.Int("vector", len(vectorItems)),
		zap.Int("lexical", len(lexItems)),
		zap.Int("fused", len(fused)))
	return fused, nil
}

// Invalidate signals that the underlying corpus changed. The lexical
// index is rebuilt on next use; the vector store always reads live data.
func (r *HybridRetriever) Invalidate() {
	r.lexical.Invalidate()
}

func (r *HybridRetriever) vectorSearch(ctx context.Context, query string, sources []string) ([]VectorResult, error) {
	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, types.NewError(types.ErrVectorSearch, "embed query").WithCause(err)
	}
	results, err := r.vectors.Query(ctx, embedding, r.cfg.TopK, sources)
	if err != nil {
		return nil, types.NewError(types.ErrVectorSearch, "query vector store").WithCause(err)
	}
	return results, nil
}

func toEvidence(results []VectorResult, tag types.SourceTag) []types.EvidenceItem {
	items := make([]types.EvidenceItem, 0, len(results))
	for _, res := range results {
		meta := make(map[string]any, len(res.Document.Metadata)+1)
		for k, v := range res.Document.Metadata {
			meta[k] = v
		}
		meta["distance"] = res.Distance
		items = append(items, types.EvidenceItem{
			Content:  res.Document.Content,
			Source:   tag,
			Metadata: meta,
		})
	}
	return items
}
