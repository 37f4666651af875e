package rag

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// LexicalConfig holds the BM25 ranking parameters.
type LexicalConfig struct {
	TopK   int     `yaml:"top_k"`
	BM25K1 float64 `yaml:"bm25_k1"`
	BM25B  float64 `yaml:"bm25_b"`
}

// DefaultLexicalConfig returns the standard BM25 parameters.
func DefaultLexicalConfig() LexicalConfig {
	return LexicalConfig{TopK: 5, BM25K1: 1.5, BM25B: 0.75}
}

// LexicalIndex is a BM25 term index over the full document corpus.
//
// The index is built lazily on first use by scanning the vector store's
// content and metadata; concurrent first uses collapse into exactly one
// build via singleflight. Invalidate tears the index down so the next
// search rebuilds it from the changed corpus.
type LexicalIndex struct {
	store  VectorStore
	cfg    LexicalConfig
	logger *zap.Logger

	mu    sync.RWMutex
	built *bm25Index
	group singleflight.Group
}

// NewLexicalIndex creates an unbuilt index over store.
func NewLexicalIndex(store VectorStore, cfg LexicalConfig, logger *zap.Logger) *LexicalIndex {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.BM25K1 == 0 {
		cfg.BM25K1 = 1.5
	}
	if cfg.BM25B == 0 {
		cfg.BM25B = 0.75
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LexicalIndex{store: store, cfg: cfg, logger: logger}
}

// Search returns the topK documents ranked by BM25 score for query. If
// sources is non-empty, results are filtered post-hoc by their "source"
// metadata after ranking.
func (l *LexicalIndex) Search(ctx context.Context, query string, sources []string) ([]VectorResult, error) {
	idx, err := l.ensureBuilt(ctx)
	if err != nil {
		return nil, err
	}

	scored := idx.score(query, l.cfg)
	results := make([]VectorResult, 0, l.cfg.TopK)
	for _, hit := range scored {
		doc := idx.docs[hit.docIdx]
		if !sourceAllowed(doc.Metadata, sources) {
			continue
		}
		// Negated score keeps the lower-is-better convention vector
		// results use for distance.
		results = append(results, VectorResult{Document: doc, Distance: -hit.score})
		if len(results) >= l.cfg.TopK {
			break
		}
	}
	return results, nil
}

// Invalidate tears down the index. The next Search rebuilds it.
func (l *LexicalIndex) Invalidate() {
	l.mu.Lock()
	l.built = nil
	l.mu.Unlock()
	l.logger.Info("lexical index invalidated")
}

func (l *LexicalIndex) ensureBuilt(ctx context.Context) (*bm25Index, error) {
	l.mu.RLock()
	idx := l.built
	l.mu.RUnlock()
	if idx != nil {
		return idx, nil
	}

	v, err, _ := l.group.Do("build", func() (any, error) {
		// Re-check: another caller may have finished a build between the
		// read-lock release and the singleflight entry.
		l.mu.RLock()
		existing := l.built
		l.mu.RUnlock()
		if existing != nil {
			return existing, nil
		}

		docs, err := l.store.All(ctx)
		if err != nil {
			return nil, err
		}
		built := newBM25Index(docs)
		l.mu.Lock()
		l.built = built
		l.mu.Unlock()
		l.logger.Info("lexical index built", zap.Int("documents", len(docs)))
		return built, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*bm25Index), nil
}

// bm25Index holds the precomputed corpus statistics.
type bm25Index struct {
	docs      []Document
	termFreqs []map[string]int
	docLens   []int
	avgDocLen float64
	idf       map[string]float64
}

func newBM25Index(docs []Document) *bm25Index {
	idx := &bm25Index{
		docs:      docs,
		termFreqs: make([]map[string]int, len(docs)),
		docLens:   make([]int, len(docs)),
		idf:       make(map[string]float64),
	}

	totalLen := 0
	termDocCount := make(map[string]int)
	for i, doc := range docs {
		terms := tokenize(doc.Content)
		idx.docLens[i] = len(terms)
		totalLen += len(terms)

		tf := make(map[string]int, len(terms))
		for _, term := range terms {
			tf[term]++
		}
		idx.termFreqs[i] = tf
		for term := range tf {
			termDocCount[term]++
		}
	}

	if len(docs) > 0 {
		idx.avgDocLen = float64(totalLen) / float64(len(docs))
	}

	n := float64(len(docs))
	for term, df := range termDocCount {
		idx.idf[term] = math.Log((n-float64(df)+0.5)/(float64(df)+0.5) + 1.0)
	}
	return idx
}

type bm25Hit struct {
	docIdx int
	score  float64
}

func (idx *bm25Index) score(query string, cfg LexicalConfig) []bm25Hit {
	queryTerms := tokenize(query)
	hits := make([]bm25Hit, 0, len(idx.docs))

	for i := range idx.docs {
		score := 0.0
		docLen := float64(idx.docLens[i])
		for _, qTerm := range queryTerms {
			tf, ok := idx.termFreqs[i][qTerm]
			if !ok {
				continue
			}
			numerator := float64(tf) * (cfg.BM25K1 + 1.0)
			denominator := float64(tf) + cfg.BM25K1*(1.0-cfg.BM25B+cfg.BM25B*(docLen/idx.avgDocLen))
			score += idx.idf[qTerm] * (numerator / denominator)
		}
		if score > 0 {
			hits = append(hits, bm25Hit{docIdx: i, score: score})
		}
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	return hits
}

func tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}
