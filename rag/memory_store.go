package rag

import (
	"context"
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// MemoryVectorStore is an in-memory VectorStore for development and
// tests. Data is lost on restart.
type MemoryVectorStore struct {
	mu         sync.RWMutex
	docs       []Document
	embeddings map[string][]float32
	logger     *zap.Logger
}

// NewMemoryVectorStore creates an empty in-memory store.
func NewMemoryVectorStore(logger *zap.Logger) *MemoryVectorStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryVectorStore{
		embeddings: make(map[string][]float32),
		logger:     logger,
	}
}

// Add stores documents with their embeddings.
func (s *MemoryVectorStore) Add(docs []Document, embeddings [][]float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, doc := range docs {
		s.docs = append(s.docs, doc)
		if i < len(embeddings) {
			s.embeddings[doc.ID] = embeddings[i]
		}
	}
}

// Query implements VectorStore using cosine distance.
func (s *MemoryVectorStore) Query(ctx context.Context, embedding []float32, topK int, sources []string) ([]VectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]VectorResult, 0, len(s.docs))
	for _, doc := range s.docs {
		if !sourceAllowed(doc.Metadata, sources) {
			continue
		}
		emb, ok := s.embeddings[doc.ID]
		if !ok {
			continue
		}
		results = append(results, VectorResult{
			Document: doc,
			Distance: 1 - cosineSimilarity(embedding, emb),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// All implements VectorStore.
func (s *MemoryVectorStore) All(ctx context.Context) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Document, len(s.docs))
	copy(out, s.docs)
	return out, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
