package mocks

import (
	"context"
	"sync"

	"github.com/suviet/agent/rag"
	"github.com/suviet/agent/types"
)

// MockEmbedder is a deterministic rag.Embedder. Without a script it
// hashes the text into a fixed-width vector so distinct texts embed
// differently but repeatably.
type MockEmbedder struct {
	mu sync.Mutex

	embedErr error
	calls    int
}

// NewMockEmbedder creates a MockEmbedder.
func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{}
}

// WithError makes every Embed call fail with err.
func (m *MockEmbedder) WithError(err error) *MockEmbedder {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embedErr = err
	return m
}

// Embed implements rag.Embedder.
func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.embedErr != nil {
		return nil, m.embedErr
	}

	vec := make([]float32, 8)
	for i, r := range text {
		vec[i%8] += float32(r%97) / 97
	}
	return vec, nil
}

// Calls returns how many embeddings were requested.
func (m *MockEmbedder) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockVectorStore is an in-memory rag.VectorStore with error injection
// and call counting. Query returns the scripted results regardless of
// the embedding; All returns the stored documents.
type MockVectorStore struct {
	mu sync.Mutex

	docs     []rag.Document
	results  []rag.VectorResult
	queryErr error
	allErr   error

	queryCalls int
	allCalls   int
}

// NewMockVectorStore creates a store over docs.
func NewMockVectorStore(docs ...rag.Document) *MockVectorStore {
	return &MockVectorStore{docs: docs}
}

// WithResults scripts the hits Query returns.
func (m *MockVectorStore) WithResults(results ...rag.VectorResult) *MockVectorStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = results
	return m
}

// WithQueryError makes Query fail with err.
func (m *MockVectorStore) WithQueryError(err error) *MockVectorStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queryErr = err
	return m
}

// WithAllError makes All fail with err.
func (m *MockVectorStore) WithAllError(err error) *MockVectorStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allErr = err
	return m
}

// Query implements rag.VectorStore.
func (m *MockVectorStore) Query(ctx context.Context, embedding []float32, topK int, sources []string) ([]rag.VectorResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queryCalls++
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	if topK < len(m.results) {
		return m.results[:topK], nil
	}
	return m.results, nil
}

// All implements rag.VectorStore.
func (m *MockVectorStore) All(ctx context.Context) ([]rag.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allCalls++
	if m.allErr != nil {
		return nil, m.allErr
	}
	return m.docs, nil
}

// QueryCalls returns how many times Query ran.
func (m *MockVectorStore) QueryCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queryCalls
}

// AllCalls returns how many times All ran. The lexical index's lazy
// single-build tests assert on this.
func (m *MockVectorStore) AllCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.allCalls
}

// MockRetriever is a scripted agent.Retriever.
type MockRetriever struct {
	mu sync.Mutex

	items   []types.EvidenceItem
	err     error
	calls   int
	sources [][]string
}

// NewMockRetriever creates a retriever returning items.
func NewMockRetriever(items ...types.EvidenceItem) *MockRetriever {
	return &MockRetriever{items: items}
}

// WithError makes Retrieve fail with err.
func (m *MockRetriever) WithError(err error) *MockRetriever {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// Retrieve implements agent.Retriever.
func (m *MockRetriever) Retrieve(ctx context.Context, query string, sources []string) ([]types.EvidenceItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.sources = append(m.sources, sources)
	if m.err != nil {
		return nil, m.err
	}
	return m.items, nil
}

// Calls returns how many retrievals ran.
func (m *MockRetriever) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastSources returns the source filter of the most recent Retrieve.
func (m *MockRetriever) LastSources() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sources) == 0 {
		return nil
	}
	return m.sources[len(m.sources)-1]
}

// MockSearcher is a scripted websearch.Searcher.
type MockSearcher struct {
	mu sync.Mutex

	items []types.EvidenceItem
	err   error
	calls int
}

// NewMockSearcher creates a searcher returning items.
func NewMockSearcher(items ...types.EvidenceItem) *MockSearcher {
	return &MockSearcher{items: items}
}

// WithError makes Search fail with err.
func (m *MockSearcher) WithError(err error) *MockSearcher {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// Search implements websearch.Searcher.
func (m *MockSearcher) Search(ctx context.Context, query string) ([]types.EvidenceItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.items, nil
}

// Calls returns how many searches ran.
func (m *MockSearcher) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
