// Package rag implements the hybrid retrieval subsystem: a dense vector
// store, a lazily built BM25 lexical index, and a fusing retriever that
// queries both concurrently.
package rag

import "context"

// Document is one stored corpus chunk.
type Document struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// VectorResult is one nearest-neighbor hit.
type VectorResult struct {
	Document Document `json:"document"`
	Distance float64  `json:"distance"`
}

// VectorStore is the persisted nearest-neighbor index over document
// embeddings, filterable by source file.
type VectorStore interface {
	// Query returns the topK nearest documents by cosine distance,
	// optionally restricted to documents whose "source" metadata matches
	// one of sources.
	Query(ctx context.Context, embedding []float32, topK int, sources []string) ([]VectorResult, error)

	// All returns the full corpus content and metadata. The lexical index
	// scans this once on its lazy build.
	All(ctx context.Context) ([]Document, error)
}

// DocSource extracts the source-file discriminator from document
// metadata. Documents without one return "".
func DocSource(meta map[string]any) string {
	if meta == nil {
		return ""
	}
	if s, ok := meta["source"].(string); ok {
		return s
	}
	return ""
}

func sourceAllowed(meta map[string]any, sources []string) bool {
	if len(sources) == 0 {
		return true
	}
	src := DocSource(meta)
	for _, s := range sources {
		if s == src {
			return true
		}
	}
	return false
}
