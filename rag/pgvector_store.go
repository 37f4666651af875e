package rag

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"
)

// PgvectorStore is a Postgres/pgvector-backed VectorStore.
//
// Expected schema (created by the ingestion job, not here):
//
//	CREATE TABLE rag_chunks (
//	    id        TEXT PRIMARY KEY,
//	    content   TEXT NOT NULL,
//	    metadata  JSONB NOT NULL DEFAULT '{}',
//	    embedding VECTOR NOT NULL
//	);
type PgvectorStore struct {
	pool   *pgxpool.Pool
	table  string
	logger *zap.Logger
}

// NewPgvectorStore creates a store over an existing pgx pool.
func NewPgvectorStore(pool *pgxpool.Pool, table string, logger *zap.Logger) *PgvectorStore {
	if table == "" {
		table = "rag_chunks"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PgvectorStore{pool: pool, table: table, logger: logger}
}

// Query implements VectorStore. The <=> operator is pgvector's cosine
// distance.
func (s *PgvectorStore) Query(ctx context.Context, embedding []float32, topK int, sources []string) ([]VectorResult, error) {
	query := fmt.Sprintf(`
		SELECT id, content, metadata, embedding <=> $1 AS distance
		FROM %s
		WHERE ($2::text[] IS NULL OR metadata->>'source' = ANY($2))
		ORDER BY embedding <=> $1
		LIMIT $3
	`, s.table)

	var filter []string
	if len(sources) > 0 {
		filter = sources
	}

	rows, err := s.pool.Query(ctx, query, pgvector.NewVector(embedding), filter, topK)
	if err != nil {
		return nil, fmt.Errorf("pgvector query: %w", err)
	}
	defer rows.Close()

	var results []VectorResult
	for rows.Next() {
		var (
			doc     Document
			rawMeta []byte
			dist    float64
		)
		if err := rows.Scan(&doc.ID, &doc.Content, &rawMeta, &dist); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		if len(rawMeta) > 0 {
			if err := json.Unmarshal(rawMeta, &doc.Metadata); err != nil {
				s.logger.Warn("chunk metadata is not valid JSON",
					zap.String("id", doc.ID), zap.Error(err))
			}
		}
		results = append(results, VectorResult{Document: doc, Distance: dist})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return results, nil
}

// All implements VectorStore. Used once per lexical index build.
func (s *PgvectorStore) All(ctx context.Context) ([]Document, error) {
	query := fmt.Sprintf(`SELECT id, content, metadata FROM %s`, s.table)

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("pgvector scan all: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var (
			doc     Document
			rawMeta []byte
		)
		if err := rows.Scan(&doc.ID, &doc.Content, &rawMeta); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		if len(rawMeta) > 0 {
			if err := json.Unmarshal(rawMeta, &doc.Metadata); err != nil {
				s.logger.Warn("chunk metadata is not valid JSON",
					zap.String("id", doc.ID), zap.Error(err))
			}
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return docs, nil
}
