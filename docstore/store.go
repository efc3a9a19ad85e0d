// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

// Package docstore implements the document-store contract on PostgreSQL,
// storing document attributes as JSONB rows keyed by (user, collection, id).
package docstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/haruka-katayama/FitAI-v2/healthsync"
)

// Store is a PostgreSQL-backed document store. A nil *Store is a valid
// "unavailable" store: every method fails with ErrStoreUnavailable, which
// the coordinator treats as a degraded-mode signal.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Open connects to the document database. An empty databaseURL means the
// document store is not configured; Open returns (nil, nil) and the caller
// runs in analytical-only mode.
func Open(ctx context.Context, databaseURL string, logger *slog.Logger) (*Store, error) {
	if databaseURL == "" {
		return nil, nil
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("docstore: connect: %w", err)
	}
	store, err := NewFromPool(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewFromPool wraps an existing pool and ensures the document schema exists.
func NewFromPool(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{pool: pool, logger: logger}
	if err := s.initializeSchema(ctx); err != nil {
		return nil, fmt.Errorf("docstore: init schema: %w", err)
	}
	return s, nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) initializeSchema(ctx context.Context) error {
	migrations := []string{
		/*language=postgresql*/ `CREATE SCHEMA IF NOT EXISTS healthdoc`,

		/*language=postgresql*/ `CREATE TABLE IF NOT EXISTS healthdoc.documents (
			user_id     TEXT        NOT NULL,
			collection  TEXT        NOT NULL,
			doc_id      TEXT        NOT NULL,
			attrs       JSONB       NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (user_id, collection, doc_id)
		)`,

		// Range reads filter on the occurred_date attribute.
		/*language=postgresql*/ `CREATE INDEX IF NOT EXISTS idx_documents_occurred_date
			ON healthdoc.documents (user_id, collection, (attrs->>'occurred_date'))`,
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, migration := range migrations {
			if _, err := tx.Exec(ctx, migration); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
		}
		return nil
	})
}

// Exists reports whether a document is present.
func (s *Store) Exists(ctx context.Context, collection, userID, docID string) (bool, error) {
	if s == nil || s.pool == nil {
		return false, healthsync.ErrStoreUnavailable
	}
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM healthdoc.documents
			WHERE user_id = $1 AND collection = $2 AND doc_id = $3
		)`, userID, collection, docID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("docstore: exists: %w", err)
	}
	return exists, nil
}

// PutIfAbsent inserts the document and reports whether a row was written.
// A concurrent writer holding the same key wins silently: the key is a
// content fingerprint, so the stored document is equivalent.
func (s *Store) PutIfAbsent(ctx context.Context, collection, userID, docID string, attrs healthsync.Row) (bool, error) {
	if s == nil || s.pool == nil {
		return false, healthsync.ErrStoreUnavailable
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO healthdoc.documents (user_id, collection, doc_id, attrs)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, collection, doc_id) DO NOTHING`,
		userID, collection, docID, attrs)
	if err != nil {
		return false, fmt.Errorf("docstore: put: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Get returns the document attributes, or (nil, nil) when absent.
func (s *Store) Get(ctx context.Context, collection, userID, docID string) (healthsync.Row, error) {
	if s == nil || s.pool == nil {
		return nil, healthsync.ErrStoreUnavailable
	}
	var attrs healthsync.Row
	err := s.pool.QueryRow(ctx, `
		SELECT attrs FROM healthdoc.documents
		WHERE user_id = $1 AND collection = $2 AND doc_id = $3`,
		userID, collection, docID).Scan(&attrs)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("docstore: get: %w", err)
	}
	return attrs, nil
}

// QueryRange returns documents whose indexed attribute falls inclusively
// between from and to, ordered by that attribute.
func (s *Store) QueryRange(ctx context.Context, collection, userID, field, from, to string) ([]healthsync.Row, error) {
	if s == nil || s.pool == nil {
		return nil, healthsync.ErrStoreUnavailable
	}
	rows, err := s.pool.Query(ctx, `
		SELECT attrs FROM healthdoc.documents
		WHERE user_id = $1 AND collection = $2
		  AND attrs->>$3 BETWEEN $4 AND $5
		ORDER BY attrs->>$3 ASC`,
		userID, collection, field, from, to)
	if err != nil {
		return nil, fmt.Errorf("docstore: query range: %w", err)
	}
	defer rows.Close()

	var out []healthsync.Row
	for rows.Next() {
		var attrs healthsync.Row
		if err := rows.Scan(&attrs); err != nil {
			return nil, fmt.Errorf("docstore: scan: %w", err)
		}
		out = append(out, attrs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("docstore: query range: %w", err)
	}
	return out, nil
}
