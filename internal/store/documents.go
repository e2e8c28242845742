// Package store persists ingested documents in PostgreSQL so the in-memory
// index can be rebuilt after a restart.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/elchin-rustamov/courtsearch/internal/document"
	"github.com/elchin-rustamov/courtsearch/pkg/postgres"
)

// Documents is the document persistence layer.
//
// It requires a `documents` table:
//
//	CREATE TABLE documents (
//	    id          TEXT PRIMARY KEY,
//	    filename    TEXT NOT NULL,
//	    content     TEXT NOT NULL,
//	    metadata    JSONB NOT NULL,
//	    ingested_at TIMESTAMPTZ NOT NULL
//	);
type Documents struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewDocuments(db *postgres.Client) *Documents {
	return &Documents{
		db:     db,
		logger: slog.Default().With("component", "document-store"),
	}
}

// Save upserts a document. Re-ingesting under an existing id replaces the
// stored content and metadata.
func (s *Documents) Save(ctx context.Context, doc *document.Document) error {
	meta, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}

	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO documents (id, filename, content, metadata, ingested_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE
			SET filename = EXCLUDED.filename,
			    content = EXCLUDED.content,
			    metadata = EXCLUDED.metadata,
			    ingested_at = EXCLUDED.ingested_at`,
			doc.ID, doc.Filename, doc.Text, meta, doc.IngestedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("saving document %s: %w", doc.ID, err)
		}
		return nil
	})
}

// Get loads a single document by id. Returns nil, nil when absent.
func (s *Documents) Get(ctx context.Context, id string) (*document.Document, error) {
	row := s.db.DB.QueryRowContext(ctx, `
		SELECT id, filename, content, metadata, ingested_at
		FROM documents WHERE id = $1`, id)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return doc, err
}

// Delete removes a document. It reports whether a row was deleted.
func (s *Documents) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.DB.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("deleting document %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking delete result: %w", err)
	}
	return affected > 0, nil
}

// List loads every stored document, oldest first. Used by startup rebuild
// and reindexing.
func (s *Documents) List(ctx context.Context) ([]*document.Document, error) {
	rows, err := s.db.DB.QueryContext(ctx, `
		SELECT id, filename, content, metadata, ingested_at
		FROM documents ORDER BY ingested_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []*document.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			s.logger.Warn("skipping unreadable document row", "error", err)
			continue
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Count returns the number of stored documents.
func (s *Documents) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*document.Document, error) {
	var (
		doc        document.Document
		meta       []byte
		ingestedAt time.Time
	)
	if err := row.Scan(&doc.ID, &doc.Filename, &doc.Text, &meta, &ingestedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(meta, &doc.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshaling metadata for %s: %w", doc.ID, err)
	}
	doc.IngestedAt = ingestedAt
	return &doc, nil
}
