// Package store implements the on-device document store: a durable SQLite
// database holding documents, their binary attachments and sync metadata.
// It works with zero network access; every successful write is a durable
// commit visible to subsequent reads.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hseops/fieldsafe/internal/client/store/migrations"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

// Store bundles the per-table repositories over one SQLite database.
type Store struct {
	db *sql.DB

	Documents   *DocumentRepository
	Attachments *AttachmentRepository
	Metadata    *MetadataRepository
}

// Open opens (creating if needed) the SQLite database at dsn and applies
// the embedded goose migrations.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// The local store assumes a single writer (one operator per device);
	// a single connection also keeps in-memory test databases coherent.
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return NewStore(db), nil
}

// NewStore wraps an already-migrated database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:          db,
		Documents:   NewDocumentRepository(db),
		Attachments: NewAttachmentRepository(db),
		Metadata:    NewMetadataRepository(db),
	}
}

// RunMigrations applies the embedded goose migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	return goose.UpContext(ctx, db, ".")
}

// Purge physically removes a clean tombstone together with its attachments.
func (s *Store) Purge(ctx context.Context, id string) error {
	if err := s.Documents.Purge(ctx, id); err != nil {
		return err
	}
	return s.Attachments.DeleteFor(ctx, id)
}

// DB exposes the underlying handle for transactional helpers.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }
