// Package storage implements the authoritative server-side document store
// over PostgreSQL. The server mints every accepted revision and assigns a
// global change sequence the clients page through during pull.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hseops/fieldsafe/internal/server/storage/migrations"
	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Storage bundles the repositories over one PostgreSQL database.
type Storage struct {
	db *sql.DB

	Documents *PostgresRepository
}

// Open connects to PostgreSQL at dsn and applies the embedded goose
// migrations.
func Open(ctx context.Context, dsn string) (*Storage, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return NewStorage(db), nil
}

// NewStorage wraps an already-migrated database handle.
func NewStorage(db *sql.DB) *Storage {
	return &Storage{
		db:        db,
		Documents: NewPostgresRepository(db),
	}
}

// RunMigrations applies the embedded goose migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	return goose.UpContext(ctx, db, ".")
}

// DB exposes the underlying handle for transactional helpers.
func (s *Storage) DB() *sql.DB { return s.db }

// Close closes the underlying database.
func (s *Storage) Close() error { return s.db.Close() }
