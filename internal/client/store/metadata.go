package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hseops/fieldsafe/internal/dbx"
	"github.com/hseops/fieldsafe/internal/document"
)

// MetadataRepository is a small key/value table for sync bookkeeping:
// per-type pull cursors, the device id, the last successful sync time.
type MetadataRepository struct {
	db dbx.DBTX
}

// NewMetadataRepository returns a repository bound to the given DBTX.
func NewMetadataRepository(db dbx.DBTX) *MetadataRepository {
	return &MetadataRepository{db: db}
}

// Get returns the value for key, or nil if the key is absent.
func (r *MetadataRepository) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata[%s]: %w", key, err)
	}
	return value, nil
}

// Set upserts a key/value pair.
func (r *MetadataRepository) Set(ctx context.Context, key string, value []byte) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set metadata[%s]: %w", key, err)
	}
	return nil
}

// Delete removes a key.
func (r *MetadataRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM metadata WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete metadata[%s]: %w", key, err)
	}
	return nil
}

func cursorKey(typ document.Type) string {
	return "pull_cursor_" + string(typ)
}

// Cursor returns the saved pull cursor for a document type ("" if none).
func (r *MetadataRepository) Cursor(ctx context.Context, typ document.Type) (string, error) {
	v, err := r.Get(ctx, cursorKey(typ))
	if err != nil {
		return "", err
	}
	return string(v), nil
}

// SetCursor persists the pull cursor for a document type.
func (r *MetadataRepository) SetCursor(ctx context.Context, typ document.Type, cursor string) error {
	return r.Set(ctx, cursorKey(typ), []byte(cursor))
}
