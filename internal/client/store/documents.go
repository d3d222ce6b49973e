package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hseops/fieldsafe/internal/common"
	"github.com/hseops/fieldsafe/internal/dbx"
	"github.com/hseops/fieldsafe/internal/document"
)

// DocumentRepository persists documents in the local SQLite database.
type DocumentRepository struct {
	db dbx.DBTX
}

// NewDocumentRepository returns a repository bound to the given DBTX.
func NewDocumentRepository(db dbx.DBTX) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Sort order for Query results.
type Sort int

const (
	SortNewestFirst Sort = iota // by created_at, newest first
	SortOldestFirst             // by created_at, oldest first
	SortRiskFirst               // by payload risk score, highest first
)

func (s Sort) orderBy() string {
	switch s {
	case SortOldestFirst:
		return `created_at`
	case SortRiskFirst:
		return `json_extract(payload, '$.risk_score') DESC, created_at DESC`
	default:
		return `created_at DESC`
	}
}

// QueryFilter narrows and orders a Query result. Zero values match
// everything, newest first.
type QueryFilter struct {
	Status   document.Status // inspection status, matched against the payload
	Location string          // substring match on the payload location
	Sort     Sort
	Limit    int
}

const docColumns = `id, rev, doc_type, dirty, deleted, payload, created_at, updated_at`

func scanDocument(row interface{ Scan(...any) error }) (*document.Document, error) {
	var d document.Document
	var dirty, deleted int
	var createdAt, updatedAt string
	err := row.Scan(&d.ID, &d.Rev, &d.Type, &dirty, &deleted, &d.Payload, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	d.Dirty = dirty != 0
	d.Deleted = deleted != 0
	if d.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if d.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &d, nil
}

// Get returns a document by id, tombstones included.
func (r *DocumentRepository) Get(ctx context.Context, id string) (*document.Document, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+docColumns+` FROM documents WHERE id = ?`, id)
	d, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return d, nil
}

// Put stores a document with an optimistic revision check: the caller's rev
// must equal the stored rev (or the document must be new). On success a fresh
// local revision is assigned and the stored copy is returned.
//
// The local store assumes a single writer, so the read-check-write below is
// not raced in practice.
func (r *DocumentRepository) Put(ctx context.Context, doc *document.Document) (*document.Document, error) {
	var currentRev string
	err := r.db.QueryRowContext(ctx, `SELECT rev FROM documents WHERE id = ?`, doc.ID).Scan(&currentRev)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// new document
	case err != nil:
		return nil, fmt.Errorf("failed to read current revision: %w", err)
	case currentRev != doc.Rev:
		return nil, common.ErrRevisionConflict
	}

	rev, err := document.NewRev(document.RevGeneration(currentRev) + 1)
	if err != nil {
		return nil, err
	}

	stored := doc.Clone()
	stored.Rev = rev
	stored.UpdatedAt = time.Now().UTC()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = stored.UpdatedAt
	}
	if err := r.write(ctx, stored); err != nil {
		return nil, err
	}
	return stored, nil
}

// ForcePut writes a document exactly as given, revision included, bypassing
// the optimistic check. The sync engine uses it for push and pull write-backs,
// where the remote store has already decided the authoritative revision.
func (r *DocumentRepository) ForcePut(ctx context.Context, doc *document.Document) error {
	stored := doc.Clone()
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = time.Now().UTC()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = stored.UpdatedAt
	}
	return r.write(ctx, stored)
}

func (r *DocumentRepository) write(ctx context.Context, d *document.Document) error {
	query := `
		INSERT INTO documents (id, rev, doc_type, dirty, deleted, payload, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			rev = excluded.rev,
			doc_type = excluded.doc_type,
			dirty = excluded.dirty,
			deleted = excluded.deleted,
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`
	_, err := r.db.ExecContext(ctx, query,
		d.ID, d.Rev, d.Type, boolToInt(d.Dirty), boolToInt(d.Deleted), []byte(d.Payload),
		d.CreatedAt.UTC().Format(time.RFC3339Nano), d.UpdatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}
	return nil
}

// Query lists non-deleted documents of a type in the filter's order.
// Tombstones never appear in query results.
func (r *DocumentRepository) Query(ctx context.Context, typ document.Type, filter QueryFilter) ([]*document.Document, error) {
	query := `SELECT ` + docColumns + ` FROM documents WHERE doc_type = ? AND deleted = 0`
	args := []any{typ}
	if filter.Status != "" {
		query += ` AND json_extract(payload, '$.status') = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Location != "" {
		query += ` AND json_extract(payload, '$.location') LIKE ?`
		args = append(args, "%"+filter.Location+"%")
	}
	query += ` ORDER BY ` + filter.Sort.orderBy()
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	return r.list(ctx, query, args...)
}

// ListDirty returns documents of a type with local content not yet accepted by
// the remote store. This persisted set is the push pass's retry queue.
func (r *DocumentRepository) ListDirty(ctx context.Context, typ document.Type) ([]*document.Document, error) {
	query := `SELECT ` + docColumns + ` FROM documents WHERE doc_type = ? AND dirty = 1 ORDER BY created_at`
	return r.list(ctx, query, typ)
}

func (r *DocumentRepository) list(ctx context.Context, query string, args ...any) ([]*document.Document, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select documents: %w", err)
	}
	defer rows.Close()

	var result []*document.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Purge physically removes a document. Only clean tombstones may be purged:
// the deletion must have propagated before the record disappears.
func (r *DocumentRepository) Purge(ctx context.Context, id string) error {
	d, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if !d.Deleted {
		return common.ErrNotTombstone
	}
	if d.Dirty {
		return fmt.Errorf("%w: tombstone not yet propagated", common.ErrRejected)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to purge document: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
