package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hseops/fieldsafe/internal/common"
	"github.com/hseops/fieldsafe/internal/dbx"
)

// Blob is a binary attachment resident in the local store.
type Blob struct {
	DocID       string
	Name        string
	ContentType string
	Data        []byte
	Uploaded    bool
}

// BlobInfo describes an attachment without carrying its bytes.
type BlobInfo struct {
	Name        string
	ContentType string
	Size        int64
	Uploaded    bool
}

// AttachmentRepository persists attachment blobs keyed by (document id, name).
type AttachmentRepository struct {
	db dbx.DBTX
}

// NewAttachmentRepository returns a repository bound to the given DBTX.
func NewAttachmentRepository(db dbx.DBTX) *AttachmentRepository {
	return &AttachmentRepository{db: db}
}

// Get returns one attachment with its bytes.
func (r *AttachmentRepository) Get(ctx context.Context, docID, name string) (*Blob, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT content_type, data, uploaded FROM attachments WHERE doc_id = ? AND name = ?`, docID, name)

	b := &Blob{DocID: docID, Name: name}
	var uploaded int
	err := row.Scan(&b.ContentType, &b.Data, &uploaded)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get attachment: %w", err)
	}
	b.Uploaded = uploaded != 0
	return b, nil
}

// Put upserts an attachment blob.
func (r *AttachmentRepository) Put(ctx context.Context, b *Blob) error {
	query := `
		INSERT INTO attachments (doc_id, name, content_type, data, uploaded)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(doc_id, name) DO UPDATE SET
			content_type = excluded.content_type,
			data = excluded.data,
			uploaded = excluded.uploaded
	`
	_, err := r.db.ExecContext(ctx, query, b.DocID, b.Name, b.ContentType, b.Data, boolToInt(b.Uploaded))
	if err != nil {
		return fmt.Errorf("failed to upsert attachment: %w", err)
	}
	return nil
}

// List describes the attachments of one document.
func (r *AttachmentRepository) List(ctx context.Context, docID string) ([]BlobInfo, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name, content_type, length(data), uploaded FROM attachments WHERE doc_id = ? ORDER BY name`, docID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	defer rows.Close()

	var result []BlobInfo
	for rows.Next() {
		var info BlobInfo
		var uploaded int
		if err := rows.Scan(&info.Name, &info.ContentType, &info.Size, &uploaded); err != nil {
			return nil, err
		}
		info.Uploaded = uploaded != 0
		result = append(result, info)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ListPending returns attachments awaiting upload whose owning document has
// already been metadata-synced (clean and not tombstoned). Attachments of
// dirty documents wait for the next push pass first.
func (r *AttachmentRepository) ListPending(ctx context.Context) ([]*Blob, error) {
	query := `
		SELECT a.doc_id, a.name, a.content_type, a.data
		FROM attachments a
		JOIN documents d ON d.id = a.doc_id
		WHERE a.uploaded = 0 AND d.dirty = 0 AND d.deleted = 0
		ORDER BY a.doc_id, a.name
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending attachments: %w", err)
	}
	defer rows.Close()

	var result []*Blob
	for rows.Next() {
		b := &Blob{}
		if err := rows.Scan(&b.DocID, &b.Name, &b.ContentType, &b.Data); err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// MarkUploaded records per-name upload success.
func (r *AttachmentRepository) MarkUploaded(ctx context.Context, docID, name string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE attachments SET uploaded = 1 WHERE doc_id = ? AND name = ?`, docID, name)
	if err != nil {
		return fmt.Errorf("failed to mark attachment uploaded: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n != 1 {
		return common.ErrNotFound
	}
	return nil
}

// NextName returns the next sequential attachment name for a document
// (photo_0, photo_1, ...).
func (r *AttachmentRepository) NextName(ctx context.Context, docID string) (string, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM attachments WHERE doc_id = ?`, docID).Scan(&n)
	if err != nil {
		return "", fmt.Errorf("failed to count attachments: %w", err)
	}
	return fmt.Sprintf("photo_%d", n), nil
}

// DeleteFor removes all attachments of a document, used when purging.
func (r *AttachmentRepository) DeleteFor(ctx context.Context, docID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM attachments WHERE doc_id = ?`, docID); err != nil {
		return fmt.Errorf("failed to delete attachments: %w", err)
	}
	return nil
}
