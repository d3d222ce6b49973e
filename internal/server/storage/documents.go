package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/hseops/fieldsafe/internal/common"
	"github.com/hseops/fieldsafe/internal/dbx"
	"github.com/hseops/fieldsafe/internal/document"
)

// PostgresRepository implements authoritative document storage over *sql.DB.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository constructs a repository bound to the given database.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const docColumns = `id, rev, doc_type, deleted, payload, created_at, updated_at`

func scanDocument(row interface{ Scan(...any) error }) (*document.Document, error) {
	var doc document.Document
	err := row.Scan(&doc.ID, &doc.Rev, &doc.Type, &doc.Deleted, &doc.Payload,
		&doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// Upsert accepts one document from a client and returns the revision now
// current on the server.
//
// Three outcomes:
//   - The incoming content equals what is stored (payload and deleted flag):
//     the stored revision is returned unchanged and the change sequence does
//     not move, so a re-sent push after a lost acknowledgment is a no-op.
//   - doc.Rev is empty (the normal push path) or matches the stored
//     revision: the content is written under a freshly minted revision and
//     the document is assigned the next global change sequence.
//   - doc.Rev is set but stale (a conditional write via If-Match):
//     ErrRevisionConflict is returned and nothing changes.
func (r *PostgresRepository) Upsert(ctx context.Context, doc *document.Document) (string, error) {
	var accepted string

	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		row := tx.QueryRowContext(ctx,
			`SELECT rev, deleted, payload FROM documents WHERE id = $1 FOR UPDATE`, doc.ID)

		var cur document.Document
		err := row.Scan(&cur.Rev, &cur.Deleted, &cur.Payload)
		if errors.Is(err, sql.ErrNoRows) {
			rev, err := document.NewRev(1)
			if err != nil {
				return err
			}
			now := time.Now().UTC()
			createdAt, updatedAt := doc.CreatedAt, doc.UpdatedAt
			if createdAt.IsZero() {
				createdAt = now
			}
			if updatedAt.IsZero() {
				updatedAt = now
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO documents (id, rev, doc_type, deleted, payload, created_at, updated_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				doc.ID, rev, doc.Type, doc.Deleted, []byte(doc.Payload), createdAt, updatedAt)
			if err != nil {
				return fmt.Errorf("inserting document: %w", err)
			}
			accepted = rev
			return nil
		}
		if err != nil {
			return fmt.Errorf("selecting document: %w", err)
		}

		// unchanged content is acknowledged without minting a revision
		if cur.Deleted == doc.Deleted && cur.PayloadEqual(doc) {
			accepted = cur.Rev
			return nil
		}

		if doc.Rev != "" && doc.Rev != cur.Rev {
			return common.ErrRevisionConflict
		}

		rev, err := document.NewRev(document.RevGeneration(cur.Rev) + 1)
		if err != nil {
			return err
		}
		updatedAt := doc.UpdatedAt
		if updatedAt.IsZero() {
			updatedAt = time.Now().UTC()
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE documents
			 SET rev = $2, deleted = $3, payload = $4, updated_at = $5, seq = nextval('documents_seq')
			 WHERE id = $1`,
			doc.ID, rev, doc.Deleted, []byte(doc.Payload), updatedAt)
		if err != nil {
			return fmt.Errorf("updating document: %w", err)
		}
		accepted = rev
		return nil
	})
	if err != nil {
		return "", err
	}
	return accepted, nil
}

// ListSince returns documents of a type changed after the cursor, tombstones
// included, in change order, plus the cursor for the next call. An empty
// cursor means "from the beginning"; a positive limit caps the page and the
// returned cursor then points at the last included row. The returned cursor
// equals the input when nothing changed.
func (r *PostgresRepository) ListSince(ctx context.Context, typ document.Type, cursor string, limit int) ([]*document.Document, string, error) {
	since := int64(0)
	if cursor != "" {
		n, err := strconv.ParseInt(cursor, 10, 64)
		if err != nil {
			return nil, "", fmt.Errorf("%w: bad cursor %q", common.ErrRejected, cursor)
		}
		since = n
	}

	query := `SELECT ` + docColumns + `, seq FROM documents WHERE doc_type = $1 AND seq > $2 ORDER BY seq`
	args := []any{typ, since}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("selecting documents: %w", err)
	}
	defer rows.Close()

	var (
		result  []*document.Document
		lastSeq = since
	)
	for rows.Next() {
		var (
			doc document.Document
			seq int64
		)
		if err := rows.Scan(&doc.ID, &doc.Rev, &doc.Type, &doc.Deleted, &doc.Payload,
			&doc.CreatedAt, &doc.UpdatedAt, &seq); err != nil {
			return nil, "", err
		}
		result = append(result, &doc)
		lastSeq = seq
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	if lastSeq == 0 {
		return result, "", nil
	}
	return result, strconv.FormatInt(lastSeq, 10), nil
}

// Fetch returns one document by id, tombstones included.
func (r *PostgresRepository) Fetch(ctx context.Context, id string) (*document.Document, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+docColumns+` FROM documents WHERE id = $1`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("selecting document: %w", err)
	}
	return doc, nil
}

// Purge physically removes a tombstone. Live documents cannot be purged.
func (r *PostgresRepository) Purge(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM documents WHERE id = $1 AND deleted = true`, id)
	if err != nil {
		return fmt.Errorf("purging document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 1 {
		return nil
	}

	var exists bool
	err = r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM documents WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking document: %w", err)
	}
	if exists {
		return common.ErrNotTombstone
	}
	return common.ErrNotFound
}
