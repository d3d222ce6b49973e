// Package remote defines the contract the sync engine requires of the
// authoritative document service, and an HTTP implementation of it.
package remote

import (
	"context"

	"github.com/hseops/fieldsafe/internal/document"
)

// Store is the remote, authoritative document store, reachable only via
// request/response calls.
//
// Implementations surface exactly three failure modes the sync engine
// distinguishes, as wrapped sentinels from the common package:
// ErrUnreachable (transient), ErrRejected (validation) and
// ErrRevisionConflict (stale revision supplied).
type Store interface {
	// Ping reports whether the remote store is reachable.
	Ping(ctx context.Context) error

	// Login authenticates the device and retains a bearer token for
	// subsequent calls.
	Login(ctx context.Context, username, password string) error

	// Upsert sends one document and returns the accepted revision.
	// Idempotent: re-sending an unchanged payload is a no-op acknowledgment.
	Upsert(ctx context.Context, doc *document.Document) (string, error)

	// ListSince returns documents of a type changed after the cursor,
	// tombstones included, plus the cursor for the next call.
	ListSince(ctx context.Context, typ document.Type, cursor string) ([]*document.Document, string, error)

	// Fetch returns one document by id.
	Fetch(ctx context.Context, typ document.Type, id string) (*document.Document, error)

	// FetchAttachment returns one attachment's bytes and content type.
	FetchAttachment(ctx context.Context, typ document.Type, id, name string) ([]byte, string, error)

	// PutAttachment uploads one attachment keyed by (document id, name).
	PutAttachment(ctx context.Context, typ document.Type, id, name, contentType string, data []byte) error
}
