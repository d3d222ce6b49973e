// Package sync implements the bidirectional reconciliation engine between the
// on-device store and the remote document service.
//
// A sync session is two passes: push, then pull. Push sends every dirty local
// document and clears its dirty flag on acceptance; pull folds remote changes
// into the local store but never overwrites a document that is still dirty.
// That asymmetry is the whole conflict policy: an inspector's unsynced edit is
// only ever resolved by pushing it, never by a pull clobbering it.
package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hseops/fieldsafe/internal/client/remote"
	"github.com/hseops/fieldsafe/internal/client/store"
	"github.com/hseops/fieldsafe/internal/common"
	"github.com/hseops/fieldsafe/internal/document"
	"github.com/hseops/fieldsafe/internal/logging"
)

// ErrSessionInProgress is returned by Run when a session is already running
// against the same store.
var ErrSessionInProgress = errors.New("sync session already in progress")

// Engine orchestrates sync sessions. It performs no retries and no backoff;
// failed documents stay dirty, which makes the store itself the retry queue,
// and the caller decides when to trigger the next session.
type Engine struct {
	docs   *store.DocumentRepository
	meta   *store.MetadataRepository
	remote remote.Store
	logger logging.Logger

	mu sync.Mutex
}

// New builds an engine over an opened store and a remote client.
func New(st *store.Store, rem remote.Store, logger logging.Logger) *Engine {
	return &Engine{
		docs:   st.Documents,
		meta:   st.Metadata,
		remote: rem,
		logger: logger.With("component", "sync"),
	}
}

// Run executes one sync session: a full push pass, then a full pull pass.
// Only one session may run at a time. On a transient failure the session
// aborts with a partial report; documents already processed keep their new
// state and everything else simply waits for the next session.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	if !e.mu.TryLock() {
		return nil, ErrSessionInProgress
	}
	defer e.mu.Unlock()

	report := NewReport()

	if err := e.pushPass(ctx, report); err != nil {
		e.logger.Warn(ctx, "sync incomplete, push pass aborted", "error", err)
		return report, err
	}
	if err := e.pullPass(ctx, report); err != nil {
		e.logger.Warn(ctx, "sync incomplete, pull pass aborted", "error", err)
		return report, err
	}

	e.logger.Info(ctx, "sync session finished",
		"pushed", report.Pushed, "pulled", report.Pulled, "skipped", report.Skipped, "failed", len(report.Errors))
	return report, nil
}

// pushPass uploads every dirty document. Rejections and revision conflicts
// are terminal for the document within this session and recorded in the
// report; an unreachable remote aborts the pass.
func (e *Engine) pushPass(ctx context.Context, report *Report) error {
	for _, typ := range document.Types {
		dirty, err := e.docs.ListDirty(ctx, typ)
		if err != nil {
			return fmt.Errorf("listing dirty documents: %w", err)
		}
		for _, doc := range dirty {
			if err := e.pushOne(ctx, doc, report); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) pushOne(ctx context.Context, doc *document.Document, report *Report) error {
	rev, err := e.remote.Upsert(ctx, doc)
	switch {
	case err == nil:
		// write-back is what completes the push atomically: until it
		// lands, the document stays dirty and will be pushed again
		clean := doc.Clone()
		clean.Dirty = false
		clean.Rev = rev
		if err := e.docs.ForcePut(ctx, clean); err != nil {
			report.AddError(doc.ID, err)
			return nil
		}
		report.Pushed++
		return nil

	case errors.Is(err, common.ErrUnreachable) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return err

	case errors.Is(err, common.ErrRevisionConflict):
		// The operator resolves this by re-editing or accepting the
		// remote copy; nothing automatic happens here.
		e.logger.Warn(ctx, "push conflict, document stays dirty", "id", doc.ID)
		report.AddError(doc.ID, err)
		return nil

	case errors.Is(err, common.ErrRejected):
		e.logger.Warn(ctx, "push rejected, corrective edit required", "id", doc.ID, "error", err)
		report.AddError(doc.ID, err)
		return nil

	default:
		report.AddError(doc.ID, err)
		return nil
	}
}

// pullPass folds remote changes into the local store. The per-type cursor is
// persisted only after the type's pass completes, so an abandoned pass simply
// re-pulls the same window next session, which is idempotent.
func (e *Engine) pullPass(ctx context.Context, report *Report) error {
	for _, typ := range document.Types {
		cursor, err := e.meta.Cursor(ctx, typ)
		if err != nil {
			return err
		}
		docs, next, err := e.remote.ListSince(ctx, typ, cursor)
		if err != nil {
			return fmt.Errorf("listing remote %s documents: %w", typ, err)
		}
		for _, r := range docs {
			if err := e.applyRemote(ctx, r, report); err != nil {
				return err
			}
		}
		if next != "" && next != cursor {
			if err := e.meta.SetCursor(ctx, typ, next); err != nil {
				return err
			}
		}
	}
	return nil
}

// applyRemote applies one remote document under the no-clobber rule.
func (e *Engine) applyRemote(ctx context.Context, r *document.Document, report *Report) error {
	local, err := e.docs.Get(ctx, r.ID)
	switch {
	case errors.Is(err, common.ErrNotFound):
		// new data originating remotely, e.g. from another device
	case err != nil:
		return err
	case local.Dirty:
		// The local unsynced edit takes precedence until it is itself
		// pushed; the remote version is discarded for this cycle.
		e.logger.Info(ctx, "pull skipped dirty local document", "id", r.ID)
		report.Skipped++
		return nil
	}

	incoming := r.Clone()
	incoming.Dirty = false
	if err := e.docs.ForcePut(ctx, incoming); err != nil {
		return fmt.Errorf("applying remote document %s: %w", r.ID, err)
	}
	report.Pulled++
	return nil
}
