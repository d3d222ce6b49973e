// Package lifecycle is the only writer of new, mutated or soft-deleted
// documents. Every write it performs goes through the local store with the
// dirty flag set, which makes it the unit the sync engine later pushes.
// It never touches the remote store.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hseops/fieldsafe/internal/client/store"
	"github.com/hseops/fieldsafe/internal/common"
	"github.com/hseops/fieldsafe/internal/document"
	"github.com/hseops/fieldsafe/internal/logging"
)

// Manager applies document mutations to the local store.
type Manager struct {
	docs   *store.DocumentRepository
	logger logging.Logger
	now    func() time.Time
}

// New builds a manager over an opened store.
func New(st *store.Store, logger logging.Logger) *Manager {
	return &Manager{
		docs:   st.Documents,
		logger: logger.With("component", "lifecycle"),
		now:    time.Now,
	}
}

// CreateInspection validates the draft, derives its risk category, assigns an
// id and stores it dirty with status Open.
func (m *Manager) CreateInspection(ctx context.Context, draft *document.Inspection) (*document.Document, error) {
	draft.Status = document.StatusOpen
	draft.Recalculate()
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	doc, err := document.New(document.NewInspectionID(), draft)
	if err != nil {
		return nil, err
	}
	stored, err := m.docs.Put(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("storing inspection: %w", err)
	}
	m.logger.Info(ctx, "inspection created", "id", stored.ID, "risk", draft.RiskLevel)
	return stored, nil
}

// UpdateInspection applies a caller-supplied patch to the current payload and
// stores the result dirty. Tombstones cannot be edited.
func (m *Manager) UpdateInspection(ctx context.Context, id string, patch func(*document.Inspection) error) (*document.Document, error) {
	doc, err := m.docs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Deleted {
		return nil, common.ErrDeleted
	}

	ins, err := doc.Inspection()
	if err != nil {
		return nil, err
	}
	if err := patch(ins); err != nil {
		return nil, err
	}
	ins.Recalculate()
	if err := ins.Validate(); err != nil {
		return nil, err
	}

	if err := doc.SetPayload(ins); err != nil {
		return nil, err
	}
	doc.Dirty = true
	return m.docs.Put(ctx, doc)
}

// SoftDelete marks a document as a tombstone. The record is retained so the
// deletion itself can propagate; physical purge is a separate, operator-driven
// step once the tombstone is clean.
func (m *Manager) SoftDelete(ctx context.Context, id string) (*document.Document, error) {
	doc, err := m.docs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Deleted {
		return nil, common.ErrDeleted
	}

	doc.Deleted = true
	doc.Dirty = true
	stored, err := m.docs.Put(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("storing tombstone: %w", err)
	}
	m.logger.Info(ctx, "document soft-deleted", "id", id)
	return stored, nil
}

// CloseInspection transitions an open inspection to Closed and appends one
// audit entry. Closing an already-closed inspection or a tombstone is
// rejected rather than silently repeated.
func (m *Manager) CloseInspection(ctx context.Context, id, actor, comment string) (*document.Document, error) {
	doc, err := m.docs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Deleted {
		return nil, common.ErrDeleted
	}

	ins, err := doc.Inspection()
	if err != nil {
		return nil, err
	}
	if ins.Status == document.StatusClosed {
		return nil, common.ErrAlreadyClosed
	}

	ins.Status = document.StatusClosed
	ins.Audit = append(ins.Audit, document.AuditEntry{
		Actor:     actor,
		Timestamp: m.now().UTC(),
		Comment:   comment,
		Action:    "closed",
	})

	if err := doc.SetPayload(ins); err != nil {
		return nil, err
	}
	doc.Dirty = true
	stored, err := m.docs.Put(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("storing closed inspection: %w", err)
	}
	m.logger.Info(ctx, "inspection closed", "id", id, "actor", actor)
	return stored, nil
}

// SaveUser creates or updates a user document under the deterministic
// user_<username> id. An empty password keeps the existing hash.
func (m *Manager) SaveUser(ctx context.Context, username, name, role, password string) (*document.Document, error) {
	u := &document.User{Username: username, Name: name, Role: role}
	if err := u.Validate(); err != nil {
		return nil, err
	}

	id := document.UserID(username)
	existing, err := m.docs.Get(ctx, id)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	if existing != nil {
		if existing.Deleted {
			return nil, common.ErrDeleted
		}
		prev, err := existing.User()
		if err != nil {
			return nil, err
		}
		u.PasswordHash = prev.PasswordHash
	}
	if password != "" {
		if err := u.SetPassword(password); err != nil {
			return nil, err
		}
	}
	if u.PasswordHash == "" {
		return nil, fmt.Errorf("%w: new user requires a password", common.ErrInvalidPayload)
	}

	if existing != nil {
		if err := existing.SetPayload(u); err != nil {
			return nil, err
		}
		existing.Dirty = true
		return m.docs.Put(ctx, existing)
	}

	doc, err := document.New(id, u)
	if err != nil {
		return nil, err
	}
	return m.docs.Put(ctx, doc)
}
