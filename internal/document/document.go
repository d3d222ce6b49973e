// Package document defines the Document value type shared by the local and
// remote stores, together with its typed payloads, revision tokens and the
// risk matrix used for inspections.
package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/hseops/fieldsafe/internal/common"
)

// Type discriminates the payload carried by a Document.
type Type string

const (
	TypeInspection Type = "inspection"
	TypeUser       Type = "user"
)

// Types lists every valid document type, in the order sync passes iterate them.
var Types = []Type{TypeInspection, TypeUser}

// Valid reports whether t is a known document type.
func (t Type) Valid() bool {
	return t == TypeInspection || t == TypeUser
}

// Payload is implemented by every typed payload a Document can carry.
type Payload interface {
	DocumentType() Type
}

// Document is the unit of storage and synchronization.
//
// Dirty is local-only state ("has content not yet acknowledged by the remote
// store") and never travels on the wire. Rev is an opaque optimistic-concurrency
// token assigned by whichever store last accepted a write; it is only ever
// compared for equality, never ordered.
type Document struct {
	ID        string          `json:"id"`
	Rev       string          `json:"rev,omitempty"`
	Type      Type            `json:"type"`
	Deleted   bool            `json:"deleted"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at,omitempty"`

	Dirty bool `json:"-"`
}

// New builds a dirty Document around the given payload. The caller supplies
// the id (see NewInspectionID / UserID).
func New(id string, v Payload) (*Document, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshalling payload: %w", err)
	}
	now := time.Now().UTC()
	return &Document{
		ID:        id,
		Type:      v.DocumentType(),
		Payload:   b,
		CreatedAt: now,
		UpdatedAt: now,
		Dirty:     true,
	}, nil
}

// SetPayload replaces the payload, keeping the document's type consistent.
func (d *Document) SetPayload(v Payload) error {
	if v.DocumentType() != d.Type {
		return common.ErrInvalidType
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshalling payload: %w", err)
	}
	d.Payload = b
	d.UpdatedAt = time.Now().UTC()
	return nil
}

// Unwrap decodes the payload into its concrete type. This is the single
// dispatch point on the type tag; callers that already know the type can use
// Inspection or User directly.
func (d *Document) Unwrap() (any, error) {
	switch d.Type {
	case TypeInspection:
		return d.Inspection()
	case TypeUser:
		return d.User()
	default:
		return nil, common.ErrInvalidType
	}
}

// Inspection decodes the payload as an Inspection.
func (d *Document) Inspection() (*Inspection, error) {
	if d.Type != TypeInspection {
		return nil, common.ErrInvalidType
	}
	var v Inspection
	if err := json.Unmarshal(d.Payload, &v); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidPayload, err)
	}
	return &v, nil
}

// User decodes the payload as a User.
func (d *Document) User() (*User, error) {
	if d.Type != TypeUser {
		return nil, common.ErrInvalidType
	}
	var v User
	if err := json.Unmarshal(d.Payload, &v); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidPayload, err)
	}
	return &v, nil
}

// Validate checks the document envelope and its typed payload. It returns a
// validation sentinel (wrapped) on failure; the remote store rejects invalid
// documents with the same rules.
func (d *Document) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("%w: missing id", common.ErrInvalidPayload)
	}
	if !d.Type.Valid() {
		return common.ErrInvalidType
	}
	v, err := d.Unwrap()
	if err != nil {
		return err
	}
	switch p := v.(type) {
	case *Inspection:
		return p.Validate()
	case *User:
		return p.Validate()
	}
	return nil
}

// PayloadEqual reports whether two documents carry semantically equal payloads,
// ignoring JSON formatting differences. Revision and dirty metadata are not
// part of the comparison.
func (d *Document) PayloadEqual(other *Document) bool {
	if bytes.Equal(d.Payload, other.Payload) {
		return true
	}
	var a, b any
	if err := json.Unmarshal(d.Payload, &a); err != nil {
		return false
	}
	if err := json.Unmarshal(other.Payload, &b); err != nil {
		return false
	}
	return reflect.DeepEqual(a, b)
}

// Clone returns a deep copy.
func (d *Document) Clone() *Document {
	c := *d
	c.Payload = append(json.RawMessage(nil), d.Payload...)
	return &c
}
