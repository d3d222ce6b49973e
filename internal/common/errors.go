// Package common defines shared constants and sentinel errors used across
// client and server layers of FieldSafe. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Sync / remote-store failure modes the engine distinguishes.
	ErrUnreachable      = errors.New("remote store unreachable")
	ErrRevisionConflict = errors.New("revision conflict")
	ErrRejected         = errors.New("document rejected")

	// Generic service-level errors.
	ErrInternal     = errors.New("internal error")
	ErrUnauthorized = errors.New("unauthorized")

	// Validation errors.
	ErrInvalidType       = errors.New("unknown document type")
	ErrInvalidPayload    = errors.New("invalid document payload")
	ErrInvalidSeverity   = errors.New("severity must be between 1 and 5")
	ErrInvalidLikelihood = errors.New("likelihood must be between 1 and 5")

	// Lifecycle errors.
	ErrAlreadyClosed = errors.New("inspection already closed")
	ErrDeleted       = errors.New("document is deleted")
	ErrNotTombstone  = errors.New("document is not a tombstone")

	// Auth errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
