package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/hseops/fieldsafe/internal/common"
	"github.com/hseops/fieldsafe/internal/document"
)

// maxBodySize bounds document and attachment uploads. Field photos are
// resized on the device before upload.
const maxBodySize = 32 << 20

type ctxKey int

const usernameKey ctxKey = 0

func withUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, usernameKey, username)
}

// UsernameFromContext returns the authenticated username, if any.
func UsernameFromContext(ctx context.Context) string {
	username, _ := ctx.Value(usernameKey).(string)
	return username
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(v)
}

// writeStoreError maps the storage error taxonomy onto status codes. The
// client's remote store performs the inverse mapping.
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, common.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, common.ErrRevisionConflict), errors.Is(err, common.ErrNotTombstone):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, common.ErrRejected), errors.Is(err, common.ErrInvalidPayload),
		errors.Is(err, common.ErrInvalidType), errors.Is(err, common.ErrInvalidSeverity),
		errors.Is(err, common.ErrInvalidLikelihood):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error(r.Context(), "storage error", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

type upsertResponse struct {
	ID  string `json:"id"`
	Rev string `json:"rev"`
}

type listResponse struct {
	Documents []*document.Document `json:"documents"`
	Next      string               `json:"next"`
}

// handleUpsert accepts one document push. Identity comes from the path, not
// the body; an If-Match header makes the write conditional on the given
// revision.
func (s *Server) handleUpsert(w http.ResponseWriter, r *http.Request) {
	typ, ok := docType(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown document type")
		return
	}

	var doc document.Document
	if err := decodeJSON(r, &doc); err != nil {
		writeError(w, http.StatusBadRequest, "malformed document")
		return
	}
	doc.ID = mux.Vars(r)["id"]
	doc.Type = typ
	doc.Rev = r.Header.Get("If-Match")

	// tombstones carry no payload worth validating
	if !doc.Deleted {
		if err := doc.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	rev, err := s.docs.Upsert(r.Context(), &doc)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, upsertResponse{ID: doc.ID, Rev: rev})
}

// handleList returns the documents of a type changed after the ?since
// cursor, tombstones included, plus the next cursor. An optional ?limit
// caps the page; the next cursor then points at the last included row so
// the client can keep paging.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	typ, ok := docType(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown document type")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad limit")
			return
		}
		limit = n
	}

	docs, next, err := s.docs.ListSince(r.Context(), typ, r.URL.Query().Get("since"), limit)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if docs == nil {
		docs = []*document.Document{}
	}

	writeJSON(w, http.StatusOK, listResponse{Documents: docs, Next: next})
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	typ, ok := docType(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown document type")
		return
	}

	doc, err := s.docs.Fetch(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if doc.Type != typ {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// handlePurge physically removes a tombstone. This is the operator-driven
// cleanup step; live documents are refused.
func (s *Server) handlePurge(w http.ResponseWriter, r *http.Request) {
	if _, ok := docType(r); !ok {
		writeError(w, http.StatusBadRequest, "unknown document type")
		return
	}

	if err := s.docs.Purge(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
