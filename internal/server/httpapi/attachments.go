package httpapi

import (
	"io"
	"net/http"

	"github.com/gorilla/mux"
)

// handlePutAttachment stores one attachment under its owning document.
// The owner must already exist: clients push document metadata before
// attachment bytes.
func (s *Server) handlePutAttachment(w http.ResponseWriter, r *http.Request) {
	typ, ok := docType(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown document type")
		return
	}
	vars := mux.Vars(r)
	id, name := vars["id"], vars["name"]

	if _, err := s.docs.Fetch(r.Context(), id); err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading attachment body")
		return
	}
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err := s.blobs.Put(r.Context(), typ, id, name, contentType, data); err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleGetAttachment(w http.ResponseWriter, r *http.Request) {
	typ, ok := docType(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown document type")
		return
	}
	vars := mux.Vars(r)

	data, contentType, err := s.blobs.Get(r.Context(), typ, vars["id"], vars["name"])
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
