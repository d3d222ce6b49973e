// Package httpapi exposes the document service over HTTP: login, ping,
// document upsert/list/fetch/purge and attachment transfer. The route
// shapes and status codes form the wire contract the sync clients build
// their error taxonomy on.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/hseops/fieldsafe/internal/document"
	"github.com/hseops/fieldsafe/internal/logging"
)

// DocumentStore is the authoritative document storage the API serves.
type DocumentStore interface {
	Upsert(ctx context.Context, doc *document.Document) (string, error)
	ListSince(ctx context.Context, typ document.Type, cursor string, limit int) ([]*document.Document, string, error)
	Fetch(ctx context.Context, id string) (*document.Document, error)
	Purge(ctx context.Context, id string) error
}

// BlobStore holds attachment bytes.
type BlobStore interface {
	Put(ctx context.Context, typ document.Type, id, name, contentType string, data []byte) error
	Get(ctx context.Context, typ document.Type, id, name string) ([]byte, string, error)
}

// Server wires the handlers over their storage backends.
type Server struct {
	docs          DocumentStore
	blobs         BlobStore
	logger        logging.Logger
	secretKey     []byte
	tokenValidity time.Duration
}

func NewServer(docs DocumentStore, blobs BlobStore, logger logging.Logger, secretKey []byte, tokenValidity time.Duration) *Server {
	return &Server{
		docs:          docs,
		blobs:         blobs,
		logger:        logger,
		secretKey:     secretKey,
		tokenValidity: tokenValidity,
	}
}

// Router builds the route table. Login and ping are public; everything else
// requires a bearer token.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/ping", s.handlePing).Methods(http.MethodGet)
	r.HandleFunc("/api/login", s.handleLogin).Methods(http.MethodPost)

	api := r.PathPrefix("/api/documents").Subrouter()
	api.Use(s.authMiddleware)
	api.HandleFunc("/{type}", s.handleList).Methods(http.MethodGet)
	api.HandleFunc("/{type}/{id}", s.handleUpsert).Methods(http.MethodPut)
	api.HandleFunc("/{type}/{id}", s.handleFetch).Methods(http.MethodGet)
	api.HandleFunc("/{type}/{id}", s.handlePurge).Methods(http.MethodDelete)
	api.HandleFunc("/{type}/{id}/attachments/{name}", s.handlePutAttachment).Methods(http.MethodPut)
	api.HandleFunc("/{type}/{id}/attachments/{name}", s.handleGetAttachment).Methods(http.MethodGet)

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// docType extracts and validates the {type} path variable.
func docType(r *http.Request) (document.Type, bool) {
	typ := document.Type(mux.Vars(r)["type"])
	return typ, typ.Valid()
}
