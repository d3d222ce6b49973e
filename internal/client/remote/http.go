package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hseops/fieldsafe/internal/common"
	"github.com/hseops/fieldsafe/internal/document"
)

// HTTPStore talks to the document service over its HTTP contract.
type HTTPStore struct {
	baseURL string
	client  *http.Client
	token   string
}

// NewHTTPStore builds a client for the service at baseURL
// (e.g. "http://127.0.0.1:8080").
func NewHTTPStore(baseURL string) *HTTPStore {
	return &HTTPStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// SetToken installs a bearer token directly (e.g. restored from config).
func (s *HTTPStore) SetToken(token string) { s.token = token }

type upsertResponse struct {
	ID  string `json:"id"`
	Rev string `json:"rev"`
}

type listResponse struct {
	Documents []*document.Document `json:"documents"`
	Next      string               `json:"next"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *HTTPStore) do(req *http.Request) (*http.Response, error) {
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		// Transport-level failure: no network path to the remote store.
		return nil, fmt.Errorf("%w: %w", common.ErrUnreachable, err)
	}
	return resp, nil
}

// mapStatus converts a non-2xx response into the engine's error taxonomy.
func mapStatus(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var er errorResponse
	_ = json.Unmarshal(body, &er)
	msg := er.Error
	if msg == "" {
		msg = resp.Status
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return common.ErrNotFound
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", common.ErrRevisionConflict, msg)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", common.ErrRejected, msg)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", common.ErrUnauthorized, msg)
	default:
		if resp.StatusCode >= 500 {
			// Server-side trouble is transient from the engine's point of view.
			return fmt.Errorf("%w: %s", common.ErrUnreachable, msg)
		}
		return fmt.Errorf("%w: unexpected status %s", common.ErrInternal, resp.Status)
	}
}

func (s *HTTPStore) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/ping", nil)
	if err != nil {
		return err
	}
	resp, err := s.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return mapStatus(resp)
	}
	return nil
}

func (s *HTTPStore) Login(ctx context.Context, username, password string) error {
	body, err := json.Marshal(loginRequest{Username: username, Password: password})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/login", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return mapStatus(resp)
	}

	var lr loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("decoding login response: %w", err)
	}
	s.token = lr.Token
	return nil
}

func (s *HTTPStore) Upsert(ctx context.Context, doc *document.Document) (string, error) {
	// The revision never travels on a push; the remote store is the
	// authority for the token it hands back.
	outgoing := doc.Clone()
	outgoing.Rev = ""

	body, err := json.Marshal(outgoing)
	if err != nil {
		return "", fmt.Errorf("marshalling document: %w", err)
	}

	u := fmt.Sprintf("%s/api/documents/%s/%s", s.baseURL, doc.Type, url.PathEscape(doc.ID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", mapStatus(resp)
	}

	var ur upsertResponse
	if err := json.NewDecoder(resp.Body).Decode(&ur); err != nil {
		return "", fmt.Errorf("decoding upsert response: %w", err)
	}
	return ur.Rev, nil
}

func (s *HTTPStore) ListSince(ctx context.Context, typ document.Type, cursor string) ([]*document.Document, string, error) {
	u := fmt.Sprintf("%s/api/documents/%s", s.baseURL, typ)
	if cursor != "" {
		u += "?since=" + url.QueryEscape(cursor)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := s.do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", mapStatus(resp)
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return nil, "", fmt.Errorf("decoding list response: %w", err)
	}
	return lr.Documents, lr.Next, nil
}

func (s *HTTPStore) Fetch(ctx context.Context, typ document.Type, id string) (*document.Document, error) {
	u := fmt.Sprintf("%s/api/documents/%s/%s", s.baseURL, typ, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, mapStatus(resp)
	}

	var d document.Document
	if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}
	return &d, nil
}

func (s *HTTPStore) FetchAttachment(ctx context.Context, typ document.Type, id, name string) ([]byte, string, error) {
	u := fmt.Sprintf("%s/api/documents/%s/%s/attachments/%s", s.baseURL, typ, url.PathEscape(id), url.PathEscape(name))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := s.do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", mapStatus(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("reading attachment body: %w", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func (s *HTTPStore) PutAttachment(ctx context.Context, typ document.Type, id, name, contentType string, data []byte) error {
	u := fmt.Sprintf("%s/api/documents/%s/%s/attachments/%s", s.baseURL, typ, url.PathEscape(id), url.PathEscape(name))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, bytes.NewReader(data))
	if err != nil {
		return err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := s.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return mapStatus(resp)
	}
	return nil
}
