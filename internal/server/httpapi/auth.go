package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/hseops/fieldsafe/internal/common"
	"github.com/hseops/fieldsafe/internal/document"
	"github.com/hseops/fieldsafe/internal/server/auth"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// handleLogin verifies credentials against the stored user document and
// issues a bearer token. Accounts are ordinary synced documents, so a user
// created on one device can log in against the server once that device has
// pushed.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed login request")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	doc, err := s.docs.Fetch(r.Context(), document.UserID(req.Username))
	if err != nil || doc.Deleted {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	user, err := doc.User()
	if err != nil || !user.VerifyPassword(req.Password) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := auth.GenerateToken(req.Username, s.secretKey, s.tokenValidity)
	if err != nil {
		s.logger.Error(r.Context(), "failed to generate token", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Token: token})
}

// authMiddleware requires a valid bearer token and stashes the username in
// the request context.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		username, err := auth.GetUsernameFromToken(tokenString, s.secretKey)
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, common.ErrTokenExpired) {
				msg = "token expired"
			}
			writeError(w, http.StatusUnauthorized, msg)
			return
		}

		next.ServeHTTP(w, r.WithContext(withUsername(r.Context(), username)))
	})
}
