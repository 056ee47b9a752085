package server

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/54b3r/ragdesk/internal/logging"
)

// Reasons recorded on ragdesk_http_auth_failures_total.
const (
	authMissing = "missing"
	authInvalid = "invalid"
)

var (
	errAuthRequired = errors.New("authorization required")
	errInvalidKey   = errors.New("invalid API key")
)

// requireKey wraps next so it only runs for callers presenting the
// configured API key, either as "Authorization: Bearer <key>" or in the
// X-API-Key header. With no key configured next is returned unchanged.
// Rejected requests get a JSON 401 with a Bearer challenge; the presented
// value is never logged.
func (s *Server) requireKey(next http.Handler) http.Handler {
	if s.cfg.APIKey == "" {
		return next
	}
	want := []byte(s.cfg.APIKey)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := presentedKey(r)
		if token == "" {
			s.rejectAuth(w, r, authMissing, `Bearer realm="ragdesk"`, errAuthRequired)
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), want) != 1 {
			s.rejectAuth(w, r, authInvalid, `Bearer realm="ragdesk" error="invalid_token"`, errInvalidKey)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// rejectAuth logs, counts and answers one failed authentication.
func (s *Server) rejectAuth(w http.ResponseWriter, r *http.Request, reason, challenge string, err error) {
	logging.FromContext(r.Context()).Warn("auth: request rejected",
		slog.String("path", r.URL.Path),
		slog.String("reason", reason),
	)
	s.metrics.authFailuresTotal.WithLabelValues(reason).Inc()
	w.Header().Set("WWW-Authenticate", challenge)
	s.writeError(w, r, http.StatusUnauthorized, err)
}

// presentedKey returns the key from the Authorization bearer token, falling
// back to X-API-Key. Malformed Authorization headers count as absent.
func presentedKey(r *http.Request) string {
	if scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " "); ok && strings.EqualFold(scheme, "bearer") {
		return strings.TrimSpace(token)
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}
