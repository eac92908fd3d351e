package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/triage-ai/corral/internal/auth"
)

// contextKey is an unexported type for context keys to avoid collisions.
type contextKey int

const workspaceCtxKey contextKey = iota

// workspaceFromContext extracts the authenticated workspace from the request context.
func workspaceFromContext(ctx context.Context) *auth.WorkspaceContext {
	v, _ := ctx.Value(workspaceCtxKey).(*auth.WorkspaceContext)
	return v
}

// --- Auth middleware ---

// authMiddleware returns an http.HandlerFunc that validates Bearer crk_ tokens
// and injects the authenticated workspace into the request context.
func (d *Dependencies) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := extractBearerToken(r)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, ErrorResp{Detail: "Missing or invalid Authorization header"})
			return
		}

		workspace, err := d.Auth.Authenticate(r.Context(), token)
		if err != nil {
			d.respondAuthError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), workspaceCtxKey, workspace)
		next(w, r.WithContext(ctx))
	}
}

// respondAuthError maps authenticator errors to HTTP statuses.
func (d *Dependencies) respondAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrWorkspaceDisabled):
		writeJSON(w, http.StatusForbidden, ErrorResp{Detail: "Workspace disabled"})
	case errors.Is(err, auth.ErrAuthUnavailable):
		d.Logger.Warn("auth unavailable", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "Authentication unavailable"})
	default:
		writeJSON(w, http.StatusUnauthorized, ErrorResp{Detail: "Invalid API key"})
	}
}

// extractBearerToken extracts the token from "Authorization: Bearer <token>".
func extractBearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}

// --- JSON helpers ---

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// readJSON decodes a JSON request body into the given pointer.
func readJSON(r *http.Request, v interface{}) error {
	defer func() { _ = r.Body.Close() }()
	return json.NewDecoder(r.Body).Decode(v)
}

// --- Request logging ---

func requestLogging(next http.Handler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", sw.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// --- CORS ---

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
