package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

type ctxKey int

const callerKey ctxKey = 0

// CallerFrom returns the authenticated caller stored by Middleware.
func CallerFrom(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey).(Caller)
	return c, ok
}

// WithCaller returns a context carrying the given caller. Used by tests and
// by the acceptance flow, which authenticates via invitation token rather
// than a session.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey, c)
}

// Middleware verifies the bearer session token and injects the caller into
// the request context. Requests without a valid token are rejected.
func Middleware(tokens *TokenService, logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hdr := r.Header.Get("Authorization")
			if hdr == "" || !strings.HasPrefix(strings.ToLower(hdr), "bearer ") {
				writeErr(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}
			caller, err := tokens.Verify(strings.TrimSpace(hdr[len("bearer "):]))
			if err != nil {
				logger.Debugw("session token rejected", "err", err)
				writeErr(w, http.StatusUnauthorized, "unauthorized", "invalid session")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
		})
	}
}

// RequireRole wraps a handler and rejects callers whose role is not listed.
func RequireRole(next http.HandlerFunc, roles ...Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := CallerFrom(r.Context())
		if !ok {
			writeErr(w, http.StatusUnauthorized, "unauthorized", "missing caller")
			return
		}
		for _, role := range roles {
			if caller.Role == role {
				next(w, r)
				return
			}
		}
		writeErr(w, http.StatusForbidden, "forbidden", "role not permitted")
	}
}

func writeErr(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"kind": kind, "message": message}})
}
