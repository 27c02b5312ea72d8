package router

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/buildra/service-onboarding-go/internal/account"
	"github.com/buildra/service-onboarding-go/internal/auth"
	"github.com/buildra/service-onboarding-go/internal/invitation"
	"github.com/buildra/service-onboarding-go/internal/notification"
	"github.com/buildra/service-onboarding-go/internal/verification"
)

// loggingResponseWriter wraps http.ResponseWriter to capture status and size.
type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	if lrw.status == 0 {
		lrw.status = http.StatusOK
	}
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += n
	return n, err
}

// LoggingMiddleware returns a middleware that logs requests at debug level using the provided sugared logger.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			dur := time.Since(start)
			// ensure status is set
			status := lrw.status
			if status == 0 {
				status = http.StatusOK
			}
			logger.Debugw("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", status,
				"duration_ms", float64(dur.Microseconds())/1000.0,
				"size", lrw.size,
			)
		})
	}
}

// SecurityHeadersMiddleware returns a middleware that sets common HTTP security headers.
// It is intentionally simple and conservative so it works with most setups.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Prevent MIME sniffing
			w.Header().Set("X-Content-Type-Options", "nosniff")

			// Clickjacking protection
			w.Header().Set("X-Frame-Options", "DENY")

			// Referrer policy
			w.Header().Set("Referrer-Policy", "no-referrer-when-downgrade")

			// Permissions policy (formerly Feature-Policy) - tighten common features
			// allow none for camera, microphone, geolocation by default
			w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")

			// Basic Content-Security-Policy - block mixed content and restrict sources to self by default
			// Keep this conservative; callers may opt to override with more specific policy downstream.
			if w.Header().Get("Content-Security-Policy") == "" {
				w.Header().Set("Content-Security-Policy", "default-src 'self'; object-src 'none'; base-uri 'self';")
			}

			// HSTS - instruct browsers to use HTTPS for future requests. Only set if request is over TLS.
			if r.TLS != nil {
				// 30 days by default
				w.Header().Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Handlers bundles the per-domain HTTP handlers the router mounts.
type Handlers struct {
	Invitations   *invitation.Handler
	Accounts      *account.Handler
	Verification  *verification.Handler
	Notifications *notification.Handler
}

// RegisterRoutes mounts HTTP handlers using the standard library's http.ServeMux.
// The invitee-facing routes (pending lookup, acceptance) are public: the
// opaque invitation id is their credential. Everything else requires a
// session.
func RegisterRoutes(logger *zap.SugaredLogger, tokens *auth.TokenService, h Handlers) http.Handler {
	sessioned := auth.Middleware(tokens, logger)

	authed := http.NewServeMux()
	authed.HandleFunc("POST /onboarding-api/invitations", h.Invitations.Issue)
	authed.HandleFunc("POST /onboarding-api/invitations/{id}/expire",
		auth.RequireRole(h.Invitations.Expire, auth.RoleAdmin))
	authed.HandleFunc("GET /onboarding-api/verification-queue",
		auth.RequireRole(h.Verification.ListQueue, auth.RoleConsultant, auth.RoleAdmin))
	authed.HandleFunc("POST /onboarding-api/submissions/{id}/decision", h.Verification.Decide)
	authed.HandleFunc("GET /onboarding-api/projects/{id}/sections", h.Notifications.ListSections)
	authed.HandleFunc("POST /onboarding-api/sections/{id}/notifications", h.Notifications.Send)
	authed.HandleFunc("GET /onboarding-api/notifications", h.Notifications.ListSent)

	mux := http.NewServeMux()

	// health
	mux.HandleFunc("GET /onboarding-api/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// invitee-facing, no session
	mux.HandleFunc("GET /onboarding-api/invitations/{id}", h.Invitations.GetPending)
	mux.HandleFunc("POST /onboarding-api/invitations/{id}/accept", h.Accounts.Accept)
	mux.HandleFunc("POST /onboarding-api/login", h.Accounts.Login)

	// everything else through the session middleware
	mux.Handle("/onboarding-api/", sessioned(authed))

	// wrap with security headers middleware then logging middleware
	handler := LoggingMiddleware(logger)(SecurityHeadersMiddleware()(mux))
	return handler
}
