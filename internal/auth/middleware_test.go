package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func decodeErrKind(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected application/json error body, got %q", ct)
	}
	var body struct {
		Error struct {
			Kind string `json:"kind"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("error body is not valid JSON: %v", err)
	}
	return body.Error.Kind
}

func TestMiddlewareRejectsWithJSONBody(t *testing.T) {
	tokens, err := NewTokenService("onboarding-test", time.Hour)
	if err != nil {
		t.Fatalf("token service: %v", err)
	}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler must not run without a session")
	})
	protected := Middleware(tokens, zap.NewNop().Sugar())(next)

	cases := map[string]string{
		"missing header": "",
		"not bearer":     "Basic abc",
		"garbage token":  "Bearer not-a-token",
	}
	for name, hdr := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/onboarding-api/notifications", nil)
			if hdr != "" {
				req.Header.Set("Authorization", hdr)
			}
			rec := httptest.NewRecorder()
			protected.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
			if kind := decodeErrKind(t, rec); kind != "unauthorized" {
				t.Fatalf("expected unauthorized kind, got %q", kind)
			}
		})
	}
}

func TestMiddlewareInjectsCaller(t *testing.T) {
	tokens, err := NewTokenService("onboarding-test", time.Hour)
	if err != nil {
		t.Fatalf("token service: %v", err)
	}
	want := Caller{AccountID: "acc-1", Role: RoleAdmin}
	token, err := tokens.Issue(want)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	var got Caller
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = CallerFrom(r.Context())
	})
	req := httptest.NewRequest(http.MethodGet, "/onboarding-api/notifications", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	Middleware(tokens, zap.NewNop().Sugar())(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got != want {
		t.Fatalf("caller mismatch: got %+v want %+v", got, want)
	}
}

func TestRequireRoleForbidsWithJSONBody(t *testing.T) {
	next := func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler must not run for a forbidden role")
	}
	req := httptest.NewRequest(http.MethodPost, "/onboarding-api/invitations/x/expire", nil)
	req = req.WithContext(WithCaller(req.Context(), Caller{AccountID: "acc-1", Role: RoleContractor}))
	rec := httptest.NewRecorder()
	RequireRole(next, RoleAdmin)(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if kind := decodeErrKind(t, rec); kind != "forbidden" {
		t.Fatalf("expected forbidden kind, got %q", kind)
	}
}
