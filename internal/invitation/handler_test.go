package invitation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/buildra/service-onboarding-go/internal/auth"
	"github.com/buildra/service-onboarding-go/internal/invitation/entity"
)

func newTestHandler(store Store) *Handler {
	return NewHandler(newTestService(store, &recordingMailer{}), zap.NewNop().Sugar())
}

type errBody struct {
	Error struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
}

func doGetPending(h *Handler, id string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /onboarding-api/invitations/{id}", h.GetPending)
	req := httptest.NewRequest(http.MethodGet, "/onboarding-api/invitations/"+id, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestGetPendingReturnsMinimalView(t *testing.T) {
	store := newFakeStore()
	h := newTestHandler(store)

	inv, err := h.svc.Issue(context.Background(), admin, "jo@example.com", auth.RoleContractor, nil, nil)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	rec := doGetPending(h, inv.ID)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var view PendingView
	if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.ID != inv.ID || view.Email != "jo@example.com" || view.Role != "contractor" {
		t.Fatalf("unexpected view: %+v", view)
	}
}

func TestGetPendingAnswersMissingAndConsumedAlike(t *testing.T) {
	store := newFakeStore()
	h := newTestHandler(store)

	consumed, err := h.svc.Issue(context.Background(), admin, "done@example.com", auth.RoleStaff, nil, nil)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	store.rows[consumed.ID].Status = entity.StatusAccepted

	var bodies []string
	for _, id := range []string{consumed.ID, "never-existed"} {
		rec := doGetPending(h, id)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("id %s: expected 404, got %d", id, rec.Code)
		}
		var body errBody
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Error.Kind != "not_found" {
			t.Fatalf("expected not_found kind, got %q", body.Error.Kind)
		}
		bodies = append(bodies, body.Error.Message)
	}
	// consumed and never-existed must be indistinguishable to the invitee
	if bodies[0] != bodies[1] {
		t.Fatalf("responses differ: %q vs %q", bodies[0], bodies[1])
	}
}

func TestIssueEndpointErrorKinds(t *testing.T) {
	store := newFakeStore()
	h := newTestHandler(store)

	if _, err := h.svc.Issue(context.Background(), admin, "dup@example.com", auth.RoleContractor, nil, nil); err != nil {
		t.Fatalf("seed issue failed: %v", err)
	}

	cases := map[string]struct {
		caller   auth.Caller
		body     string
		wantCode int
		wantKind string
	}{
		"duplicate pending": {admin, `{"email":"dup@example.com","role":"contractor"}`, http.StatusConflict, "duplicate_pending"},
		"bad role":          {admin, `{"email":"x@example.com","role":"superuser"}`, http.StatusBadRequest, "validation_error"},
		"bad payload":       {admin, `{"email":`, http.StatusBadRequest, "validation_error"},
		"forbidden caller":  {auth.Caller{AccountID: "c", Role: auth.RoleContractor}, `{"email":"y@example.com","role":"staff"}`, http.StatusForbidden, "forbidden"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/onboarding-api/invitations", strings.NewReader(tc.body))
			req = req.WithContext(auth.WithCaller(req.Context(), tc.caller))
			rec := httptest.NewRecorder()
			h.Issue(rec, req)

			if rec.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d", tc.wantCode, rec.Code)
			}
			var body errBody
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error.Kind != tc.wantKind {
				t.Fatalf("expected kind %q, got %q", tc.wantKind, body.Error.Kind)
			}
		})
	}
}

func TestIssueEndpointRequiresCaller(t *testing.T) {
	h := newTestHandler(newFakeStore())
	req := httptest.NewRequest(http.MethodPost, "/onboarding-api/invitations", strings.NewReader(`{"email":"x@example.com","role":"staff"}`))
	rec := httptest.NewRecorder()
	h.Issue(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without caller, got %d", rec.Code)
	}
}
