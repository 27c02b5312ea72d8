package invitation

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/buildra/service-onboarding-go/internal/auth"
)

// Handler exposes HTTP endpoints for issuing and inspecting invitations.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// IssueRequest is the request body for the issue endpoint.
type IssueRequest struct {
	Email     string  `json:"email"`
	Role      string  `json:"role"`
	ProjectID *string `json:"project_id,omitempty"`
	SectionID *string `json:"section_id,omitempty"`
}

func (h *Handler) Issue(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFrom(r.Context())
	if !ok {
		h.writeErr(w, http.StatusUnauthorized, "unauthorized", "missing caller")
		return
	}
	var req IssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid issue payload", "err", err)
		h.writeErr(w, http.StatusBadRequest, "validation_error", "invalid payload")
		return
	}
	role, err := auth.ParseRole(req.Role)
	if err != nil {
		h.writeErr(w, http.StatusBadRequest, "validation_error", "unknown role")
		return
	}
	inv, err := h.svc.Issue(r.Context(), caller, req.Email, role, req.ProjectID, req.SectionID)
	if err != nil {
		switch {
		case errors.Is(err, ErrDuplicatePending):
			h.writeErr(w, http.StatusConflict, "duplicate_pending", "a pending invitation already exists for this email and role")
		case errors.Is(err, ErrBadEmail):
			h.writeErr(w, http.StatusBadRequest, "validation_error", "invalid email address")
		case errors.Is(err, ErrNotAllowed):
			h.writeErr(w, http.StatusForbidden, "forbidden", "caller may not issue invitations")
		default:
			h.logger.Warnw("issue invitation failed", "err", err)
			h.writeErr(w, http.StatusInternalServerError, "internal", "could not issue invitation")
		}
		return
	}
	h.writeJSON(w, http.StatusCreated, inv)
}

// PendingView is the shape returned to an unauthenticated invitee opening
// the acceptance link. Deliberately minimal.
type PendingView struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (h *Handler) GetPending(w http.ResponseWriter, r *http.Request) {
	inv, err := h.svc.FetchPending(r.Context(), r.PathValue("id"))
	if err != nil {
		// one generic answer for missing, expired and consumed alike
		h.writeErr(w, http.StatusNotFound, "not_found", "invitation is not available")
		return
	}
	h.writeJSON(w, http.StatusOK, PendingView{ID: inv.ID, Email: inv.InviteeEmail, Role: string(inv.Role)})
}

func (h *Handler) Expire(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFrom(r.Context())
	if !ok {
		h.writeErr(w, http.StatusUnauthorized, "unauthorized", "missing caller")
		return
	}
	if err := h.svc.Expire(r.Context(), caller, r.PathValue("id")); err != nil {
		switch {
		case errors.Is(err, ErrNotAllowed):
			h.writeErr(w, http.StatusForbidden, "forbidden", "only administrators expire invitations")
		case errors.Is(err, ErrNotFound):
			h.writeErr(w, http.StatusNotFound, "not_found", "invitation is not available")
		default:
			h.logger.Warnw("expire invitation failed", "err", err)
			h.writeErr(w, http.StatusInternalServerError, "internal", "could not expire invitation")
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeErr(w http.ResponseWriter, status int, kind, message string) {
	h.writeJSON(w, status, map[string]any{"error": map[string]string{"kind": kind, "message": message}})
}
