package verification

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/buildra/service-onboarding-go/internal/auth"
)

// Handler exposes HTTP endpoints for the verification queue.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) ListQueue(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFrom(r.Context())
	if !ok {
		h.writeErr(w, http.StatusUnauthorized, "unauthorized", "missing caller")
		return
	}
	status := r.URL.Query().Get("status")
	projectFilter := r.URL.Query().Get("project_id")
	rows, err := h.svc.ListQueue(r.Context(), caller, status, projectFilter)
	if err != nil {
		h.logger.Warnw("queue assembly failed", "err", err)
		h.writeErr(w, http.StatusInternalServerError, "internal", "could not assemble the verification queue")
		return
	}
	h.writeJSON(w, http.StatusOK, rows)
}

// DecideRequest is the request body for the decision endpoint.
type DecideRequest struct {
	Decision string `json:"decision"`
	Note     string `json:"note,omitempty"`
}

func (h *Handler) Decide(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFrom(r.Context())
	if !ok {
		h.writeErr(w, http.StatusUnauthorized, "unauthorized", "missing caller")
		return
	}
	var req DecideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid decide payload", "err", err)
		h.writeErr(w, http.StatusBadRequest, "validation_error", "invalid payload")
		return
	}
	if err := h.svc.Decide(r.Context(), caller, r.PathValue("id"), req.Decision, req.Note); err != nil {
		switch {
		case errors.Is(err, ErrBadDecision):
			h.writeErr(w, http.StatusBadRequest, "validation_error", "decision must be approved or rejected")
		case errors.Is(err, ErrNotAllowed):
			h.writeErr(w, http.StatusForbidden, "forbidden", "caller may not decide submissions")
		case errors.Is(err, ErrNotFound):
			h.writeErr(w, http.StatusNotFound, "not_found", "submission not found or already decided")
		default:
			h.logger.Warnw("decision failed", "err", err)
			h.writeErr(w, http.StatusInternalServerError, "internal", "could not record the decision")
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
