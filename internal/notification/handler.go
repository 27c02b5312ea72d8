package notification

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/buildra/service-onboarding-go/internal/auth"
)

// Handler exposes HTTP endpoints for section-scoped notifications.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) ListSections(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFrom(r.Context())
	if !ok {
		h.writeErr(w, http.StatusUnauthorized, "unauthorized", "missing caller")
		return
	}
	sections, err := h.svc.ListAssignableSections(r.Context(), caller, r.PathValue("id"))
	if err != nil {
		h.logger.Warnw("list sections failed", "err", err)
		h.writeErr(w, http.StatusInternalServerError, "internal", "could not list sections")
		return
	}
	h.writeJSON(w, http.StatusOK, sections)
}

// SendRequest is the request body for the send endpoint.
type SendRequest struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// SendResponse reports the persisted notification and its fan-out size.
type SendResponse struct {
	NotificationID string `json:"notification_id"`
	RecipientCount int    `json:"recipient_count"`
}

func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFrom(r.Context())
	if !ok {
		h.writeErr(w, http.StatusUnauthorized, "unauthorized", "missing caller")
		return
	}
	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid send payload", "err", err)
		h.writeErr(w, http.StatusBadRequest, "validation_error", "invalid payload")
		return
	}
	n, count, err := h.svc.Send(r.Context(), caller, r.PathValue("id"), req.Title, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmptySection):
			h.writeErr(w, http.StatusConflict, "empty_section", "section has no assigned contractors")
		case errors.Is(err, ErrMissingContent):
			h.writeErr(w, http.StatusBadRequest, "validation_error", "title and message are required")
		case errors.Is(err, ErrNotAllowed):
			h.writeErr(w, http.StatusForbidden, "forbidden", "caller may not send notifications")
		default:
			h.logger.Warnw("send notification failed", "err", err)
			h.writeErr(w, http.StatusInternalServerError, "internal", "could not send notification")
		}
		return
	}
	h.writeJSON(w, http.StatusCreated, SendResponse{NotificationID: n.ID, RecipientCount: count})
}

func (h *Handler) ListSent(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFrom(r.Context())
	if !ok {
		h.writeErr(w, http.StatusUnauthorized, "unauthorized", "missing caller")
		return
	}
	sent, err := h.svc.ListSent(r.Context(), caller)
	if err != nil {
		h.logger.Warnw("list sent failed", "err", err)
		h.writeErr(w, http.StatusInternalServerError, "internal", "could not list notifications")
		return
	}
	h.writeJSON(w, http.StatusOK, sent)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeErr(w http.ResponseWriter, status int, kind, message string) {
	h.writeJSON(w, status, map[string]any{"error": map[string]string{"kind": kind, "message": message}})
}
