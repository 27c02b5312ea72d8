package account

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/buildra/service-onboarding-go/internal/account/entity"
	"github.com/buildra/service-onboarding-go/internal/gateway"
)

// Handler exposes the acceptance endpoint. It is the one inbound surface
// reachable without a session: the invitation id in the path is the
// credential.
type Handler struct {
	svc    *Provisioner
	logger *zap.SugaredLogger
}

func NewHandler(svc *Provisioner, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// AcceptRequest is the request body for invitation acceptance.
type AcceptRequest struct {
	FullName        string                    `json:"full_name"`
	Phone           string                    `json:"phone"`
	Password        string                    `json:"password"`
	ConfirmPassword string                    `json:"confirm_password"`
	Contractor      *entity.ContractorDetails `json:"contractor,omitempty"`
	Consultant      *entity.ConsultantDetails `json:"consultant,omitempty"`
}

func (h *Handler) Accept(w http.ResponseWriter, r *http.Request) {
	var req AcceptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid accept payload", "err", err)
		h.writeErr(w, http.StatusBadRequest, "validation_error", "invalid payload")
		return
	}
	session, err := h.svc.Accept(r.Context(), r.PathValue("id"), AcceptInput{
		FullName:        req.FullName,
		Phone:           req.Phone,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Contractor:      req.Contractor,
		Consultant:      req.Consultant,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInvitation):
			h.writeErr(w, http.StatusNotFound, "invalid_invitation", "invitation is not available")
		case errors.Is(err, ErrPasswordMismatch):
			h.writeErr(w, http.StatusBadRequest, "password_mismatch", "passwords do not match")
		case errors.Is(err, ErrWeakPassword):
			h.writeErr(w, http.StatusBadRequest, "weak_password", "password must be at least 8 characters with an uppercase letter, a lowercase letter and a digit")
		case errors.Is(err, gateway.ErrValidation):
			h.writeErr(w, http.StatusBadRequest, "validation_error", "registration details do not match the invited role")
		case errors.Is(err, gateway.ErrPolicyViolation):
			h.writeErr(w, http.StatusConflict, "policy_violation", "a profile already exists for this account")
		case errors.Is(err, ErrAccountCreationFailed):
			h.writeErr(w, http.StatusConflict, "account_creation_failed", "could not create the account for this email")
		case errors.Is(err, ErrProvisioningFailed):
			h.writeErr(w, http.StatusServiceUnavailable, "provisioning_failed", "provisioning failed, please retry")
		default:
			h.logger.Warnw("acceptance failed", "err", err)
			h.writeErr(w, http.StatusInternalServerError, "internal", "could not complete registration")
		}
		return
	}
	h.writeJSON(w, http.StatusCreated, session)
}

// LoginRequest login payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid login payload", "err", err)
		h.writeErr(w, http.StatusBadRequest, "validation_error", "invalid payload")
		return
	}
	session, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrBadCredentials) {
			h.writeErr(w, http.StatusUnauthorized, "unauthorized", "invalid credentials")
			return
		}
		h.logger.Warnw("login failed", "err", err)
		h.writeErr(w, http.StatusInternalServerError, "internal", "login failed")
		return
	}
	h.writeJSON(w, http.StatusOK, session)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeErr(w http.ResponseWriter, status int, kind, message string) {
	h.writeJSON(w, status, map[string]any{"error": map[string]string{"kind": kind, "message": message}})
}
