package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/MrEthical07/clubAuth"
	"github.com/MrEthical07/clubAuth/middleware"
	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 16

type principalView struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
	Role        string `json:"role,omitempty"`
}

func viewOf(p clubAuth.Principal) principalView {
	return principalView{ID: p.ID, Email: p.Email, DisplayName: p.DisplayName, Role: p.Role}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain a single JSON value")
	}
	return nil
}

func requireFields(fields map[string]string) error {
	for name, v := range fields {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%s is required", name)
		}
	}
	return nil
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, http.StatusOK, map[string]string{"state": "ok"})
}

func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			h.logOperationError(r.Context(), "readyz", http.StatusServiceUnavailable, "NOT_READY", err)
			writeError(w, http.StatusServiceUnavailable, "NOT_READY", "dependencies unavailable", nil)
			return
		}
	}
	writeSuccess(w, http.StatusOK, map[string]string{"state": "ready"})
}

func (h *Handler) sendLoginOptions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		h.writeValidationError(r.Context(), w, "send_login_options", err)
		return
	}
	if err := requireFields(map[string]string{"email": req.Email}); err != nil {
		h.writeValidationError(r.Context(), w, "send_login_options", err)
		return
	}

	opts, err := h.service.SendLoginOptions(r.Context(), req.Email)
	if err != nil {
		h.writeMappedError(r.Context(), w, "send_login_options", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"otp_session_id":       opts.OTPSessionID,
		"biometric_session_id": opts.HandoffSessionID,
		"expires_in":           int64(opts.ExpiresIn.Seconds()),
	})
}

func (h *Handler) verifyOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
		Code      string `json:"code"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		h.writeValidationError(r.Context(), w, "verify_otp", err)
		return
	}
	if err := requireFields(map[string]string{"session_id": req.SessionID, "code": req.Code}); err != nil {
		h.writeValidationError(r.Context(), w, "verify_otp", err)
		return
	}

	res, err := h.service.VerifyOTP(r.Context(), req.SessionID, req.Code)
	if err != nil {
		h.writeMappedError(r.Context(), w, "verify_otp", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"token":     res.Token,
		"principal": viewOf(res.Principal),
	})
}

func (h *Handler) confirmHandoff(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		h.writeValidationError(r.Context(), w, "confirm_handoff", err)
		return
	}
	if err := requireFields(map[string]string{"token": req.Token}); err != nil {
		h.writeValidationError(r.Context(), w, "confirm_handoff", err)
		return
	}

	if err := h.service.ConfirmHandoff(r.Context(), req.Token); err != nil {
		h.writeMappedError(r.Context(), w, "confirm_handoff", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) pollHandoff(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")

	res, err := h.service.PollHandoff(r.Context(), sessionID)
	if err != nil {
		h.writeMappedError(r.Context(), w, "poll_handoff", err)
		return
	}

	body := map[string]any{"status": res.Status}
	if res.Status == clubAuth.HandoffCompleted {
		body["token"] = res.Token
		if res.Principal != nil {
			body["principal"] = viewOf(*res.Principal)
		}
	}
	writeSuccess(w, http.StatusOK, body)
}

func (h *Handler) sendResetOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		h.writeValidationError(r.Context(), w, "send_reset_otp", err)
		return
	}
	if err := requireFields(map[string]string{"email": req.Email}); err != nil {
		h.writeValidationError(r.Context(), w, "send_reset_otp", err)
		return
	}

	ch, err := h.service.SendResetOTP(r.Context(), req.Email)
	if err != nil {
		h.writeMappedError(r.Context(), w, "send_reset_otp", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"session_id": ch.SessionID,
		"expires_in": int64(ch.ExpiresIn.Seconds()),
	})
}

func (h *Handler) verifyResetOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
		Code      string `json:"code"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		h.writeValidationError(r.Context(), w, "verify_reset_otp", err)
		return
	}
	if err := requireFields(map[string]string{"session_id": req.SessionID, "code": req.Code}); err != nil {
		h.writeValidationError(r.Context(), w, "verify_reset_otp", err)
		return
	}

	if err := h.service.VerifyResetOTP(r.Context(), req.SessionID, req.Code); err != nil {
		h.writeMappedError(r.Context(), w, "verify_reset_otp", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]bool{"verified": true})
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID   string `json:"session_id"`
		NewPassword string `json:"new_password"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		h.writeValidationError(r.Context(), w, "reset_password", err)
		return
	}
	if err := requireFields(map[string]string{"session_id": req.SessionID}); err != nil {
		h.writeValidationError(r.Context(), w, "reset_password", err)
		return
	}

	if err := h.service.ResetPassword(r.Context(), req.SessionID, req.NewPassword); err != nil {
		h.writeMappedError(r.Context(), w, "reset_password", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized", nil)
		return
	}
	writeSuccess(w, http.StatusOK, viewOf(p))
}
