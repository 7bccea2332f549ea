package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/MrEthical07/clubAuth"
)

// mapError turns an engine error into status, code, message, and details.
// Unknown and backend errors collapse to a generic 500.
func mapError(err error) (int, string, string, map[string]any) {
	var wrong *clubAuth.WrongCodeError
	switch {
	case errors.As(err, &wrong):
		return http.StatusUnauthorized, "WRONG_CODE", "incorrect code",
			map[string]any{"remaining_attempts": wrong.Remaining}
	case errors.Is(err, clubAuth.ErrSessionExpired):
		return http.StatusGone, "SESSION_EXPIRED", "session expired", nil
	case errors.Is(err, clubAuth.ErrSessionNotFound):
		return http.StatusNotFound, "SESSION_NOT_FOUND", "session not found", nil
	case errors.Is(err, clubAuth.ErrAttemptsExceeded):
		return http.StatusTooManyRequests, "ATTEMPTS_EXCEEDED", "too many incorrect attempts", nil
	case errors.Is(err, clubAuth.ErrTokenExpired):
		return http.StatusUnauthorized, "TOKEN_EXPIRED", "token expired", nil
	case errors.Is(err, clubAuth.ErrInvalidToken):
		return http.StatusUnauthorized, "INVALID_TOKEN", "invalid token", nil
	case errors.Is(err, clubAuth.ErrSubjectBlocked):
		return http.StatusForbidden, "ACCOUNT_BLOCKED", "account is blocked", nil
	case errors.Is(err, clubAuth.ErrSubjectNotFound):
		return http.StatusNotFound, "ACCOUNT_NOT_FOUND", "account not found", nil
	case errors.Is(err, clubAuth.ErrNotVerified):
		return http.StatusConflict, "NOT_VERIFIED", "reset code not verified", nil
	case errors.Is(err, clubAuth.ErrValidation):
		return http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error", nil
	}
}

func (h *Handler) writeMappedError(ctx context.Context, w http.ResponseWriter, operation string, err error) {
	status, code, msg, details := mapError(err)
	h.logOperationError(ctx, operation, status, code, err)
	writeError(w, status, code, msg, details)
}

func (h *Handler) writeValidationError(ctx context.Context, w http.ResponseWriter, operation string, err error) {
	h.logOperationError(ctx, operation, http.StatusBadRequest, "VALIDATION_ERROR", err)
	writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
}

func (h *Handler) logOperationError(ctx context.Context, operation string, statusCode int, code string, err error) {
	fields := []any{
		"operation", operation,
		"outcome", "failure",
		"status_code", statusCode,
		"error_code", code,
		"request_id", requestIDFromContext(ctx),
	}
	if err != nil {
		fields = append(fields, "error", err.Error())
	}
	if statusCode >= 500 {
		h.logger.ErrorContext(ctx, "http operation failed", fields...)
		return
	}
	h.logger.WarnContext(ctx, "http operation failed", fields...)
}
