package clubAuth

import (
	"context"
	"errors"
)

const (
	auditEventLoginOptionsSent      = "login_options_sent"
	auditEventLoginOptionsFailure   = "login_options_failure"
	auditEventOTPVerifySuccess      = "otp_verify_success"
	auditEventOTPVerifyFailure      = "otp_verify_failure"
	auditEventHandoffConfirmSuccess = "handoff_confirm_success"
	auditEventHandoffConfirmFailure = "handoff_confirm_failure"
	auditEventHandoffDelivered      = "handoff_delivered"
	auditEventPasswordResetRequest  = "password_reset_request"
	auditEventPasswordResetVerify   = "password_reset_verify"
	auditEventPasswordResetConfirm  = "password_reset_confirm"
	auditEventNotificationFailure   = "notification_failure"
)

// AuditErrorCode is the stable error classification written to
// AuditEvent.Error.
type AuditErrorCode string

const (
	auditErrSessionNotFound     AuditErrorCode = "session_not_found"
	auditErrSessionExpired      AuditErrorCode = "session_expired"
	auditErrAttemptsExceeded    AuditErrorCode = "attempts_exceeded"
	auditErrWrongCode           AuditErrorCode = "wrong_code"
	auditErrInvalidToken        AuditErrorCode = "invalid_token"
	auditErrTokenExpired        AuditErrorCode = "token_expired"
	auditErrSubjectBlocked      AuditErrorCode = "subject_blocked"
	auditErrSubjectNotFound     AuditErrorCode = "subject_not_found"
	auditErrNotVerified         AuditErrorCode = "not_verified"
	auditErrValidation          AuditErrorCode = "validation"
	auditErrNotificationFailure AuditErrorCode = "notification_failure"
	auditErrUnavailable         AuditErrorCode = "backend_unavailable"
	auditErrInternal            AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	subjectID string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		SubjectID: subjectID,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		RequestID: requestIDFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrSessionNotFound):
		return auditErrSessionNotFound
	case errors.Is(err, ErrSessionExpired):
		return auditErrSessionExpired
	case errors.Is(err, ErrAttemptsExceeded):
		return auditErrAttemptsExceeded
	case errors.Is(err, ErrWrongCode):
		return auditErrWrongCode
	case errors.Is(err, ErrTokenExpired):
		return auditErrTokenExpired
	case errors.Is(err, ErrInvalidToken):
		return auditErrInvalidToken
	case errors.Is(err, ErrSubjectBlocked):
		return auditErrSubjectBlocked
	case errors.Is(err, ErrSubjectNotFound):
		return auditErrSubjectNotFound
	case errors.Is(err, ErrNotVerified):
		return auditErrNotVerified
	case errors.Is(err, ErrValidation):
		return auditErrValidation
	case errors.Is(err, ErrNotificationFailure):
		return auditErrNotificationFailure
	case errors.Is(err, ErrUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
