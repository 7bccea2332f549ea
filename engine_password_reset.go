package clubAuth

import (
	"context"
	"fmt"
	"strings"
)

// SendResetOTP opens a password reset for the principal registered under
// email and queues the reset code for delivery. Unknown and blocked
// principals fail the same way as in [Engine.SendLoginOptions].
func (e *Engine) SendResetOTP(ctx context.Context, email string) (ResetChallenge, error) {
	if e == nil {
		return ResetChallenge{}, ErrEngineNotReady
	}
	e.metricInc(MetricPasswordResetRequest)

	email = strings.TrimSpace(email)
	if email == "" {
		return ResetChallenge{}, fmt.Errorf("%w: email is required", ErrValidation)
	}

	principal, err := e.lookupActive(ctx, e.directory.FindByEmail, email)
	if err != nil {
		e.emitAudit(ctx, auditEventPasswordResetRequest, false, "", "", err, nil)
		return ResetChallenge{}, err
	}

	sessionID, code, err := e.reset.Issue(ctx, principal.ID)
	if err != nil {
		e.emitAudit(ctx, auditEventPasswordResetRequest, false, principal.ID, "", err, nil)
		return ResetChallenge{}, err
	}

	e.notify.Enqueue(Notification{
		Purpose:     NotifyResetCode,
		Destination: principal.Email,
		SubjectID:   principal.ID,
		DisplayName: principal.DisplayName,
		SessionID:   sessionID,
		Code:        code,
		ExpiresIn:   e.reset.TTL(),
	})

	e.emitAudit(ctx, auditEventPasswordResetRequest, true, principal.ID, sessionID, nil, nil)
	return ResetChallenge{SessionID: sessionID, ExpiresIn: e.reset.TTL()}, nil
}

// VerifyResetOTP checks a reset code. A match marks the session verified but
// keeps it; [Engine.ResetPassword] consumes it.
func (e *Engine) VerifyResetOTP(ctx context.Context, sessionID, code string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	if err := e.reset.Verify(ctx, sessionID, code); err != nil {
		e.metricInc(MetricPasswordResetVerifyFailure)
		e.countFailure(err, MetricPasswordResetAttemptsExceeded)
		e.emitAudit(ctx, auditEventPasswordResetVerify, false, "", sessionID, err, remainingMetadata(err))
		return err
	}

	e.metricInc(MetricPasswordResetVerifySuccess)
	e.emitAudit(ctx, auditEventPasswordResetVerify, true, "", sessionID, nil, nil)
	return nil
}

// ResetPassword sets a new password through the [UserDirectory] and
// consumes the reset session. The session must have been verified and the
// password must meet the configured minimum length; on either failure the
// session is kept.
func (e *Engine) ResetPassword(ctx context.Context, sessionID, newPassword string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	if err := e.reset.ResetPassword(ctx, sessionID, newPassword); err != nil {
		e.metricInc(MetricPasswordResetFailure)
		e.countFailure(err, MetricPasswordResetAttemptsExceeded)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, "", sessionID, err, nil)
		return err
	}

	e.metricInc(MetricPasswordResetSuccess)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, true, "", sessionID, nil, nil)
	return nil
}
