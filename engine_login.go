package clubAuth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/clubAuth/jwt"
)

// SendLoginOptions opens both login paths for the principal registered under
// email: a numeric code and a cross-device handoff link, each with its own
// session and expiry.
//
// Unknown and blocked principals fail with [ErrSubjectNotFound] and
// [ErrSubjectBlocked] before any session exists. The code and link are
// queued for the [Notifier]; a delivery failure is logged and counted but
// never fails the call, and the sessions stay usable.
func (e *Engine) SendLoginOptions(ctx context.Context, email string) (LoginOptions, error) {
	if e == nil {
		return LoginOptions{}, ErrEngineNotReady
	}

	email = strings.TrimSpace(email)
	if email == "" {
		e.metricInc(MetricLoginOptionsFailure)
		return LoginOptions{}, fmt.Errorf("%w: email is required", ErrValidation)
	}

	principal, err := e.lookupActive(ctx, e.directory.FindByEmail, email)
	if err != nil {
		e.metricInc(MetricLoginOptionsFailure)
		e.emitAudit(ctx, auditEventLoginOptionsFailure, false, principal.ID, "", err, nil)
		return LoginOptions{}, err
	}

	otpID, code, err := e.otp.Issue(ctx, principal.ID)
	if err != nil {
		e.metricInc(MetricLoginOptionsFailure)
		e.emitAudit(ctx, auditEventLoginOptionsFailure, false, principal.ID, "", err, nil)
		return LoginOptions{}, err
	}
	handoffID, handoffToken, err := e.handoff.Issue(ctx, principal.ID)
	if err != nil {
		e.metricInc(MetricLoginOptionsFailure)
		e.emitAudit(ctx, auditEventLoginOptionsFailure, false, principal.ID, otpID, err, nil)
		return LoginOptions{}, err
	}

	e.notify.Enqueue(Notification{
		Purpose:     NotifyLoginCode,
		Destination: principal.Email,
		SubjectID:   principal.ID,
		DisplayName: principal.DisplayName,
		SessionID:   otpID,
		Code:        code,
		ExpiresIn:   e.otp.TTL(),
	})
	e.notify.Enqueue(Notification{
		Purpose:     NotifyLoginLink,
		Destination: principal.Email,
		SubjectID:   principal.ID,
		DisplayName: principal.DisplayName,
		SessionID:   handoffID,
		Link:        e.handoffLink(handoffToken),
		ExpiresIn:   e.handoff.TTL(),
	})

	e.metricInc(MetricLoginOptionsSent)
	e.emitAudit(ctx, auditEventLoginOptionsSent, true, principal.ID, otpID, nil, func() map[string]string {
		return map[string]string{"handoff_session_id": handoffID}
	})

	return LoginOptions{
		OTPSessionID:     otpID,
		HandoffSessionID: handoffID,
		ExpiresIn:        e.otp.TTL(),
	}, nil
}

// VerifyOTP checks a login code and, on a match, mints a login token.
//
// The code session is consumed by the match. The principal is looked up
// again afterwards because it may have been blocked since the code was sent.
// A wrong code returns a [*WrongCodeError] carrying the attempts left.
func (e *Engine) VerifyOTP(ctx context.Context, sessionID, code string) (LoginResult, error) {
	if e == nil {
		return LoginResult{}, ErrEngineNotReady
	}
	start := time.Now()
	defer func() { e.metrics.Observe(MetricLoginLatency, time.Since(start)) }()

	subjectID, err := e.otp.Verify(ctx, sessionID, code)
	if err != nil {
		e.otpFailure(ctx, sessionID, subjectID, err)
		return LoginResult{}, err
	}

	principal, err := e.lookupActive(ctx, e.directory.FindByID, subjectID)
	if err != nil {
		e.otpFailure(ctx, sessionID, subjectID, err)
		return LoginResult{}, err
	}

	token, err := e.tokens.Sign(jwt.Claims{
		Subject: principal.ID,
		Purpose: jwt.PurposeLogin,
	}, e.config.Token.LoginTTL)
	if err != nil {
		err = wrapUnavailable(err)
		e.otpFailure(ctx, sessionID, subjectID, err)
		return LoginResult{}, err
	}

	e.metricInc(MetricOTPVerifySuccess)
	e.emitAudit(ctx, auditEventOTPVerifySuccess, true, principal.ID, sessionID, nil, nil)
	return LoginResult{Token: token, Principal: principal}, nil
}

func (e *Engine) otpFailure(ctx context.Context, sessionID, subjectID string, err error) {
	e.metricInc(MetricOTPVerifyFailure)
	e.countFailure(err, MetricOTPAttemptsExceeded)
	e.emitAudit(ctx, auditEventOTPVerifyFailure, false, subjectID, sessionID, err, remainingMetadata(err))
}

// ConfirmHandoff completes the cross-device login carried by a handoff token.
// The polling device collects the result with [Engine.PollHandoff].
//
// A blocked principal fails with [ErrSubjectBlocked] and the session stays
// pending. A session that is already completed reports [ErrSessionNotFound].
func (e *Engine) ConfirmHandoff(ctx context.Context, token string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	start := time.Now()
	defer func() { e.metrics.Observe(MetricLoginLatency, time.Since(start)) }()

	if err := e.handoff.Confirm(ctx, token); err != nil {
		e.metricInc(MetricHandoffConfirmFailure)
		if errors.Is(err, ErrSubjectBlocked) {
			e.metricInc(MetricHandoffBlocked)
		}
		e.countFailure(err, MetricHandoffConfirmFailure)
		e.emitAudit(ctx, auditEventHandoffConfirmFailure, false, "", "", err, nil)
		return err
	}

	e.metricInc(MetricHandoffConfirmSuccess)
	e.emitAudit(ctx, auditEventHandoffConfirmSuccess, true, "", "", nil, nil)
	return nil
}

// PollHandoff reports the state of a handoff session.
//
// A completed result is returned to exactly one caller and the session is
// removed with it; later polls see [HandoffExpired] with
// [ErrSessionNotFound]. A session polled at or after its expiry is removed
// and reports HandoffExpired with a nil error.
func (e *Engine) PollHandoff(ctx context.Context, sessionID string) (PollResult, error) {
	if e == nil {
		return PollResult{}, ErrEngineNotReady
	}

	res, err := e.handoff.Status(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			e.metricInc(MetricHandoffPollExpired)
		}
		return PollResult{Status: res.Status}, err
	}

	switch res.Status {
	case HandoffPending:
		e.metricInc(MetricHandoffPollPending)
		return PollResult{Status: HandoffPending}, nil
	case HandoffCompleted:
		e.metricInc(MetricHandoffPollCompleted)
		principal := res.Result.Principal
		e.emitAudit(ctx, auditEventHandoffDelivered, true, principal.ID, sessionID, nil, nil)
		return PollResult{
			Status:    HandoffCompleted,
			Token:     res.Result.Token,
			Principal: &principal,
		}, nil
	default:
		e.metricInc(MetricHandoffPollExpired)
		e.metricInc(MetricSessionExpired)
		return PollResult{Status: HandoffExpired}, nil
	}
}

func remainingMetadata(err error) func() map[string]string {
	var wrong *WrongCodeError
	if !errors.As(err, &wrong) {
		return nil
	}
	return func() map[string]string {
		return map[string]string{"remaining_attempts": fmt.Sprint(wrong.Remaining)}
	}
}
