package flows

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/MrEthical07/clubAuth/internal"
	"github.com/MrEthical07/clubAuth/session"
)

// ResetDeps wires a [PasswordReset].
type ResetDeps struct {
	Store             session.Store[ResetSession]
	TTL               time.Duration
	MaxAttempts       int
	CodeDigits        int
	MinPasswordLength int

	// UpdatePassword replaces the subject's password. It runs after the
	// reset session has been taken from the store.
	UpdatePassword func(ctx context.Context, subjectID, newPassword string) error

	Now     func() time.Time
	NewCode func(digits int) (string, error)
	NewID   func(prefix string) string
}

// PasswordReset is the two-phase reset flow: a code verification that marks
// the session verified, then a password change that consumes it.
type PasswordReset struct {
	deps ResetDeps
}

// NewPasswordReset fills unset deps with production defaults.
func NewPasswordReset(deps ResetDeps) *PasswordReset {
	if deps.TTL <= 0 {
		deps.TTL = 10 * time.Minute
	}
	if deps.MaxAttempts <= 0 {
		deps.MaxAttempts = 3
	}
	if deps.CodeDigits == 0 {
		deps.CodeDigits = 6
	}
	if deps.MinPasswordLength <= 0 {
		deps.MinPasswordLength = 6
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewCode == nil {
		deps.NewCode = internal.NewOTP
	}
	if deps.NewID == nil {
		deps.NewID = internal.NewSessionID
	}
	return &PasswordReset{deps: deps}
}

// TTL reports how long a reset session stays valid.
func (r *PasswordReset) TTL() time.Duration { return r.deps.TTL }

// Issue stores a fresh unverified reset session and returns its id and code.
func (r *PasswordReset) Issue(ctx context.Context, subjectID string) (string, string, error) {
	code, err := r.deps.NewCode(r.deps.CodeDigits)
	if err != nil {
		return "", "", unavailable(err)
	}

	now := r.deps.Now()
	id := r.deps.NewID(internal.PrefixReset)
	rec := ResetSession{
		Session: Session{
			ID:        id,
			SubjectID: subjectID,
			CreatedAt: now,
			ExpiresAt: now.Add(r.deps.TTL),
		},
		CodeHash:    internal.HashCode(code),
		MaxAttempts: r.deps.MaxAttempts,
	}
	if err := r.deps.Store.Create(ctx, id, rec, r.deps.TTL); err != nil {
		return "", "", mapStoreError(err)
	}
	return id, code, nil
}

// Verify applies the same expiry and attempt rules as OTP verification. A
// match marks the session verified and keeps it.
func (r *PasswordReset) Verify(ctx context.Context, sessionID, code string) error {
	now := r.deps.Now()
	_, err := r.deps.Store.Mutate(ctx, sessionID, func(s *ResetSession) (session.Action, error) {
		action, err := checkCode(now, &s.Session, s.CodeHash, &s.Attempts, s.MaxAttempts, code)
		if err != nil {
			return action, err
		}
		s.Verified = true
		return session.Update, nil
	})
	return mapStoreError(err)
}

// ResetPassword changes the subject's password through UpdatePassword and
// consumes the session. The session must be verified and unexpired.
//
// The session is taken out of the store before UpdatePassword runs, so
// concurrent callers race on the take and only the winner changes the
// password. A failed update puts the session back for its remaining TTL.
func (r *PasswordReset) ResetPassword(ctx context.Context, sessionID, newPassword string) error {
	if r.deps.UpdatePassword == nil {
		return fmt.Errorf("%w: no password updater configured", ErrUnavailable)
	}

	now := r.deps.Now()
	taken, err := r.deps.Store.Mutate(ctx, sessionID, func(s *ResetSession) (session.Action, error) {
		if s.expiredAt(now) {
			return session.Delete, ErrExpired
		}
		if !s.Verified {
			return session.Keep, ErrNotVerified
		}
		if utf8.RuneCountInString(newPassword) < r.deps.MinPasswordLength {
			return session.Keep, fmt.Errorf("%w: password must be at least %d characters", ErrValidation, r.deps.MinPasswordLength)
		}
		return session.Delete, nil
	})
	if err != nil {
		return mapStoreError(err)
	}

	if err := r.deps.UpdatePassword(ctx, taken.SubjectID, newPassword); err != nil {
		r.restore(ctx, taken)
		if errors.Is(err, ErrSubjectNotFound) || errors.Is(err, ErrValidation) {
			return err
		}
		return unavailable(err)
	}
	return nil
}

// restore re-creates a taken session after a failed password update. A
// session past its expiry, or one that cannot be written back, stays gone.
func (r *PasswordReset) restore(ctx context.Context, s ResetSession) {
	remaining := s.ExpiresAt.Sub(r.deps.Now())
	if remaining <= 0 {
		return
	}
	_ = r.deps.Store.Create(ctx, s.ID, s, remaining)
}
