package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/clubAuth/internal"
	"github.com/MrEthical07/clubAuth/session"
)

// OTPDeps wires an [OTPChallenge].
type OTPDeps struct {
	Store       session.Store[OTPSession]
	TTL         time.Duration
	MaxAttempts int
	CodeDigits  int

	Now     func() time.Time
	NewCode func(digits int) (string, error)
	NewID   func(prefix string) string
}

// OTPChallenge issues and verifies single-use numeric login codes.
type OTPChallenge struct {
	deps OTPDeps
}

// NewOTPChallenge fills unset deps with production defaults.
func NewOTPChallenge(deps OTPDeps) *OTPChallenge {
	if deps.TTL <= 0 {
		deps.TTL = 5 * time.Minute
	}
	if deps.MaxAttempts <= 0 {
		deps.MaxAttempts = 3
	}
	if deps.CodeDigits == 0 {
		deps.CodeDigits = 6
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
	return &OTPChallenge{deps: deps}
}

// TTL reports how long an issued code stays valid.
func (c *OTPChallenge) TTL() time.Duration { return c.deps.TTL }

// Issue stores a fresh code for subjectID and returns the session id and the
// plaintext code. Only a digest of the code is kept.
func (c *OTPChallenge) Issue(ctx context.Context, subjectID string) (string, string, error) {
	code, err := c.deps.NewCode(c.deps.CodeDigits)
	if err != nil {
		return "", "", unavailable(err)
	}

	now := c.deps.Now()
	id := c.deps.NewID(internal.PrefixOTP)
	rec := OTPSession{
		Session: Session{
			ID:        id,
			SubjectID: subjectID,
			CreatedAt: now,
			ExpiresAt: now.Add(c.deps.TTL),
		},
		CodeHash:    internal.HashCode(code),
		MaxAttempts: c.deps.MaxAttempts,
	}
	if err := c.deps.Store.Create(ctx, id, rec, c.deps.TTL); err != nil {
		return "", "", mapStoreError(err)
	}
	return id, code, nil
}

// Verify checks code against the session and returns its subject on a match.
//
// A match consumes the session. A mismatch spends one attempt and returns
// *WrongCodeError until the attempts run out, at which point the session is
// destroyed and ErrAttemptsExceeded is returned. Expired sessions are
// destroyed with ErrExpired.
func (c *OTPChallenge) Verify(ctx context.Context, sessionID, code string) (string, error) {
	now := c.deps.Now()
	rec, err := c.deps.Store.Mutate(ctx, sessionID, func(s *OTPSession) (session.Action, error) {
		return checkCode(now, &s.Session, s.CodeHash, &s.Attempts, s.MaxAttempts, code)
	})
	if err != nil {
		return "", mapStoreError(err)
	}
	return rec.SubjectID, nil
}

// checkCode applies the shared expiry and attempt rules. On a match it asks
// for deletion; callers that keep the session override the action.
func checkCode(now time.Time, s *Session, stored [32]byte, attempts *int, maxAttempts int, code string) (session.Action, error) {
	if s.expiredAt(now) {
		return session.Delete, ErrExpired
	}
	if *attempts >= maxAttempts {
		return session.Delete, ErrAttemptsExceeded
	}
	if !internal.CodeMatches(stored, code) {
		*attempts++
		if *attempts >= maxAttempts {
			return session.Delete, ErrAttemptsExceeded
		}
		return session.Update, &WrongCodeError{Remaining: maxAttempts - *attempts}
	}
	return session.Delete, nil
}
