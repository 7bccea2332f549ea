package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/clubAuth/jwt"
)

// Principal is the read-only identity a challenge is issued for.
type Principal struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	Blocked     bool   `json:"blocked"`
}

// TokenIssuer signs and verifies purpose-scoped claim tokens.
type TokenIssuer interface {
	Sign(claims jwt.Claims, ttl time.Duration) (string, error)
	Verify(token string) (jwt.Claims, error)
}

// PrincipalLookup resolves a subject id. It returns ErrSubjectNotFound when
// the subject does not exist.
type PrincipalLookup func(ctx context.Context, subjectID string) (Principal, error)

// Session holds the fields shared by every challenge record.
type Session struct {
	ID        string    `json:"id"`
	SubjectID string    `json:"subject_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expiry implements session.Record.
func (s Session) Expiry() time.Time { return s.ExpiresAt }

func (s Session) expiredAt(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// OTPSession is a pending numeric-code login.
type OTPSession struct {
	Session
	CodeHash    [32]byte `json:"code_hash"`
	Attempts    int      `json:"attempts"`
	MaxAttempts int      `json:"max_attempts"`
}

// HandoffStatus is the lifecycle state of a cross-device login.
type HandoffStatus string

const (
	HandoffPending   HandoffStatus = "pending"
	HandoffCompleted HandoffStatus = "completed"
	HandoffExpired   HandoffStatus = "expired"
)

// HandoffResult is what the polling device receives once.
type HandoffResult struct {
	Token     string    `json:"token"`
	Principal Principal `json:"principal"`
}

// HandoffSession is a pending cross-device login.
type HandoffSession struct {
	Session
	Status       HandoffStatus  `json:"status"`
	HandoffToken string         `json:"handoff_token"`
	Result       *HandoffResult `json:"result,omitempty"`
}

// ResetSession is a pending password reset.
type ResetSession struct {
	Session
	CodeHash    [32]byte `json:"code_hash"`
	Attempts    int      `json:"attempts"`
	MaxAttempts int      `json:"max_attempts"`
	Verified    bool     `json:"verified"`
}

// PollResult is the outcome of a handoff status check.
type PollResult struct {
	Status HandoffStatus
	Result *HandoffResult
}
