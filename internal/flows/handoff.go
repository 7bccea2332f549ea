package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/clubAuth/internal"
	"github.com/MrEthical07/clubAuth/jwt"
	"github.com/MrEthical07/clubAuth/session"
)

// HandoffDeps wires a [Handoff].
type HandoffDeps struct {
	Store    session.Store[HandoffSession]
	Tokens   TokenIssuer
	Lookup   PrincipalLookup
	TTL      time.Duration
	LoginTTL time.Duration

	Now   func() time.Time
	NewID func(prefix string) string
}

// Handoff moves a login to a second device: one device opens a signed link
// and confirms, the other polls until it collects the login result.
type Handoff struct {
	deps HandoffDeps
}

// NewHandoff fills unset deps with production defaults.
func NewHandoff(deps HandoffDeps) *Handoff {
	if deps.TTL <= 0 {
		deps.TTL = 10 * time.Minute
	}
	if deps.LoginTTL <= 0 {
		deps.LoginTTL = 24 * time.Hour
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = internal.NewSessionID
	}
	return &Handoff{deps: deps}
}

// TTL reports how long a handoff session and its link stay valid.
func (h *Handoff) TTL() time.Duration { return h.deps.TTL }

// Issue creates a pending handoff session for subjectID and returns its id
// and the handoff token to embed in the link. Session and token share one
// expiry.
func (h *Handoff) Issue(ctx context.Context, subjectID string) (string, string, error) {
	now := h.deps.Now()
	id := h.deps.NewID(internal.PrefixHandoff)

	token, err := h.deps.Tokens.Sign(jwt.Claims{
		Subject:   subjectID,
		SessionID: id,
		Purpose:   jwt.PurposeHandoff,
	}, h.deps.TTL)
	if err != nil {
		return "", "", unavailable(err)
	}

	rec := HandoffSession{
		Session: Session{
			ID:        id,
			SubjectID: subjectID,
			CreatedAt: now,
			ExpiresAt: now.Add(h.deps.TTL),
		},
		Status:       HandoffPending,
		HandoffToken: token,
	}
	if err := h.deps.Store.Create(ctx, id, rec, h.deps.TTL); err != nil {
		return "", "", mapStoreError(err)
	}
	return id, token, nil
}

// Confirm completes the handoff referenced by token.
//
// The token must verify and carry the handoff purpose. The session must be
// pending and unexpired, and the subject must not be blocked; a blocked
// subject leaves the session pending. On success a login token is minted
// and stored as the session result for the polling device.
func (h *Handoff) Confirm(ctx context.Context, token string) error {
	claims, err := h.deps.Tokens.Verify(token)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return ErrTokenExpired
		}
		return ErrInvalidToken
	}
	if claims.Purpose != jwt.PurposeHandoff || claims.SessionID == "" {
		return ErrInvalidToken
	}

	now := h.deps.Now()
	_, err = h.deps.Store.Mutate(ctx, claims.SessionID, func(s *HandoffSession) (session.Action, error) {
		if s.Status != HandoffPending {
			return session.Keep, ErrNotFound
		}
		if s.expiredAt(now) {
			return session.Delete, ErrExpired
		}
		if s.SubjectID != claims.Subject || s.HandoffToken != token {
			return session.Keep, ErrInvalidToken
		}

		principal, err := h.deps.Lookup(ctx, s.SubjectID)
		if err != nil {
			if errors.Is(err, ErrSubjectNotFound) {
				return session.Keep, ErrSubjectNotFound
			}
			return session.Keep, unavailable(err)
		}
		if principal.Blocked {
			return session.Keep, ErrSubjectBlocked
		}

		login, err := h.deps.Tokens.Sign(jwt.Claims{
			Subject: principal.ID,
			Purpose: jwt.PurposeLogin,
		}, h.deps.LoginTTL)
		if err != nil {
			return session.Keep, unavailable(err)
		}

		s.Status = HandoffCompleted
		s.Result = &HandoffResult{Token: login, Principal: principal}
		return session.Update, nil
	})
	return mapStoreError(err)
}

// Status reports the handoff state for the polling device.
//
// A completed or expired session is removed in the same atomic step that
// reads it, so a completed result is handed to exactly one caller. A missing
// session reports HandoffExpired together with ErrNotFound.
func (h *Handoff) Status(ctx context.Context, sessionID string) (PollResult, error) {
	now := h.deps.Now()
	rec, taken, err := h.deps.Store.TakeIf(ctx, sessionID, func(s HandoffSession) bool {
		return s.expiredAt(now) || s.Status == HandoffCompleted
	})
	if err != nil {
		mapped := mapStoreError(err)
		if errors.Is(mapped, ErrNotFound) {
			return PollResult{Status: HandoffExpired}, ErrNotFound
		}
		return PollResult{}, mapped
	}

	switch {
	case !taken:
		return PollResult{Status: HandoffPending}, nil
	case rec.expiredAt(now):
		return PollResult{Status: HandoffExpired}, nil
	default:
		return PollResult{Status: HandoffCompleted, Result: rec.Result}, nil
	}
}
