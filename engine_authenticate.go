package clubAuth

import (
	"context"
	"errors"

	"github.com/MrEthical07/clubAuth/jwt"
)

// Authenticate verifies a login token returned by [Engine.VerifyOTP] or
// [Engine.PollHandoff] and resolves its principal.
//
// Expired tokens fail with [ErrTokenExpired]; malformed tokens and tokens
// minted for another purpose fail with [ErrInvalidToken]. The principal is
// re-read from the [UserDirectory] on every call, so blocking a member takes
// effect before their token expires.
func (e *Engine) Authenticate(ctx context.Context, token string) (Principal, error) {
	if e == nil {
		return Principal{}, ErrEngineNotReady
	}

	claims, err := e.tokens.Verify(token)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return Principal{}, ErrTokenExpired
		}
		return Principal{}, ErrInvalidToken
	}
	if claims.Purpose != jwt.PurposeLogin {
		return Principal{}, ErrInvalidToken
	}

	return e.lookupActive(ctx, e.directory.FindByID, claims.Subject)
}
