package flows

import (
	"errors"
	"fmt"

	"github.com/MrEthical07/clubAuth/jwt"
	"github.com/MrEthical07/clubAuth/session"
)

var (
	ErrNotFound         = errors.New("session not found")
	ErrExpired          = errors.New("session expired")
	ErrAttemptsExceeded = errors.New("too many attempts")
	ErrWrongCode        = errors.New("wrong code")
	ErrInvalidToken     = jwt.ErrInvalidToken
	ErrTokenExpired     = jwt.ErrTokenExpired
	ErrSubjectBlocked   = errors.New("account is blocked")
	ErrSubjectNotFound  = errors.New("account not found")
	ErrNotVerified      = errors.New("reset code not verified")
	ErrValidation       = errors.New("validation failed")
	ErrUnavailable      = errors.New("auth backend unavailable")
)

// WrongCodeError is returned for a mismatched code while attempts remain.
// It matches ErrWrongCode under errors.Is.
type WrongCodeError struct {
	Remaining int
}

func (e *WrongCodeError) Error() string {
	return fmt.Sprintf("wrong code: %d attempts remaining", e.Remaining)
}

func (e *WrongCodeError) Is(target error) bool {
	return target == ErrWrongCode
}

// mapStoreError folds session store failures into the flow taxonomy. Errors
// produced by flow callbacks pass through unchanged.
func mapStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, session.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, session.ErrBackendUnavailable),
		errors.Is(err, session.ErrDuplicateID),
		errors.Is(err, session.ErrInvalidTTL):
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	default:
		return err
	}
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
