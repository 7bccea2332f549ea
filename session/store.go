package session

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no live record exists for the id.
	ErrNotFound = errors.New("session record not found")
	// ErrDuplicateID is returned by Create when the id is already taken.
	ErrDuplicateID = errors.New("session record id already exists")
	// ErrInvalidTTL is returned by Create for a non-positive ttl.
	ErrInvalidTTL = errors.New("session record ttl must be > 0")
	// ErrBackendUnavailable wraps failures of the backing store itself.
	ErrBackendUnavailable = errors.New("session backend unavailable")
)

// Record is implemented by every value kept in a [Store]. Expiry reports the
// instant from which the record is logically dead.
type Record interface {
	Expiry() time.Time
}

// Action tells [Store.Mutate] what to do with the record after the callback.
type Action uint8

const (
	// Keep leaves the stored record untouched.
	Keep Action = iota
	// Update writes the callback's modified record back.
	Update
	// Delete removes the record.
	Delete
)

// MutateFunc receives a private copy of the current record. Its Action is
// applied even when it also returns an error; the error is handed back to
// the caller of Mutate unchanged.
type MutateFunc[T Record] func(rec *T) (Action, error)

// Store is a keyed, TTL-bounded record store. All operations on one id are
// mutually exclusive; operations on different ids do not block each other.
type Store[T Record] interface {
	Create(ctx context.Context, id string, rec T, ttl time.Duration) error
	Get(ctx context.Context, id string) (T, error)
	Mutate(ctx context.Context, id string, fn MutateFunc[T]) (T, error)
	TakeIf(ctx context.Context, id string, pred func(T) bool) (T, bool, error)
	Delete(ctx context.Context, id string) (bool, error)
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}

// Sweeper is the type-erased view of a [Store] used by the expiry reaper.
type Sweeper interface {
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}

func expiredAt(now time.Time) func(Record) bool {
	return func(rec Record) bool {
		return !now.Before(rec.Expiry())
	}
}
