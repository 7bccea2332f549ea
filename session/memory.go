package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

type memoryEntry[T Record] struct {
	mu   sync.Mutex
	rec  T
	dead atomic.Bool
}

// MemoryStore is the process-local [Store]. Each record carries its own lock;
// the map lock is only held to look up, insert, or unlink entries, so
// callers working on different ids never wait on each other.
//
// Lock order is entry, then map. Create only takes the map lock and reads
// the dead flag atomically.
type MemoryStore[T Record] struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry[T]
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore[T Record]() *MemoryStore[T] {
	return &MemoryStore[T]{
		entries: make(map[string]*memoryEntry[T]),
	}
}

func (s *MemoryStore[T]) Create(ctx context.Context, id string, rec T, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.entries[id]; ok && !existing.dead.Load() {
		return ErrDuplicateID
	}
	s.entries[id] = &memoryEntry[T]{rec: rec}
	return nil
}

func (s *MemoryStore[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T

	entry := s.lookup(id)
	if entry == nil {
		return zero, ErrNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.dead.Load() {
		return zero, ErrNotFound
	}
	return entry.rec, nil
}

func (s *MemoryStore[T]) Mutate(ctx context.Context, id string, fn MutateFunc[T]) (T, error) {
	var zero T

	entry := s.lookup(id)
	if entry == nil {
		return zero, ErrNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.dead.Load() {
		return zero, ErrNotFound
	}

	working := entry.rec
	action, fnErr := fn(&working)

	switch action {
	case Update:
		entry.rec = working
	case Delete:
		s.unlink(id, entry)
	}

	return working, fnErr
}

func (s *MemoryStore[T]) TakeIf(ctx context.Context, id string, pred func(T) bool) (T, bool, error) {
	var zero T

	entry := s.lookup(id)
	if entry == nil {
		return zero, false, ErrNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.dead.Load() {
		return zero, false, ErrNotFound
	}
	if !pred(entry.rec) {
		return entry.rec, false, nil
	}

	s.unlink(id, entry)
	return entry.rec, true, nil
}

func (s *MemoryStore[T]) Delete(ctx context.Context, id string) (bool, error) {
	entry := s.lookup(id)
	if entry == nil {
		return false, nil
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.dead.Load() {
		return false, nil
	}
	s.unlink(id, entry)
	return true, nil
}

// SweepExpired removes every record whose expiry is at or before now. Each
// removal goes through the same per-entry lock as TakeIf.
func (s *MemoryStore[T]) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.RLock()
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	isExpired := expiredAt(now)
	removed := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		_, taken, err := s.TakeIf(ctx, id, func(rec T) bool {
			return isExpired(rec)
		})
		if err != nil {
			continue
		}
		if taken {
			removed++
		}
	}
	return removed, nil
}

// Len reports the number of live records.
func (s *MemoryStore[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryStore[T]) lookup(id string) *memoryEntry[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[id]
}

// unlink must be called with entry.mu held.
func (s *MemoryStore[T]) unlink(id string, entry *memoryEntry[T]) {
	entry.dead.Store(true)

	s.mu.Lock()
	if current, ok := s.entries[id]; ok && current == entry {
		delete(s.entries, id)
	}
	s.mu.Unlock()
}
