// Package directory holds a process-local [clubAuth.UserDirectory] for
// development servers and tests. Production deployments plug in their own
// member database.
package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/MrEthical07/clubAuth"
	"github.com/MrEthical07/clubAuth/password"
)

// ErrDuplicate is returned by Add for an id or email already present.
var ErrDuplicate = errors.New("member already exists")

type member struct {
	principal    clubAuth.Principal
	passwordHash string
}

// Memory is an in-memory member directory. Emails match case-insensitively.
// Passwords are stored only as Argon2id hashes.
type Memory struct {
	hasher *password.Argon2

	mu      sync.RWMutex
	byID    map[string]*member
	byEmail map[string]string
}

func NewMemory(hasher *password.Argon2) *Memory {
	return &Memory{
		hasher:  hasher,
		byID:    map[string]*member{},
		byEmail: map[string]string{},
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Add registers p. An empty initialPassword leaves the member without a
// password until the first reset.
func (m *Memory) Add(p clubAuth.Principal, initialPassword string) error {
	if p.ID == "" || p.Email == "" {
		return fmt.Errorf("%w: id and email are required", clubAuth.ErrValidation)
	}

	var hash string
	if initialPassword != "" {
		h, err := m.hasher.Hash(initialPassword)
		if err != nil {
			return fmt.Errorf("%w: %v", clubAuth.ErrValidation, err)
		}
		hash = h
	}

	email := normalizeEmail(p.Email)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[p.ID]; ok {
		return ErrDuplicate
	}
	if _, ok := m.byEmail[email]; ok {
		return ErrDuplicate
	}
	m.byID[p.ID] = &member{principal: p, passwordHash: hash}
	m.byEmail[email] = p.ID
	return nil
}

func (m *Memory) FindByEmail(_ context.Context, email string) (clubAuth.Principal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byEmail[normalizeEmail(email)]
	if !ok {
		return clubAuth.Principal{}, clubAuth.ErrSubjectNotFound
	}
	return m.byID[id].principal, nil
}

func (m *Memory) FindByID(_ context.Context, subjectID string) (clubAuth.Principal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.byID[subjectID]
	if !ok {
		return clubAuth.Principal{}, clubAuth.ErrSubjectNotFound
	}
	return rec.principal, nil
}

// UpdatePassword hashes newPassword and replaces the stored hash. Passwords
// the hasher rejects fail with ErrValidation.
func (m *Memory) UpdatePassword(_ context.Context, subjectID, newPassword string) error {
	hash, err := m.hasher.Hash(newPassword)
	if err != nil {
		if errors.Is(err, password.ErrTooShort) || errors.Is(err, password.ErrTooLong) {
			return fmt.Errorf("%w: %v", clubAuth.ErrValidation, err)
		}
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.byID[subjectID]
	if !ok {
		return clubAuth.ErrSubjectNotFound
	}
	rec.passwordHash = hash
	return nil
}

// SetBlocked flips a member's block flag. Open challenges see the change on
// their next lookup.
func (m *Memory) SetBlocked(subjectID string, blocked bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.byID[subjectID]
	if !ok {
		return clubAuth.ErrSubjectNotFound
	}
	rec.principal.Blocked = blocked
	return nil
}

// CheckPassword reports whether password matches the member's stored hash.
// Members without a password never match.
func (m *Memory) CheckPassword(subjectID, password string) (bool, error) {
	m.mu.RLock()
	rec, ok := m.byID[subjectID]
	var hash string
	if ok {
		hash = rec.passwordHash
	}
	m.mu.RUnlock()

	if !ok {
		return false, clubAuth.ErrSubjectNotFound
	}
	if hash == "" {
		return false, nil
	}
	return m.hasher.Verify(password, hash)
}
