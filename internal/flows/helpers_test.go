package flows

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/clubAuth/jwt"
	"github.com/MrEthical07/clubAuth/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// storeBackends are the session backends the concurrency tests run against.
var storeBackends = []string{"memory", "redis"}

// newBackendStore opens a store of the named backend. The redis backend runs
// on a miniredis server owned by t.
func newBackendStore[T session.Record](t *testing.T, backend string) session.Store[T] {
	t.Helper()
	switch backend {
	case "memory":
		return session.NewMemoryStore[T]()
	case "redis":
		mr, err := miniredis.Run()
		if err != nil {
			t.Fatalf("miniredis start: %v", err)
		}
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() {
			_ = rdb.Close()
			mr.Close()
		})
		return session.NewRedisStore[T](rdb, session.RedisConfig{Prefix: "flows"})
	default:
		t.Fatalf("unknown store backend %q", backend)
		return nil
	}
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func fixedCode(code string) func(int) (string, error) {
	return func(int) (string, error) { return code, nil }
}

func newTestTokens(t *testing.T, clock *testClock) *jwt.Manager {
	t.Helper()
	m, err := jwt.NewManager(jwt.Config{
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte("flows-test-secret-flows-test-secret"),
		Issuer:        "clubauth",
		Now:           clock.Now,
	})
	if err != nil {
		t.Fatalf("new token manager: %v", err)
	}
	return m
}

type testPrincipals struct {
	mu    sync.Mutex
	byID  map[string]Principal
	calls int
}

func newTestPrincipals(ps ...Principal) *testPrincipals {
	out := &testPrincipals{byID: map[string]Principal{}}
	for _, p := range ps {
		out.byID[p.ID] = p
	}
	return out
}

func (p *testPrincipals) Lookup(_ context.Context, id string) (Principal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	got, ok := p.byID[id]
	if !ok {
		return Principal{}, ErrSubjectNotFound
	}
	return got, nil
}

func (p *testPrincipals) setBlocked(id string, blocked bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	got := p.byID[id]
	got.Blocked = blocked
	p.byID[id] = got
}

func newTestOTP(clock *testClock, code string) (*OTPChallenge, *session.MemoryStore[OTPSession]) {
	store := session.NewMemoryStore[OTPSession]()
	return NewOTPChallenge(OTPDeps{
		Store:   store,
		Now:     clock.Now,
		NewCode: fixedCode(code),
	}), store
}
