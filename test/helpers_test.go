//go:build integration
// +build integration

package test

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/clubAuth"
	"github.com/MrEthical07/clubAuth/directory"
	"github.com/MrEthical07/clubAuth/password"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// redisMode describes which Redis backend the suite is running against.
type redisMode struct {
	name  string
	setup func(t *testing.T) (redis.UniversalClient, func())
}

// redisModes always includes miniredis. A real server is added when
// REDIS_ADDR is set (e.g. "127.0.0.1:6379").
func redisModes(t *testing.T) []redisMode {
	t.Helper()
	modes := []redisMode{
		{
			name: "miniredis",
			setup: func(t *testing.T) (redis.UniversalClient, func()) {
				t.Helper()
				mr, err := miniredis.Run()
				if err != nil {
					t.Fatalf("miniredis: %v", err)
				}
				rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
				return rdb, func() { _ = rdb.Close(); mr.Close() }
			},
		},
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		modes = append(modes, redisMode{
			name: "standalone:" + addr,
			setup: func(t *testing.T) (redis.UniversalClient, func()) {
				t.Helper()
				rdb := redis.NewClient(&redis.Options{Addr: addr})
				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()
				if err := rdb.Ping(ctx).Err(); err != nil {
					t.Skipf("cannot connect to Redis at %s: %v", addr, err)
				}
				rdb.FlushDB(context.Background())
				return rdb, func() { rdb.FlushDB(context.Background()); _ = rdb.Close() }
			},
		})
	}
	return modes
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// inbox collects notifications from every engine in a test.
type inbox chan clubAuth.Notification

func (in inbox) Send(_ context.Context, n clubAuth.Notification) error {
	in <- n
	return nil
}

func (in inbox) next(t *testing.T, purpose clubAuth.NotificationPurpose) clubAuth.Notification {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case n := <-in:
			if n.Purpose == purpose {
				return n
			}
		case <-timeout:
			t.Fatalf("no %s notification", purpose)
			return clubAuth.Notification{}
		}
	}
}

func linkToken(t *testing.T, n clubAuth.Notification) string {
	t.Helper()
	u, err := url.Parse(n.Link)
	if err != nil {
		t.Fatalf("parse link: %v", err)
	}
	return u.Query().Get("token")
}

type cluster struct {
	members *directory.Memory
	clock   *clock
	inbox   inbox
	nodes   []*clubAuth.Engine
}

// newCluster builds n engines sharing one Redis, one directory, one signing
// key, and one clock, as replicas behind a load balancer would.
func newCluster(t *testing.T, rdb redis.UniversalClient, n int, code string) *cluster {
	t.Helper()
	hasher, err := password.NewArgon2(password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("hasher: %v", err)
	}
	members := directory.NewMemory(hasher)
	if err := members.Add(clubAuth.Principal{ID: "m-1", Email: "ana@club.test", DisplayName: "Ana", Role: "member"}, ""); err != nil {
		t.Fatalf("seed: %v", err)
	}

	c := &cluster{
		members: members,
		clock:   &clock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
		inbox:   make(inbox, 64),
	}

	cfg := clubAuth.DefaultConfig()
	cfg.Token.PrivateKey = []byte("integration-secret-integration!!")
	cfg.Store.RedisPrefix = "it"
	cfg.Reaper.Enabled = false

	for i := 0; i < n; i++ {
		engine, err := clubAuth.New().
			WithConfig(cfg).
			WithRedis(rdb).
			WithUserDirectory(members).
			WithNotifier(c.inbox).
			WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
			WithClock(c.clock.Now).
			WithCodeGenerator(func(int) (string, error) { return code, nil }).
			Build()
		if err != nil {
			t.Fatalf("build engine %d: %v", i, err)
		}
		t.Cleanup(engine.Close)
		c.nodes = append(c.nodes, engine)
	}
	return c
}
