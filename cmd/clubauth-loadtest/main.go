// Command clubauth-loadtest drives concurrent login-code and handoff flows
// through an engine backed by Redis (or miniredis) and reports latency
// percentiles per phase.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/clubAuth"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const fixedCode = "246810"

func main() {
	var (
		members     = flag.Int("members", 1000, "number of members to seed")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 20000, "logins per phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "clubauth-load", "session key prefix")
	)
	flag.Parse()

	if *members <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "members, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	client, cleanup, err := openRedis(*redisAddr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer cleanup()

	dir := newSeedDirectory(*members)
	links := newLinkCapture()

	cfg := clubAuth.DefaultConfig()
	cfg.Token.PrivateKey = []byte("loadtest-secret-loadtest-secret!")
	cfg.Store.RedisPrefix = *prefix
	cfg.Reaper.Enabled = false
	cfg.Notify.QueueSize = *ops * 2

	engine, err := clubAuth.New().
		WithConfig(cfg).
		WithRedis(client).
		WithUserDirectory(dir).
		WithNotifier(links).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		WithCodeGenerator(func(int) (string, error) { return fixedCode, nil }).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	ctx := context.Background()
	otpStats := runPhase(*ops, *concurrency, func(i int) error {
		opts, err := engine.SendLoginOptions(ctx, dir.email(i))
		if err != nil {
			return err
		}
		_, err = engine.VerifyOTP(ctx, opts.OTPSessionID, fixedCode)
		return err
	})
	links.enabled.Store(true)
	handoffStats := runPhase(*ops, *concurrency, func(i int) error {
		opts, err := engine.SendLoginOptions(ctx, dir.email(i))
		if err != nil {
			return err
		}
		token, err := links.wait(opts.HandoffSessionID, 5*time.Second)
		if err != nil {
			return err
		}
		if err := engine.ConfirmHandoff(ctx, token); err != nil {
			return err
		}
		res, err := engine.PollHandoff(ctx, opts.HandoffSessionID)
		if err != nil {
			return err
		}
		if res.Status != clubAuth.HandoffCompleted {
			return fmt.Errorf("unexpected poll status %s", res.Status)
		}
		return nil
	})

	fmt.Println("---- results ----")
	printStats("otp-login", otpStats)
	printStats("handoff-login", handoffStats)
	snap := engine.MetricsSnapshot()
	fmt.Printf("engine: otp_success=%d handoff_completed=%d notify_dropped=%d\n",
		snap.Counters[clubAuth.MetricOTPVerifySuccess],
		snap.Counters[clubAuth.MetricHandoffPollCompleted],
		engine.NotifyDropped(),
	)
}

func openRedis(addr string) (redis.UniversalClient, func(), error) {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to start miniredis: %w", err)
		}
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		fmt.Printf("using miniredis at %s\n", mr.Addr())
		return client, func() {
			_ = client.Close()
			mr.Close()
		}, nil
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	fmt.Printf("using redis at %s\n", addr)
	return client, func() { _ = client.Close() }, nil
}

type seedDirectory struct {
	members []clubAuth.Principal
	byEmail map[string]int
}

func newSeedDirectory(n int) *seedDirectory {
	d := &seedDirectory{
		members: make([]clubAuth.Principal, n),
		byEmail: make(map[string]int, n),
	}
	for i := 0; i < n; i++ {
		p := clubAuth.Principal{
			ID:    fmt.Sprintf("m-%d", i),
			Email: fmt.Sprintf("member%d@club.test", i),
			Role:  "member",
		}
		d.members[i] = p
		d.byEmail[p.Email] = i
	}
	return d
}

func (d *seedDirectory) email(i int) string {
	return d.members[i%len(d.members)].Email
}

func (d *seedDirectory) FindByEmail(_ context.Context, email string) (clubAuth.Principal, error) {
	i, ok := d.byEmail[email]
	if !ok {
		return clubAuth.Principal{}, clubAuth.ErrSubjectNotFound
	}
	return d.members[i], nil
}

func (d *seedDirectory) FindByID(_ context.Context, id string) (clubAuth.Principal, error) {
	var i int
	if _, err := fmt.Sscanf(id, "m-%d", &i); err != nil || i < 0 || i >= len(d.members) {
		return clubAuth.Principal{}, clubAuth.ErrSubjectNotFound
	}
	return d.members[i], nil
}

func (d *seedDirectory) UpdatePassword(context.Context, string, string) error {
	return errors.New("not supported by the load directory")
}

// linkCapture hands handoff tokens from delivered links to waiting workers.
type linkCapture struct {
	enabled atomic.Bool
	mu      sync.Mutex
	waiting map[string]chan string
}

func newLinkCapture() *linkCapture {
	return &linkCapture{waiting: map[string]chan string{}}
}

func (l *linkCapture) slot(sessionID string) chan string {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.waiting[sessionID]
	if !ok {
		ch = make(chan string, 1)
		l.waiting[sessionID] = ch
	}
	return ch
}

func (l *linkCapture) Send(_ context.Context, n clubAuth.Notification) error {
	if n.Purpose != clubAuth.NotifyLoginLink || !l.enabled.Load() {
		return nil
	}
	u, err := url.Parse(n.Link)
	if err != nil {
		return err
	}
	l.slot(n.SessionID) <- u.Query().Get("token")
	return nil
}

func (l *linkCapture) wait(sessionID string, timeout time.Duration) (string, error) {
	ch := l.slot(sessionID)
	defer func() {
		l.mu.Lock()
		delete(l.waiting, sessionID)
		l.mu.Unlock()
	}()
	select {
	case tok := <-ch:
		return tok, nil
	case <-time.After(timeout):
		return "", errors.New("handoff link not delivered")
	}
}

func runPhase(ops, concurrency int, op func(i int) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(i)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
