package clubAuth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

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

type fakeDirectory struct {
	mu        sync.Mutex
	byID      map[string]Principal
	passwords map[string]string
	failWith  error
}

func newFakeDirectory(ps ...Principal) *fakeDirectory {
	d := &fakeDirectory{
		byID:      map[string]Principal{},
		passwords: map[string]string{},
	}
	for _, p := range ps {
		d.byID[p.ID] = p
	}
	return d
}

func (d *fakeDirectory) FindByEmail(_ context.Context, email string) (Principal, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failWith != nil {
		return Principal{}, d.failWith
	}
	for _, p := range d.byID {
		if p.Email == email {
			return p, nil
		}
	}
	return Principal{}, ErrSubjectNotFound
}

func (d *fakeDirectory) FindByID(_ context.Context, id string) (Principal, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failWith != nil {
		return Principal{}, d.failWith
	}
	p, ok := d.byID[id]
	if !ok {
		return Principal{}, ErrSubjectNotFound
	}
	return p, nil
}

func (d *fakeDirectory) UpdatePassword(_ context.Context, id, pw string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.byID[id]; !ok {
		return ErrSubjectNotFound
	}
	d.passwords[id] = pw
	return nil
}

func (d *fakeDirectory) setBlocked(id string, blocked bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := d.byID[id]
	p.Blocked = blocked
	d.byID[id] = p
}

func (d *fakeDirectory) password(id string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.passwords[id]
}

// captureNotifier records every delivered notification on a channel.
type captureNotifier struct {
	sent chan Notification
	err  error
}

func newCaptureNotifier() *captureNotifier {
	return &captureNotifier{sent: make(chan Notification, 64)}
}

func (n *captureNotifier) Send(_ context.Context, msg Notification) error {
	if n.err != nil {
		return n.err
	}
	n.sent <- msg
	return nil
}

func (n *captureNotifier) next(t *testing.T, purpose NotificationPurpose) Notification {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case msg := <-n.sent:
			if msg.Purpose == purpose {
				return msg
			}
		case <-timeout:
			t.Fatalf("no %s notification delivered", purpose)
			return Notification{}
		}
	}
}

var (
	testMember = Principal{
		ID:          "u-1",
		Email:       "ana@club.test",
		DisplayName: "Ana",
		Role:        "member",
	}
	testBlocked = Principal{
		ID:      "u-2",
		Email:   "bo@club.test",
		Role:    "member",
		Blocked: true,
	}
)

type testEngine struct {
	*Engine
	clock     *testClock
	directory *fakeDirectory
	notifier  *captureNotifier
	events    *ChannelSink
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Token.PrivateKey = []byte("engine-test-secret-engine-test-secret")
	cfg.Reaper.Enabled = false
	cfg.Audit.Enabled = true
	cfg.Audit.DropIfFull = false
	return cfg
}

func newTestEngine(t *testing.T, code string) *testEngine {
	t.Helper()
	te := &testEngine{
		clock:     newTestClock(),
		directory: newFakeDirectory(testMember, testBlocked),
		notifier:  newCaptureNotifier(),
		events:    NewChannelSink(256),
	}

	engine, err := New().
		WithConfig(testConfig()).
		WithUserDirectory(te.directory).
		WithNotifier(te.notifier).
		WithAuditSink(te.events).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		WithClock(te.clock.Now).
		WithCodeGenerator(func(int) (string, error) { return code, nil }).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	te.Engine = engine
	t.Cleanup(engine.Close)
	return te
}

func remaining(t *testing.T, err error) int {
	t.Helper()
	var wrong *WrongCodeError
	if !errors.As(err, &wrong) {
		t.Fatalf("expected *WrongCodeError, got %v", err)
	}
	return wrong.Remaining
}
