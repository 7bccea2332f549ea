package notify

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrQueueFull is reported to the failure hook when a notification cannot
	// be queued.
	ErrQueueFull = errors.New("notification queue full")
	// ErrClosed is reported to the failure hook for notifications enqueued
	// after Close.
	ErrClosed = errors.New("notification dispatcher closed")
)

// Purpose tells the delivery side which template a notification needs.
type Purpose string

const (
	PurposeLoginCode Purpose = "login_code"
	PurposeLoginLink Purpose = "login_link"
	PurposeResetCode Purpose = "reset_code"
)

// Notification is a single message for a principal. Code and Link carry
// secrets and must never be logged.
type Notification struct {
	Purpose     Purpose       `json:"purpose"`
	Destination string        `json:"destination"`
	SubjectID   string        `json:"subject_id"`
	DisplayName string        `json:"display_name,omitempty"`
	SessionID   string        `json:"session_id"`
	Code        string        `json:"code,omitempty"`
	Link        string        `json:"link,omitempty"`
	ExpiresIn   time.Duration `json:"expires_in"`
}

// Sender delivers one notification.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// Config controls the dispatcher queue and workers.
type Config struct {
	Workers     int
	QueueSize   int
	SendTimeout time.Duration
}

// Dispatcher sends notifications from a fixed worker pool. Enqueue never
// blocks the caller; failures, including a full queue, go to the failure
// hook and are never returned.
type Dispatcher struct {
	cfg       Config
	sender    Sender
	onFailure func(Notification, error)
	onSent    func(Notification)

	// mu orders intake against Close: a send holds the read lock, so every
	// accepted notification is buffered before done is closed.
	mu        sync.RWMutex
	closed    bool
	ch        chan Notification
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closeOnce sync.Once
}

// Hooks observe delivery outcomes. Either may be nil.
type Hooks struct {
	OnSent    func(Notification)
	OnFailure func(Notification, error)
}

func NewDispatcher(cfg Config, sender Sender, hooks Hooks) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if hooks.OnFailure == nil {
		hooks.OnFailure = func(Notification, error) {}
	}
	if hooks.OnSent == nil {
		hooks.OnSent = func(Notification) {}
	}

	d := &Dispatcher{
		cfg:       cfg,
		sender:    sender,
		onFailure: hooks.OnFailure,
		onSent:    hooks.OnSent,
		ch:        make(chan Notification, cfg.QueueSize),
		done:      make(chan struct{}),
	}
	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.run()
	}
	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case n := <-d.ch:
			d.deliver(n)
		case <-d.done:
			for {
				select {
				case n := <-d.ch:
					d.deliver(n)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(n Notification) {
	if d.sender == nil {
		d.onFailure(n, errors.New("no notifier configured"))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.SendTimeout)
	defer cancel()

	if err := d.sender.Send(ctx, n); err != nil {
		d.onFailure(n, err)
		return
	}
	d.onSent(n)
}

// Enqueue queues n for delivery and reports whether it was accepted. A
// rejected notification is reported to the failure hook.
func (d *Dispatcher) Enqueue(n Notification) bool {
	if d == nil {
		return false
	}

	d.mu.RLock()
	var rejected error
	switch {
	case d.closed:
		rejected = ErrClosed
	default:
		select {
		case d.ch <- n:
		default:
			d.dropped.Add(1)
			rejected = ErrQueueFull
		}
	}
	d.mu.RUnlock()

	if rejected != nil {
		d.onFailure(n, rejected)
		return false
	}
	return true
}

// Close stops intake and waits for queued notifications to be attempted.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()
		close(d.done)
		d.wg.Wait()
	})
}

// Dropped reports notifications rejected because the queue was full.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
