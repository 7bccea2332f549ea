package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config sizes the audit queue. With DropIfFull unset, Emit waits for queue
// room instead of dropping.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// Dispatcher hands orchestrator events to one sink goroutine so that a slow
// sink never sits on a login or reset path.
//
// A nil *Dispatcher (auditing disabled) accepts and discards everything.
type Dispatcher struct {
	cfg  Config
	sink Sink

	// intake is read-locked for every enqueue and write-locked by Close, so
	// an accepted event is always in the queue before the drain starts.
	intake sync.RWMutex
	closed bool

	queue    chan Event
	stopping chan struct{}
	stopped  chan struct{}
	dropped  atomic.Uint64
	once     sync.Once
}

func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		cfg:      cfg,
		sink:     sink,
		queue:    make(chan Event, cfg.BufferSize),
		stopping: make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go d.forward()
	return d
}

func (d *Dispatcher) forward() {
	defer close(d.stopped)
	ctx := context.Background()

	for {
		select {
		case event := <-d.queue:
			d.sink.Emit(ctx, event)
		case <-d.stopping:
			for {
				select {
				case event := <-d.queue:
					d.sink.Emit(ctx, event)
				default:
					return
				}
			}
		}
	}
}

// Emit queues event for the sink. An event that cannot be queued is counted
// in Dropped.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.intake.RLock()
	defer d.intake.RUnlock()

	if d.closed {
		d.dropped.Add(1)
		return
	}
	if d.cfg.DropIfFull {
		select {
		case d.queue <- event:
		default:
			d.dropped.Add(1)
		}
		return
	}
	select {
	case d.queue <- event:
	case <-ctx.Done():
		d.dropped.Add(1)
	}
}

// Close rejects further events and returns once the queue has been flushed
// to the sink.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.once.Do(func() {
		d.intake.Lock()
		d.closed = true
		d.intake.Unlock()
		close(d.stopping)
		<-d.stopped
	})
}

func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
