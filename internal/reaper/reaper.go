// Package reaper runs the periodic expiry sweep over every session store.
//
// Sweeping only bounds memory. Every flow re-checks expiry when it touches a
// record, so a stopped or slow reaper never changes observable results.
package reaper

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sweeper removes records expired at now and reports how many it removed.
type Sweeper interface {
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}

// Target is a named store to sweep.
type Target struct {
	Name  string
	Store Sweeper
}

// Config controls a [Reaper].
type Config struct {
	Interval time.Duration
	Now      func() time.Time
	Logger   *slog.Logger
	// OnSweep observes each pass; removed is the total across targets.
	OnSweep func(removed int, elapsed time.Duration)
}

// Reaper owns one background goroutine that sweeps its targets on a fixed
// interval until Stop.
type Reaper struct {
	cfg     Config
	targets []Target

	stop     chan struct{}
	done     chan struct{}
	startMu  sync.Mutex
	started  bool
	stopOnce sync.Once
}

func New(cfg Config, targets ...Target) *Reaper {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Reaper{
		cfg:     cfg,
		targets: targets,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start launches the sweep loop. Calling it more than once has no effect.
func (r *Reaper) Start() {
	r.startMu.Lock()
	defer r.startMu.Unlock()
	if r.started {
		return
	}
	r.started = true
	go r.loop()
}

func (r *Reaper) loop() {
	defer close(r.done)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), r.cfg.Interval)
			r.Sweep(ctx)
			cancel()
		case <-r.stop:
			return
		}
	}
}

// Sweep runs one pass over all targets and returns the number of removed
// records. A failing target is logged and skipped.
func (r *Reaper) Sweep(ctx context.Context) int {
	start := time.Now()
	now := r.cfg.Now()
	total := 0

	for _, t := range r.targets {
		n, err := t.Store.SweepExpired(ctx, now)
		total += n
		if err != nil {
			r.cfg.Logger.Warn("expiry sweep failed", "store", t.Name, "removed", n, "error", err)
			continue
		}
		if n > 0 {
			r.cfg.Logger.Debug("expiry sweep", "store", t.Name, "removed", n)
		}
	}

	if r.cfg.OnSweep != nil {
		r.cfg.OnSweep(total, time.Since(start))
	}
	return total
}

// Stop ends the loop and waits for an in-flight pass. It is safe to call
// more than once, and before Start.
func (r *Reaper) Stop() {
	r.stopOnce.Do(func() {
		close(r.stop)
		r.startMu.Lock()
		started := r.started
		r.started = true
		r.startMu.Unlock()
		if started {
			<-r.done
		}
	})
}
