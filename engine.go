package clubAuth

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync"
	"time"

	internalaudit "github.com/MrEthical07/clubAuth/internal/audit"
	"github.com/MrEthical07/clubAuth/internal/flows"
	"github.com/MrEthical07/clubAuth/internal/notify"
	"github.com/MrEthical07/clubAuth/internal/reaper"
)

// Engine orchestrates login and password-reset challenges. Build one with
// [New] and release it with [Engine.Close].
//
// Engine is safe for concurrent use.
type Engine struct {
	config    Config
	otp       *flows.OTPChallenge
	handoff   *flows.Handoff
	reset     *flows.PasswordReset
	directory UserDirectory
	tokens    TokenIssuer
	notify    *notify.Dispatcher
	audit     *internalaudit.Dispatcher
	metrics   *Metrics
	reaper    *reaper.Reaper
	logger    *slog.Logger
	now       func() time.Time
	linkBase  *url.URL

	closeOnce sync.Once
}

// Close stops the reaper, then drains queued notifications and audit events.
// It is safe to call more than once.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.closeOnce.Do(func() {
		if e.reaper != nil {
			e.reaper.Stop()
		}
		e.notify.Close()
		e.audit.Close()
	})
}

// Sweep runs one expiry pass over every session store and returns how many
// records it removed. It works whether or not the background reaper is
// enabled.
func (e *Engine) Sweep(ctx context.Context) int {
	if e == nil || e.reaper == nil {
		return 0
	}
	return e.reaper.Sweep(ctx)
}

// AuditDropped reports audit events lost to a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// NotifyDropped reports notifications rejected by a full queue.
func (e *Engine) NotifyDropped() uint64 {
	if e == nil || e.notify == nil {
		return 0
	}
	return e.notify.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the active configuration.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return cloneConfig(e.config)
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// countFailure bumps the shared expiry and exhaustion counters that apply to
// every code and handoff operation.
func (e *Engine) countFailure(err error, exhausted MetricID) {
	switch {
	case err == nil:
	case errors.Is(err, ErrSessionExpired):
		e.metricInc(MetricSessionExpired)
	case errors.Is(err, ErrAttemptsExceeded):
		e.metricInc(exhausted)
	}
}

// handoffLink appends token to the configured link base as the "token"
// query parameter, keeping any query the base already has.
func (e *Engine) handoffLink(token string) string {
	u := *e.linkBase
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

// lookupActive resolves a principal and rejects blocked ones. Directory
// failures other than not-found surface as ErrUnavailable.
func (e *Engine) lookupActive(ctx context.Context, find func(context.Context, string) (Principal, error), key string) (Principal, error) {
	p, err := find(ctx, key)
	if err != nil {
		if errors.Is(err, ErrSubjectNotFound) {
			return Principal{}, ErrSubjectNotFound
		}
		return Principal{}, wrapUnavailable(err)
	}
	if p.Blocked {
		return Principal{}, ErrSubjectBlocked
	}
	return p, nil
}
