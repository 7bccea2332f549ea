package clubAuth

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one in-process counter.
type MetricID uint16

const (
	MetricLoginOptionsSent MetricID = iota
	MetricLoginOptionsFailure
	MetricOTPVerifySuccess
	MetricOTPVerifyFailure
	MetricOTPAttemptsExceeded
	MetricHandoffConfirmSuccess
	MetricHandoffConfirmFailure
	MetricHandoffBlocked
	MetricHandoffPollPending
	MetricHandoffPollCompleted
	MetricHandoffPollExpired
	MetricPasswordResetRequest
	MetricPasswordResetVerifySuccess
	MetricPasswordResetVerifyFailure
	MetricPasswordResetAttemptsExceeded
	MetricPasswordResetSuccess
	MetricPasswordResetFailure
	MetricSessionExpired
	MetricNotificationSent
	MetricNotificationFailed
	MetricReaperSwept
	// MetricLoginLatency records VerifyOTP and ConfirmHandoff durations.
	MetricLoginLatency
	// MetricSweepLatency records reaper pass durations.
	MetricSweepLatency
	metricIDCount
)

var metricNames = [metricIDCount]string{
	MetricLoginOptionsSent:              "login_options_sent",
	MetricLoginOptionsFailure:           "login_options_failure",
	MetricOTPVerifySuccess:              "otp_verify_success",
	MetricOTPVerifyFailure:              "otp_verify_failure",
	MetricOTPAttemptsExceeded:           "otp_attempts_exceeded",
	MetricHandoffConfirmSuccess:         "handoff_confirm_success",
	MetricHandoffConfirmFailure:         "handoff_confirm_failure",
	MetricHandoffBlocked:                "handoff_blocked",
	MetricHandoffPollPending:            "handoff_poll_pending",
	MetricHandoffPollCompleted:          "handoff_poll_completed",
	MetricHandoffPollExpired:            "handoff_poll_expired",
	MetricPasswordResetRequest:          "password_reset_request",
	MetricPasswordResetVerifySuccess:    "password_reset_verify_success",
	MetricPasswordResetVerifyFailure:    "password_reset_verify_failure",
	MetricPasswordResetAttemptsExceeded: "password_reset_attempts_exceeded",
	MetricPasswordResetSuccess:          "password_reset_success",
	MetricPasswordResetFailure:          "password_reset_failure",
	MetricSessionExpired:                "session_expired",
	MetricNotificationSent:              "notification_sent",
	MetricNotificationFailed:            "notification_failed",
	MetricReaperSwept:                   "reaper_swept",
	MetricLoginLatency:                  "login_latency",
	MetricSweepLatency:                  "sweep_latency",
}

// String returns the snake_case name exporters use.
func (id MetricID) String() string {
	if id >= metricIDCount {
		return "unknown"
	}
	return metricNames[id]
}

// IsLatency reports whether id carries a histogram rather than a plain count.
func (id MetricID) IsLatency() bool {
	return id == MetricLoginLatency || id == MetricSweepLatency
}

// MetricIDs lists every defined metric in order.
func MetricIDs() []MetricID {
	out := make([]MetricID, 0, int(metricIDCount))
	for id := MetricID(0); id < metricIDCount; id++ {
		out = append(out, id)
	}
	return out
}

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

// HistogramBounds are the inclusive upper bounds of the first seven latency
// buckets. The eighth bucket is unbounded.
var HistogramBounds = [histBucketCount - 1]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a fixed set of lock-free counters and latency histograms.
//
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of every counter. Histograms holds
// per-bucket counts for latency metrics when latency recording is enabled.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

func (m *Metrics) Inc(id MetricID) {
	m.Add(id, 1)
}

// Add increases a counter by n.
func (m *Metrics) Add(id MetricID, n uint64) {
	if m == nil || !m.enabled || id >= metricIDCount || n == 0 {
		return
	}
	atomic.AddUint64(&m.counters[id].value, n)
}

// Observe records d into the histogram of a latency metric and bumps its
// counter. Non-latency ids are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if !id.IsLatency() {
		return
	}

	atomic.AddUint64(&m.histograms[id].buckets[bucketIndex(d)], 1)
	atomic.AddUint64(&m.counters[id].value, 1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter. It returns empty maps when metrics are
// disabled.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 2),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
		if !m.enableLatency || !id.IsLatency() {
			continue
		}
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[id].buckets[i])
		}
		s.Histograms[id] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	for i, bound := range HistogramBounds {
		if d <= bound {
			return i
		}
	}
	return histBucketCount - 1
}
