package internaldefs

import (
	"github.com/MrEthical07/clubAuth"
)

// CounterDef names one engine counter for export.
type CounterDef struct {
	ID   clubAuth.MetricID
	Name string
	Help string
}

// HistogramDef names one engine latency histogram for export.
type HistogramDef struct {
	ID   clubAuth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: clubAuth.MetricLoginOptionsSent, Name: "clubauth_login_options_sent_total", Help: "Login option sets issued (code plus handoff link)."},
	{ID: clubAuth.MetricLoginOptionsFailure, Name: "clubauth_login_options_failure_total", Help: "Login option requests rejected or failed."},
	{ID: clubAuth.MetricOTPVerifySuccess, Name: "clubauth_otp_verify_success_total", Help: "Successful login code verifications."},
	{ID: clubAuth.MetricOTPVerifyFailure, Name: "clubauth_otp_verify_failure_total", Help: "Failed login code verifications."},
	{ID: clubAuth.MetricOTPAttemptsExceeded, Name: "clubauth_otp_attempts_exceeded_total", Help: "Login code sessions invalidated by the attempt cap."},
	{ID: clubAuth.MetricHandoffConfirmSuccess, Name: "clubauth_handoff_confirm_success_total", Help: "Handoff links confirmed."},
	{ID: clubAuth.MetricHandoffConfirmFailure, Name: "clubauth_handoff_confirm_failure_total", Help: "Handoff confirmations rejected."},
	{ID: clubAuth.MetricHandoffBlocked, Name: "clubauth_handoff_blocked_total", Help: "Handoff confirmations for blocked accounts."},
	{ID: clubAuth.MetricHandoffPollPending, Name: "clubauth_handoff_poll_pending_total", Help: "Handoff polls answered pending."},
	{ID: clubAuth.MetricHandoffPollCompleted, Name: "clubauth_handoff_poll_completed_total", Help: "Handoff polls that delivered a login token."},
	{ID: clubAuth.MetricHandoffPollExpired, Name: "clubauth_handoff_poll_expired_total", Help: "Handoff polls answered expired."},
	{ID: clubAuth.MetricPasswordResetRequest, Name: "clubauth_password_reset_request_total", Help: "Password reset codes issued."},
	{ID: clubAuth.MetricPasswordResetVerifySuccess, Name: "clubauth_password_reset_verify_success_total", Help: "Reset codes verified."},
	{ID: clubAuth.MetricPasswordResetVerifyFailure, Name: "clubauth_password_reset_verify_failure_total", Help: "Reset code verifications rejected."},
	{ID: clubAuth.MetricPasswordResetAttemptsExceeded, Name: "clubauth_password_reset_attempts_exceeded_total", Help: "Reset sessions invalidated by the attempt cap."},
	{ID: clubAuth.MetricPasswordResetSuccess, Name: "clubauth_password_reset_success_total", Help: "Passwords changed through a reset session."},
	{ID: clubAuth.MetricPasswordResetFailure, Name: "clubauth_password_reset_failure_total", Help: "Password changes rejected."},
	{ID: clubAuth.MetricSessionExpired, Name: "clubauth_session_expired_total", Help: "Operations that found their session past expiry."},
	{ID: clubAuth.MetricNotificationSent, Name: "clubauth_notification_sent_total", Help: "Notifications delivered."},
	{ID: clubAuth.MetricNotificationFailed, Name: "clubauth_notification_failed_total", Help: "Notifications dropped or failed."},
	{ID: clubAuth.MetricReaperSwept, Name: "clubauth_reaper_swept_total", Help: "Expired sessions removed by the reaper."},
}

// HistogramDefs lists every exported latency histogram.
var HistogramDefs = []HistogramDef{
	{ID: clubAuth.MetricLoginLatency, Name: "clubauth_login_latency_seconds", Help: "Code verification and handoff confirmation latency."},
	{ID: clubAuth.MetricSweepLatency, Name: "clubauth_sweep_latency_seconds", Help: "Reaper pass latency."},
}

// AuditDroppedName and NotifyDroppedName are the dispatcher backpressure
// counters read outside the snapshot.
const (
	AuditDroppedName  = "clubauth_audit_dropped_total"
	NotifyDroppedName = "clubauth_notify_dropped_total"
)

// BucketCount is the number of engine histogram buckets, the last one
// unbounded.
const BucketCount = len(clubAuth.HistogramBounds) + 1

// UpperBounds returns the finite bucket bounds in seconds.
func UpperBounds() []float64 {
	out := make([]float64, len(clubAuth.HistogramBounds))
	for i, d := range clubAuth.HistogramBounds {
		out[i] = d.Seconds()
	}
	return out
}

// HistogramBoundSuffix names each bucket for exporters without native
// histogram buckets.
var HistogramBoundSuffix = [BucketCount]string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to BucketCount entries.
func NormalizeBuckets(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [BucketCount]uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
