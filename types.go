package clubAuth

import (
	"context"
	"io"
	"log/slog"
	"time"

	internalaudit "github.com/MrEthical07/clubAuth/internal/audit"
	"github.com/MrEthical07/clubAuth/internal/flows"
	"github.com/MrEthical07/clubAuth/internal/notify"
)

// Principal is the identity a login or reset is performed for. The
// orchestrator never mutates it.
type Principal = flows.Principal

// UserDirectory is the external user store.
//
// FindByEmail and FindByID return [ErrSubjectNotFound] for unknown
// principals. UpdatePassword is responsible for hashing.
type UserDirectory interface {
	FindByEmail(ctx context.Context, email string) (Principal, error)
	FindByID(ctx context.Context, subjectID string) (Principal, error)
	UpdatePassword(ctx context.Context, subjectID, newPassword string) error
}

// TokenIssuer signs and verifies purpose-scoped tokens. [jwt.Manager]
// implements it.
type TokenIssuer = flows.TokenIssuer

// Notification is one message handed to the [Notifier].
type Notification = notify.Notification

// NotificationPurpose selects the message template.
type NotificationPurpose = notify.Purpose

const (
	NotifyLoginCode = notify.PurposeLoginCode
	NotifyLoginLink = notify.PurposeLoginLink
	NotifyResetCode = notify.PurposeResetCode
)

// Notifier delivers notifications. Send runs on a background worker with a
// timeout; its error is logged and counted, never returned to the caller of
// the operation that produced the notification.
type Notifier = notify.Sender

// NotifierFunc adapts a function to [Notifier].
type NotifierFunc func(ctx context.Context, n Notification) error

func (f NotifierFunc) Send(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// LoginOptions is returned by [Engine.SendLoginOptions]. ExpiresIn is the
// OTP validity window; the handoff link lives for Config.Handoff.TTL.
type LoginOptions struct {
	OTPSessionID     string
	HandoffSessionID string
	ExpiresIn        time.Duration
}

// LoginResult is a successful login.
type LoginResult struct {
	Token     string
	Principal Principal
}

// HandoffStatus is what a polling device sees.
type HandoffStatus = flows.HandoffStatus

const (
	HandoffPending   = flows.HandoffPending
	HandoffCompleted = flows.HandoffCompleted
	HandoffExpired   = flows.HandoffExpired
)

// PollResult is returned by [Engine.PollHandoff]. Token and Principal are
// set only for HandoffCompleted, which is reported to exactly one caller.
type PollResult struct {
	Status    HandoffStatus
	Token     string
	Principal *Principal
}

// ResetChallenge is returned by [Engine.SendResetOTP].
type ResetChallenge struct {
	SessionID string
	ExpiresIn time.Duration
}

// AuditEvent is one audit record.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the dispatcher goroutine.
type AuditSink = internalaudit.Sink

// NoOpSink drops every event.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink buffers events on a channel, mostly for tests.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON event per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// SlogSink logs events through slog.
type SlogSink = internalaudit.SlogSink

func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	return internalaudit.NewSlogSink(logger)
}
