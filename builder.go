package clubAuth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/MrEthical07/clubAuth/internal"
	internalaudit "github.com/MrEthical07/clubAuth/internal/audit"
	"github.com/MrEthical07/clubAuth/internal/flows"
	"github.com/MrEthical07/clubAuth/internal/notify"
	"github.com/MrEthical07/clubAuth/internal/reaper"
	"github.com/MrEthical07/clubAuth/jwt"
	"github.com/MrEthical07/clubAuth/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. A Builder can be used for one Build only.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	directory UserDirectory
	notifier  Notifier
	auditSink AuditSink
	tokens    TokenIssuer
	logger    *slog.Logger

	now     func() time.Time
	newCode func(digits int) (string, error)

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration. The config is copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis moves every session store to Redis. Without it sessions live in
// process memory and a restart discards them.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithUserDirectory sets the principal lookup. It is required.
func (b *Builder) WithUserDirectory(dir UserDirectory) *Builder {
	b.directory = dir
	return b
}

// WithNotifier sets the delivery channel for codes and links. Without one,
// notifications are counted as failed and logged without their secrets.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithTokenIssuer replaces the built-in JWT manager. Config.Token then only
// contributes LoginTTL.
func (b *Builder) WithTokenIssuer(issuer TokenIssuer) *Builder {
	b.tokens = issuer
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides the time source of every flow and of the built-in
// token issuer.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithCodeGenerator overrides numeric code generation for OTP and reset
// codes. The generator receives the configured digit count.
func (b *Builder) WithCodeGenerator(gen func(digits int) (string, error)) *Builder {
	b.newCode = gen
	return b
}

// Build validates the configuration, wires every flow to its own session
// store, and starts the background workers.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.directory == nil {
		return nil, errors.New("user directory required")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "clubauth")

	linkBase, err := url.Parse(cfg.Handoff.LinkBaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid handoff link base: %w", err)
	}

	tokens := b.tokens
	if tokens == nil {
		jm, err := jwt.NewManager(jwt.Config{
			SigningMethod: jwt.SigningMethod(cfg.Token.SigningMethod),
			PrivateKey:    cloneBytes(cfg.Token.PrivateKey),
			PublicKey:     cloneBytes(cfg.Token.PublicKey),
			Issuer:        cfg.Token.Issuer,
			Audience:      cfg.Token.Audience,
			Leeway:        cfg.Token.Leeway,
			KeyID:         cfg.Token.KeyID,
			Now:           now,
		})
		if err != nil {
			return nil, err
		}
		tokens = jm
	}

	// -------- SESSION STORES --------
	otpStore, handoffStore, resetStore := b.stores(cfg)

	engine := &Engine{
		config:    cfg,
		directory: b.directory,
		tokens:    tokens,
		logger:    logger,
		now:       now,
		linkBase:  linkBase,
		metrics:   NewMetrics(cfg.Metrics),
	}

	// -------- FLOWS --------
	engine.otp = flows.NewOTPChallenge(flows.OTPDeps{
		Store:       otpStore,
		TTL:         cfg.OTP.TTL,
		MaxAttempts: cfg.OTP.MaxAttempts,
		CodeDigits:  cfg.OTP.CodeDigits,
		Now:         now,
		NewCode:     b.newCode,
	})
	engine.handoff = flows.NewHandoff(flows.HandoffDeps{
		Store:    handoffStore,
		Tokens:   tokens,
		Lookup:   b.directory.FindByID,
		TTL:      cfg.Handoff.TTL,
		LoginTTL: cfg.Token.LoginTTL,
		Now:      now,
	})
	engine.reset = flows.NewPasswordReset(flows.ResetDeps{
		Store:             resetStore,
		TTL:               cfg.PasswordReset.TTL,
		MaxAttempts:       cfg.PasswordReset.MaxAttempts,
		CodeDigits:        cfg.PasswordReset.CodeDigits,
		MinPasswordLength: cfg.PasswordReset.MinPasswordLength,
		UpdatePassword:    b.directory.UpdatePassword,
		Now:               now,
		NewCode:           b.newCode,
	})

	// -------- BACKGROUND WORKERS --------
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	engine.notify = notify.NewDispatcher(notify.Config{
		Workers:     cfg.Notify.Workers,
		QueueSize:   cfg.Notify.QueueSize,
		SendTimeout: cfg.Notify.SendTimeout,
	}, b.notifier, notify.Hooks{
		OnSent:    engine.notificationSent,
		OnFailure: engine.notificationFailed,
	})

	engine.reaper = reaper.New(reaper.Config{
		Interval: cfg.Reaper.Interval,
		Now:      now,
		Logger:   logger,
		OnSweep: func(removed int, elapsed time.Duration) {
			engine.metrics.Add(MetricReaperSwept, uint64(removed))
			engine.metrics.Observe(MetricSweepLatency, elapsed)
		},
	},
		reaper.Target{Name: internal.PrefixOTP, Store: otpStore},
		reaper.Target{Name: internal.PrefixHandoff, Store: handoffStore},
		reaper.Target{Name: internal.PrefixReset, Store: resetStore},
	)
	if cfg.Reaper.Enabled {
		engine.reaper.Start()
	}

	b.built = true

	return engine, nil
}

func (b *Builder) stores(cfg Config) (
	session.Store[flows.OTPSession],
	session.Store[flows.HandoffSession],
	session.Store[flows.ResetSession],
) {
	if b.redis == nil {
		return session.NewMemoryStore[flows.OTPSession](),
			session.NewMemoryStore[flows.HandoffSession](),
			session.NewMemoryStore[flows.ResetSession]()
	}

	redisConfig := func(kind string) session.RedisConfig {
		return session.RedisConfig{
			Prefix: cfg.Store.RedisPrefix + ":" + kind,
			Grace:  cfg.Store.RedisGrace,
		}
	}
	return session.NewRedisStore[flows.OTPSession](b.redis, redisConfig(internal.PrefixOTP)),
		session.NewRedisStore[flows.HandoffSession](b.redis, redisConfig(internal.PrefixHandoff)),
		session.NewRedisStore[flows.ResetSession](b.redis, redisConfig(internal.PrefixReset))
}

func (e *Engine) notificationSent(n Notification) {
	e.metrics.Inc(MetricNotificationSent)
}

// notificationFailed runs on a notify worker or, for a full queue, on the
// caller's goroutine.
func (e *Engine) notificationFailed(n Notification, err error) {
	e.metrics.Inc(MetricNotificationFailed)
	e.logger.Warn("notification delivery failed",
		"purpose", string(n.Purpose),
		"subject_id", n.SubjectID,
		"session_id", n.SessionID,
		"error", err,
	)
	e.emitAudit(context.Background(), auditEventNotificationFailure, false, n.SubjectID, n.SessionID,
		fmt.Errorf("%w: %v", ErrNotificationFailure, err),
		func() map[string]string {
			return map[string]string{"purpose": string(n.Purpose)}
		})
}
