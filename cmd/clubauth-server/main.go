// Command clubauth-server serves passwordless club logins and password resets
// over HTTP.
package main

import (
	"context"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrEthical07/clubAuth"
	"github.com/MrEthical07/clubAuth/directory"
	"github.com/MrEthical07/clubAuth/httpapi"
	promexport "github.com/MrEthical07/clubAuth/metrics/export/prometheus"
	"github.com/MrEthical07/clubAuth/notifier"
	"github.com/MrEthical07/clubAuth/password"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func main() {
	configPath := flag.String("config", "configs/default.yaml", "path to the YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "clubauth-server: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, closeRedis, err := connectRedis(ctx, cfg.RedisAddr, logger)
	if err != nil {
		return err
	}
	defer closeRedis()

	sender, closeSender, err := newSender(cfg, logger)
	if err != nil {
		return err
	}
	defer closeSender()

	if len(cfg.Engine.Token.PrivateKey) == 0 {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return fmt.Errorf("generate ephemeral signing key: %w", err)
		}
		cfg.Engine.Token.PrivateKey = key
		logger.Warn("using an ephemeral token signing key; tokens will not survive a restart")
	}

	members, err := seedDirectory(cfg.Members)
	if err != nil {
		return err
	}

	engine, err := clubAuth.New().
		WithConfig(cfg.Engine).
		WithRedis(rdb).
		WithUserDirectory(members).
		WithNotifier(sender).
		WithAuditSink(clubAuth.NewSlogSink(logger.With("stream", "audit"))).
		WithLogger(logger).
		Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	opts := httpapi.Options{
		Logger: logger,
		Ready: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		},
	}
	if cfg.MetricsEnabled {
		exporter, err := promexport.NewExporter(engine, cfg.RuntimeMetrics)
		if err != nil {
			return fmt.Errorf("metrics exporter: %w", err)
		}
		opts.Metrics = exporter.Handler()
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(engine, opts),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown requested")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
	logger.Info("server stopped",
		"audit_dropped", engine.AuditDropped(),
		"notify_dropped", engine.NotifyDropped(),
	)
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})).
		With("service", "clubauth")
}

// connectRedis dials addr, or starts an in-process miniredis when addr is
// empty.
func connectRedis(ctx context.Context, addr string, logger *slog.Logger) (redis.UniversalClient, func(), error) {
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start miniredis: %w", err)
		}
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		logger.Warn("REDIS_ADDR not set; using in-process miniredis", "addr", mr.Addr())
		return client, func() {
			_ = client.Close()
			mr.Close()
		}, nil
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	logger.Info("connected to redis", "addr", addr)
	return client, func() { _ = client.Close() }, nil
}

// newSender publishes to RabbitMQ when a URL is configured and otherwise
// writes notifications to stdout.
func newSender(cfg serverConfig, logger *slog.Logger) (clubAuth.Notifier, func(), error) {
	if cfg.RabbitMQURL == "" {
		logger.Warn("RABBITMQ_URL not set; notifications are written to stdout")
		return notifier.NewOutbox(os.Stdout), func() {}, nil
	}
	mq, err := notifier.DialRabbitMQ(notifier.RabbitMQConfig{
		URL:      cfg.RabbitMQURL,
		Queue:    cfg.RabbitMQQueue,
		Exchange: cfg.RabbitMQExchange,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	return mq, func() { _ = mq.Close() }, nil
}

func seedDirectory(seeds []memberSeed) (*directory.Memory, error) {
	hasher, err := password.NewArgon2(password.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("password hasher: %w", err)
	}
	members := directory.NewMemory(hasher)
	for _, s := range seeds {
		p := clubAuth.Principal{
			ID:          s.ID,
			Email:       s.Email,
			DisplayName: s.DisplayName,
			Role:        s.Role,
			Blocked:     s.Blocked,
		}
		if err := members.Add(p, s.Password); err != nil {
			return nil, fmt.Errorf("seed member %q: %w", s.ID, err)
		}
	}
	return members, nil
}
