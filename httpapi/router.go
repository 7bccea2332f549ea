// Package httpapi binds the login and password-reset operations to JSON over
// HTTP with a chi router.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/MrEthical07/clubAuth"
	"github.com/MrEthical07/clubAuth/middleware"
	"github.com/go-chi/chi/v5"
)

// Service is the engine surface the handlers call. *clubAuth.Engine
// implements it.
type Service interface {
	SendLoginOptions(ctx context.Context, email string) (clubAuth.LoginOptions, error)
	VerifyOTP(ctx context.Context, sessionID, code string) (clubAuth.LoginResult, error)
	ConfirmHandoff(ctx context.Context, token string) error
	PollHandoff(ctx context.Context, sessionID string) (clubAuth.PollResult, error)
	SendResetOTP(ctx context.Context, email string) (clubAuth.ResetChallenge, error)
	VerifyResetOTP(ctx context.Context, sessionID, code string) error
	ResetPassword(ctx context.Context, sessionID, newPassword string) error
	Authenticate(ctx context.Context, token string) (clubAuth.Principal, error)
}

// Options configures [NewRouter].
type Options struct {
	Logger *slog.Logger
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	// Ready reports readiness for /readyz. Nil means always ready.
	Ready func(ctx context.Context) error
}

// Handler holds the HTTP handlers.
type Handler struct {
	service Service
	logger  *slog.Logger
	ready   func(ctx context.Context) error
}

func NewHandler(service Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		service: service,
		logger:  logger.With("module", "http", "layer", "adapter"),
	}
}

// NewRouter registers the routes and the middleware stack.
func NewRouter(service Service, opts Options) http.Handler {
	h := NewHandler(service, opts.Logger)
	h.ready = opts.Ready

	r := chi.NewRouter()
	r.Use(requestContext)
	r.Use(recoverMiddleware(h.logger))
	r.Use(loggingMiddleware(h.logger))

	r.Get("/healthz", h.healthz)
	r.Get("/readyz", h.readyz)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/auth/v1", func(r chi.Router) {
		r.Post("/login/options", h.sendLoginOptions)
		r.Post("/login/otp/verify", h.verifyOTP)
		r.Post("/login/handoff/confirm", h.confirmHandoff)
		r.Get("/login/handoff/{session_id}", h.pollHandoff)

		r.Post("/password/reset-otp", h.sendResetOTP)
		r.Post("/password/reset-otp/verify", h.verifyResetOTP)
		r.Post("/password/reset", h.resetPassword)

		r.With(middleware.Guard(service)).Get("/me", h.me)
	})

	return r
}
