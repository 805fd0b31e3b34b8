// Package api exposes the dispatcher over HTTP.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mattjoyce/cmdgate/internal/audit"
	"github.com/mattjoyce/cmdgate/internal/auth"
	"github.com/mattjoyce/cmdgate/internal/command"
	"github.com/mattjoyce/cmdgate/internal/config"
	"github.com/mattjoyce/cmdgate/internal/events"
	"github.com/mattjoyce/cmdgate/internal/warmup"
)

// Dispatcher runs command lines.
type Dispatcher interface {
	ProcessNotify(ctx context.Context, actor *command.Actor, label, rawArgs string, done func(command.Result)) command.Result
	Registry() *command.Registry
	Services() *command.Services
}

// Runner runs a function on the foreground loop and waits for it.
type Runner interface {
	RunSync(ctx context.Context, fn func(ctx context.Context)) error
}

// WarmupNotifier receives actor events that may cancel pending warmups.
type WarmupNotifier interface {
	Notify(actor string, ev warmup.Event) bool
}

// CommandLog lists resolved invocations.
type CommandLog interface {
	Recent(ctx context.Context, f audit.Filter) ([]audit.Entry, error)
}

// Config holds API server configuration.
type Config struct {
	Listen string
	// APIKey is a single bearer token with full access.
	APIKey string
	// Tokens is an optional list of scoped bearer tokens.
	Tokens []auth.TokenConfig
	// Locale is used when a dispatch request names none.
	Locale    string
	RateLimit float64
	Burst     int
	// MaxWait caps how long a dispatch request may wait for a deferred result.
	MaxWait time.Duration
}

// ConfigFrom builds the server config from the loaded configuration.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Listen:    cfg.API.Listen,
		APIKey:    cfg.API.Auth.APIKey,
		Tokens:    auth.FromConfig(cfg.API.Auth.Tokens),
		Locale:    cfg.Service.Locale,
		RateLimit: cfg.API.RateLimit,
		Burst:     cfg.API.Burst,
	}
}

// Deps are the collaborators the handlers use. Log and Warmups may be nil.
type Deps struct {
	Dispatcher Dispatcher
	Runner     Runner
	Warmups    WarmupNotifier
	Log        CommandLog
	Events     *events.Hub
}

// Server represents the HTTP API server.
type Server struct {
	config    Config
	deps      Deps
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
	limiter   *clientLimiter
}

// New creates a new API server instance.
func New(cfg Config, deps Deps, logger *slog.Logger) *Server {
	if cfg.Locale == "" {
		cfg.Locale = "en-US"
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Events == nil {
		deps.Events = events.NewHub(256)
	}
	return &Server{
		config:    cfg,
		deps:      deps,
		logger:    logger.With("component", "api"),
		startedAt: time.Now(),
		limiter:   newClientLimiter(cfg.RateLimit, cfg.Burst),
	}
}

// Start starts the HTTP server and blocks until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: s.config.MaxWait + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("API server starting", "listen", s.config.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// Unauthenticated ops endpoint.
	r.Get("/healthz", s.handleHealthz)

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Use(s.rateLimitMiddleware)
		r.With(s.requireScopes(auth.ScopeDispatchPlayer, auth.ScopeDispatchConsole)).Post("/dispatch", s.handleDispatch)
		r.With(s.requireScopes(auth.ScopeActorsWrite)).Post("/actors/{name}/events", s.handleActorEvent)
		r.With(s.requireScopes(auth.ScopeCommandsRead)).Get("/commands", s.handleCommands)
		r.With(s.requireScopes(auth.ScopeLogRead)).Get("/log", s.handleLog)
		r.With(s.requireScopes(auth.ScopeEventsRead)).Get("/events", s.handleEvents)
	})

	return r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
