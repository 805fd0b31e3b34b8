package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mattjoyce/cmdgate/internal/command"
	"github.com/mattjoyce/cmdgate/internal/scheduler"
)

// Dispatcher runs command lines.
type Dispatcher interface {
	ProcessNotify(ctx context.Context, actor *command.Actor, label, rawArgs string, done func(command.Result)) command.Result
	Registry() *command.Registry
}

// Runner runs a function on the foreground loop and waits for it.
type Runner interface {
	RunSync(ctx context.Context, fn func(ctx context.Context)) error
}

// Request is the signed body of a webhook call.
type Request struct {
	Line   string `json:"line"`
	Locale string `json:"locale,omitempty"`
}

// Response reports how the dispatched line resolved.
type Response struct {
	Outcome  string   `json:"outcome"`
	Message  string   `json:"message,omitempty"`
	Error    string   `json:"error,omitempty"`
	Messages []string `json:"messages"`
	Pending  bool     `json:"pending,omitempty"`
}

// ErrorResponse is returned for rejected requests.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Server represents the webhook HTTP server.
type Server struct {
	config     Config
	dispatcher Dispatcher
	runner     Runner
	logger     *slog.Logger
	server     *http.Server

	endpoints map[string]*Endpoint
}

// New creates a new webhook server instance.
func New(cfg Config, d Dispatcher, r Runner, logger *slog.Logger) *Server {
	if cfg.Locale == "" {
		cfg.Locale = "en-US"
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	endpoints := make(map[string]*Endpoint, len(cfg.Endpoints))
	for i := range cfg.Endpoints {
		ep := &cfg.Endpoints[i]
		if ep.MaxBodySize == 0 {
			ep.MaxBodySize = DefaultMaxBodySize
		}
		endpoints[ep.Path] = ep
	}

	return &Server{
		config:     cfg,
		dispatcher: d,
		runner:     r,
		logger:     logger.With("component", "webhook"),
		endpoints:  endpoints,
	}
}

// Start starts the webhook HTTP server and blocks until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: s.config.MaxWait + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("webhook server starting", "listen", s.config.Listen, "endpoints", len(s.endpoints))

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("webhook server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("webhook server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("webhook server error: %w", err)
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	for path := range s.endpoints {
		r.Post(path, s.handleWebhook)
	}
	return r
}

// loggingMiddleware logs requests without their bodies.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("webhook request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
			"remote_addr", r.RemoteAddr,
		)
	})
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	endpoint, ok := s.endpoints[r.URL.Path]
	if !ok {
		s.respondError(w, http.StatusNotFound, "endpoint not found")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, endpoint.MaxBodySize+1))
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to read request body")
		return
	}
	if int64(len(body)) > endpoint.MaxBodySize {
		s.respondError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}

	if err := Verify(body, r.Header.Get(endpoint.SignatureHeader), endpoint.Secret); err != nil {
		s.logger.Warn("webhook signature rejected", "path", endpoint.Path, "request_id", middleware.GetReqID(r.Context()))
		s.respondError(w, http.StatusForbidden, "forbidden")
		return
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	line := strings.TrimPrefix(strings.TrimSpace(req.Line), "/")
	if line == "" {
		s.respondError(w, http.StatusBadRequest, "line is required")
		return
	}
	label, rest, _ := strings.Cut(line, " ")
	if !s.allowed(endpoint, label) {
		s.respondError(w, http.StatusForbidden, "command not allowed on this endpoint")
		return
	}

	locale := req.Locale
	if locale == "" {
		locale = s.config.Locale
	}
	out := &collector{logger: s.logger, actor: endpoint.Actor}
	actor := command.NewGeneric(endpoint.Actor, locale, out)

	done := make(chan command.Result, 1)
	var res command.Result
	err = s.runner.RunSync(r.Context(), func(ctx context.Context) {
		res = s.dispatcher.ProcessNotify(ctx, actor, label, rest, func(final command.Result) {
			done <- final
		})
	})
	if err != nil {
		if errors.Is(err, scheduler.ErrStopped) {
			s.respondError(w, http.StatusServiceUnavailable, "dispatcher is shutting down")
			return
		}
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	if res.IsContinue() {
		timer := time.NewTimer(s.config.MaxWait)
		select {
		case final := <-done:
			res = final
		case <-timer.C:
		case <-r.Context().Done():
		}
		timer.Stop()
	}

	resp := Response{
		Outcome:  res.Outcome().String(),
		Message:  res.Message(),
		Messages: out.detach(),
		Pending:  res.IsContinue(),
	}
	if err := res.Err(); err != nil {
		resp.Error = err.Error()
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// allowed reports whether the endpoint may run the root command named by
// label. Unknown labels pass through so the dispatcher can report them.
func (s *Server) allowed(ep *Endpoint, label string) bool {
	if len(ep.Commands) == 0 {
		return true
	}
	node, ok := s.dispatcher.Registry().Get(label)
	if !ok {
		return true
	}
	return slices.Contains(ep.Commands, node.Key())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, ErrorResponse{Error: message})
}

// collector buffers actor output while the request is open. Messages sent
// after the response are logged.
type collector struct {
	logger *slog.Logger
	actor  string

	mu       sync.Mutex
	msgs     []string
	detached bool
}

func (c *collector) Send(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.detached {
		c.logger.Info("late webhook message", "actor", c.actor, "text", text)
		return
	}
	c.msgs = append(c.msgs, text)
}

func (c *collector) detach() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.detached = true
	out := c.msgs
	c.msgs = nil
	if out == nil {
		out = []string{}
	}
	return out
}
