package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mattjoyce/cmdgate/internal/args"
	"github.com/mattjoyce/cmdgate/internal/audit"
	"github.com/mattjoyce/cmdgate/internal/auth"
	"github.com/mattjoyce/cmdgate/internal/command"
	"github.com/mattjoyce/cmdgate/internal/events"
	"github.com/mattjoyce/cmdgate/internal/scheduler"
	"github.com/mattjoyce/cmdgate/internal/warmup"
)

// handleHealthz handles GET /healthz (no auth).
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		Commands:      len(s.deps.Dispatcher.Registry().All()),
	})
}

// handleDispatch handles POST /v1/dispatch.
func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	var req DispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	line := strings.TrimPrefix(strings.TrimSpace(req.Line), "/")
	if line == "" {
		s.writeError(w, http.StatusBadRequest, "line is required")
		return
	}

	kind := command.KindPlayer
	if req.Kind != "" {
		k, ok := command.ParseKind(req.Kind)
		if !ok {
			s.writeError(w, http.StatusBadRequest, "unknown actor kind")
			return
		}
		kind = k
	}
	required := auth.ScopeDispatchPlayer
	if kind == command.KindConsole {
		required = auth.ScopeDispatchConsole
	}
	principal, _ := auth.PrincipalFromContext(r.Context())
	if !auth.HasAnyScope(principal, required) {
		s.writeError(w, http.StatusForbidden, "insufficient scope for actor kind")
		return
	}
	if kind != command.KindConsole && strings.TrimSpace(req.Actor) == "" {
		s.writeError(w, http.StatusBadRequest, "actor is required")
		return
	}

	locale := req.Locale
	if locale == "" {
		locale = s.config.Locale
	}
	out := &collector{hub: s.deps.Events, kind: kind.String()}
	var actor *command.Actor
	switch kind {
	case command.KindConsole:
		actor = command.NewConsole(locale, out)
	case command.KindPlayer:
		var loc *command.Location
		if req.Location != nil {
			loc = &command.Location{World: req.Location.World, X: req.Location.X, Y: req.Location.Y, Z: req.Location.Z}
		}
		actor = command.NewPlayer(req.Actor, locale, loc, out)
	default:
		actor = command.NewGeneric(req.Actor, locale, out)
	}
	out.actor = actor.Name()

	label, rest, _ := strings.Cut(line, " ")
	done := make(chan command.Result, 1)
	var res command.Result
	err := s.deps.Runner.RunSync(r.Context(), func(ctx context.Context) {
		res = s.deps.Dispatcher.ProcessNotify(ctx, actor, label, rest, func(final command.Result) {
			done <- final
		})
	})
	if err != nil {
		if errors.Is(err, scheduler.ErrStopped) {
			s.writeError(w, http.StatusServiceUnavailable, "dispatcher is shutting down")
			return
		}
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	if res.IsContinue() && req.WaitMS > 0 {
		wait := min(time.Duration(req.WaitMS)*time.Millisecond, s.config.MaxWait)
		timer := time.NewTimer(wait)
		select {
		case final := <-done:
			res = final
		case <-timer.C:
		case <-r.Context().Done():
		}
		timer.Stop()
	}

	resp := DispatchResponse{
		Outcome:  res.Outcome().String(),
		Message:  res.Message(),
		Messages: out.detach(),
		Pending:  res.IsContinue(),
	}
	if err := res.Err(); err != nil {
		resp.Error = err.Error()
	}
	respondJSON(w, http.StatusOK, resp)
}

// collector buffers actor output while the request is open and publishes
// anything sent afterwards as actor.message events.
type collector struct {
	hub   *events.Hub
	actor string
	kind  string

	mu       sync.Mutex
	msgs     []string
	detached bool
}

func (c *collector) Send(text string) {
	c.mu.Lock()
	if !c.detached {
		c.msgs = append(c.msgs, text)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	c.hub.Publish(events.ActorMessage, map[string]any{
		"actor": c.actor,
		"kind":  c.kind,
		"text":  text,
	})
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

// handleActorEvent handles POST /v1/actors/{name}/events.
func (s *Server) handleActorEvent(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req ActorEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	ev, ok := warmup.ParseEvent(req.Type)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "unknown event type")
		return
	}
	if s.deps.Warmups == nil {
		s.writeError(w, http.StatusServiceUnavailable, "warmups are not enabled")
		return
	}

	cancelled := s.deps.Warmups.Notify(command.PlayerID(name).String(), ev)
	respondJSON(w, http.StatusOK, ActorEventResponse{Actor: name, Type: ev.String(), Cancelled: cancelled})
}

// handleCommands handles GET /v1/commands.
func (s *Server) handleCommands(w http.ResponseWriter, r *http.Request) {
	roots := s.deps.Dispatcher.Registry().All()
	resp := CommandListResponse{Commands: make([]CommandInfo, 0, len(roots))}
	for _, n := range roots {
		resp.Commands = append(resp.Commands, describe(n))
	}
	respondJSON(w, http.StatusOK, resp)
}

func describe(n *command.Node) CommandInfo {
	meta := n.Metadata()
	info := CommandInfo{
		Key:         n.Key(),
		Path:        n.Path(),
		Aliases:     meta.Aliases,
		Permissions: meta.Permissions,
		Source:      meta.Source.String(),
		Async:       meta.Async,
		Usage:       strings.TrimSpace("/" + n.Path() + " " + args.Usage(meta.Parameters)),
	}
	for _, child := range n.Children() {
		info.Children = append(info.Children, describe(child))
	}
	return info
}

// handleLog handles GET /v1/log.
func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	if s.deps.Log == nil {
		s.writeError(w, http.StatusNotFound, "command log is not enabled")
		return
	}
	q := r.URL.Query()
	f := audit.Filter{Command: q.Get("command"), Actor: q.Get("actor")}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		f.Limit = n
	}

	entries, err := s.deps.Log.Recent(r.Context(), f)
	if err != nil {
		s.logger.Error("failed to read command log", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to read command log")
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	respondJSON(w, http.StatusOK, LogResponse{Entries: entries})
}

// respondJSON is a helper to write JSON responses.
func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
