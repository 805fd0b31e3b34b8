package api

import "github.com/mattjoyce/cmdgate/internal/audit"

// DispatchRequest is the JSON body for POST /v1/dispatch.
type DispatchRequest struct {
	// Actor names the invoking player or generic actor. Ignored for console.
	Actor string `json:"actor"`
	// Kind is "player" (default), "console" or "generic".
	Kind     string           `json:"kind,omitempty"`
	Locale   string           `json:"locale,omitempty"`
	Location *LocationPayload `json:"location,omitempty"`
	// Line is the command line, with or without a leading slash.
	Line string `json:"line"`
	// WaitMS waits up to this long for a deferred invocation to resolve.
	WaitMS int `json:"wait_ms,omitempty"`
}

type LocationPayload struct {
	World string  `json:"world"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
}

// DispatchResponse reports the outcome seen by the request.
type DispatchResponse struct {
	Outcome string `json:"outcome"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	// Messages are the texts delivered to the actor while the request was open.
	Messages []string `json:"messages"`
	// Pending is true when the invocation had not resolved by the time the
	// response was written. Later messages are published as actor.message events.
	Pending bool `json:"pending"`
}

// ActorEventRequest is the JSON body for POST /v1/actors/{name}/events.
type ActorEventRequest struct {
	Type string `json:"type"`
}

type ActorEventResponse struct {
	Actor     string `json:"actor"`
	Type      string `json:"type"`
	Cancelled bool   `json:"cancelled"`
}

// CommandInfo describes one node of the command tree.
type CommandInfo struct {
	Key         string        `json:"key"`
	Path        string        `json:"path"`
	Aliases     []string      `json:"aliases"`
	Permissions []string      `json:"permissions,omitempty"`
	Source      string        `json:"source"`
	Async       bool          `json:"async,omitempty"`
	Usage       string        `json:"usage"`
	Children    []CommandInfo `json:"children,omitempty"`
}

type CommandListResponse struct {
	Commands []CommandInfo `json:"commands"`
}

type LogResponse struct {
	Entries []audit.Entry `json:"entries"`
}

// ErrorResponse is returned on errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Commands      int    `json:"commands"`
}
