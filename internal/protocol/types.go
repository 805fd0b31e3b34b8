// Package protocol defines the JSON envelopes exchanged with plugin
// processes. One request is written to the plugin's stdin; one response is
// read from its stdout.
package protocol

import "time"

// Version is the only protocol version spoken.
const Version = 1

// Request is sent to a plugin for one invocation.
type Request struct {
	Protocol     int    `json:"protocol"`
	InvocationID string `json:"invocation_id"`
	// Command is the dotted key of the command being run.
	Command string         `json:"command"`
	Actor   Actor          `json:"actor"`
	Args    map[string]any `json:"args"`
	Config  map[string]any `json:"config,omitempty"`
	// State is what the plugin stored for this actor, {} when nothing is.
	State      map[string]any `json:"state,omitempty"`
	DeadlineAt time.Time      `json:"deadline_at"`
}

// Actor describes who ran the command.
type Actor struct {
	Name     string    `json:"name"`
	Kind     string    `json:"kind"`
	ID       string    `json:"id,omitempty"`
	Locale   string    `json:"locale"`
	Location *Location `json:"location,omitempty"`
}

// Location is a player's position.
type Location struct {
	World string  `json:"world"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
}

// Response is read back from the plugin.
type Response struct {
	Status string `json:"status"` // ok | error
	// Error is shown to the actor when Status is error.
	Error    string     `json:"error,omitempty"`
	Messages []string   `json:"messages,omitempty"`
	Logs     []LogEntry `json:"logs,omitempty"`
	// StateUpdates are merged into the actor's stored state on success. A
	// null value deletes the key.
	StateUpdates map[string]any `json:"state_updates,omitempty"`
}

// LogEntry represents a log message from a plugin.
type LogEntry struct {
	Level   string `json:"level"` // info | warn | error | debug
	Message string `json:"message"`
}

// OK reports whether the plugin succeeded.
func (r *Response) OK() bool { return r.Status == "ok" }
