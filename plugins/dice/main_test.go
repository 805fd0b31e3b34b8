package main

import (
	"bytes"
	"encoding/json"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/mattjoyce/cmdgate/internal/protocol"
)

func request(t *testing.T, command string, args, cfg map[string]any) *bytes.Buffer {
	t.Helper()
	return requestWithState(t, command, args, cfg, nil)
}

func requestWithState(t *testing.T, command string, args, cfg, st map[string]any) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	err := protocol.EncodeRequest(&buf, &protocol.Request{
		Protocol: protocol.Version,
		Command:  command,
		Actor:    protocol.Actor{Name: "alice", Kind: "player"},
		Args:     args,
		Config:   cfg,
		State:    st,
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return &buf
}

func testRand() *rand.Rand { return rand.New(rand.NewPCG(1, 2)) }

func TestRollDefaults(t *testing.T) {
	resp := handle(request(t, "dice.roll", nil, nil), testRand())
	if !resp.OK() {
		t.Fatalf("status = %q, error = %q", resp.Status, resp.Error)
	}
	if len(resp.Messages) != 1 || !strings.HasPrefix(resp.Messages[0], "alice rolled 1d6: ") {
		t.Fatalf("messages = %v", resp.Messages)
	}
}

func TestRollMany(t *testing.T) {
	resp := handle(request(t, "dice.roll", map[string]any{"sides": 20, "count": 3}, nil), testRand())
	if !resp.OK() {
		t.Fatalf("status = %q, error = %q", resp.Status, resp.Error)
	}
	msg := resp.Messages[0]
	if !strings.HasPrefix(msg, "alice rolled 3d20: ") || !strings.Contains(msg, "(total ") {
		t.Fatalf("message = %q", msg)
	}
}

func TestRollCountsLifetimeRolls(t *testing.T) {
	resp := handle(request(t, "dice.roll", map[string]any{"count": 2}, nil), testRand())
	if got := resp.StateUpdates["rolls"]; got != 2 {
		t.Fatalf("rolls = %v, want 2", got)
	}

	resp = handle(requestWithState(t, "dice.roll", nil, nil, map[string]any{"rolls": 5}), testRand())
	if got := resp.StateUpdates["rolls"]; got != 6 {
		t.Fatalf("rolls = %v, want 6", got)
	}
}

func TestRollLimits(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
		cfg  map[string]any
		want string
	}{
		{name: "one side", args: map[string]any{"sides": 1}, want: "sides must be between 2 and 100"},
		{name: "configured max", args: map[string]any{"sides": 50}, cfg: map[string]any{"max_sides": 20}, want: "between 2 and 20"},
		{name: "too many", args: map[string]any{"count": 11}, want: "count must be between 1 and 10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := handle(request(t, "dice.roll", tt.args, tt.cfg), testRand())
			if resp.Status != "error" || !strings.Contains(resp.Error, tt.want) {
				t.Fatalf("resp = %+v, want error containing %q", resp, tt.want)
			}
		})
	}
}

func TestPick(t *testing.T) {
	resp := handle(request(t, "dice.pick", map[string]any{"choices": []any{"tea", "coffee"}}, nil), testRand())
	if !resp.OK() {
		t.Fatalf("status = %q, error = %q", resp.Status, resp.Error)
	}
	if got := resp.Messages[0]; got != "picked tea" && got != "picked coffee" {
		t.Fatalf("message = %q", got)
	}

	resp = handle(request(t, "dice.pick", map[string]any{"choices": []any{"tea"}}, nil), testRand())
	if resp.Status != "error" {
		t.Fatalf("single choice should fail, got %+v", resp)
	}
}

func TestHandleRejectsBadInput(t *testing.T) {
	if resp := handle(strings.NewReader("{"), testRand()); resp.Status != "error" {
		t.Fatalf("bad JSON: %+v", resp)
	}
	if resp := handle(request(t, "dice.nope", nil, nil), testRand()); !strings.Contains(resp.Error, "unknown command") {
		t.Fatalf("unknown command: %+v", resp)
	}
}

func TestResponseDecodesStrictly(t *testing.T) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(handle(request(t, "dice.roll", nil, nil), testRand())); err != nil {
		t.Fatal(err)
	}
	if _, err := protocol.DecodeResponse(&buf); err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
}
