package protocol

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestEncodeRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     *Request
		wantErr bool
		checkFn func(t *testing.T, output string)
	}{
		{
			name: "player invocation",
			req: &Request{
				Protocol:     Version,
				InvocationID: "inv-123",
				Command:      "dice.roll",
				Actor: Actor{
					Name:     "alice",
					Kind:     "player",
					ID:       "5f0c",
					Locale:   "en-US",
					Location: &Location{World: "overworld", X: 1, Y: 64, Z: -3},
				},
				Args:       map[string]any{"dice": "2d6"},
				DeadlineAt: time.Date(2026, 2, 8, 12, 0, 0, 0, time.UTC),
			},
			checkFn: func(t *testing.T, output string) {
				for _, want := range []string{
					`"protocol":1`,
					`"invocation_id":"inv-123"`,
					`"command":"dice.roll"`,
					`"world":"overworld"`,
					`"dice":"2d6"`,
				} {
					if !strings.Contains(output, want) {
						t.Errorf("missing %s in %s", want, output)
					}
				}
				if !strings.HasSuffix(output, "\n") {
					t.Error("request should be newline terminated")
				}
			},
		},
		{
			name: "console invocation omits identity",
			req: &Request{
				Protocol: Version,
				Command:  "dice",
				Actor:    Actor{Name: "console", Kind: "console", Locale: "en-US"},
				Args:     map[string]any{},
			},
			checkFn: func(t *testing.T, output string) {
				if strings.Contains(output, `"id"`) || strings.Contains(output, `"location"`) {
					t.Errorf("console request carries identity fields: %s", output)
				}
				if strings.Contains(output, `"config"`) {
					t.Errorf("empty config should be omitted: %s", output)
				}
			},
		},
		{
			name:    "unsupported protocol version",
			req:     &Request{Protocol: 2, Command: "dice"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := EncodeRequest(&buf, tt.req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("EncodeRequest() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && tt.checkFn != nil {
				tt.checkFn(t, buf.String())
			}
		})
	}
}

func TestDecodeResponse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		checkFn func(t *testing.T, resp *Response)
	}{
		{
			name:  "ok with messages",
			input: `{"status":"ok","messages":["You rolled 7.","Nice."]}`,
			checkFn: func(t *testing.T, resp *Response) {
				if !resp.OK() {
					t.Errorf("want ok, got %s", resp.Status)
				}
				if len(resp.Messages) != 2 || resp.Messages[0] != "You rolled 7." {
					t.Errorf("messages = %v", resp.Messages)
				}
			},
		},
		{
			name:  "error response",
			input: `{"status":"error","error":"no dice"}`,
			checkFn: func(t *testing.T, resp *Response) {
				if resp.OK() {
					t.Error("want not ok")
				}
				if resp.Error != "no dice" {
					t.Errorf("want error message, got %s", resp.Error)
				}
			},
		},
		{
			name:  "response with logs",
			input: `{"status":"ok","logs":[{"level":"info","message":"test log"}]}`,
			checkFn: func(t *testing.T, resp *Response) {
				if len(resp.Logs) != 1 || resp.Logs[0].Level != "info" {
					t.Errorf("logs = %v", resp.Logs)
				}
			},
		},
		{
			name:  "response with state updates",
			input: `{"status":"ok","state_updates":{"rolls":3,"last":null}}`,
			checkFn: func(t *testing.T, resp *Response) {
				if resp.StateUpdates["rolls"] != float64(3) {
					t.Errorf("state_updates = %v", resp.StateUpdates)
				}
				if v, ok := resp.StateUpdates["last"]; !ok || v != nil {
					t.Errorf("state_updates.last = %v, %v; want explicit null", v, ok)
				}
			},
		},
		{name: "unknown field", input: `{"status":"ok","retry_after":5}`, wantErr: true},
		{name: "missing status field", input: `{"messages":[]}`, wantErr: true},
		{name: "invalid status value", input: `{"status":"unknown"}`, wantErr: true},
		{name: "error status without message", input: `{"status":"error"}`, wantErr: true},
		{name: "invalid JSON", input: `{not json}`, wantErr: true},
		{name: "empty input", input: ``, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := DecodeResponse(strings.NewReader(tt.input))
			if (err != nil) != tt.wantErr {
				t.Errorf("DecodeResponse() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && tt.checkFn != nil {
				tt.checkFn(t, resp)
			}
		})
	}
}

func TestDecodeResponseLenient(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "valid JSON response", input: `{"status":"ok"}`},
		{name: "unknown fields tolerated", input: `{"status":"ok","extra":1}`},
		{name: "invalid JSON captures raw data", input: `not json at all`, wantErr: true},
		{name: "empty output", input: ``, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, rawData, err := DecodeResponseLenient(strings.NewReader(tt.input))
			if (err != nil) != tt.wantErr {
				t.Errorf("DecodeResponseLenient() error = %v, wantErr %v", err, tt.wantErr)
			}
			if string(rawData) != tt.input {
				t.Errorf("raw data = %q, want %q", rawData, tt.input)
			}
			if !tt.wantErr && resp == nil {
				t.Error("expected response to be parsed")
			}
		})
	}
}
