// Command dice is a sample cmdgate plugin. It reads one request from stdin
// and writes one response to stdout.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strings"

	"github.com/mattjoyce/cmdgate/internal/protocol"
)

const (
	defaultSides    = 6
	defaultMaxSides = 100
	defaultMaxCount = 10
)

type pluginConfig struct {
	MaxSides int
	MaxCount int
}

func main() {
	rng := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	_ = json.NewEncoder(os.Stdout).Encode(handle(os.Stdin, rng))
}

func handle(r io.Reader, rng *rand.Rand) protocol.Response {
	var req protocol.Request
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return errResp(fmt.Sprintf("invalid request JSON: %v", err))
	}
	if req.Protocol != protocol.Version {
		return errResp(fmt.Sprintf("unsupported protocol %d", req.Protocol))
	}

	cfg := parseConfig(req.Config)
	switch strings.TrimSpace(req.Command) {
	case "dice.roll":
		return roll(req, cfg, rng)
	case "dice.pick":
		return pick(req, rng)
	default:
		return errResp(fmt.Sprintf("unknown command: %s", req.Command))
	}
}

func roll(req protocol.Request, cfg pluginConfig, rng *rand.Rand) protocol.Response {
	sides := asInt(req.Args["sides"], defaultSides)
	count := asInt(req.Args["count"], 1)
	if sides < 2 || sides > cfg.MaxSides {
		return errResp(fmt.Sprintf("sides must be between 2 and %d", cfg.MaxSides))
	}
	if count < 1 || count > cfg.MaxCount {
		return errResp(fmt.Sprintf("count must be between 1 and %d", cfg.MaxCount))
	}

	faces := make([]string, count)
	total := 0
	for i := range faces {
		v := rng.IntN(sides) + 1
		total += v
		faces[i] = fmt.Sprint(v)
	}

	msg := fmt.Sprintf("%s rolled %dd%d: %s", req.Actor.Name, count, sides, strings.Join(faces, ", "))
	if count > 1 {
		msg += fmt.Sprintf(" (total %d)", total)
	}
	rolls := asInt(req.State["rolls"], 0) + count
	return protocol.Response{
		Status:       "ok",
		Messages:     []string{msg},
		Logs:         []protocol.LogEntry{{Level: "debug", Message: fmt.Sprintf("total=%d lifetime_rolls=%d", total, rolls)}},
		StateUpdates: map[string]any{"rolls": rolls},
	}
}

func pick(req protocol.Request, rng *rand.Rand) protocol.Response {
	raw, _ := req.Args["choices"].([]any)
	choices := make([]string, 0, len(raw))
	for _, c := range raw {
		if s, ok := c.(string); ok && s != "" {
			choices = append(choices, s)
		}
	}
	if len(choices) < 2 {
		return errResp("give at least two choices")
	}
	return protocol.Response{
		Status:   "ok",
		Messages: []string{"picked " + choices[rng.IntN(len(choices))]},
	}
}

func parseConfig(raw map[string]any) pluginConfig {
	return pluginConfig{
		MaxSides: asInt(raw["max_sides"], defaultMaxSides),
		MaxCount: asInt(raw["max_count"], defaultMaxCount),
	}
}

// asInt reads a JSON number, returning def when v is absent or not a number.
func asInt(v any, def int) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	}
	return def
}

func errResp(msg string) protocol.Response {
	return protocol.Response{Status: "error", Error: msg}
}
