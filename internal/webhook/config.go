package webhook

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mattjoyce/cmdgate/internal/config"
)

// DefaultMaxBodySize bounds request bodies when an endpoint sets no limit.
const DefaultMaxBodySize = 64 * 1024

// Config holds webhook server configuration.
type Config struct {
	Listen    string
	Endpoints []Endpoint
	// Locale is used when a request names none.
	Locale string
	// MaxWait caps how long a request waits for a deferred result.
	MaxWait time.Duration
}

// Endpoint binds a path to a generic actor.
type Endpoint struct {
	Path            string
	Actor           string
	Secret          string
	SignatureHeader string
	MaxBodySize     int64
	// Commands lists the allowed root command keys; empty allows all.
	Commands []string
}

// FromConfig converts the webhooks section. Secrets are expected to be
// resolved already.
func FromConfig(wc *config.WebhooksConfig, locale string) (Config, error) {
	if wc == nil {
		return Config{}, fmt.Errorf("webhooks config is nil")
	}

	cfg := Config{
		Listen:    wc.Listen,
		Locale:    locale,
		Endpoints: make([]Endpoint, 0, len(wc.Endpoints)),
	}
	for _, ep := range wc.Endpoints {
		size, err := parseMaxBodySize(ep.MaxBodySize)
		if err != nil {
			return Config{}, fmt.Errorf("webhook endpoint %q: invalid max_body_size %q: %w", ep.Path, ep.MaxBodySize, err)
		}
		cfg.Endpoints = append(cfg.Endpoints, Endpoint{
			Path:            ep.Path,
			Actor:           ep.Actor,
			Secret:          ep.Secret,
			SignatureHeader: ep.SignatureHeader,
			MaxBodySize:     size,
			Commands:        ep.Commands,
		})
	}
	return cfg, nil
}

// parseMaxBodySize parses sizes like "512", "64KB" or "1MB".
func parseMaxBodySize(size string) (int64, error) {
	if size == "" {
		return DefaultMaxBodySize, nil
	}

	upper := strings.ToUpper(strings.TrimSpace(size))
	multiplier := int64(1)
	for _, unit := range []struct {
		suffix string
		factor int64
	}{{"KB", 1 << 10}, {"MB", 1 << 20}} {
		if strings.HasSuffix(upper, unit.suffix) {
			multiplier = unit.factor
			upper = strings.TrimSuffix(upper, unit.suffix)
			break
		}
	}

	value, err := strconv.ParseInt(strings.TrimSpace(upper), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size value: %w", err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("size must be positive")
	}
	if value > (1<<40)/multiplier {
		return 0, fmt.Errorf("size too large")
	}
	return value * multiplier, nil
}
