package config

import (
	"fmt"
	"sort"
	"strings"
)

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate performs static validation on the configuration.
func (c *Config) Validate() error {
	if !validLogLevels[strings.ToLower(c.Service.LogLevel)] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", c.Service.LogLevel)
	}
	switch c.Service.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("service.log_format must be json or text (got %q)", c.Service.LogFormat)
	}

	if c.State.Path == "" {
		return fmt.Errorf("state.path is required")
	}

	if c.Scheduler.Workers <= 0 {
		return fmt.Errorf("scheduler.workers must be positive")
	}
	if c.Scheduler.QueueSize < 0 {
		return fmt.Errorf("scheduler.queue_size must not be negative")
	}
	if c.Dispatch.FallbackDepth < 0 {
		return fmt.Errorf("dispatch.fallback_depth must not be negative")
	}
	if c.Economy.StartingBalance < 0 {
		return fmt.Errorf("economy.starting_balance must not be negative")
	}

	if c.API.Enabled {
		if c.API.Listen == "" {
			return fmt.Errorf("api.listen is required when the API is enabled")
		}
		if err := unresolved("api.auth.api_key", c.API.Auth.APIKey); err != nil {
			return err
		}
		for i, tok := range c.API.Auth.Tokens {
			if tok.Token == "" {
				return fmt.Errorf("api.auth.tokens[%d].token is required", i)
			}
			if err := unresolved(fmt.Sprintf("api.auth.tokens[%d].token", i), tok.Token); err != nil {
				return err
			}
			if len(tok.Scopes) == 0 {
				return fmt.Errorf("api.auth.tokens[%d].scopes must be non-empty", i)
			}
		}
		if c.API.RateLimit < 0 || c.API.Burst < 0 {
			return fmt.Errorf("api.rate_limit and api.burst must not be negative")
		}
	}

	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry.sample_ratio must be between 0 and 1")
	}
	if err := unresolved("telemetry.endpoint", c.Telemetry.Endpoint); err != nil {
		return err
	}

	if err := c.validateWebhooks(); err != nil {
		return err
	}

	if c.Plugins.Timeout < 0 {
		return fmt.Errorf("plugins.timeout must not be negative")
	}
	for i, dir := range c.Plugins.Dirs {
		if strings.TrimSpace(dir) == "" {
			return fmt.Errorf("plugins.dirs[%d] is empty", i)
		}
	}

	if err := c.validatePermissions(); err != nil {
		return err
	}

	for _, key := range sortedKeys(c.Commands) {
		cmd := c.Commands[key]
		cooldown, warmup, cost := cmd.Apply(0, 0, 0)
		if cooldown < 0 || warmup < 0 || cost < 0 {
			return fmt.Errorf("commands.%s: cooldown, warmup and cost must not be negative", key)
		}
	}
	return nil
}

func (c *Config) validatePermissions() error {
	p := c.Permissions
	if p.DefaultGroup != "" && len(p.Groups) > 0 {
		if _, ok := p.Groups[p.DefaultGroup]; !ok {
			return fmt.Errorf("permissions.default_group references unknown group %q", p.DefaultGroup)
		}
	}
	for _, name := range sortedKeys(p.Groups) {
		for _, parent := range p.Groups[name].Inherit {
			if _, ok := p.Groups[parent]; !ok {
				return fmt.Errorf("permissions.groups.%s inherits unknown group %q", name, parent)
			}
		}
	}
	for _, name := range sortedKeys(p.Subjects) {
		for _, g := range p.Subjects[name].Groups {
			if _, ok := p.Groups[g]; !ok {
				return fmt.Errorf("permissions.subjects.%s references unknown group %q", name, g)
			}
		}
	}
	return nil
}

// unresolved rejects values that still hold a ${VAR} placeholder.
func unresolved(field, value string) error {
	matches := envVarPattern.FindStringSubmatch(value)
	if len(matches) > 1 {
		return fmt.Errorf("%s: environment variable ${%s} is not set", field, matches[1])
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (c *Config) validateWebhooks() error {
	if c.Webhooks == nil || len(c.Webhooks.Endpoints) == 0 {
		return nil
	}
	if c.Webhooks.Listen == "" {
		return fmt.Errorf("webhooks.listen is required when endpoints are configured")
	}
	seen := make(map[string]bool, len(c.Webhooks.Endpoints))
	for i, ep := range c.Webhooks.Endpoints {
		field := fmt.Sprintf("webhooks.endpoints[%d]", i)
		if !strings.HasPrefix(ep.Path, "/") {
			return fmt.Errorf("%s.path must start with /", field)
		}
		if seen[ep.Path] {
			return fmt.Errorf("%s.path %q is duplicated", field, ep.Path)
		}
		seen[ep.Path] = true
		if ep.Actor == "" {
			return fmt.Errorf("%s.actor is required", field)
		}
		if ep.Secret == "" {
			return fmt.Errorf("%s.secret is required", field)
		}
		if err := unresolved(field+".secret", ep.Secret); err != nil {
			return err
		}
		if ep.SignatureHeader == "" {
			return fmt.Errorf("%s.signature_header is required", field)
		}
	}
	return nil
}
