package config

import "time"

// Config represents the complete cmdgate configuration.
type Config struct {
	Service     ServiceConfig            `yaml:"service"`
	State       StateConfig              `yaml:"state"`
	Scheduler   SchedulerConfig          `yaml:"scheduler"`
	Dispatch    DispatchConfig           `yaml:"dispatch"`
	Warmup      WarmupConfig             `yaml:"warmup"`
	Economy     EconomyConfig            `yaml:"economy"`
	API         APIConfig                `yaml:"api,omitempty"`
	Telemetry   TelemetryConfig          `yaml:"telemetry,omitempty"`
	Webhooks    *WebhooksConfig          `yaml:"webhooks,omitempty"`
	Plugins     PluginsConfig            `yaml:"plugins,omitempty"`
	Permissions PermissionsConfig        `yaml:"permissions"`
	Commands    map[string]CommandConfig `yaml:"commands,omitempty"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name      string `yaml:"name"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	// Locale is used for actors that do not report one.
	Locale string `yaml:"locale"`
	// ConsoleOverride lets console invocations bypass modifier checks.
	ConsoleOverride bool `yaml:"console_override"`
}

// StateConfig defines state storage settings.
type StateConfig struct {
	Path string `yaml:"path"`
}

// SchedulerConfig sizes the background worker pool.
type SchedulerConfig struct {
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`
}

// DispatchConfig tunes command resolution.
type DispatchConfig struct {
	// FallbackDepth bounds how many ancestor levels may retry a parse failure.
	// Zero means unbounded.
	FallbackDepth int `yaml:"fallback_depth"`
}

// WarmupConfig selects which actor events cancel a pending warmup.
type WarmupConfig struct {
	CancelOnMove   bool `yaml:"cancel_on_move"`
	CancelOnDamage bool `yaml:"cancel_on_damage"`
}

// EconomyConfig defines balance settings used by the cost modifier.
type EconomyConfig struct {
	StartingBalance float64 `yaml:"starting_balance"`
	Currency        string  `yaml:"currency"`
}

// APIConfig defines HTTP API server settings.
type APIConfig struct {
	Enabled bool          `yaml:"enabled"`
	Listen  string        `yaml:"listen"`
	Auth    APIAuthConfig `yaml:"auth"`
	// RateLimit is requests per second per client; zero disables limiting.
	RateLimit float64 `yaml:"rate_limit"`
	Burst     int     `yaml:"burst"`
}

// APIAuthConfig defines API authentication settings.
type APIAuthConfig struct {
	// APIKey is a single bearer token with full access.
	APIKey string     `yaml:"api_key"`
	Tokens []APIToken `yaml:"tokens,omitempty"`
}

// APIToken defines a bearer token and its scopes.
type APIToken struct {
	Token  string   `yaml:"token"`
	Scopes []string `yaml:"scopes"`
}

// TelemetryConfig enables OpenTelemetry tracing of invocations. Spans are
// exported over OTLP/HTTP only when an endpoint is set.
type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	// SampleRatio is the fraction of invocations traced, 0..1.
	SampleRatio float64 `yaml:"sample_ratio"`
}

// WebhooksConfig exposes HMAC-signed endpoints that dispatch command lines as
// generic actors, for chat bridges and automation.
type WebhooksConfig struct {
	Listen    string            `yaml:"listen"`
	Endpoints []WebhookEndpoint `yaml:"endpoints"`
}

// WebhookEndpoint binds one path to a generic actor and its secret.
type WebhookEndpoint struct {
	Path  string `yaml:"path"`
	Actor string `yaml:"actor"`
	// Secret signs request bodies; prefer ${ENV_VAR} references.
	Secret          string `yaml:"secret"`
	SignatureHeader string `yaml:"signature_header"`
	// MaxBodySize accepts plain bytes or a KB/MB suffix. Default 64KB.
	MaxBodySize string `yaml:"max_body_size,omitempty"`
	// Commands, when set, limits the endpoint to these root command keys.
	Commands []string `yaml:"commands,omitempty"`
}

// PluginsConfig locates script commands. Each plugin directory holds a
// manifest.yaml and an executable entrypoint.
type PluginsConfig struct {
	Dirs []string `yaml:"dirs,omitempty"`
	// Timeout bounds one plugin run unless the manifest sets its own.
	Timeout time.Duration `yaml:"timeout,omitempty"`
	// Config is passed verbatim to the plugin of the same name.
	Config map[string]map[string]any `yaml:"config,omitempty"`
}

// PermissionsConfig is the file-backed permission model.
type PermissionsConfig struct {
	DefaultGroup string                   `yaml:"default_group"`
	Groups       map[string]GroupConfig   `yaml:"groups"`
	Subjects     map[string]SubjectConfig `yaml:"subjects"`
}

// GroupConfig is a named permission set. A permission prefixed with "-" is
// denied even if granted elsewhere.
type GroupConfig struct {
	Inherit     []string           `yaml:"inherit,omitempty"`
	Permissions []string           `yaml:"permissions"`
	Options     map[string]float64 `yaml:"options,omitempty"`
}

// SubjectConfig assigns groups, permissions and options to one actor name.
type SubjectConfig struct {
	Groups      []string           `yaml:"groups,omitempty"`
	Permissions []string           `yaml:"permissions,omitempty"`
	Options     map[string]float64 `yaml:"options,omitempty"`
}

// CommandConfig overrides the defaults of one command by key. A nil field
// keeps the command's own default; an explicit zero switches it off.
type CommandConfig struct {
	Cooldown *time.Duration `yaml:"cooldown,omitempty"`
	Warmup   *time.Duration `yaml:"warmup,omitempty"`
	Cost     *float64       `yaml:"cost,omitempty"`
	Disabled bool           `yaml:"disabled,omitempty"`
}

// Apply returns the given defaults with every field set in c replacing its
// counterpart.
func (c CommandConfig) Apply(cooldown, warmup time.Duration, cost float64) (time.Duration, time.Duration, float64) {
	if c.Cooldown != nil {
		cooldown = *c.Cooldown
	}
	if c.Warmup != nil {
		warmup = *c.Warmup
	}
	if c.Cost != nil {
		cost = *c.Cost
	}
	return cooldown, warmup, cost
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:      "cmdgate",
			LogLevel:  "info",
			LogFormat: "json",
			Locale:    "en-US",
		},
		State: StateConfig{
			Path: "./data/state.db",
		},
		Scheduler: SchedulerConfig{
			Workers:   4,
			QueueSize: 256,
		},
		Warmup: WarmupConfig{
			CancelOnMove:   true,
			CancelOnDamage: true,
		},
		Economy: EconomyConfig{
			StartingBalance: 100,
			Currency:        "coins",
		},
		API: APIConfig{
			Enabled:   false,
			Listen:    "127.0.0.1:8080",
			RateLimit: 10,
			Burst:     20,
		},
		Telemetry: TelemetryConfig{
			SampleRatio: 1,
		},
		Plugins: PluginsConfig{
			Timeout: 10 * time.Second,
		},
		Permissions: PermissionsConfig{
			DefaultGroup: "default",
			Groups:       make(map[string]GroupConfig),
			Subjects:     make(map[string]SubjectConfig),
		},
		Commands: make(map[string]CommandConfig),
	}
}
