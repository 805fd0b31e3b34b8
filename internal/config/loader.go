package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces environment overrides, e.g. CMDGATE_API_LISTEN.
const EnvPrefix = "CMDGATE_"

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// envOverrides lists the settings that may be replaced from the environment.
// Pointers distinguish "unset" from a zero value.
type envOverrides struct {
	LogLevel        string   `env:"SERVICE_LOG_LEVEL"`
	LogFormat       string   `env:"SERVICE_LOG_FORMAT"`
	Locale          string   `env:"SERVICE_LOCALE"`
	ConsoleOverride *bool    `env:"SERVICE_CONSOLE_OVERRIDE"`
	StatePath       string   `env:"STATE_PATH"`
	Workers         *int     `env:"SCHEDULER_WORKERS"`
	FallbackDepth   *int     `env:"DISPATCH_FALLBACK_DEPTH"`
	APIEnabled      *bool    `env:"API_ENABLED"`
	APIListen       string   `env:"API_LISTEN"`
	APIKey          string   `env:"API_KEY"`
	RateLimit       *float64 `env:"API_RATE_LIMIT"`
	OTelEnabled     *bool    `env:"TELEMETRY_ENABLED"`
	OTelEndpoint    string   `env:"TELEMETRY_ENDPOINT"`
	PluginDirs      []string `env:"PLUGINS_DIRS" envSeparator:","`
}

// Load reads and parses configuration from a file, applies defaults and
// environment overrides, and validates the result.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}
	if info.IsDir() {
		absPath = filepath.Join(absPath, "config.yaml")
		if _, err := os.Stat(absPath); err != nil {
			return nil, fmt.Errorf("directory provided but config.yaml not found: %s", absPath)
		}
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Parse decodes YAML into a Config seeded with Defaults. ${VAR} references are
// expanded from the environment first.
func Parse(data []byte) (*Config, error) {
	cfg := Defaults()
	interpolated := interpolateEnv(string(data))
	if err := yaml.Unmarshal([]byte(interpolated), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	ensureMaps(cfg)
	return cfg, nil
}

// ensureMaps replaces maps an explicit null in the YAML left nil. Scalars keep
// whatever the file says; their defaults come from Defaults.
func ensureMaps(cfg *Config) {
	if cfg.Permissions.Groups == nil {
		cfg.Permissions.Groups = make(map[string]GroupConfig)
	}
	if cfg.Permissions.Subjects == nil {
		cfg.Permissions.Subjects = make(map[string]SubjectConfig)
	}
	if cfg.Commands == nil {
		cfg.Commands = make(map[string]CommandConfig)
	}
}

func applyEnv(cfg *Config) error {
	var o envOverrides
	if err := env.ParseWithOptions(&o, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	if o.LogLevel != "" {
		cfg.Service.LogLevel = o.LogLevel
	}
	if o.LogFormat != "" {
		cfg.Service.LogFormat = o.LogFormat
	}
	if o.Locale != "" {
		cfg.Service.Locale = o.Locale
	}
	if o.ConsoleOverride != nil {
		cfg.Service.ConsoleOverride = *o.ConsoleOverride
	}
	if o.StatePath != "" {
		cfg.State.Path = o.StatePath
	}
	if o.Workers != nil {
		cfg.Scheduler.Workers = *o.Workers
	}
	if o.FallbackDepth != nil {
		cfg.Dispatch.FallbackDepth = *o.FallbackDepth
	}
	if o.APIEnabled != nil {
		cfg.API.Enabled = *o.APIEnabled
	}
	if o.APIListen != "" {
		cfg.API.Listen = o.APIListen
	}
	if o.APIKey != "" {
		cfg.API.Auth.APIKey = o.APIKey
	}
	if o.OTelEnabled != nil {
		cfg.Telemetry.Enabled = *o.OTelEnabled
	}
	if o.OTelEndpoint != "" {
		cfg.Telemetry.Endpoint = o.OTelEndpoint
	}
	if o.RateLimit != nil {
		cfg.API.RateLimit = *o.RateLimit
	}
	if len(o.PluginDirs) > 0 {
		cfg.Plugins.Dirs = o.PluginDirs
	}
	return nil
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is (not expanded).
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}
