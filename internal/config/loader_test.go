package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		env     map[string]string
		wantErr bool
		checkFn func(t *testing.T, cfg *Config)
	}{
		{
			name: "minimal valid config",
			yaml: `
service:
  log_level: debug
state:
  path: ./test.db
`,
			checkFn: func(t *testing.T, cfg *Config) {
				if cfg.Service.LogLevel != "debug" {
					t.Error("log_level not parsed")
				}
				if cfg.State.Path != "./test.db" {
					t.Error("state.path not parsed")
				}
				if cfg.Scheduler.Workers != 4 {
					t.Errorf("scheduler.workers = %d, want default 4", cfg.Scheduler.Workers)
				}
				if cfg.Service.Locale != "en-US" {
					t.Errorf("service.locale = %q, want en-US", cfg.Service.Locale)
				}
			},
		},
		{
			name: "commands and permissions",
			yaml: `
dispatch:
  fallback_depth: 1
permissions:
  default_group: default
  groups:
    default:
      permissions: [kit, kit.list]
    admin:
      inherit: [default]
      permissions: ["*"]
      options:
        cmdgate.kit.create.cooldown: 0
  subjects:
    alice:
      groups: [admin]
commands:
  kit.create:
    cooldown: 5s
    cost: 10
`,
			checkFn: func(t *testing.T, cfg *Config) {
				if cfg.Dispatch.FallbackDepth != 1 {
					t.Error("dispatch.fallback_depth not parsed")
				}
				kc, ok := cfg.Commands["kit.create"]
				if !ok {
					t.Fatal("kit.create command config not found")
				}
				if kc.Cooldown == nil || *kc.Cooldown != 5*time.Second || kc.Cost == nil || *kc.Cost != 10 {
					t.Errorf("kit.create = %+v", kc)
				}
				if got := cfg.Permissions.Subjects["alice"].Groups; len(got) != 1 || got[0] != "admin" {
					t.Errorf("alice groups = %v", got)
				}
				if _, ok := cfg.Permissions.Groups["admin"].Options["cmdgate.kit.create.cooldown"]; !ok {
					t.Error("group options not parsed")
				}
			},
		},
		{
			name: "env var interpolation",
			yaml: `
state:
  path: ${CMDGATE_TEST_DB}
api:
  enabled: true
  auth:
    api_key: ${CMDGATE_TEST_KEY}
`,
			env: map[string]string{
				"CMDGATE_TEST_DB":  "/tmp/test.db",
				"CMDGATE_TEST_KEY": "secret123",
			},
			checkFn: func(t *testing.T, cfg *Config) {
				if cfg.State.Path != "/tmp/test.db" {
					t.Errorf("state.path = %q", cfg.State.Path)
				}
				if cfg.API.Auth.APIKey != "secret123" {
					t.Error("api_key not interpolated")
				}
			},
		},
		{
			name: "env overrides",
			yaml: `
service:
  log_level: info
`,
			env: map[string]string{
				"CMDGATE_SERVICE_LOG_LEVEL":       "warn",
				"CMDGATE_DISPATCH_FALLBACK_DEPTH": "2",
				"CMDGATE_API_LISTEN":              "0.0.0.0:9000",
			},
			checkFn: func(t *testing.T, cfg *Config) {
				if cfg.Service.LogLevel != "warn" {
					t.Errorf("log_level = %q, want warn", cfg.Service.LogLevel)
				}
				if cfg.Dispatch.FallbackDepth != 2 {
					t.Errorf("fallback_depth = %d, want 2", cfg.Dispatch.FallbackDepth)
				}
				if cfg.API.Listen != "0.0.0.0:9000" {
					t.Errorf("api.listen = %q", cfg.API.Listen)
				}
			},
		},
		{
			name: "telemetry",
			yaml: `
telemetry:
  enabled: true
`,
			env: map[string]string{
				"CMDGATE_TELEMETRY_ENDPOINT": "http://localhost:4318",
			},
			checkFn: func(t *testing.T, cfg *Config) {
				if !cfg.Telemetry.Enabled || cfg.Telemetry.Endpoint != "http://localhost:4318" {
					t.Errorf("telemetry = %+v", cfg.Telemetry)
				}
				if cfg.Telemetry.SampleRatio != 1 {
					t.Errorf("sample_ratio = %v, want default 1", cfg.Telemetry.SampleRatio)
				}
			},
		},
		{
			name: "webhooks",
			yaml: `
webhooks:
  listen: 127.0.0.1:8081
  endpoints:
    - path: /hooks/chat
      actor: chatbridge
      secret: ${CMDGATE_TEST_HOOK_SECRET}
      signature_header: X-Signature-256
      commands: [ping, report]
`,
			env: map[string]string{
				"CMDGATE_TEST_HOOK_SECRET": "s3cret",
			},
			checkFn: func(t *testing.T, cfg *Config) {
				if cfg.Webhooks == nil || len(cfg.Webhooks.Endpoints) != 1 {
					t.Fatalf("webhooks = %+v", cfg.Webhooks)
				}
				ep := cfg.Webhooks.Endpoints[0]
				if ep.Secret != "s3cret" || ep.Actor != "chatbridge" || len(ep.Commands) != 2 {
					t.Errorf("endpoint = %+v", ep)
				}
			},
		},
		{
			name: "webhook without secret",
			yaml: `
webhooks:
  listen: 127.0.0.1:8081
  endpoints:
    - path: /hooks/chat
      actor: chatbridge
      signature_header: X-Signature-256
`,
			wantErr: true,
		},
		{
			name: "sample ratio out of range",
			yaml: `
telemetry:
  sample_ratio: 1.5
`,
			wantErr: true,
		},
		{
			name: "zero sample ratio is kept",
			yaml: `
telemetry:
  enabled: true
  sample_ratio: 0
`,
			checkFn: func(t *testing.T, cfg *Config) {
				if cfg.Telemetry.SampleRatio != 0 {
					t.Errorf("sample_ratio = %v, want 0", cfg.Telemetry.SampleRatio)
				}
			},
		},
		{
			name: "explicit zero workers",
			yaml: `
scheduler:
  workers: 0
`,
			wantErr: true,
		},
		{
			name: "unresolved api key",
			yaml: `
api:
  enabled: true
  auth:
    api_key: ${CMDGATE_TEST_UNSET_KEY}
`,
			wantErr: true,
		},
		{
			name: "invalid log level",
			yaml: `
service:
  log_level: verbose
`,
			wantErr: true,
		},
		{
			name: "unknown group reference",
			yaml: `
permissions:
  groups:
    default:
      permissions: [ping]
  subjects:
    bob:
      groups: [missing]
`,
			wantErr: true,
		},
		{
			name: "plugins section",
			yaml: `
plugins:
  dirs: [./plugins]
  config:
    dice:
      max_sides: 100
`,
			checkFn: func(t *testing.T, cfg *Config) {
				if len(cfg.Plugins.Dirs) != 1 || cfg.Plugins.Dirs[0] != "./plugins" {
					t.Errorf("plugins.dirs = %v", cfg.Plugins.Dirs)
				}
				if cfg.Plugins.Timeout != 10*time.Second {
					t.Errorf("plugins.timeout = %v, want default 10s", cfg.Plugins.Timeout)
				}
				if cfg.Plugins.Config["dice"]["max_sides"] != 100 {
					t.Errorf("plugins.config.dice = %v", cfg.Plugins.Config["dice"])
				}
			},
		},
		{
			name: "plugin dirs from env",
			yaml: `
plugins:
  dirs: [./plugins]
`,
			env: map[string]string{"CMDGATE_PLUGINS_DIRS": "/opt/a,/opt/b"},
			checkFn: func(t *testing.T, cfg *Config) {
				if len(cfg.Plugins.Dirs) != 2 || cfg.Plugins.Dirs[1] != "/opt/b" {
					t.Errorf("plugins.dirs = %v, want env override", cfg.Plugins.Dirs)
				}
			},
		},
		{
			name: "negative plugin timeout",
			yaml: `
plugins:
  timeout: -1s
`,
			wantErr: true,
		},
		{
			name: "negative command cooldown",
			yaml: `
commands:
  kit.create:
    cooldown: -5s
`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0600); err != nil {
				t.Fatal(err)
			}

			cfg, err := Load(path)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Load() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() failed: %v", err)
			}
			if tt.checkFn != nil {
				tt.checkFn(t, cfg)
			}
		})
	}
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("service:\n  name: gate\n"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Service.Name != "gate" {
		t.Errorf("service.name = %q, want gate", cfg.Service.Name)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Load() expected error for missing file")
	}
}
