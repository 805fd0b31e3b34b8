package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPath(t *testing.T) {
	cfg := Defaults()
	cfg.Service.Name = "test-gate"
	cfg.Commands["kit.create"] = CommandConfig{Cooldown: ptr(30 * time.Second), Cost: ptr(5.0)}
	cfg.Permissions.Groups["vip"] = GroupConfig{
		Permissions: []string{"cmdgate.kit"},
		Options:     map[string]float64{"cmdgate.kit.create.cost": 0},
	}

	tests := []struct {
		name    string
		path    string
		want    any
		wantErr bool
	}{
		{name: "root service field", path: "service.name", want: "test-gate"},
		{name: "nested bool", path: "warmup.cancel_on_move", want: true},
		{name: "missing key", path: "service.missing", wantErr: true},
		{name: "through a scalar", path: "service.name.first", wantErr: true},
		{name: "command entity", path: "command:kit.create", want: cfg.Commands["kit.create"]},
		{name: "command entity field", path: "command:kit.create.cooldown", want: "30s"},
		{name: "unknown command", path: "command:kit.remove", wantErr: true},
		{name: "group option", path: "group:vip.options", want: map[string]any{"cmdgate.kit.create.cost": 0}},
		{name: "unknown subject", path: "subject:alice", wantErr: true},
		{name: "unknown entity type", path: "plugin:echo", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cfg.GetPath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSetPath(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	initialYAML := `
service:
  name: old-name
commands:
  kit.create:
    cost: 5
`
	require.NoError(t, os.WriteFile(configPath, []byte(initialYAML), 0o644))

	t.Run("set root field", func(t *testing.T) {
		require.NoError(t, SetPath(configPath, "service.name", "new-name"))
		reloaded, err := Load(configPath)
		require.NoError(t, err)
		assert.Equal(t, "new-name", reloaded.Service.Name)
	})

	t.Run("set dotted command key", func(t *testing.T) {
		require.NoError(t, SetPath(configPath, "commands.kit.create.cooldown", "45s"))
		reloaded, err := Load(configPath)
		require.NoError(t, err)
		assert.Equal(t, ptr(45*time.Second), reloaded.Commands["kit.create"].Cooldown)
		assert.Equal(t, ptr(5.0), reloaded.Commands["kit.create"].Cost)
	})

	t.Run("create missing section", func(t *testing.T) {
		require.NoError(t, SetPath(configPath, "telemetry.sample_ratio", "0.25"))
		reloaded, err := Load(configPath)
		require.NoError(t, err)
		assert.Equal(t, 0.25, reloaded.Telemetry.SampleRatio)
	})

	t.Run("invalid value rolls back", func(t *testing.T) {
		before, err := os.ReadFile(configPath)
		require.NoError(t, err)

		err = SetPath(configPath, "scheduler.workers", "0")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "validation failed")

		after, err := os.ReadFile(configPath)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})
}

func TestGuessTag(t *testing.T) {
	tests := map[string]string{
		"true":  "!!bool",
		"42":    "!!int",
		"-3":    "!!int",
		"0.5":   "!!float",
		"30s":   "!!str",
		"-":     "!!str",
		"en-US": "!!str",
	}
	for in, want := range tests {
		assert.Equal(t, want, guessTag(in), in)
	}
}

func TestSplitPath(t *testing.T) {
	tests := []struct {
		path string
		want []string
	}{
		{"service.name", []string{"service", "name"}},
		{"commands.kit.create.cost", []string{"commands", "kit.create", "cost"}},
		{"commands.ping.cooldown", []string{"commands", "ping", "cooldown"}},
		{"permissions.groups.vip.options.cmdgate.kit.cost", []string{"permissions", "groups", "vip", "options", "cmdgate.kit.cost"}},
		{"permissions.groups.vip.options.flat", []string{"permissions", "groups", "vip", "options", "flat"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, splitPath(tt.path), tt.path)
	}
}

// ptr returns a pointer to v for optional config fields.
func ptr[T any](v T) *T { return &v }
