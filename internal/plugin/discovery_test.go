package plugin

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

const diceManifest = `name: dice
version: 1.0.0
protocol: 1
entrypoint: run.sh
commands:
  - key: dice
    aliases: [dice]
    group: true
  - key: dice.roll
    aliases: [roll, r]
    permissions: [cmdgate.dice.roll]
    cooldown: 5s
    params:
      - name: sides
        type: int
        optional: true
`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writePlugin creates root/name with manifest and an executable run.sh.
func writePlugin(t *testing.T, root, name, manifest, script string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, manifestFilename), []byte(manifest), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	if script != "" {
		if err := os.WriteFile(filepath.Join(dir, "run.sh"), []byte(script), 0o755); err != nil {
			t.Fatalf("write entrypoint: %v", err)
		}
	}
	return dir
}

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("plugins need a POSIX shell")
	}
}

func TestDiscover(t *testing.T) {
	skipOnWindows(t)

	tests := []struct {
		name      string
		setupFn   func(t *testing.T) string
		wantCount int
		checkFn   func(t *testing.T, reg *Registry)
	}{
		{
			name: "valid plugin discovered",
			setupFn: func(t *testing.T) string {
				dir := t.TempDir()
				writePlugin(t, dir, "dice", diceManifest, "#!/bin/sh\necho ok\n")
				return dir
			},
			wantCount: 1,
			checkFn: func(t *testing.T, reg *Registry) {
				p, ok := reg.Get("dice")
				if !ok {
					t.Fatal("dice not found")
				}
				if p.Protocol != 1 {
					t.Errorf("protocol = %d, want 1", p.Protocol)
				}
				roll, ok := p.Command("dice.roll")
				if !ok {
					t.Fatal("dice.roll not declared")
				}
				if roll.Cooldown.Seconds() != 5 {
					t.Errorf("cooldown = %v, want 5s", roll.Cooldown)
				}
				if !strings.HasSuffix(p.Entrypoint, filepath.Join("dice", "run.sh")) {
					t.Errorf("entrypoint = %q", p.Entrypoint)
				}
			},
		},
		{
			name: "missing entrypoint skipped",
			setupFn: func(t *testing.T) string {
				dir := t.TempDir()
				writePlugin(t, dir, "dice", diceManifest, "")
				return dir
			},
		},
		{
			name: "non-executable entrypoint skipped",
			setupFn: func(t *testing.T) string {
				dir := t.TempDir()
				pdir := writePlugin(t, dir, "dice", diceManifest, "#!/bin/sh\n")
				if err := os.Chmod(filepath.Join(pdir, "run.sh"), 0o644); err != nil {
					t.Fatal(err)
				}
				return dir
			},
		},
		{
			name: "world-writable directory skipped",
			setupFn: func(t *testing.T) string {
				dir := t.TempDir()
				pdir := writePlugin(t, dir, "dice", diceManifest, "#!/bin/sh\n")
				if err := os.Chmod(pdir, 0o777); err != nil {
					t.Fatal(err)
				}
				return dir
			},
		},
		{
			name: "symlinked entrypoint outside root skipped",
			setupFn: func(t *testing.T) string {
				outside := t.TempDir()
				target := filepath.Join(outside, "evil.sh")
				if err := os.WriteFile(target, []byte("#!/bin/sh\n"), 0o755); err != nil {
					t.Fatal(err)
				}
				dir := t.TempDir()
				pdir := writePlugin(t, dir, "dice", diceManifest, "")
				if err := os.Symlink(target, filepath.Join(pdir, "run.sh")); err != nil {
					t.Fatal(err)
				}
				return dir
			},
		},
		{
			name: "wrong protocol skipped",
			setupFn: func(t *testing.T) string {
				dir := t.TempDir()
				m := strings.Replace(diceManifest, "protocol: 1", "protocol: 2", 1)
				writePlugin(t, dir, "dice", m, "#!/bin/sh\n")
				return dir
			},
		},
		{
			name: "duplicate name keeps first",
			setupFn: func(t *testing.T) string {
				dir := t.TempDir()
				writePlugin(t, dir, "a", diceManifest, "#!/bin/sh\n")
				writePlugin(t, dir, "b", diceManifest, "#!/bin/sh\n")
				return dir
			},
			wantCount: 1,
			checkFn: func(t *testing.T, reg *Registry) {
				p, _ := reg.Get("dice")
				if filepath.Base(p.Path) != "a" {
					t.Errorf("kept %s, want a", p.Path)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, err := Discover([]string{tt.setupFn(t)}, discardLogger())
			if err != nil {
				t.Fatalf("Discover() error = %v", err)
			}
			if got := len(reg.All()); got != tt.wantCount {
				t.Fatalf("plugin count = %d, want %d", got, tt.wantCount)
			}
			if tt.checkFn != nil {
				tt.checkFn(t, reg)
			}
		})
	}
}

func TestDiscover_RootErrors(t *testing.T) {
	if _, err := Discover(nil, nil); err == nil {
		t.Error("expected error for no roots")
	}
	if _, err := Discover([]string{filepath.Join(t.TempDir(), "missing")}, nil); err == nil {
		t.Error("expected error for missing root")
	}
}

func TestValidateManifest(t *testing.T) {
	base := func() Manifest {
		return Manifest{
			Name:       "dice",
			Protocol:   1,
			Entrypoint: "run.sh",
			Commands: []CommandSpec{
				{Key: "dice", Aliases: []string{"dice"}},
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(m *Manifest)
		wantErr string
	}{
		{name: "valid", mutate: func(*Manifest) {}},
		{name: "no name", mutate: func(m *Manifest) { m.Name = "" }, wantErr: "name is required"},
		{name: "traversal", mutate: func(m *Manifest) { m.Entrypoint = "../run.sh" }, wantErr: "path traversal"},
		{name: "no commands", mutate: func(m *Manifest) { m.Commands = nil }, wantErr: "at least one command"},
		{
			name: "child before parent",
			mutate: func(m *Manifest) {
				m.Commands = append([]CommandSpec{{Key: "dice.roll", Aliases: []string{"roll"}}}, m.Commands...)
			},
			wantErr: "before its parent",
		},
		{
			name:    "duplicate key",
			mutate:  func(m *Manifest) { m.Commands = append(m.Commands, m.Commands[0]) },
			wantErr: "declared twice",
		},
		{name: "no aliases", mutate: func(m *Manifest) { m.Commands[0].Aliases = nil }, wantErr: "at least one alias"},
		{name: "bad source", mutate: func(m *Manifest) { m.Commands[0].Source = "robot" }, wantErr: "unknown source"},
		{name: "upper key", mutate: func(m *Manifest) { m.Commands[0].Key = "Dice" }, wantErr: "lowercase"},
		{
			name: "remaining not last",
			mutate: func(m *Manifest) {
				m.Commands[0].Params = []ParamSpec{{Name: "text", Type: "remaining"}, {Name: "n", Type: "int"}}
			},
			wantErr: "must be last",
		},
		{
			name: "group with params",
			mutate: func(m *Manifest) {
				m.Commands[0].Group = true
				m.Commands[0].Params = []ParamSpec{{Name: "n", Type: "int"}}
			},
			wantErr: "group nodes take no params",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := base()
			tt.mutate(&m)
			err := validateManifest(&m)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
