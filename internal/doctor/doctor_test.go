package doctor

import (
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/mattjoyce/cmdgate/internal/command"
	"github.com/mattjoyce/cmdgate/internal/config"
	"github.com/mattjoyce/cmdgate/internal/i18n"
)

func validConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Permissions.Groups["default"] = config.GroupConfig{Permissions: []string{"cmdgate.*"}}
	cfg.Commands["kit.create"] = config.CommandConfig{Cooldown: ptr(time.Minute)}
	return cfg
}

func noop(c *command.Context) (command.Result, error) { return c.Success(), nil }

// testRegistry holds ping, and kit with one child, kit.create.
func testRegistry(t *testing.T) *command.Registry {
	t.Helper()
	reg := command.NewRegistry()
	ping := command.NewNode(command.Metadata{Key: "ping", Aliases: []string{"ping"}}, command.ExecutorFunc(noop))
	kit := command.NewNode(command.Metadata{
		Key:         "kit",
		Aliases:     []string{"kit"},
		Permissions: []string{"cmdgate.kit"},
	}, nil)
	create := command.NewNode(command.Metadata{
		Key:         "kit.create",
		Aliases:     []string{"create"},
		Permissions: []string{"cmdgate.kit.create"},
	}, command.ExecutorFunc(noop))
	if err := kit.AttachChild(create); err != nil {
		t.Fatal(err)
	}
	for _, n := range []*command.Node{ping, kit} {
		if err := reg.Register(n); err != nil {
			t.Fatal(err)
		}
	}
	if err := reg.Complete(); err != nil {
		t.Fatal(err)
	}
	return reg
}

func TestValidate_ValidConfig(t *testing.T) {
	t.Parallel()
	r := New(validConfig(), testRegistry(t), nil).Validate()
	if !r.Valid {
		t.Fatalf("expected valid, got errors: %v", r.Errors)
	}
	if len(r.Warnings) != 0 {
		t.Fatalf("expected no warnings, got: %v", r.Warnings)
	}
}

func TestValidate_UnknownCommandOverride(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Commands["kit.destroy"] = config.CommandConfig{Cost: ptr(5.0)}
	r := New(cfg, testRegistry(t), nil).Validate()
	if r.Valid {
		t.Fatal("expected invalid")
	}
	assertHasError(t, r, "commands", "kit.destroy")
}

func TestValidate_DisabledOverrideIsNotChecked(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Commands["spawn"] = config.CommandConfig{Disabled: true}
	r := New(cfg, testRegistry(t), nil).Validate()
	if !r.Valid {
		t.Fatalf("expected valid, got errors: %v", r.Errors)
	}
}

func TestValidate_TokenScopes(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.API.Enabled = true
	cfg.API.Auth.Tokens = []config.APIToken{
		{Token: "a", Scopes: []string{"dispatch:player", "commands:ro"}},
		{Token: "b", Scopes: []string{"jobs:rw"}},
	}
	r := New(cfg, testRegistry(t), nil).Validate()
	if r.Valid {
		t.Fatal("expected invalid")
	}
	assertHasError(t, r, "token_scopes", "jobs:rw")
	if len(r.Errors) != 1 {
		t.Fatalf("expected only the unknown scope to fail, got: %v", r.Errors)
	}
}

func TestValidate_APIWithoutAuth(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.API.Enabled = true
	r := New(cfg, testRegistry(t), nil).Validate()
	assertHasWarning(t, r, "api", "no authentication")
}

func TestValidate_SharedListenAddress(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.API.Enabled = true
	cfg.API.Auth.Tokens = []config.APIToken{{Token: "a", Scopes: []string{"*"}}}
	cfg.Webhooks = &config.WebhooksConfig{Listen: cfg.API.Listen}
	r := New(cfg, testRegistry(t), nil).Validate()
	assertHasError(t, r, "api", "both listen")
}

func TestValidate_WebhookCommands(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Webhooks = &config.WebhooksConfig{
		Listen: ":9090",
		Endpoints: []config.WebhookEndpoint{
			{Path: "/hooks/chat", Actor: "bridge", Secret: "s", SignatureHeader: "X-Sig", Commands: []string{"ping", "kit.create"}},
		},
	}
	r := New(cfg, testRegistry(t), nil).Validate()
	if r.Valid {
		t.Fatal("expected invalid")
	}
	assertHasError(t, r, "webhooks", "kit.create")
	if len(r.Errors) != 1 {
		t.Fatalf("ping should be allowed, got: %v", r.Errors)
	}
}

func TestValidate_WarnUngrantedPermission(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Permissions.Groups["default"] = config.GroupConfig{Permissions: []string{"cmdgate.kit", "-cmdgate.kit.create"}}
	r := New(cfg, testRegistry(t), nil).Validate()
	if !r.Valid {
		t.Fatalf("expected valid, got errors: %v", r.Errors)
	}
	assertHasWarning(t, r, "permissions", "cmdgate.kit.create")
	if len(r.Warnings) != 1 {
		t.Fatalf("expected one warning, got: %v", r.Warnings)
	}
}

func TestValidate_SubjectGrantsCount(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Permissions.Groups["default"] = config.GroupConfig{}
	cfg.Permissions.Subjects = map[string]config.SubjectConfig{
		"alice": {Permissions: []string{"cmdgate.kit.*"}},
	}
	r := New(cfg, testRegistry(t), nil).Validate()
	if len(r.Warnings) != 0 {
		t.Fatalf("expected no warnings, got: %v", r.Warnings)
	}
}

func TestValidate_WarnMissingEnvVars(t *testing.T) {
	cfg := validConfig()
	cfg.API.Auth.Tokens = []config.APIToken{{Token: "", Scopes: []string{"*"}}}
	cfg.Webhooks = &config.WebhooksConfig{
		Listen: ":9090",
		Endpoints: []config.WebhookEndpoint{
			{Path: "/hooks/chat", Actor: "bridge", Secret: "${CMDGATE_DOCTOR_UNSET}", SignatureHeader: "X-Sig"},
		},
	}
	t.Setenv("CMDGATE_DOCTOR_UNSET", "")
	r := New(cfg, testRegistry(t), nil).Validate()
	assertHasWarning(t, r, "env_vars", "token value is empty")
	assertHasWarning(t, r, "env_vars", "CMDGATE_DOCTOR_UNSET")
}

func TestValidate_WarnLegacyAPIKey(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.API.Auth.APIKey = "old-key"
	r := New(cfg, testRegistry(t), nil).Validate()
	assertHasWarning(t, r, "auth", "full access")

	cfg.API.Auth.Tokens = []config.APIToken{{Token: "new-key", Scopes: []string{"*"}}}
	r = New(cfg, testRegistry(t), nil).Validate()
	assertHasWarning(t, r, "auth", "both")
}

func TestValidate_WarnSuspiciousModifiers(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Commands["ping"] = config.CommandConfig{Cooldown: ptr(100 * time.Millisecond), Warmup: ptr(2 * time.Minute)}
	cfg.Commands["kit.create"] = config.CommandConfig{Cost: ptr(500.0)}
	r := New(cfg, testRegistry(t), nil).Validate()
	if !r.Valid {
		t.Fatalf("expected valid, got errors: %v", r.Errors)
	}
	assertHasWarning(t, r, "modifiers", "shorter than a second")
	assertHasWarning(t, r, "modifiers", "often be cancelled")
	assertHasWarning(t, r, "modifiers", "exceeds the starting balance")

	cfg.Warmup = config.WarmupConfig{}
	cfg.Commands["ping"] = config.CommandConfig{Warmup: ptr(2 * time.Minute)}
	cfg.Commands["kit.create"] = config.CommandConfig{}
	r = New(cfg, testRegistry(t), nil).Validate()
	if len(r.Warnings) != 0 {
		t.Fatalf("long warmups are fine when nothing cancels them, got: %v", r.Warnings)
	}
}

func TestValidate_WarnMissingMessages(t *testing.T) {
	t.Parallel()
	bundle, err := i18n.LoadFromFS(fstest.MapFS{
		"locales/en-US/core.yaml": {Data: []byte("locale: en-US\nmessages:\n  a: A\n  b: B\n")},
		"locales/de-DE/core.yaml": {Data: []byte("locale: de-DE\nmessages:\n  a: A\n")},
	})
	if err != nil {
		t.Fatal(err)
	}
	r := New(validConfig(), testRegistry(t), bundle).Validate()
	assertHasWarning(t, r, "messages", "missing 1 key(s): b")
}

func TestFormatJSON(t *testing.T) {
	t.Parallel()
	r := &Result{
		Valid:  false,
		Errors: []Issue{{Category: "test", Message: "bad thing"}},
	}
	out, err := FormatJSON(r)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "bad thing") {
		t.Fatalf("expected JSON to contain error message, got: %s", out)
	}
}

func TestFormatHuman(t *testing.T) {
	t.Parallel()
	if out := FormatHuman(&Result{Valid: true}); out != "Configuration valid.\n" {
		t.Fatalf("unexpected output: %q", out)
	}

	out := FormatHuman(&Result{
		Valid:    false,
		Errors:   []Issue{{Category: "test", Field: "x.y", Message: "broken"}},
		Warnings: []Issue{{Category: "test", Message: "odd"}},
	})
	for _, want := range []string{"invalid (1 error(s), 1 warning(s))", "ERROR [test] x.y: broken", "WARN  [test] odd"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got: %s", want, out)
		}
	}
}

// --- helpers ---

func assertHasError(t *testing.T, r *Result, category, substring string) {
	t.Helper()
	for _, e := range r.Errors {
		if e.Category == category && strings.Contains(e.Message, substring) {
			return
		}
	}
	t.Fatalf("expected error with category=%q containing %q, got: %v", category, substring, r.Errors)
}

func assertHasWarning(t *testing.T, r *Result, category, substring string) {
	t.Helper()
	for _, w := range r.Warnings {
		if w.Category == category && strings.Contains(w.Message, substring) {
			return
		}
	}
	t.Fatalf("expected warning with category=%q containing %q, got: %v", category, substring, r.Warnings)
}

// ptr returns a pointer to v for optional config fields.
func ptr[T any](v T) *T { return &v }
