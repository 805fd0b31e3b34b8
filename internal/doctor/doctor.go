// Package doctor cross-checks a loaded configuration against the registered
// command tree, the permission model and the message catalogs. Config
// loading already rejects malformed files; doctor finds settings that load
// fine but cannot do what the operator meant.
package doctor

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/mattjoyce/cmdgate/internal/auth"
	"github.com/mattjoyce/cmdgate/internal/command"
	"github.com/mattjoyce/cmdgate/internal/config"
	"github.com/mattjoyce/cmdgate/internal/i18n"
	"github.com/mattjoyce/cmdgate/internal/permission"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

var knownScopes = []string{
	auth.ScopeAll,
	auth.ScopeDispatchPlayer,
	auth.ScopeDispatchConsole,
	auth.ScopeActorsWrite,
	auth.ScopeCommandsRead,
	auth.ScopeLogRead,
	auth.ScopeEventsRead,
}

var envVarRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Doctor validates configuration against the command tree.
type Doctor struct {
	cfg      *config.Config
	registry *command.Registry
	messages *i18n.Bundle
}

// New creates a Doctor. messages may be nil to skip catalog checks.
func New(cfg *config.Config, registry *command.Registry, messages *i18n.Bundle) *Doctor {
	return &Doctor{cfg: cfg, registry: registry, messages: messages}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{Valid: true}

	d.validateCommandRefs(r)
	d.validateAPIConfig(r)
	d.validateTokenScopes(r)
	d.validateWebhookCommands(r)
	d.warnUngrantedPermissions(r)
	d.warnMissingEnvVars(r)
	d.warnLegacyAPIKey(r)
	d.warnSuspiciousModifiers(r)
	d.warnMissingMessages(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

// keys returns every registered node key.
func (d *Doctor) keys() map[string]bool {
	keys := make(map[string]bool)
	d.registry.Walk(func(n *command.Node, _ int) {
		keys[n.Key()] = true
	})
	return keys
}

// validateCommandRefs checks that overrides name registered commands.
// Disabled commands are never registered, so they are not checked.
func (d *Doctor) validateCommandRefs(r *Result) {
	keys := d.keys()
	for _, key := range sortedKeys(d.cfg.Commands) {
		if d.cfg.Commands[key].Disabled {
			continue
		}
		if !keys[key] {
			d.addError(r, "commands", "commands."+key,
				fmt.Sprintf("no registered command has key %q", key))
		}
	}
}

// validateAPIConfig checks API server settings.
func (d *Doctor) validateAPIConfig(r *Result) {
	if !d.cfg.API.Enabled {
		return
	}
	if d.cfg.API.Listen == "" {
		d.addError(r, "api", "api.listen", "api.listen is required when API is enabled")
	}
	if d.cfg.API.Auth.APIKey == "" && len(d.cfg.API.Auth.Tokens) == 0 {
		d.addWarning(r, "api", "api.auth", "API enabled but no authentication configured")
	}
	if d.cfg.Webhooks != nil && d.cfg.Webhooks.Listen != "" && d.cfg.Webhooks.Listen == d.cfg.API.Listen {
		d.addError(r, "api", "webhooks.listen",
			fmt.Sprintf("webhooks and API both listen on %s", d.cfg.API.Listen))
	}
}

// validateTokenScopes checks that every token scope is one the API knows.
func (d *Doctor) validateTokenScopes(r *Result) {
	for i, token := range d.cfg.API.Auth.Tokens {
		for j, scope := range token.Scopes {
			if slices.Contains(knownScopes, strings.TrimSpace(scope)) {
				continue
			}
			d.addError(r, "token_scopes", fmt.Sprintf("api.auth.tokens[%d].scopes[%d]", i, j),
				fmt.Sprintf("unknown scope %q (expected one of %s)", scope, strings.Join(knownScopes, ", ")))
		}
	}
}

// validateWebhookCommands checks endpoint allowlists against root commands.
func (d *Doctor) validateWebhookCommands(r *Result) {
	if d.cfg.Webhooks == nil {
		return
	}
	roots := make(map[string]bool)
	for _, n := range d.registry.All() {
		roots[n.Key()] = true
	}
	for i, ep := range d.cfg.Webhooks.Endpoints {
		for j, key := range ep.Commands {
			if !roots[key] {
				d.addError(r, "webhooks", fmt.Sprintf("webhooks.endpoints[%d].commands[%d]", i, j),
					fmt.Sprintf("webhook %q allows %q which is not a root command", ep.Path, key))
			}
		}
	}
}

// warnUngrantedPermissions flags commands whose permissions no group or
// subject grants. Such commands only ever run from the console.
func (d *Doctor) warnUngrantedPermissions(r *Result) {
	var grants []string
	for _, g := range d.cfg.Permissions.Groups {
		grants = append(grants, g.Permissions...)
	}
	for _, s := range d.cfg.Permissions.Subjects {
		grants = append(grants, s.Permissions...)
	}

	d.registry.Walk(func(n *command.Node, _ int) {
		for _, perm := range n.Metadata().Permissions {
			granted := slices.ContainsFunc(grants, func(p string) bool {
				return !strings.HasPrefix(p, "-") && permission.Matches(strings.TrimSpace(p), perm)
			})
			if !granted {
				d.addWarning(r, "permissions", "",
					fmt.Sprintf("command %q requires %q which no group or subject grants", n.Path(), perm))
			}
		}
	})
}

// warnMissingEnvVars warns about secrets left empty or unresolved.
func (d *Doctor) warnMissingEnvVars(r *Result) {
	for i, token := range d.cfg.API.Auth.Tokens {
		if token.Token == "" {
			d.addWarning(r, "env_vars", fmt.Sprintf("api.auth.tokens[%d].token", i),
				"token value is empty (possibly unresolved environment variable)")
		}
	}

	if d.cfg.Webhooks == nil {
		return
	}
	for i, ep := range d.cfg.Webhooks.Endpoints {
		for _, m := range envVarRe.FindAllStringSubmatch(ep.Secret, -1) {
			if os.Getenv(m[1]) == "" {
				d.addWarning(r, "env_vars", fmt.Sprintf("webhooks.endpoints[%d].secret", i),
					fmt.Sprintf("environment variable ${%s} not set", m[1]))
			}
		}
	}
}

// warnLegacyAPIKey warns when the all-access api_key is in use.
func (d *Doctor) warnLegacyAPIKey(r *Result) {
	if d.cfg.API.Auth.APIKey == "" {
		return
	}
	if len(d.cfg.API.Auth.Tokens) > 0 {
		d.addWarning(r, "auth", "api.auth",
			"both api_key and tokens configured; api_key bypasses every scope")
		return
	}
	d.addWarning(r, "auth", "api.auth.api_key",
		"api_key grants full access including console dispatch; prefer scoped tokens")
}

// warnSuspiciousModifiers flags override values that are legal but unlikely
// to be intended.
func (d *Doctor) warnSuspiciousModifiers(r *Result) {
	for _, key := range sortedKeys(d.cfg.Commands) {
		cooldown, warmup, cost := d.cfg.Commands[key].Apply(0, 0, 0)
		field := "commands." + key
		if cooldown > 0 && cooldown < time.Second {
			d.addWarning(r, "modifiers", field+".cooldown",
				fmt.Sprintf("cooldown %s is shorter than a second", cooldown))
		}
		if warmup > time.Minute && (d.cfg.Warmup.CancelOnMove || d.cfg.Warmup.CancelOnDamage) {
			d.addWarning(r, "modifiers", field+".warmup",
				fmt.Sprintf("warmup %s is long and will often be cancelled", warmup))
		}
		if cost > d.cfg.Economy.StartingBalance {
			d.addWarning(r, "modifiers", field+".cost",
				fmt.Sprintf("cost %.2f exceeds the starting balance %.2f", cost, d.cfg.Economy.StartingBalance))
		}
	}
}

// warnMissingMessages reports catalog keys missing from non-default locales.
func (d *Doctor) warnMissingMessages(r *Result) {
	if d.messages == nil {
		return
	}
	for _, locale := range d.messages.Locales() {
		missing := d.messages.Missing(locale)
		if len(missing) == 0 {
			continue
		}
		d.addWarning(r, "messages", locale,
			fmt.Sprintf("missing %d key(s): %s", len(missing), strings.Join(missing, ", ")))
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FormatHuman returns a human-readable validation report.
func FormatHuman(r *Result) string {
	var b strings.Builder

	switch {
	case r.Valid && len(r.Warnings) == 0:
		b.WriteString("Configuration valid.\n")
		return b.String()
	case r.Valid:
		fmt.Fprintf(&b, "Configuration valid (%d warning(s))\n", len(r.Warnings))
	default:
		fmt.Fprintf(&b, "Configuration invalid (%d error(s), %d warning(s))\n", len(r.Errors), len(r.Warnings))
	}

	for _, e := range r.Errors {
		writeIssue(&b, "ERROR", e)
	}
	for _, w := range r.Warnings {
		writeIssue(&b, "WARN ", w)
	}
	return b.String()
}

func writeIssue(b *strings.Builder, level string, is Issue) {
	if is.Field != "" {
		fmt.Fprintf(b, "  %s [%s] %s: %s\n", level, is.Category, is.Field, is.Message)
		return
	}
	fmt.Fprintf(b, "  %s [%s] %s\n", level, is.Category, is.Message)
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
