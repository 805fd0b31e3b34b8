package plugin

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/cmdgate/internal/protocol"
)

const manifestFilename = "manifest.yaml"

// Registry holds discovered plugins indexed by name.
type Registry struct {
	plugins map[string]*Plugin
}

// NewRegistry creates an empty plugin registry.
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]*Plugin)}
}

// Get retrieves a plugin by name.
func (r *Registry) Get(name string) (*Plugin, bool) {
	p, ok := r.plugins[name]
	return p, ok
}

// All returns the plugins ordered by name.
func (r *Registry) All() []*Plugin {
	out := make([]*Plugin, 0, len(r.plugins))
	for _, p := range r.plugins {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Add registers a plugin in the registry.
func (r *Registry) Add(p *Plugin) error {
	if _, exists := r.plugins[p.Name]; exists {
		return fmt.Errorf("plugin %q already registered", p.Name)
	}
	r.plugins[p.Name] = p
	return nil
}

// Discover scans roots for manifest.yaml files. Roots are processed in order;
// a duplicate plugin name keeps the first one found. Invalid plugins are
// logged and skipped.
func Discover(roots []string, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	absRoots := make([]string, 0, len(roots))
	seen := make(map[string]struct{}, len(roots))
	for _, root := range roots {
		root = strings.TrimSpace(root)
		if root == "" {
			continue
		}
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("resolve plugin root %q: %w", root, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("plugin root does not exist: %s", abs)
			}
			return nil, fmt.Errorf("stat plugin root %s: %w", abs, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("plugin root is not a directory: %s", abs)
		}
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}
		absRoots = append(absRoots, abs)
	}
	if len(absRoots) == 0 {
		return nil, fmt.Errorf("at least one plugin root is required")
	}

	registry := NewRegistry()
	for _, root := range absRoots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() || d.Name() != manifestFilename {
				return nil
			}

			dir := filepath.Dir(path)
			p, err := Load(dir, root)
			if err != nil {
				logger.Warn("failed to load plugin", "root", root, "path", dir, "error", err)
				return nil
			}
			if existing, ok := registry.Get(p.Name); ok {
				logger.Warn("duplicate plugin ignored",
					"plugin", p.Name, "ignored_path", p.Path, "kept_path", existing.Path)
				return nil
			}
			_ = registry.Add(p)
			logger.Info("loaded plugin",
				"plugin", p.Name, "path", p.Path, "version", p.Version, "commands", len(p.Commands))
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scan plugin root %s: %w", root, err)
		}
	}
	return registry, nil
}

// Load reads and validates the plugin in dir, which must live under root.
func Load(dir, root string) (*Plugin, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestFilename))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest YAML: %w", err)
	}
	if err := validateManifest(&m); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}

	entrypoint := filepath.Join(dir, m.Entrypoint)
	if err := validateTrust(entrypoint, dir, root); err != nil {
		return nil, fmt.Errorf("trust validation failed: %w", err)
	}

	return &Plugin{
		Name:        m.Name,
		Path:        dir,
		Entrypoint:  entrypoint,
		Protocol:    m.Protocol,
		Version:     m.Version,
		Description: m.Description,
		Timeout:     m.Timeout,
		Commands:    m.Commands,
	}, nil
}

func validateManifest(m *Manifest) error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if m.Protocol == 0 {
		return fmt.Errorf("protocol version is required")
	}
	if m.Protocol != protocol.Version {
		return fmt.Errorf("unsupported protocol version %d (supported: %d)", m.Protocol, protocol.Version)
	}
	if m.Entrypoint == "" {
		return fmt.Errorf("entrypoint is required")
	}
	if strings.Contains(m.Entrypoint, "..") {
		return fmt.Errorf("entrypoint contains path traversal: %s", m.Entrypoint)
	}
	if m.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	if len(m.Commands) == 0 {
		return fmt.Errorf("at least one command must be declared")
	}

	keys := make(map[string]bool, len(m.Commands))
	for _, c := range m.Commands {
		if err := validateCommand(c, keys); err != nil {
			return err
		}
		keys[c.Key] = true
	}
	return nil
}

func validateCommand(c CommandSpec, declared map[string]bool) error {
	if c.Key == "" {
		return fmt.Errorf("command key is required")
	}
	if c.Key != strings.ToLower(c.Key) || strings.ContainsAny(c.Key, " \t") {
		return fmt.Errorf("command key %q must be lowercase without spaces", c.Key)
	}
	if declared[c.Key] {
		return fmt.Errorf("command %q declared twice", c.Key)
	}
	if i := strings.LastIndex(c.Key, "."); i >= 0 && !declared[c.Key[:i]] {
		return fmt.Errorf("command %q declared before its parent %q", c.Key, c.Key[:i])
	}
	if len(c.Aliases) == 0 {
		return fmt.Errorf("command %q needs at least one alias", c.Key)
	}
	if _, err := parseSource(c.Source); err != nil {
		return fmt.Errorf("command %q: %w", c.Key, err)
	}
	if c.Cooldown < 0 || c.Warmup < 0 || c.Cost < 0 {
		return fmt.Errorf("command %q: cooldown, warmup and cost must not be negative", c.Key)
	}
	if c.Group && len(c.Params) > 0 {
		return fmt.Errorf("command %q: group nodes take no params", c.Key)
	}
	for i, p := range c.Params {
		if _, err := p.Element(); err != nil {
			return fmt.Errorf("command %q: %w", c.Key, err)
		}
		if strings.EqualFold(p.Type, "remaining") && i != len(c.Params)-1 {
			return fmt.Errorf("command %q: remaining param %q must be last", c.Key, p.Name)
		}
	}
	return nil
}

// validateTrust rejects entrypoints that escape the plugin directory or root,
// are not executable, or live in a world-writable directory.
func validateTrust(entrypoint, pluginPath, root string) error {
	resolvedEntrypoint, err := filepath.EvalSymlinks(entrypoint)
	if err != nil {
		return fmt.Errorf("resolve entrypoint symlink: %w", err)
	}
	resolvedPlugin, err := filepath.EvalSymlinks(pluginPath)
	if err != nil {
		return fmt.Errorf("resolve plugin path symlink: %w", err)
	}
	resolvedRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return fmt.Errorf("resolve plugin root symlink %s: %w", root, err)
	}

	sep := string(os.PathSeparator)
	if !strings.HasPrefix(resolvedEntrypoint, resolvedRoot+sep) {
		return fmt.Errorf("entrypoint %s is not under plugin root %s", resolvedEntrypoint, resolvedRoot)
	}
	if !strings.HasPrefix(resolvedEntrypoint, resolvedPlugin+sep) {
		return fmt.Errorf("entrypoint %s is not under plugin directory %s", resolvedEntrypoint, resolvedPlugin)
	}

	info, err := os.Stat(resolvedEntrypoint)
	if err != nil {
		return fmt.Errorf("entrypoint not found: %w", err)
	}
	if info.Mode()&0o111 == 0 {
		return fmt.Errorf("entrypoint is not executable: %s", resolvedEntrypoint)
	}

	dirInfo, err := os.Stat(resolvedPlugin)
	if err != nil {
		return fmt.Errorf("plugin directory not found: %w", err)
	}
	if dirInfo.Mode().Perm()&0o002 != 0 {
		return fmt.Errorf("plugin directory is world-writable: %s", resolvedPlugin)
	}
	return nil
}
