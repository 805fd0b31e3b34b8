package main

import (
	"fmt"
	"log/slog"

	"github.com/mattjoyce/cmdgate/internal/command"
	"github.com/mattjoyce/cmdgate/internal/config"
	"github.com/mattjoyce/cmdgate/internal/plugin"
)

// registerPlugins discovers script commands and adds their roots to reg. A
// root whose alias is already taken is skipped with a warning.
func registerPlugins(reg *command.Registry, cfg *config.Config, opts plugin.BuildOptions, logger *slog.Logger) error {
	if len(cfg.Plugins.Dirs) == 0 {
		return nil
	}
	plugins, err := plugin.Discover(cfg.Plugins.Dirs, logger)
	if err != nil {
		return fmt.Errorf("discover plugins: %w", err)
	}

	opts.Timeout = cfg.Plugins.Timeout
	opts.Overrides = cfg.Commands
	for _, p := range plugins.All() {
		opts.Config = cfg.Plugins.Config[p.Name]
		roots, err := plugin.Build(p, opts)
		if err != nil {
			logger.Warn("plugin skipped", "plugin", p.Name, "error", err)
			continue
		}
		for _, n := range roots {
			if err := reg.Register(n); err != nil {
				logger.Warn("plugin command skipped", "plugin", p.Name, "command", n.Key(), "error", err)
			}
		}
	}
	return nil
}
