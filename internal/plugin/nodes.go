package plugin

import (
	"fmt"
	"strings"
	"time"

	"github.com/mattjoyce/cmdgate/internal/args"
	"github.com/mattjoyce/cmdgate/internal/command"
	"github.com/mattjoyce/cmdgate/internal/config"
	"github.com/mattjoyce/cmdgate/internal/state"
)

// BuildOptions carry what Build needs beyond the manifest.
type BuildOptions struct {
	Cooldown command.Modifier
	Warmup   command.Modifier
	Cost     command.Modifier
	// Timeout applies when the manifest sets none.
	Timeout time.Duration
	// Config is handed to every invocation of the plugin.
	Config map[string]any
	// State persists per-actor plugin state; nil runs plugins stateless.
	State *state.Store
	// Overrides are keyed by command key; Disabled drops the node and its
	// descendants.
	Overrides map[string]config.CommandConfig
}

// Build turns a plugin's command specs into a node tree and returns the
// roots. Every executing node runs async.
func Build(p *Plugin, opts BuildOptions) ([]*command.Node, error) {
	nodes := make(map[string]*command.Node, len(p.Commands))
	var roots []*command.Node

	for _, spec := range p.Commands {
		parentKey, isChild := parentOf(spec.Key)
		var parent *command.Node
		if isChild {
			var ok bool
			if parent, ok = nodes[parentKey]; !ok {
				if _, declared := p.Command(parentKey); declared {
					// parent is disabled
					continue
				}
				return nil, fmt.Errorf("plugin %s: command %q has no parent %q", p.Name, spec.Key, parentKey)
			}
		}

		n, err := buildNode(p, spec, opts)
		if err != nil {
			return nil, fmt.Errorf("plugin %s: %w", p.Name, err)
		}
		if n == nil {
			continue
		}
		nodes[spec.Key] = n

		if parent == nil {
			roots = append(roots, n)
			continue
		}
		if err := parent.AttachChild(n); err != nil {
			return nil, fmt.Errorf("plugin %s: %w", p.Name, err)
		}
	}
	return roots, nil
}

func buildNode(p *Plugin, spec CommandSpec, opts BuildOptions) (*command.Node, error) {
	source, err := parseSource(spec.Source)
	if err != nil {
		return nil, err
	}
	params := make([]args.Element, 0, len(spec.Params))
	for _, ps := range spec.Params {
		el, err := ps.Element()
		if err != nil {
			return nil, fmt.Errorf("command %q: %w", spec.Key, err)
		}
		params = append(params, el)
	}

	meta := command.Metadata{
		Key:            spec.Key,
		Aliases:        spec.Aliases,
		Permissions:    spec.Permissions,
		Source:         source,
		Parameters:     params,
		DescriptionKey: spec.Description,
		Defaults: command.Defaults{
			Cooldown: spec.Cooldown,
			Warmup:   spec.Warmup,
			Cost:     spec.Cost,
		},
	}
	if o, ok := opts.Overrides[spec.Key]; ok {
		if o.Disabled {
			return nil, nil
		}
		d := &meta.Defaults
		d.Cooldown, d.Warmup, d.Cost = o.Apply(d.Cooldown, d.Warmup, d.Cost)
	}

	if spec.Group {
		return command.NewNode(meta, nil), nil
	}

	meta.Async = true
	if meta.Defaults.Cooldown > 0 && opts.Cooldown != nil {
		meta.Modifiers = append(meta.Modifiers, command.ModifierSpec{
			Modifier: opts.Cooldown, ExemptPermission: exempt(spec.Key, "nocooldown"),
		})
	}
	if meta.Defaults.Cost > 0 && opts.Cost != nil {
		meta.Modifiers = append(meta.Modifiers, command.ModifierSpec{
			Modifier: opts.Cost, ExemptPermission: exempt(spec.Key, "free"),
		})
	}
	if meta.Defaults.Warmup > 0 && opts.Warmup != nil {
		meta.Modifiers = append(meta.Modifiers, command.ModifierSpec{
			Modifier: opts.Warmup, Target: command.SourcePlayer, ExemptPermission: exempt(spec.Key, "instant"),
		})
	}
	return command.NewNode(meta, NewExecutor(p, spec, opts.Timeout, opts.Config, opts.State)), nil
}

func parentOf(key string) (string, bool) {
	i := strings.LastIndex(key, ".")
	if i < 0 {
		return "", false
	}
	return key[:i], true
}

func exempt(key, option string) string {
	return "cmdgate." + key + "." + option
}
