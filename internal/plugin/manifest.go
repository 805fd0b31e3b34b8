package plugin

import (
	"fmt"
	"strings"
	"time"

	"github.com/mattjoyce/cmdgate/internal/args"
	"github.com/mattjoyce/cmdgate/internal/command"
)

// Manifest defines the structure of a plugin's manifest.yaml file.
type Manifest struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Protocol    int    `yaml:"protocol"`
	Entrypoint  string `yaml:"entrypoint"`
	Description string `yaml:"description,omitempty"`
	// Timeout overrides plugins.timeout for this plugin.
	Timeout  time.Duration `yaml:"timeout,omitempty"`
	Commands []CommandSpec `yaml:"commands"`
}

// CommandSpec declares one command node contributed by a plugin.
type CommandSpec struct {
	// Key is dotted; "weather.now" is a child of "weather".
	Key         string      `yaml:"key"`
	Aliases     []string    `yaml:"aliases"`
	Permissions []string    `yaml:"permissions,omitempty"`
	Source      string      `yaml:"source,omitempty"` // any | player | console | generic
	Params      []ParamSpec `yaml:"params,omitempty"`
	// Group nodes only hold children and never run the plugin.
	Group       bool          `yaml:"group,omitempty"`
	Cooldown    time.Duration `yaml:"cooldown,omitempty"`
	Warmup      time.Duration `yaml:"warmup,omitempty"`
	Cost        float64       `yaml:"cost,omitempty"`
	Description string        `yaml:"description,omitempty"`
}

// ParamSpec declares one positional argument.
type ParamSpec struct {
	Name     string   `yaml:"name"`
	Type     string   `yaml:"type"` // string | int | float | bool | duration | choice | remaining
	Optional bool     `yaml:"optional,omitempty"`
	Repeated bool     `yaml:"repeated,omitempty"`
	Choices  []string `yaml:"choices,omitempty"`
}

// Plugin represents a discovered and validated plugin.
type Plugin struct {
	Name        string // Plugin name from manifest
	Path        string // Absolute path to plugin directory
	Entrypoint  string // Absolute path to entrypoint executable
	Protocol    int
	Version     string
	Description string
	Timeout     time.Duration
	Commands    []CommandSpec
}

// Command returns the spec declared under key.
func (p *Plugin) Command(key string) (CommandSpec, bool) {
	for _, c := range p.Commands {
		if c.Key == key {
			return c, true
		}
	}
	return CommandSpec{}, false
}

// Element converts the spec into an argument element.
func (p ParamSpec) Element() (args.Element, error) {
	if strings.TrimSpace(p.Name) == "" {
		return nil, fmt.Errorf("param name is required")
	}

	var el args.Element
	switch strings.ToLower(p.Type) {
	case "", "string":
		el = args.String(p.Name)
	case "int":
		el = args.Int(p.Name)
	case "float":
		el = args.Float(p.Name)
	case "bool":
		el = args.Bool(p.Name)
	case "duration":
		el = args.Duration(p.Name)
	case "choice":
		if len(p.Choices) == 0 {
			return nil, fmt.Errorf("param %q: choice needs choices", p.Name)
		}
		choices := make([]string, len(p.Choices))
		for i, c := range p.Choices {
			choices[i] = strings.ToLower(c)
		}
		el = args.Choice(p.Name, choices...)
	case "remaining":
		if p.Repeated {
			return nil, fmt.Errorf("param %q: remaining cannot repeat", p.Name)
		}
		el = args.Remaining(p.Name)
	default:
		return nil, fmt.Errorf("param %q: unknown type %q", p.Name, p.Type)
	}

	if p.Repeated {
		el = args.Repeated(el)
	}
	if p.Optional {
		el = args.Optional(el)
	}
	return el, nil
}

func parseSource(s string) (command.Source, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "any":
		return command.SourceAny, nil
	case "player":
		return command.SourcePlayer, nil
	case "console":
		return command.SourceConsole, nil
	case "generic":
		return command.SourceGeneric, nil
	}
	return command.SourceAny, fmt.Errorf("unknown source %q (valid: any, player, console, generic)", s)
}
