package command

import (
	"strings"
	"time"

	"github.com/mattjoyce/cmdgate/internal/args"
)

// Source is the actor variant a command or modifier accepts.
type Source int

const (
	SourceAny Source = iota
	SourcePlayer
	SourceConsole
	SourceGeneric
)

// Accepts reports whether an actor of kind k satisfies s.
func (s Source) Accepts(k Kind) bool {
	switch s {
	case SourceAny:
		return true
	case SourcePlayer:
		return k == KindPlayer
	case SourceConsole:
		return k == KindConsole
	case SourceGeneric:
		return k == KindGeneric
	}
	return false
}

func (s Source) String() string {
	switch s {
	case SourcePlayer:
		return "player"
	case SourceConsole:
		return "console"
	case SourceGeneric:
		return "generic"
	default:
		return "any"
	}
}

// ModifierSpec declares a modifier on a command.
type ModifierSpec struct {
	Modifier Modifier
	// Target restricts the modifier to one actor variant.
	Target Source
	// ExemptPermission, when held, switches the modifier off for the actor.
	ExemptPermission string
}

// Defaults seeds the cost/cooldown/warmup of every context built for a node.
type Defaults struct {
	Cooldown time.Duration
	Warmup   time.Duration
	Cost     float64
}

// Metadata describes one command. It is created at startup and never mutated
// once the node carrying it is registered.
type Metadata struct {
	// Key is the dotted primary key, e.g. "kit.create".
	Key string
	// Aliases are the names the command answers to; the first is primary.
	Aliases        []string
	Permissions    []string
	Modifiers      []ModifierSpec
	Source         Source
	Async          bool
	Parameters     []args.Element
	DescriptionKey string
	Defaults       Defaults
	Parent         *Metadata
}

// Primary returns the first alias.
func (m *Metadata) Primary() string {
	if len(m.Aliases) == 0 {
		return m.Key
	}
	return m.Aliases[0]
}

// OptionKey builds the permission option name used for per-subject overrides,
// e.g. "cmdgate.kit.create.cooldown".
func (m *Metadata) OptionKey(prefix, option string) string {
	parts := []string{m.Key, option}
	if prefix != "" {
		parts = append([]string{prefix}, parts...)
	}
	return strings.Join(parts, ".")
}
