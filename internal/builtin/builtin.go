// Package builtin registers the stock command set. The commands are small on
// purpose; between them they exercise every stage of the dispatcher: group
// nodes, optional and remaining parameters, per-source restrictions, each
// modifier, executor pre-execution and async bodies.
package builtin

import (
	"fmt"

	"github.com/mattjoyce/cmdgate/internal/command"
	"github.com/mattjoyce/cmdgate/internal/config"
	"github.com/mattjoyce/cmdgate/internal/cooldown"
	"github.com/mattjoyce/cmdgate/internal/economy"
	"github.com/mattjoyce/cmdgate/internal/events"
	"github.com/mattjoyce/cmdgate/internal/modifier"
	"github.com/mattjoyce/cmdgate/internal/warmup"
)

// Deps are the stores and services the builtin commands need.
type Deps struct {
	Wallet    *economy.Store
	Cooldowns *cooldown.Store
	Warmups   *warmup.Service
	Kits      *KitStore
	Events    *events.Hub
	Currency  string
	// Modifiers are shared with the plugin trees. Nil fields are built from
	// the stores above.
	Modifiers modifier.Set
	// Commands overrides defaults per command key; Disabled skips the command.
	Commands map[string]config.CommandConfig
}

type builder struct {
	deps     Deps
	cooldown *modifier.Cooldown
	warmup   *modifier.Warmup
	cost     *modifier.Cost
}

// Register builds the builtin tree and adds every enabled root to reg.
func Register(reg *command.Registry, d Deps) error {
	m := d.Modifiers
	if m.Cooldown == nil {
		m.Cooldown = modifier.NewCooldown(d.Cooldowns)
	}
	if m.Warmup == nil {
		m.Warmup = modifier.NewWarmup(d.Warmups)
	}
	if m.Cost == nil {
		m.Cost = modifier.NewCost(d.Wallet, d.Currency)
	}
	b := &builder{deps: d, cooldown: m.Cooldown, warmup: m.Warmup, cost: m.Cost}

	kit, err := b.kit()
	if err != nil {
		return err
	}
	roots := []*command.Node{b.ping(), b.balance(), kit, b.spawn(), b.report()}
	for _, n := range roots {
		if n == nil {
			continue
		}
		if err := reg.Register(n); err != nil {
			return fmt.Errorf("register %s: %w", n.Key(), err)
		}
	}
	return nil
}

// node applies configured overrides to meta. It returns nil for disabled
// commands.
func (b *builder) node(meta command.Metadata, exec command.Executor) *command.Node {
	if o, ok := b.deps.Commands[meta.Key]; ok {
		if o.Disabled {
			return nil
		}
		d := &meta.Defaults
		d.Cooldown, d.Warmup, d.Cost = o.Apply(d.Cooldown, d.Warmup, d.Cost)
	}
	return command.NewNode(meta, exec)
}
