package builtin

import (
	"time"

	"github.com/mattjoyce/cmdgate/internal/command"
)

type spawn struct{}

func (spawn) Execute(c *command.Context) (command.Result, error) {
	c.SendMessage("builtin.spawn.done")
	return c.Success(), nil
}

func (b *builder) spawn() *command.Node {
	return b.node(command.Metadata{
		Key:         "spawn",
		Aliases:     []string{"spawn"},
		Permissions: []string{"cmdgate.spawn"},
		Source:      command.SourcePlayer,
		Modifiers: []command.ModifierSpec{
			{Modifier: b.warmup, Target: command.SourcePlayer, ExemptPermission: "cmdgate.spawn.instant"},
		},
		DescriptionKey: "builtin.spawn.description",
		Defaults:       command.Defaults{Warmup: 3 * time.Second},
	}, spawn{})
}
