package builtin

import (
	"github.com/mattjoyce/cmdgate/internal/args"
	"github.com/mattjoyce/cmdgate/internal/command"
)

type ping struct{}

func (ping) Execute(c *command.Context) (command.Result, error) {
	if text, ok := command.One[string](c, "text"); ok {
		c.SendMessage("builtin.ping.echo", text)
		return c.Success(), nil
	}
	c.SendMessage("builtin.ping.pong")
	return c.Success(), nil
}

func (b *builder) ping() *command.Node {
	return b.node(command.Metadata{
		Key:            "ping",
		Aliases:        []string{"ping"},
		Parameters:     []args.Element{args.Optional(args.Remaining("text"))},
		DescriptionKey: "builtin.ping.description",
	}, ping{})
}
