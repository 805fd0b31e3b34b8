package builtin

import (
	"strings"

	"github.com/mattjoyce/cmdgate/internal/args"
	"github.com/mattjoyce/cmdgate/internal/command"
	"github.com/mattjoyce/cmdgate/internal/economy"
)

type balance struct {
	wallet   *economy.Store
	currency string
}

func (e *balance) Execute(c *command.Context) (command.Result, error) {
	name := c.Actor().Name()
	key := c.UniqueID()
	if other, ok := command.One[string](c, "name"); ok && !strings.EqualFold(other, name) {
		if !c.TestPermission("cmdgate.balance.others") {
			return c.Fail("command.noperm", c.Node().Path()+" "+other), nil
		}
		name = other
		key = command.PlayerID(other).String()
	}

	bal, err := e.wallet.Balance(c.Ctx(), key)
	if err != nil {
		return command.Result{}, err
	}
	c.SendMessage("builtin.balance.show", name, bal, e.currency)
	return c.Success(), nil
}

func (b *builder) balance() *command.Node {
	return b.node(command.Metadata{
		Key:            "balance",
		Aliases:        []string{"balance", "bal", "money"},
		Permissions:    []string{"cmdgate.balance"},
		Parameters:     []args.Element{args.Optional(args.String("name"))},
		DescriptionKey: "builtin.balance.description",
	}, &balance{wallet: b.deps.Wallet, currency: b.deps.Currency})
}
