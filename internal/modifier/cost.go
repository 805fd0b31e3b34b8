package modifier

import (
	"github.com/mattjoyce/cmdgate/internal/command"
	"github.com/mattjoyce/cmdgate/internal/economy"
)

// Cost vetoes a command the actor cannot afford and charges it on success.
type Cost struct {
	command.BaseModifier
	store    *economy.Store
	currency string
}

func NewCost(store *economy.Store, currency string) *Cost {
	return &Cost{store: store, currency: currency}
}

func (m *Cost) Name() string { return "cost" }

func (m *Cost) TestRequirement(c *command.Context) (string, bool) {
	if c.IsConsoleAndBypass() || c.Cost() <= 0 {
		return "", false
	}
	bal, err := m.store.Balance(c.Ctx(), c.UniqueID())
	if err != nil {
		c.Logger().Error("Balance lookup failed", "error", err)
		return "", false
	}
	if bal >= c.Cost() {
		return "", false
	}
	return c.Message("cost.insufficient", c.Node().Path(), c.Cost(), m.currency, bal), true
}

func (m *Cost) OnCompletion(c *command.Context) error {
	if c.IsConsoleAndBypass() || c.Cost() <= 0 {
		return nil
	}
	if _, err := m.store.Withdraw(c.Ctx(), c.UniqueID(), c.Cost()); err != nil {
		return err
	}
	c.SendMessage("cost.charged", c.Cost(), m.currency, c.Node().Path())
	return nil
}
