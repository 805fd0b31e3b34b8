package modifier

import (
	"math"
	"time"

	"github.com/mattjoyce/cmdgate/internal/command"
	"github.com/mattjoyce/cmdgate/internal/cooldown"
)

// Cooldown vetoes a command while the actor's last success is inside the
// context's cooldown window and records the time of every success.
type Cooldown struct {
	command.BaseModifier
	store *cooldown.Store
}

func NewCooldown(store *cooldown.Store) *Cooldown {
	return &Cooldown{store: store}
}

func (m *Cooldown) Name() string { return "cooldown" }

func (m *Cooldown) TestRequirement(c *command.Context) (string, bool) {
	if c.IsConsoleAndBypass() || c.Cooldown() <= 0 {
		return "", false
	}
	left, err := m.store.Remaining(c.Ctx(), c.CommandKey(), c.UniqueID(), c.Cooldown())
	if err != nil {
		c.Logger().Error("Cooldown lookup failed", "error", err)
		return "", false
	}
	if left <= 0 {
		return "", false
	}
	return c.Message("cooldown.wait", roundUp(left), c.Node().Path()), true
}

func (m *Cooldown) OnCompletion(c *command.Context) error {
	if c.Cooldown() <= 0 {
		return nil
	}
	_, err := m.store.Record(c.Ctx(), c.CommandKey(), c.UniqueID())
	return err
}

// roundUp renders waits as whole seconds so "0s" is never shown.
func roundUp(d time.Duration) time.Duration {
	return time.Duration(math.Ceil(d.Seconds())) * time.Second
}
