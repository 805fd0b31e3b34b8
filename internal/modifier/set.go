package modifier

import (
	"github.com/mattjoyce/cmdgate/internal/cooldown"
	"github.com/mattjoyce/cmdgate/internal/economy"
	"github.com/mattjoyce/cmdgate/internal/warmup"
)

// Set is one instance of each stock modifier. Build it once per process and
// hand the same Set to every command tree.
type Set struct {
	Cooldown *Cooldown
	Warmup   *Warmup
	Cost     *Cost
}

func NewSet(cooldowns *cooldown.Store, warmups *warmup.Service, wallet *economy.Store, currency string) Set {
	return Set{
		Cooldown: NewCooldown(cooldowns),
		Warmup:   NewWarmup(warmups),
		Cost:     NewCost(wallet, currency),
	}
}
