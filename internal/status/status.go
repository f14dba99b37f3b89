// Package status applies recurring fire and flooding damage.
package status

import (
	"fmt"
	"math"

	"github.com/tidewatch/battlecore/pkg/core"
)

// Fraction of max HP dealt per tick.
const (
	FireRate     = 0.05
	FloodingRate = 0.03
)

// tickOrder fixes the order in which effects are applied within a tick.
var tickOrder = []core.StatusKind{core.StatusFire, core.StatusFlooding}

// TickDamage returns the damage one tick of the effect deals to a combatant with maxHP.
func TickDamage(kind core.StatusKind, maxHP int) int {
	switch kind {
	case core.StatusFire:
		return int(math.Floor(FireRate * float64(maxHP)))
	case core.StatusFlooding:
		return int(math.Floor(FloodingRate * float64(maxHP)))
	}
	return 0
}

// Result lists what happened in one tick.
type Result struct {
	Damage    int
	Expired   []core.StatusKind
	Destroyed bool
	Messages  []string
}

// Processor ticks status effects. It is stateless and safe to share between sessions.
type Processor struct{}

// NewProcessor creates a status effect processor.
func NewProcessor() *Processor {
	return &Processor{}
}

// Tick applies one round of every active effect, fire first, each against the running HP.
// Effects are decremented and removed at zero.
func (p *Processor) Tick(c core.Combatant) Result {
	var res Result
	u := c.Base()
	if !u.Alive() || len(u.Effects) == 0 {
		return res
	}

	for _, kind := range tickOrder {
		effect, ok := u.Effects[kind]
		if !ok {
			continue
		}

		dmg := TickDamage(kind, u.MaxHP)
		if u.Alive() && dmg > 0 {
			res.Damage += dmg
			res.Messages = append(res.Messages, fmt.Sprintf("%s takes %d %s damage.", u.Name, dmg, kind))
			if c.TakeDamage(dmg) {
				res.Destroyed = true
			}
		}

		effect.Remaining--
		if effect.Remaining <= 0 {
			delete(u.Effects, kind)
			res.Expired = append(res.Expired, kind)
			res.Messages = append(res.Messages, expiryMessage(u.Name, kind))
		}
	}

	if res.Destroyed {
		res.Messages = append(res.Messages, fmt.Sprintf("%s has been destroyed!", u.Name))
	}
	return res
}

func expiryMessage(name string, kind core.StatusKind) string {
	switch kind {
	case core.StatusFire:
		return fmt.Sprintf("The fire aboard %s has been extinguished.", name)
	case core.StatusFlooding:
		return fmt.Sprintf("Flooding aboard %s is under control.", name)
	}
	return fmt.Sprintf("%s on %s has ended.", kind, name)
}
