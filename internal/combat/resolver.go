// Package combat resolves individual attacks and anti-aircraft barrages.
package combat

import (
	"fmt"
	"math"

	"github.com/tidewatch/battlecore/pkg/core"
)

const (
	MinAccuracy    = 0.05
	MaxAccuracy    = 0.95
	MaxArmorCut    = 0.8
	CriticalChance = 0.10
	CriticalFactor = 2.0
	FireChance     = 0.15
	FloodingChance = 0.30

	// MaxRangeFactor is how far past nominal range a weapon may still fire.
	MaxRangeFactor = 1.2
)

// Durations configures how long rolled status effects last, in rounds.
type Durations struct {
	Fire     int
	Flooding int
}

// DefaultDurations are used when a Resolver is built with zero values.
var DefaultDurations = Durations{Fire: 3, Flooding: 4}

// AttackResult describes the outcome of one attack. It does not mutate the target.
type AttackResult struct {
	Hit      bool
	Critical bool
	Damage   int
	Accuracy float64
	Effects  []core.StatusKind
	Message  string
}

// Resolver resolves attacks using the configured randomness.
type Resolver struct {
	roller    Roller
	durations Durations
}

// NewResolver creates a resolver. A nil roller uses math/rand/v2.
func NewResolver(roller Roller, durations Durations) *Resolver {
	if roller == nil {
		roller = NewRandRoller()
	}
	if durations.Fire <= 0 {
		durations.Fire = DefaultDurations.Fire
	}
	if durations.Flooding <= 0 {
		durations.Flooding = DefaultDurations.Flooding
	}
	return &Resolver{roller: roller, durations: durations}
}

// Roller exposes the resolver's randomness for turn ordering.
func (r *Resolver) Roller() Roller {
	return r.roller
}

// RangePenalty is the accuracy subtracted at the given distance, as a four-segment curve
// over the ratio of distance to weapon range.
func RangePenalty(distance, weaponRange float64) float64 {
	if weaponRange <= 0 || distance <= 0 {
		return 0
	}
	ratio := distance / weaponRange
	switch {
	case ratio <= 0.3:
		return 0.015 * ratio / 0.3
	case ratio <= 0.6:
		return 0.015 + (ratio-0.3)/0.3*0.045
	case ratio <= 1.0:
		return 0.06 + (ratio-0.6)/0.4*0.14
	default:
		return 0.20 + (ratio-1.0)/0.2*0.20
	}
}

// InRange reports whether distance is within the weapon's extended firing range.
func InRange(distance, weaponRange float64) bool {
	return distance <= weaponRange*MaxRangeFactor
}

// Accuracy computes the clamped hit chance.
func Accuracy(base, distance, weaponRange, evasionPercent float64, weather Weather) float64 {
	acc := base
	acc -= RangePenalty(distance, weaponRange)
	acc -= evasionPercent * 0.2 / 100
	acc *= weather.AccuracyMultiplier()
	return clamp(acc, MinAccuracy, MaxAccuracy)
}

// ReduceByArmor applies armor mitigation, capped at 80%.
func ReduceByArmor(damage, armor float64) float64 {
	if armor <= 0 {
		return damage
	}
	return damage * (1 - math.Min(MaxArmorCut, armor/100))
}

// ResolveAttack rolls to hit, for a critical and for status effects.
func (r *Resolver) ResolveAttack(attacker, target core.Combatant, w *core.Weapon, distance float64, weather Weather) AttackResult {
	a, t := attacker.Base(), target.Base()

	base := w.Accuracy
	if base <= 0 {
		base = a.Accuracy
	}
	res := AttackResult{
		Accuracy: Accuracy(base, distance, w.Range, t.EvasionPercent, weather),
	}

	if r.roller.Float64() >= res.Accuracy {
		res.Message = fmt.Sprintf("%s's %s misses %s.", a.Name, w.Name, t.Name)
		return res
	}
	res.Hit = true

	dmg := w.Damage
	if r.roller.Float64() <= CriticalChance {
		res.Critical = true
		dmg *= CriticalFactor
	}
	if w.Shell != core.ShellTorpedo {
		dmg = ReduceByArmor(dmg, t.Armor)
	}
	res.Damage = int(math.Floor(dmg))

	switch w.Shell {
	case core.ShellHE:
		if r.roller.Float64() < FireChance {
			res.Effects = append(res.Effects, core.StatusFire)
		}
	case core.ShellTorpedo:
		if r.roller.Float64() < FloodingChance {
			res.Effects = append(res.Effects, core.StatusFlooding)
		}
	}

	res.Message = fmt.Sprintf("%s's %s hits %s for %d damage!", a.Name, w.Name, t.Name, res.Damage)
	if res.Critical {
		res.Message += " CRITICAL HIT!"
	}
	for _, e := range res.Effects {
		res.Message += fmt.Sprintf(" %s is %s!", t.Name, effectVerb(e))
	}
	return res
}

// Apply applies a hit's damage and status effects to the target and reports whether
// the hit destroyed it.
func (r *Resolver) Apply(target core.Combatant, res AttackResult) bool {
	if !res.Hit {
		return false
	}
	destroyed := ApplyDamage(target, res.Damage)
	if !target.Base().Alive() {
		return destroyed
	}
	for _, e := range res.Effects {
		target.Base().ApplyEffect(e, r.duration(e))
	}
	return destroyed
}

func (r *Resolver) duration(kind core.StatusKind) int {
	if kind == core.StatusFlooding {
		return r.durations.Flooding
	}
	return r.durations.Fire
}

// ApplyDamage subtracts damage from the combatant and reports whether it was destroyed by it.
func ApplyDamage(c core.Combatant, damage int) bool {
	return c.TakeDamage(damage)
}

// ConsumeShot spends one round of ammo and starts the reload cooldown.
func ConsumeShot(w *core.Weapon) {
	if w.Ammo > 0 {
		w.Ammo--
	}
	w.Cooldown = w.Reload
}

// CoolDown advances reload timers by one round.
func CoolDown(ws []*core.Weapon) {
	for _, w := range ws {
		if w.Cooldown > 0 {
			w.Cooldown--
		}
	}
}

func effectVerb(kind core.StatusKind) string {
	if kind == core.StatusFlooding {
		return "flooding"
	}
	return "on fire"
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
