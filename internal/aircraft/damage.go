package aircraft

import (
	"fmt"
	"math"

	"github.com/tidewatch/battlecore/pkg/core"
)

// CalculateDamage returns the strike damage of a squadron against a target, or 0 when the
// pairing is invalid.
func CalculateDamage(a *core.AircraftSquadron, target core.Combatant) int {
	if a == nil || a.Count <= 0 {
		return 0
	}
	base := a.Damage * float64(a.Count) / ReferenceSize
	return int(math.Floor(base * matchup(a, target)))
}

// CanStrike reports whether the squadron is equipped for the target's class and its
// type deals damage to it. Installations have no target class; only bombers that
// carry bombs can hit them.
func CanStrike(a *core.AircraftSquadron, target core.Combatant) bool {
	if tc, ok := ClassOf(target); ok {
		if !a.CanTarget(tc) {
			return false
		}
	} else if a.Bomb == "" {
		return false
	}
	return matchup(a, target) > 0
}

func matchup(a *core.AircraftSquadron, target core.Combatant) float64 {
	switch a.Type {
	case core.AircraftFighter:
		return fighterMatchup(a, target)
	case core.AircraftDiveBomber:
		return diveBomberMatchup(a, target)
	case core.AircraftTorpedoBomber:
		if _, ok := target.(*core.Ship); ok {
			return 1.0
		}
		return 0
	}
	return 0
}

func fighterMatchup(a *core.AircraftSquadron, target core.Combatant) float64 {
	switch v := target.(type) {
	case *core.AircraftSquadron:
		if a.DepthCharges {
			return 0.85
		}
		return 1.0
	case *core.Ship:
		if v.Class == core.ClassSubmarine && a.DepthCharges {
			return 0.6
		}
	}
	return 0
}

func diveBomberMatchup(a *core.AircraftSquadron, target core.Combatant) float64 {
	switch v := target.(type) {
	case *core.AircraftSquadron:
		return 0.5
	case *core.Ship:
		if a.Bomb == core.ShellHE {
			return 1.0
		}
		switch {
		case v.Class.Heavy():
			return 1.3
		case v.Class.Light():
			return 0.4
		}
		return 1.0
	case *core.Installation:
		if a.Bomb == core.ShellHE && v.Class == core.InstallationAirfield {
			return 1.2
		}
		return 1.0
	}
	return 0
}

// AccuracyAgainst returns the squadron's base accuracy against the target.
func AccuracyAgainst(a *core.AircraftSquadron, target core.Combatant) float64 {
	acc := a.Accuracy
	if _, ok := target.(*core.AircraftSquadron); ok && a.DepthCharges {
		acc -= DepthChargeAirPenalty
	}
	return acc
}

// StrikeWeapon describes a squadron's attack on the target as a weapon so it can be
// resolved like gunfire. Torpedo runs ignore armor.
func StrikeWeapon(a *core.AircraftSquadron, target core.Combatant) *core.Weapon {
	w := &core.Weapon{
		ID:       string(a.Type),
		Damage:   float64(CalculateDamage(a, target)),
		Range:    a.Range,
		Accuracy: AccuracyAgainst(a, target),
		Ammo:     a.Ammo,
		MaxAmmo:  a.MaxAmmo,
	}
	switch a.Type {
	case core.AircraftFighter:
		w.Name = "guns"
		if _, sub := target.(*core.Ship); sub {
			w.Name = "depth charges"
		}
	case core.AircraftDiveBomber:
		w.Name = fmt.Sprintf("%s bombs", a.Bomb)
		w.Shell = a.Bomb
	case core.AircraftTorpedoBomber:
		w.Name = "torpedoes"
		w.Shell = core.ShellTorpedo
	}
	return w
}
