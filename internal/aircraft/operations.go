package aircraft

import (
	"errors"
	"fmt"

	"github.com/tidewatch/battlecore/internal/geo"
	"github.com/tidewatch/battlecore/pkg/core"
)

const (
	// CAPRadius is the protection radius around a CAP fighter's protected combatant.
	CAPRadius = 10.0
	// LandingDistance is the maximum distance from the carrier for a landing.
	LandingDistance = 2.0
	// LowFuel forces a squadron to return.
	LowFuel = 2
	// LandingRepair is the HP restored on a successful landing.
	LandingRepair = 5
)

var (
	ErrNotLanded      = errors.New("squadron is not landed")
	ErrCarrierMissing = errors.New("carrier is destroyed or absent")
)

// AutoEngage scans for interceptions. Auto-engaging fighters look for enemy aircraft within
// their combat range, CAP fighters within CAPRadius of the combatant they protect. The first
// match in registry order wins.
func AutoEngage(squadrons []*core.AircraftSquadron, all []core.Combatant) []string {
	var msgs []string
	for _, sq := range squadrons {
		if !canIntercept(sq) {
			continue
		}

		if sq.AutoEngage && (sq.Mission == core.MissionPatrol || sq.Mission == core.MissionCAP) {
			if enemy := firstEnemyAircraft(sq, all, sq.Pos, sq.CombatRange); enemy != nil {
				engage(sq, enemy)
				msgs = append(msgs, fmt.Sprintf("%s engages %s!", sq.Name, enemy.Name))
				continue
			}
		}

		if sq.Mission != core.MissionCAP || sq.CapTarget == "" {
			continue
		}
		protected := find(all, sq.CapTarget)
		if protected == nil || !protected.Base().Alive() {
			continue
		}
		if enemy := firstEnemyAircraft(sq, all, protected.Base().Pos, CAPRadius); enemy != nil {
			engage(sq, enemy)
			msgs = append(msgs, fmt.Sprintf("%s on CAP over %s intercepts %s!", sq.Name, protected.Base().Name, enemy.Name))
		}
	}
	return msgs
}

func canIntercept(sq *core.AircraftSquadron) bool {
	return sq.Type == core.AircraftFighter && sq.Airborne() && sq.Ammo > 0
}

func engage(sq, enemy *core.AircraftSquadron) {
	sq.Mission = core.MissionAttack
	sq.Target = enemy.ID
}

func firstEnemyAircraft(sq *core.AircraftSquadron, all []core.Combatant, center core.Position, radius float64) *core.AircraftSquadron {
	for _, c := range all {
		enemy, ok := c.(*core.AircraftSquadron)
		if !ok || enemy.Side == sq.Side || !enemy.Airborne() {
			continue
		}
		if geo.Within(center, enemy.Pos, radius) {
			return enemy
		}
	}
	return nil
}

func find(all []core.Combatant, id string) core.Combatant {
	for _, c := range all {
		if c.Base().ID == id {
			return c
		}
	}
	return nil
}

// TickResources burns one round of fuel and forces a return on low fuel or empty magazines.
// A squadron that runs dry crashes and is not processed further.
func TickResources(a *core.AircraftSquadron) []string {
	if !a.Airborne() {
		return nil
	}

	var msgs []string
	a.Fuel--
	if a.Fuel <= 0 {
		a.Fuel = 0
		a.Lose(core.MissionCrashed)
		return append(msgs, fmt.Sprintf("%s has run out of fuel and crashed!", a.Name))
	}
	if a.Fuel <= LowFuel && a.Mission != core.MissionReturning {
		a.Mission = core.MissionReturning
		a.Target = ""
		msgs = append(msgs, fmt.Sprintf("%s is low on fuel and returning to base.", a.Name))
	}
	if a.Ammo <= 0 && a.Mission == core.MissionAttack {
		a.Mission = core.MissionReturning
		a.Target = ""
		msgs = append(msgs, fmt.Sprintf("%s is out of ammunition and returning to base.", a.Name))
	}
	return msgs
}

// LandingResult enumerates landing outcomes.
type LandingResult string

const (
	Landed      LandingResult = "landed"
	TooFar      LandingResult = "too_far"
	Lost        LandingResult = "lost"
	NotAirborne LandingResult = "not_airborne"
)

// LandingOutcome is the result of a landing attempt.
type LandingOutcome struct {
	Result  LandingResult
	Message string
}

// AttemptLanding lands the squadron if it is within LandingDistance of the carrier.
// Insufficient hangar space or a missing carrier loses the squadron.
func AttemptLanding(a *core.AircraftSquadron, carrier *core.Ship) LandingOutcome {
	if !a.Airborne() {
		return LandingOutcome{Result: NotAirborne}
	}
	if carrier != nil && carrier.Alive() && geo.Distance(a.Pos, carrier.Pos) > LandingDistance {
		return LandingOutcome{
			Result:  TooFar,
			Message: fmt.Sprintf("%s is too far from %s to land.", a.Name, carrier.Name),
		}
	}
	return land(a, carrier)
}

// Recover lands the squadron on its carrier regardless of distance.
func Recover(a *core.AircraftSquadron, carrier *core.Ship) LandingOutcome {
	if !a.Airborne() {
		return LandingOutcome{Result: NotAirborne}
	}
	return land(a, carrier)
}

func land(a *core.AircraftSquadron, carrier *core.Ship) LandingOutcome {
	if carrier == nil || !carrier.Alive() {
		a.Lose(core.MissionCrashed)
		return LandingOutcome{
			Result:  Lost,
			Message: fmt.Sprintf("%s has no carrier to return to and is lost!", a.Name),
		}
	}

	cost := HangarCost(a.Type, a.Count)
	if carrier.HangarSpace < cost {
		a.Lose(core.MissionCrashed)
		return LandingOutcome{
			Result:  Lost,
			Message: fmt.Sprintf("%s has no hangar space for %s, the squadron is lost!", carrier.Name, a.Name),
		}
	}

	carrier.HangarSpace -= cost
	a.Fuel = a.MaxFuel
	a.Ammo = a.MaxAmmo
	a.Heal(LandingRepair)
	a.Mission = core.MissionLanded
	a.Target = ""
	a.Pos = carrier.Pos
	return LandingOutcome{
		Result:  Landed,
		Message: fmt.Sprintf("%s has landed on %s.", a.Name, carrier.Name),
	}
}

// Launch takes a landed squadron off its carrier, freeing hangar space.
func Launch(a *core.AircraftSquadron, carrier *core.Ship) error {
	if a.Mission != core.MissionLanded || !a.Alive() {
		return ErrNotLanded
	}
	if carrier == nil || !carrier.Alive() {
		return ErrCarrierMissing
	}
	carrier.HangarSpace += HangarCost(a.Type, a.Count)
	if carrier.HangarCapacity > 0 && carrier.HangarSpace > carrier.HangarCapacity {
		carrier.HangarSpace = carrier.HangarCapacity
	}
	a.Mission = core.MissionPatrol
	a.Pos = carrier.Pos
	return nil
}
