// Package aircraft covers the squadron lifecycle: creation, the type-versus-target damage
// matrix, interception, fuel and ammo consumption, and carrier operations.
package aircraft

import (
	"errors"
	"fmt"
	"math"

	"github.com/tidewatch/battlecore/pkg/core"
)

// ReferenceSize is the squadron size the stat table damage is normalized to.
const ReferenceSize = 12

// MaxSquadronSize bounds squadron creation.
const MaxSquadronSize = 24

// DepthChargeAirPenalty is the flat accuracy penalty depth-charge fighters suffer against aircraft.
const DepthChargeAirPenalty = 0.15

const defaultCombatRange = 5.0

var (
	ErrUnknownType = errors.New("unknown aircraft type")
	ErrInvalidSize = errors.New("invalid squadron size")
)

// Stats is one row of the static squadron stat table.
type Stats struct {
	Damage        float64
	Range         float64
	Speed         float64
	HPPerAircraft int
	Accuracy      float64
	Evasion       float64
	Fuel          int
	Ammo          int
	HangarCost    float64 // hangar units per aircraft
}

var statTable = map[core.AircraftType]Stats{
	core.AircraftFighter: {
		Damage: 30, Range: 3, Speed: 6, HPPerAircraft: 10,
		Accuracy: 0.75, Evasion: 25, Fuel: 12, Ammo: 6, HangarCost: 1,
	},
	core.AircraftDiveBomber: {
		Damage: 55, Range: 2, Speed: 4, HPPerAircraft: 12,
		Accuracy: 0.65, Evasion: 15, Fuel: 10, Ammo: 2, HangarCost: 1.5,
	},
	core.AircraftTorpedoBomber: {
		Damage: 70, Range: 3, Speed: 3, HPPerAircraft: 14,
		Accuracy: 0.6, Evasion: 10, Fuel: 10, Ammo: 1, HangarCost: 2,
	},
}

// StatsFor returns the stat table row for the type.
func StatsFor(t core.AircraftType) (Stats, bool) {
	s, ok := statTable[t]
	return s, ok
}

// Options carries identity and equipment for a new squadron.
type Options struct {
	ID         string
	Name       string
	Side       core.Side
	Controller core.Controller
	PlayerID   string
	Pos        core.Position

	DepthCharges bool
	Bomb         core.ShellType
	AutoEngage   bool
	CombatRange  float64
	Mission      core.Mission
}

// CreateSquadron builds a squadron from the stat table and applies equipment modifiers.
// New squadrons start airborne on patrol unless opts.Mission says otherwise.
func CreateSquadron(t core.AircraftType, size int, carrierID string, opts Options) (*core.AircraftSquadron, error) {
	stats, ok := StatsFor(t)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
	if size < 1 || size > MaxSquadronSize {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}

	hp := stats.HPPerAircraft * size
	sq := &core.AircraftSquadron{
		Unit: core.Unit{
			ID:             opts.ID,
			Name:           opts.Name,
			Side:           opts.Side,
			Controller:     opts.Controller,
			PlayerID:       opts.PlayerID,
			Pos:            opts.Pos,
			Speed:          stats.Speed,
			HP:             hp,
			MaxHP:          hp,
			EvasionPercent: stats.Evasion,
			Accuracy:       stats.Accuracy,
		},
		Type:          t,
		Count:         size,
		MaxCount:      size,
		HPPerAircraft: stats.HPPerAircraft,
		Fuel:          stats.Fuel,
		MaxFuel:       stats.Fuel,
		Ammo:          stats.Ammo,
		MaxAmmo:       stats.Ammo,
		CarrierID:     carrierID,
		Damage:        stats.Damage,
		Range:         stats.Range,
		CombatRange:   opts.CombatRange,
		AutoEngage:    opts.AutoEngage,
		Targets:       make(map[core.TargetClass]bool),
	}
	if sq.Name == "" {
		sq.Name = fmt.Sprintf("%d x %s", size, t)
	}
	if sq.CombatRange <= 0 {
		sq.CombatRange = defaultCombatRange
	}

	switch t {
	case core.AircraftFighter:
		sq.Targets[core.TargetAircraft] = true
		if opts.DepthCharges {
			sq.DepthCharges = true
			sq.Targets[core.TargetSubmarine] = true
		}
	case core.AircraftDiveBomber:
		sq.Targets[core.TargetShip] = true
		sq.Targets[core.TargetSubmarine] = true
		sq.Targets[core.TargetAircraft] = true
		sq.Bomb = core.ShellAP
		if opts.Bomb == core.ShellHE {
			sq.Bomb = core.ShellHE
		}
	case core.AircraftTorpedoBomber:
		sq.Targets[core.TargetShip] = true
		sq.Targets[core.TargetSubmarine] = true
	}

	sq.Mission = core.MissionPatrol
	if opts.Mission != "" {
		sq.Mission = opts.Mission
	}
	return sq, nil
}

// HangarCost is the hangar space a squadron of the given size occupies.
func HangarCost(t core.AircraftType, count int) int {
	stats, ok := StatsFor(t)
	if !ok || count <= 0 {
		return 0
	}
	return int(math.Ceil(stats.HangarCost * float64(count)))
}

// ClassOf maps a combatant to the target class used by the capability set.
// Installations have no class and report ok=false.
func ClassOf(c core.Combatant) (core.TargetClass, bool) {
	switch v := c.(type) {
	case *core.AircraftSquadron:
		return core.TargetAircraft, true
	case *core.Ship:
		if v.Class == core.ClassSubmarine {
			return core.TargetSubmarine, true
		}
		return core.TargetShip, true
	}
	return "", false
}
