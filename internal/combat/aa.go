package combat

import (
	"fmt"
	"math"

	"github.com/tidewatch/battlecore/pkg/core"
)

var mountMultipliers = map[core.MountType]float64{
	core.MountSingle:   1.0,
	core.MountTwin:     1.8,
	core.MountTriple:   2.5,
	core.MountQuad:     3.2,
	core.MountSextuple: 4.5,
	core.MountOctuple:  5.5,
}

// MountMultiplier returns the damage factor for a mount type. Unknown mounts count as single.
func MountMultiplier(m core.MountType) float64 {
	if v, ok := mountMultipliers[m]; ok {
		return v
	}
	return 1.0
}

// ShotsPerAircraft splits a mount's rate of fire evenly across the attackers.
func ShotsPerAircraft(rateOfFire, attackers int) int {
	if attackers < 1 || rateOfFire <= 0 {
		return 0
	}
	return rateOfFire / attackers
}

// AADefenseResult is the total flak damage and its split per incoming squadron.
type AADefenseResult struct {
	TotalDamage int
	Hits        int
	PerAircraft map[string]int
	Messages    []string
}

// ResolveAADefense fires every AA mount of the ship at the incoming squadrons.
// Damage is not applied.
func (r *Resolver) ResolveAADefense(ship *core.Ship, incoming []*core.AircraftSquadron) AADefenseResult {
	res := AADefenseResult{PerAircraft: make(map[string]int)}
	if len(incoming) == 0 || ship == nil || !ship.Alive() {
		return res
	}

	raw := make(map[string]float64, len(incoming))
	for _, mount := range ship.AA {
		shots := ShotsPerAircraft(mount.RateOfFire, len(incoming))
		perHit := mount.Damage * MountMultiplier(mount.Mount) * float64(max(mount.Count, 1))
		for _, sq := range incoming {
			for range shots {
				if r.roller.Float64() < mount.Accuracy {
					res.Hits++
					raw[sq.ID] += perHit
				}
			}
		}
	}

	for _, sq := range incoming {
		dmg := int(math.Floor(raw[sq.ID]))
		if dmg == 0 {
			continue
		}
		res.PerAircraft[sq.ID] = dmg
		res.TotalDamage += dmg
		res.Messages = append(res.Messages, fmt.Sprintf("%s's anti-aircraft fire hits %s for %d damage.", ship.Name, sq.Name, dmg))
	}
	return res
}
