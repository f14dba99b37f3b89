package combat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tidewatch/battlecore/pkg/core"
)

func newSquadron(id string) *core.AircraftSquadron {
	return &core.AircraftSquadron{
		Unit:  core.Unit{ID: id, Name: id, HP: 120, MaxHP: 120},
		Count: 12, MaxCount: 12, HPPerAircraft: 10,
	}
}

func TestShotsPerAircraft(t *testing.T) {
	tests := []struct {
		rof, attackers, want int
	}{
		{10, 1, 10},
		{10, 3, 3},
		{10, 4, 2},
		{2, 3, 0},
		{10, 0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ShotsPerAircraft(tt.rof, tt.attackers), "rof=%d attackers=%d", tt.rof, tt.attackers)
	}
}

func TestMountMultiplier(t *testing.T) {
	assert.Equal(t, 1.0, MountMultiplier(core.MountSingle))
	assert.Equal(t, 1.8, MountMultiplier(core.MountTwin))
	assert.Equal(t, 2.5, MountMultiplier(core.MountTriple))
	assert.Equal(t, 3.2, MountMultiplier(core.MountQuad))
	assert.Equal(t, 4.5, MountMultiplier(core.MountSextuple))
	assert.Equal(t, 5.5, MountMultiplier(core.MountOctuple))
	assert.Equal(t, 1.0, MountMultiplier("gatling"))
}

func TestResolveAADefense(t *testing.T) {
	ship := newShip("cv", 500, 0, 0)
	ship.AA = []*core.AAMount{
		{Name: "40mm", Mount: core.MountQuad, Count: 2, Damage: 1, Accuracy: 0.5, RateOfFire: 5},
	}
	a, b := newSquadron("a"), newSquadron("b")

	// 5 rounds over 2 attackers is 2 shots each: a hit, miss; b hit, hit.
	r := NewResolver(NewSequenceRoller(0.99, 0.1, 0.9, 0.2, 0.3), Durations{})
	res := r.ResolveAADefense(ship, []*core.AircraftSquadron{a, b})

	assert.Equal(t, 3, res.Hits)
	assert.Equal(t, 6, res.PerAircraft["a"])  // 1 * 3.2 * 2
	assert.Equal(t, 12, res.PerAircraft["b"]) // 2 * 6.4
	assert.Equal(t, 18, res.TotalDamage)
	assert.Len(t, res.Messages, 2)
	assert.Equal(t, 120, a.HP, "barrage must not apply damage")
}

func TestResolveAADefense_NoAttackers(t *testing.T) {
	ship := newShip("cv", 500, 0, 0)
	ship.AA = []*core.AAMount{{Mount: core.MountSingle, Damage: 5, Accuracy: 1, RateOfFire: 10}}
	res := NewResolver(nil, Durations{}).ResolveAADefense(ship, nil)
	assert.Zero(t, res.TotalDamage)
	assert.Zero(t, res.Hits)
}

func TestResolveAADefense_ConsumesOneRollPerShot(t *testing.T) {
	ship := newShip("bb", 500, 0, 0)
	ship.AA = []*core.AAMount{
		{Mount: core.MountSingle, Count: 1, Damage: 2, Accuracy: 1, RateOfFire: 7},
		{Mount: core.MountTwin, Count: 1, Damage: 1, Accuracy: 1, RateOfFire: 4},
	}
	roller := NewSequenceRoller(0.0)
	squadrons := []*core.AircraftSquadron{newSquadron("a"), newSquadron("b"), newSquadron("c")}
	roller.Push(make([]float64, 9)...)

	res := NewResolver(roller, Durations{}).ResolveAADefense(ship, squadrons)

	// floor(7/3)=2 and floor(4/3)=1 shots per squadron: 9 rolls.
	assert.Equal(t, 0, roller.Remaining())
	assert.Equal(t, 9, res.Hits)
	for _, sq := range squadrons {
		assert.Equal(t, 5, res.PerAircraft[sq.ID]) // 2*2 + 1.8 floored
	}
}
