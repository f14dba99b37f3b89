package aircraft

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidewatch/battlecore/pkg/core"
)

func mustSquadron(t *testing.T, typ core.AircraftType, size int, opts Options) *core.AircraftSquadron {
	t.Helper()
	sq, err := CreateSquadron(typ, size, "cv1", opts)
	require.NoError(t, err)
	return sq
}

func TestCreateSquadron_Stats(t *testing.T) {
	tests := []struct {
		typ      core.AircraftType
		hp       int
		accuracy float64
		fuel     int
		ammo     int
	}{
		{core.AircraftFighter, 120, 0.75, 12, 6},
		{core.AircraftDiveBomber, 144, 0.65, 10, 2},
		{core.AircraftTorpedoBomber, 168, 0.6, 10, 1},
	}

	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			sq := mustSquadron(t, tt.typ, 12, Options{ID: "sq"})
			assert.Equal(t, tt.hp, sq.HP)
			assert.Equal(t, tt.hp, sq.MaxHP)
			assert.Equal(t, tt.accuracy, sq.Accuracy)
			assert.Equal(t, tt.fuel, sq.Fuel)
			assert.Equal(t, tt.ammo, sq.Ammo)
			assert.Equal(t, 12, sq.Count)
			assert.Equal(t, 12, sq.MaxCount)
			assert.Equal(t, "cv1", sq.CarrierID)
			assert.Equal(t, core.MissionPatrol, sq.Mission)
			assert.True(t, sq.Alive())
		})
	}
}

func TestCreateSquadron_Equipment(t *testing.T) {
	dc := mustSquadron(t, core.AircraftFighter, 6, Options{DepthCharges: true})
	assert.True(t, dc.CanTarget(core.TargetSubmarine))
	assert.True(t, dc.CanTarget(core.TargetAircraft))
	assert.False(t, dc.CanTarget(core.TargetShip))

	plain := mustSquadron(t, core.AircraftFighter, 6, Options{})
	assert.False(t, plain.CanTarget(core.TargetSubmarine))

	he := mustSquadron(t, core.AircraftDiveBomber, 6, Options{Bomb: core.ShellHE})
	assert.Equal(t, core.ShellHE, he.Bomb)
	ap := mustSquadron(t, core.AircraftDiveBomber, 6, Options{})
	assert.Equal(t, core.ShellAP, ap.Bomb)

	tb := mustSquadron(t, core.AircraftTorpedoBomber, 6, Options{DepthCharges: true})
	assert.False(t, tb.DepthCharges, "only fighters carry depth charges")
}

func TestCreateSquadron_Errors(t *testing.T) {
	_, err := CreateSquadron("zeppelin", 4, "", Options{})
	assert.True(t, errors.Is(err, ErrUnknownType))

	_, err = CreateSquadron(core.AircraftFighter, 0, "", Options{})
	assert.True(t, errors.Is(err, ErrInvalidSize))

	_, err = CreateSquadron(core.AircraftFighter, MaxSquadronSize+1, "", Options{})
	assert.True(t, errors.Is(err, ErrInvalidSize))
}

func TestHangarCost(t *testing.T) {
	assert.Equal(t, 12, HangarCost(core.AircraftFighter, 12))
	assert.Equal(t, 8, HangarCost(core.AircraftDiveBomber, 5))
	assert.Equal(t, 10, HangarCost(core.AircraftTorpedoBomber, 5))
	assert.Equal(t, 0, HangarCost("blimp", 5))
}

func TestSquadronCountProration(t *testing.T) {
	sq := mustSquadron(t, core.AircraftFighter, 12, Options{})
	prev := sq.Count
	for _, dmg := range []int{5, 10, 1, 23, 0, 40, 7, 100} {
		sq.TakeDamage(dmg)
		assert.LessOrEqual(t, sq.Count, prev, "count never increases")
		assert.GreaterOrEqual(t, sq.Count, 0)
		assert.LessOrEqual(t, sq.Count, sq.MaxCount)
		assert.Equal(t, sq.HP > 0, sq.Alive())
		prev = sq.Count
	}
	assert.Equal(t, 0, sq.Count)

	sq = mustSquadron(t, core.AircraftFighter, 12, Options{})
	sq.TakeDamage(15)
	assert.Equal(t, 11, sq.Count) // ceil(105/10)
	sq.Heal(10)
	assert.Equal(t, 11, sq.Count, "healing does not restore aircraft")
}

func TestClassOf(t *testing.T) {
	cls, ok := ClassOf(&core.Ship{Class: core.ClassSubmarine})
	assert.True(t, ok)
	assert.Equal(t, core.TargetSubmarine, cls)

	cls, ok = ClassOf(&core.Ship{Class: core.ClassBattleship})
	assert.True(t, ok)
	assert.Equal(t, core.TargetShip, cls)

	cls, _ = ClassOf(&core.AircraftSquadron{})
	assert.Equal(t, core.TargetAircraft, cls)

	_, ok = ClassOf(&core.Installation{})
	assert.False(t, ok)
}
