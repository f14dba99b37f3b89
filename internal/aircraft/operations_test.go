package aircraft

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidewatch/battlecore/pkg/core"
)

func carrier(pos core.Position, hangar int) *core.Ship {
	return &core.Ship{
		Unit:           core.Unit{ID: "cv1", Name: "Resolute", Side: core.SidePlayer, HP: 800, MaxHP: 800, Pos: pos},
		Class:          core.ClassCarrier,
		HangarSpace:    hangar,
		HangarCapacity: 60,
	}
}

func TestTickResources_CrashOnEmptyTank(t *testing.T) {
	sq := mustSquadron(t, core.AircraftFighter, 12, Options{Name: "VF-2"})
	sq.Fuel = 1

	msgs := TickResources(sq)

	assert.Equal(t, 0, sq.Fuel)
	assert.False(t, sq.Alive())
	assert.Equal(t, 0, sq.HP)
	assert.Equal(t, core.MissionCrashed, sq.Mission)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "crashed")
}

func TestTickResources_LowFuelReturns(t *testing.T) {
	sq := mustSquadron(t, core.AircraftFighter, 12, Options{})
	sq.Fuel = 3
	sq.Mission = core.MissionAttack
	sq.Target = "bandits"

	msgs := TickResources(sq)

	assert.Equal(t, 2, sq.Fuel)
	assert.Equal(t, core.MissionReturning, sq.Mission)
	assert.Empty(t, sq.Target)
	assert.Len(t, msgs, 1)

	msgs = TickResources(sq)
	assert.Equal(t, 1, sq.Fuel)
	assert.Empty(t, msgs, "already returning")
}

func TestTickResources_EmptyMagazineReturns(t *testing.T) {
	sq := mustSquadron(t, core.AircraftDiveBomber, 12, Options{})
	sq.Mission = core.MissionAttack
	sq.Ammo = 0

	msgs := TickResources(sq)

	assert.Equal(t, core.MissionReturning, sq.Mission)
	assert.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "ammunition")
}

func TestTickResources_LandedSkipped(t *testing.T) {
	sq := mustSquadron(t, core.AircraftFighter, 12, Options{Mission: core.MissionLanded})
	fuel := sq.Fuel
	assert.Empty(t, TickResources(sq))
	assert.Equal(t, fuel, sq.Fuel)
}

func TestAttemptLanding(t *testing.T) {
	t.Run("success restores resources", func(t *testing.T) {
		cv := carrier(core.Position{X: 10, Y: 10}, 20)
		sq := mustSquadron(t, core.AircraftFighter, 12, Options{Pos: core.Position{X: 11, Y: 11}})
		sq.Fuel, sq.Ammo = 2, 0
		sq.TakeDamage(8)

		out := AttemptLanding(sq, cv)

		assert.Equal(t, Landed, out.Result)
		assert.Equal(t, core.MissionLanded, sq.Mission)
		assert.Equal(t, 8, cv.HangarSpace)
		assert.Equal(t, sq.MaxFuel, sq.Fuel)
		assert.Equal(t, sq.MaxAmmo, sq.Ammo)
		assert.Equal(t, 117, sq.HP)
		assert.Equal(t, cv.Pos, sq.Pos)
	})

	t.Run("heal is capped", func(t *testing.T) {
		cv := carrier(core.Position{}, 20)
		sq := mustSquadron(t, core.AircraftFighter, 12, Options{})
		AttemptLanding(sq, cv)
		assert.Equal(t, sq.MaxHP, sq.HP)
	})

	t.Run("too far leaves state", func(t *testing.T) {
		cv := carrier(core.Position{X: 0, Y: 0}, 20)
		sq := mustSquadron(t, core.AircraftFighter, 12, Options{Pos: core.Position{X: 3, Y: 0}})

		out := AttemptLanding(sq, cv)

		assert.Equal(t, TooFar, out.Result)
		assert.True(t, sq.Alive())
		assert.Equal(t, 20, cv.HangarSpace)
	})

	t.Run("no hangar space loses squadron", func(t *testing.T) {
		cv := carrier(core.Position{}, 11)
		sq := mustSquadron(t, core.AircraftFighter, 12, Options{})

		out := AttemptLanding(sq, cv)

		assert.Equal(t, Lost, out.Result)
		assert.False(t, sq.Alive())
		assert.Equal(t, 11, cv.HangarSpace)
	})

	t.Run("destroyed carrier loses squadron", func(t *testing.T) {
		cv := carrier(core.Position{}, 40)
		cv.Destroy()
		sq := mustSquadron(t, core.AircraftFighter, 12, Options{})

		assert.Equal(t, Lost, AttemptLanding(sq, cv).Result)
		assert.False(t, sq.Alive())
	})

	t.Run("absent carrier loses squadron", func(t *testing.T) {
		sq := mustSquadron(t, core.AircraftFighter, 12, Options{})
		assert.Equal(t, Lost, AttemptLanding(sq, nil).Result)
		assert.Equal(t, 0, sq.Count)
	})

	t.Run("landed squadron is not airborne", func(t *testing.T) {
		sq := mustSquadron(t, core.AircraftFighter, 12, Options{Mission: core.MissionLanded})
		assert.Equal(t, NotAirborne, AttemptLanding(sq, carrier(core.Position{}, 40)).Result)
	})
}

func TestRecover_IgnoresDistance(t *testing.T) {
	cv := carrier(core.Position{X: 0, Y: 0}, 40)
	sq := mustSquadron(t, core.AircraftTorpedoBomber, 6, Options{Pos: core.Position{X: 30, Y: 30}})

	out := Recover(sq, cv)

	assert.Equal(t, Landed, out.Result)
	assert.Equal(t, 28, cv.HangarSpace)
}

func TestLaunch(t *testing.T) {
	cv := carrier(core.Position{X: 4, Y: 4}, 28)
	sq := mustSquadron(t, core.AircraftFighter, 12, Options{Mission: core.MissionLanded})

	require.NoError(t, Launch(sq, cv))
	assert.Equal(t, core.MissionPatrol, sq.Mission)
	assert.Equal(t, 40, cv.HangarSpace)
	assert.Equal(t, cv.Pos, sq.Pos)

	assert.ErrorIs(t, Launch(sq, cv), ErrNotLanded)

	sq.Mission = core.MissionLanded
	cv.Destroy()
	assert.ErrorIs(t, Launch(sq, cv), ErrCarrierMissing)
}

func TestAutoEngage_FirstMatchWins(t *testing.T) {
	fighter := mustSquadron(t, core.AircraftFighter, 12, Options{ID: "f1", Side: core.SidePlayer, AutoEngage: true, CombatRange: 5})
	near := mustSquadron(t, core.AircraftDiveBomber, 12, Options{ID: "e1", Side: core.SideEnemy, Pos: core.Position{X: 4}})
	nearer := mustSquadron(t, core.AircraftDiveBomber, 12, Options{ID: "e2", Side: core.SideEnemy, Pos: core.Position{X: 1}})
	friendly := mustSquadron(t, core.AircraftDiveBomber, 12, Options{ID: "p2", Side: core.SidePlayer, Pos: core.Position{X: 1}})

	all := []core.Combatant{fighter, friendly, near, nearer}
	msgs := AutoEngage([]*core.AircraftSquadron{fighter}, all)

	assert.Equal(t, core.MissionAttack, fighter.Mission)
	assert.Equal(t, "e1", fighter.Target)
	assert.Len(t, msgs, 1)
}

func TestAutoEngage_Skips(t *testing.T) {
	enemy := mustSquadron(t, core.AircraftTorpedoBomber, 12, Options{ID: "e1", Side: core.SideEnemy, Pos: core.Position{X: 1}})

	tests := []struct {
		name  string
		setup func(sq *core.AircraftSquadron)
	}{
		{"no ammo", func(sq *core.AircraftSquadron) { sq.Ammo = 0 }},
		{"auto engage off", func(sq *core.AircraftSquadron) { sq.AutoEngage = false }},
		{"landed", func(sq *core.AircraftSquadron) { sq.Mission = core.MissionLanded }},
		{"returning", func(sq *core.AircraftSquadron) { sq.Mission = core.MissionReturning }},
		{"dead", func(sq *core.AircraftSquadron) { sq.Lose(core.MissionCrashed) }},
		{"out of range", func(sq *core.AircraftSquadron) { sq.CombatRange = 0.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fighter := mustSquadron(t, core.AircraftFighter, 12, Options{ID: "f1", Side: core.SidePlayer, AutoEngage: true})
			tt.setup(fighter)
			mission := fighter.Mission

			msgs := AutoEngage([]*core.AircraftSquadron{fighter}, []core.Combatant{fighter, enemy})

			assert.Empty(t, msgs)
			assert.Equal(t, mission, fighter.Mission)
			assert.Empty(t, fighter.Target)
		})
	}
}

func TestAutoEngage_BombersNeverIntercept(t *testing.T) {
	bomber := mustSquadron(t, core.AircraftDiveBomber, 12, Options{Side: core.SidePlayer, AutoEngage: true})
	enemy := mustSquadron(t, core.AircraftFighter, 12, Options{ID: "e", Side: core.SideEnemy})
	assert.Empty(t, AutoEngage([]*core.AircraftSquadron{bomber}, []core.Combatant{bomber, enemy}))
}

func TestAutoEngage_CAP(t *testing.T) {
	cv := carrier(core.Position{X: 20, Y: 20}, 0)
	guard := mustSquadron(t, core.AircraftFighter, 12, Options{ID: "f1", Side: core.SidePlayer, Mission: core.MissionCAP, Pos: core.Position{X: 0, Y: 0}})
	guard.CapTarget = cv.ID
	raider := mustSquadron(t, core.AircraftTorpedoBomber, 12, Options{ID: "t1", Side: core.SideEnemy, Pos: core.Position{X: 26, Y: 28}})

	msgs := AutoEngage([]*core.AircraftSquadron{guard}, []core.Combatant{cv, guard, raider})

	assert.Equal(t, core.MissionAttack, guard.Mission)
	assert.Equal(t, "t1", guard.Target)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "CAP")
}

func TestAutoEngage_CAPIgnoresDeadProtectee(t *testing.T) {
	cv := carrier(core.Position{X: 20, Y: 20}, 0)
	cv.Destroy()
	guard := mustSquadron(t, core.AircraftFighter, 12, Options{Side: core.SidePlayer, Mission: core.MissionCAP})
	guard.CapTarget = cv.ID
	raider := mustSquadron(t, core.AircraftTorpedoBomber, 12, Options{ID: "t1", Side: core.SideEnemy, Pos: core.Position{X: 21, Y: 21}})

	assert.Empty(t, AutoEngage([]*core.AircraftSquadron{guard}, []core.Combatant{cv, guard, raider}))
	assert.Equal(t, core.MissionCAP, guard.Mission)
}

func TestAutoEngage_CAPOutsideRadius(t *testing.T) {
	cv := carrier(core.Position{X: 0, Y: 0}, 0)
	guard := mustSquadron(t, core.AircraftFighter, 12, Options{Side: core.SidePlayer, Mission: core.MissionCAP})
	guard.CapTarget = cv.ID
	raider := mustSquadron(t, core.AircraftTorpedoBomber, 12, Options{ID: "t1", Side: core.SideEnemy, Pos: core.Position{X: 8, Y: 8}})

	assert.Empty(t, AutoEngage([]*core.AircraftSquadron{guard}, []core.Combatant{cv, guard, raider}))
}
