// pkg/core/squadron.go
package core

// AircraftType selects the squadron stat block.
type AircraftType string

const (
	AircraftFighter       AircraftType = "fighter"
	AircraftDiveBomber    AircraftType = "dive_bomber"
	AircraftTorpedoBomber AircraftType = "torpedo_bomber"
)

// Mission is the squadron's current tasking.
type Mission string

const (
	MissionPatrol    Mission = "patrol"
	MissionCAP       Mission = "cap"
	MissionAttack    Mission = "attack"
	MissionReturning Mission = "returning"
	MissionLanded    Mission = "landed"
	MissionCrashed   Mission = "crashed"
)

// TargetClass is a target category a squadron may be able to strike.
type TargetClass string

const (
	TargetShip      TargetClass = "ship"
	TargetAircraft  TargetClass = "aircraft"
	TargetSubmarine TargetClass = "submarine"
)

// AircraftSquadron is a group of aircraft of one type sharing pooled health, fuel and ammo.
type AircraftSquadron struct {
	Unit
	Type AircraftType

	Count         int // effective aircraft remaining
	MaxCount      int
	HPPerAircraft int

	Fuel    int
	MaxFuel int
	Ammo    int
	MaxAmmo int

	Mission   Mission
	CapTarget string // id of the protected combatant, not owned
	Target    string
	CarrierID string

	Targets      map[TargetClass]bool
	DepthCharges bool
	Bomb         ShellType
	AutoEngage   bool

	Damage      float64
	Range       float64
	CombatRange float64
}

// Kind implements Combatant.
func (a *AircraftSquadron) Kind() Kind {
	return KindAircraft
}

// TakeDamage applies damage to the pooled health and prorates the aircraft count.
func (a *AircraftSquadron) TakeDamage(amount int) bool {
	destroyed := a.Unit.TakeDamage(amount)
	a.prorate()
	return destroyed
}

// Lose marks the whole squadron as destroyed.
func (a *AircraftSquadron) Lose(m Mission) {
	a.Unit.Destroy()
	a.Count = 0
	a.Mission = m
}

// CanTarget reports whether the squadron is equipped for the target class.
func (a *AircraftSquadron) CanTarget(tc TargetClass) bool {
	return a.Targets[tc]
}

// Airborne reports whether the squadron is alive and in the air.
func (a *AircraftSquadron) Airborne() bool {
	return a.Alive() && a.Mission != MissionLanded && a.Mission != MissionCrashed
}

// prorate keeps Count within [0, MaxCount] and never raises it.
func (a *AircraftSquadron) prorate() {
	if a.HPPerAircraft <= 0 {
		return
	}
	n := (a.HP + a.HPPerAircraft - 1) / a.HPPerAircraft
	if n < a.Count {
		a.Count = n
	}
	if a.Count > a.MaxCount {
		a.Count = a.MaxCount
	}
	if a.Count < 0 {
		a.Count = 0
	}
}
