// pkg/core/combatant.go
package core

// Side identifies which force a combatant fights for.
type Side string

const (
	SidePlayer Side = "player"
	SideEnemy  Side = "enemy"
)

// Opponent returns the opposing side.
func (s Side) Opponent() Side {
	if s == SidePlayer {
		return SideEnemy
	}
	return SidePlayer
}

// Controller tells the scheduler who drives a combatant's turn.
type Controller string

const (
	ControllerPlayer Controller = "player"
	ControllerAI     Controller = "ai"
)

// Kind discriminates the Combatant variants.
type Kind string

const (
	KindShip         Kind = "ship"
	KindAircraft     Kind = "aircraft"
	KindInstallation Kind = "installation"
)

// Position is a cell on the battle grid.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// StatusKind is a damage-over-time effect.
type StatusKind string

const (
	StatusFire     StatusKind = "fire"
	StatusFlooding StatusKind = "flooding"
)

// StatusEffect is owned by the afflicted combatant and removed when Remaining reaches 0.
type StatusEffect struct {
	Kind      StatusKind
	Remaining int
}

// Combatant is any destructible entity in a battle.
// Variants are *Ship, *AircraftSquadron and *Installation.
type Combatant interface {
	Base() *Unit
	Kind() Kind
	// TakeDamage subtracts hit points and reports whether this hit destroyed the combatant.
	TakeDamage(amount int) bool
}

// Unit carries the fields every combatant variant shares.
// Alive is derived from HP, so alive == (HP > 0) holds after every mutation.
type Unit struct {
	ID         string
	Name       string
	Side       Side
	Controller Controller
	PlayerID   string // owning player for rewards; empty for AI units

	Pos    Position
	Placed bool // starting position assigned during setup
	Speed  float64

	HP             int
	MaxHP          int
	Armor          float64
	EvasionPercent float64
	Accuracy       float64 // base accuracy when a weapon leaves it unset

	Effects map[StatusKind]*StatusEffect
}

// Base returns the shared unit fields.
func (u *Unit) Base() *Unit {
	return u
}

// Alive reports whether the unit still has hit points.
func (u *Unit) Alive() bool {
	return u.HP > 0
}

// TakeDamage subtracts amount from HP, clamping at zero.
func (u *Unit) TakeDamage(amount int) bool {
	if amount <= 0 || !u.Alive() {
		return false
	}
	u.HP -= amount
	if u.HP <= 0 {
		u.HP = 0
		return true
	}
	return false
}

// Destroy zeroes HP.
func (u *Unit) Destroy() {
	u.HP = 0
}

// Heal restores HP up to MaxHP. Destroyed units stay destroyed.
func (u *Unit) Heal(amount int) {
	if !u.Alive() || amount <= 0 {
		return
	}
	u.HP += amount
	if u.HP > u.MaxHP {
		u.HP = u.MaxHP
	}
}

// ApplyEffect adds a status effect, or refreshes its duration if already present.
func (u *Unit) ApplyEffect(kind StatusKind, duration int) {
	if duration <= 0 {
		return
	}
	if u.Effects == nil {
		u.Effects = make(map[StatusKind]*StatusEffect)
	}
	if e, ok := u.Effects[kind]; ok {
		e.Remaining = duration
		return
	}
	u.Effects[kind] = &StatusEffect{Kind: kind, Remaining: duration}
}

// HasEffect reports whether the effect is active.
func (u *Unit) HasEffect(kind StatusKind) bool {
	_, ok := u.Effects[kind]
	return ok
}

// Installation is a fixed land target such as an airfield or coastal battery.
type Installation struct {
	Unit
	Class   InstallationClass
	Weapons []*Weapon
}

// InstallationClass classifies land targets.
type InstallationClass string

const (
	InstallationAirfield       InstallationClass = "airfield"
	InstallationCoastalBattery InstallationClass = "coastal_battery"
	InstallationPort           InstallationClass = "port"
	InstallationRadar          InstallationClass = "radar"
)

// Kind implements Combatant.
func (i *Installation) Kind() Kind {
	return KindInstallation
}

// Weapon returns the installation weapon with the given id.
func (i *Installation) Weapon(id string) *Weapon {
	return findWeapon(i.Weapons, id)
}

func findWeapon(ws []*Weapon, id string) *Weapon {
	for _, w := range ws {
		if w.ID == id {
			return w
		}
	}
	return nil
}

// WeaponsOf returns the weapon list of ships and installations.
func WeaponsOf(c Combatant) []*Weapon {
	switch v := c.(type) {
	case *Ship:
		return v.Weapons
	case *Installation:
		return v.Weapons
	default:
		return nil
	}
}
