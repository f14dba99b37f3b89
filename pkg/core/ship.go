// pkg/core/ship.go
package core

// ShipClass is the hull classification of a ship.
type ShipClass string

const (
	ClassDestroyer    ShipClass = "destroyer"
	ClassLightCruiser ShipClass = "light_cruiser"
	ClassHeavyCruiser ShipClass = "heavy_cruiser"
	ClassBattleship   ShipClass = "battleship"
	ClassCarrier      ShipClass = "carrier"
	ClassSubmarine    ShipClass = "submarine"
)

// Heavy reports whether armor-piercing bombs get their bonus against this class.
func (c ShipClass) Heavy() bool {
	return c == ClassHeavyCruiser || c == ClassBattleship || c == ClassCarrier
}

// Light reports whether armor-piercing bombs over-penetrate this class.
func (c ShipClass) Light() bool {
	return c == ClassDestroyer || c == ClassSubmarine
}

// Ship is a surface vessel or submarine.
type Ship struct {
	Unit
	Class   ShipClass
	Weapons []*Weapon
	AA      []*AAMount

	// Carriers only.
	HangarSpace    int
	HangarCapacity int
}

// Kind implements Combatant.
func (s *Ship) Kind() Kind {
	return KindShip
}

// Weapon returns the ship weapon with the given id.
func (s *Ship) Weapon(id string) *Weapon {
	return findWeapon(s.Weapons, id)
}

// ShellType is the projectile family a weapon fires.
type ShellType string

const (
	ShellAP      ShellType = "AP"
	ShellHE      ShellType = "HE"
	ShellTorpedo ShellType = "torpedo"
)

// MountType is the number of barrels per mount.
type MountType string

const (
	MountSingle   MountType = "single"
	MountTwin     MountType = "twin"
	MountTriple   MountType = "triple"
	MountQuad     MountType = "quad"
	MountSextuple MountType = "sextuple"
	MountOctuple  MountType = "octuple"
)

// Weapon is owned exclusively by its combatant.
type Weapon struct {
	ID       string
	Name     string
	Damage   float64
	Range    float64
	Accuracy float64 // 0..1, zero means use the attacker's base accuracy

	Penetration  int
	Shell        ShellType
	CaliberMm    float64
	BarrelLength float64
	Mount        MountType

	Ammo     int
	MaxAmmo  int
	Reload   int // rounds between shots
	Cooldown int // rounds until the weapon can fire again
}

// Ready reports whether the weapon has ammo and is not reloading.
func (w *Weapon) Ready() bool {
	return w.Ammo > 0 && w.Cooldown == 0
}

// AAMount is an anti-aircraft mount on a ship.
type AAMount struct {
	Name       string
	Mount      MountType
	Count      int
	Damage     float64
	Accuracy   float64
	RateOfFire int
}
