package parser

import (
	"fmt"
	"slices"

	"github.com/tidewatch/battlecore/internal/aircraft"
	"github.com/tidewatch/battlecore/internal/geo"
	"github.com/tidewatch/battlecore/internal/penetration"
	"github.com/tidewatch/battlecore/pkg/core"
)

var (
	shipClasses = []string{
		string(core.ClassDestroyer), string(core.ClassLightCruiser), string(core.ClassHeavyCruiser),
		string(core.ClassBattleship), string(core.ClassCarrier), string(core.ClassSubmarine),
	}
	installationClasses = []string{
		string(core.InstallationAirfield), string(core.InstallationCoastalBattery),
		string(core.InstallationPort), string(core.InstallationRadar),
	}
)

// unitData is the JSON shape shared by every combatant payload.
type unitData struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Side       string  `json:"side"`
	Controller string  `json:"controller"`
	PlayerID   string  `json:"playerId"`
	Pos        string  `json:"pos"`
	Speed      float64 `json:"speed"`
	HP         int     `json:"hp"`
	MaxHP      int     `json:"maxHp"`
	Armor      float64 `json:"armor"`
	Evasion    float64 `json:"evasion"`
	Accuracy   float64 `json:"accuracy"`
}

type weaponData struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Damage       float64 `json:"damage"`
	Range        float64 `json:"range"`
	Accuracy     float64 `json:"accuracy"`
	Penetration  int     `json:"penetration"`
	Shell        string  `json:"shell"`
	CaliberMm    float64 `json:"caliberMm"`
	BarrelLength float64 `json:"barrelLength"`
	Mount        string  `json:"mount"`
	Ammo         int     `json:"ammo"`
	MaxAmmo      int     `json:"maxAmmo"`
	Reload       int     `json:"reload"`
}

type aaData struct {
	Name       string  `json:"name"`
	Mount      string  `json:"mount"`
	Count      int     `json:"count"`
	Damage     float64 `json:"damage"`
	Accuracy   float64 `json:"accuracy"`
	RateOfFire int     `json:"rateOfFire"`
}

type shipData struct {
	unitData
	Class          string       `json:"class"`
	Weapons        []weaponData `json:"weapons"`
	AA             []aaData     `json:"aa"`
	HangarSpace    int          `json:"hangarSpace"`
	HangarCapacity int          `json:"hangarCapacity"`
}

type installationData struct {
	unitData
	Class   string       `json:"class"`
	Weapons []weaponData `json:"weapons"`
}

type squadronData struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Side         string  `json:"side"`
	Controller   string  `json:"controller"`
	PlayerID     string  `json:"playerId"`
	Pos          string  `json:"pos"`
	DepthCharges bool    `json:"depthCharges"`
	Bomb         string  `json:"bomb"`
	AutoEngage   bool    `json:"autoEngage"`
	CombatRange  float64 `json:"combatRange"`
	Mission      string  `json:"mission"`
}

// position parses an optional "x,y" field. An empty field leaves the combatant unplaced.
func position(raw string) (core.Position, bool, error) {
	if raw == "" {
		return core.Position{}, false, nil
	}
	pos, err := geo.PositionFromString(raw)
	if err != nil {
		return core.Position{}, false, fmt.Errorf("error parsing position %q: %w", raw, err)
	}
	return pos, true, nil
}

func (d unitData) unit() (core.Unit, error) {
	pos, placed, err := position(d.Pos)
	if err != nil {
		return core.Unit{}, err
	}
	u := core.Unit{
		ID:             d.ID,
		Name:           d.Name,
		Side:           core.Side(d.Side),
		Controller:     core.Controller(d.Controller),
		PlayerID:       d.PlayerID,
		Pos:            pos,
		Placed:         placed,
		Speed:          d.Speed,
		HP:             d.HP,
		MaxHP:          d.MaxHP,
		Armor:          d.Armor,
		EvasionPercent: d.Evasion,
		Accuracy:       d.Accuracy,
	}
	if u.Name == "" {
		u.Name = u.ID
	}
	// a payload may carry only one of the two
	if u.MaxHP == 0 {
		u.MaxHP = u.HP
	}
	if u.HP == 0 {
		u.HP = u.MaxHP
	}
	return u, nil
}

func (d weaponData) weapon() *core.Weapon {
	w := &core.Weapon{
		ID:           d.ID,
		Name:         d.Name,
		Damage:       d.Damage,
		Range:        d.Range,
		Accuracy:     d.Accuracy,
		Penetration:  d.Penetration,
		Shell:        core.ShellType(d.Shell),
		CaliberMm:    d.CaliberMm,
		BarrelLength: d.BarrelLength,
		Mount:        core.MountType(d.Mount),
		Ammo:         d.Ammo,
		MaxAmmo:      d.MaxAmmo,
		Reload:       d.Reload,
	}
	if w.Name == "" {
		w.Name = w.ID
	}
	if w.MaxAmmo < w.Ammo {
		w.MaxAmmo = w.Ammo
	}
	if w.Penetration == 0 && w.CaliberMm > 0 {
		w.Penetration = penetration.ForWeapon(w).Penetration
	}
	return w
}

func weapons(data []weaponData) []*core.Weapon {
	out := make([]*core.Weapon, 0, len(data))
	for _, d := range data {
		out = append(out, d.weapon())
	}
	return out
}

// ParseShip parses [sessionId, shipJSON].
func (p *Parser) ParseShip(data []string) (CombatantRequest, error) {
	data, err := clean(data, 2)
	if err != nil {
		return CombatantRequest{}, err
	}

	var d shipData
	if err := p.decodeJSON("ship", data[1], &d); err != nil {
		return CombatantRequest{}, err
	}
	if !slices.Contains(shipClasses, d.Class) {
		return CombatantRequest{}, fmt.Errorf("unknown ship class %q", d.Class)
	}
	u, err := d.unit()
	if err != nil {
		return CombatantRequest{}, err
	}

	ship := &core.Ship{
		Unit:           u,
		Class:          core.ShipClass(d.Class),
		Weapons:        weapons(d.Weapons),
		HangarSpace:    d.HangarSpace,
		HangarCapacity: d.HangarCapacity,
	}
	for _, a := range d.AA {
		ship.AA = append(ship.AA, &core.AAMount{
			Name:       a.Name,
			Mount:      core.MountType(a.Mount),
			Count:      a.Count,
			Damage:     a.Damage,
			Accuracy:   a.Accuracy,
			RateOfFire: a.RateOfFire,
		})
	}
	if ship.Class == core.ClassCarrier && ship.HangarSpace == 0 {
		ship.HangarSpace = ship.HangarCapacity
	}

	p.logger.Debug("Parsed ship", "session", data[0], "id", ship.ID, "class", ship.Class)
	return CombatantRequest{SessionID: data[0], Combatant: ship}, nil
}

// ParseInstallation parses [sessionId, installationJSON].
func (p *Parser) ParseInstallation(data []string) (CombatantRequest, error) {
	data, err := clean(data, 2)
	if err != nil {
		return CombatantRequest{}, err
	}

	var d installationData
	if err := p.decodeJSON("installation", data[1], &d); err != nil {
		return CombatantRequest{}, err
	}
	if !slices.Contains(installationClasses, d.Class) {
		return CombatantRequest{}, fmt.Errorf("unknown installation class %q", d.Class)
	}
	u, err := d.unit()
	if err != nil {
		return CombatantRequest{}, err
	}
	u.Speed = 0

	inst := &core.Installation{
		Unit:    u,
		Class:   core.InstallationClass(d.Class),
		Weapons: weapons(d.Weapons),
	}
	return CombatantRequest{SessionID: data[0], Combatant: inst}, nil
}

// ParseSquadron parses [sessionId, aircraftType, size, carrierId, optionsJSON].
// Stats come from the aircraft table; the options only carry identity and equipment.
func (p *Parser) ParseSquadron(data []string) (CombatantRequest, error) {
	data, err := clean(data, 5)
	if err != nil {
		return CombatantRequest{}, err
	}

	size, err := parseIntFromFloat(data[2])
	if err != nil {
		return CombatantRequest{}, fmt.Errorf("error converting squadron size to int: %w", err)
	}

	var d squadronData
	if err := p.decodeJSON("squadron", data[4], &d); err != nil {
		return CombatantRequest{}, err
	}
	pos, placed, err := position(d.Pos)
	if err != nil {
		return CombatantRequest{}, err
	}

	sq, err := aircraft.CreateSquadron(core.AircraftType(data[1]), int(size), data[3], aircraft.Options{
		ID:           d.ID,
		Name:         d.Name,
		Side:         core.Side(d.Side),
		Controller:   core.Controller(d.Controller),
		PlayerID:     d.PlayerID,
		Pos:          pos,
		DepthCharges: d.DepthCharges,
		Bomb:         core.ShellType(d.Bomb),
		AutoEngage:   d.AutoEngage,
		CombatRange:  d.CombatRange,
		Mission:      core.Mission(d.Mission),
	})
	if err != nil {
		return CombatantRequest{}, fmt.Errorf("error creating squadron: %w", err)
	}
	sq.Placed = placed

	return CombatantRequest{SessionID: data[0], Combatant: sq}, nil
}
