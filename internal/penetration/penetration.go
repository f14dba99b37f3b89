// Package penetration converts gun and torpedo characteristics into armor penetration values.
package penetration

import (
	"math"

	"github.com/tidewatch/battlecore/pkg/core"
)

// RangeBand indexes the five entries of a range profile.
type RangeBand int

const (
	PointBlank RangeBand = iota
	Short
	Medium
	Long
	Extreme
)

func (b RangeBand) String() string {
	switch b {
	case PointBlank:
		return "point_blank"
	case Short:
		return "short"
	case Medium:
		return "medium"
	case Long:
		return "long"
	case Extreme:
		return "extreme"
	}
	return "unknown"
}

// Result is the penetration at point blank plus the falloff per range band.
type Result struct {
	Penetration  int
	RangeProfile [5]int
}

// At returns the penetration in the given band.
func (r Result) At(b RangeBand) int {
	if b < PointBlank || b > Extreme {
		return 0
	}
	return r.RangeProfile[b]
}

type benchmark struct {
	caliber     float64
	penetration float64
}

// benchmarks maps gun caliber (mm) to AP penetration (mm of armor) at an L/50 barrel.
// Sorted by caliber.
var benchmarks = []benchmark{
	{20, 25},
	{40, 55},
	{76, 90},
	{102, 120},
	{127, 150},
	{152, 200},
	{203, 260},
	{283, 330},
	{305, 360},
	{356, 420},
	{381, 450},
	{406, 500},
	{460, 580},
}

const standardBarrel = 50.0

var bandExponents = [5]float64{0, 0.5, 1, 1.5, 2}

func shellMultiplier(s core.ShellType) float64 {
	switch s {
	case core.ShellHE:
		return 0.08
	case core.ShellTorpedo:
		return 2.2
	default:
		return 1.0
	}
}

func degradationRate(s core.ShellType) float64 {
	switch s {
	case core.ShellHE:
		return 0.90
	case core.ShellTorpedo:
		return 1.0
	default:
		return 0.85
	}
}

// BasePenetration interpolates the benchmark table, clamping outside its range.
func BasePenetration(caliberMm float64) float64 {
	first, last := benchmarks[0], benchmarks[len(benchmarks)-1]
	if caliberMm <= first.caliber {
		return first.penetration
	}
	if caliberMm >= last.caliber {
		return last.penetration
	}
	for i := 1; i < len(benchmarks); i++ {
		hi := benchmarks[i]
		if caliberMm > hi.caliber {
			continue
		}
		lo := benchmarks[i-1]
		frac := (caliberMm - lo.caliber) / (hi.caliber - lo.caliber)
		return lo.penetration + frac*(hi.penetration-lo.penetration)
	}
	return last.penetration
}

// BarrelModifier is the diminishing-returns bonus of longer barrels around L/50.
func BarrelModifier(barrelLength float64) float64 {
	if barrelLength <= 0 {
		return 1.0
	}
	return math.Pow(barrelLength/standardBarrel, 0.3)
}

// Compute derives penetration and its range profile. Unknown shell types are treated as AP.
func Compute(caliberMm float64, shell core.ShellType, barrelLength float64) Result {
	base := BasePenetration(caliberMm) * shellMultiplier(shell) * BarrelModifier(barrelLength)
	rate := degradationRate(shell)

	var res Result
	res.Penetration = atLeastOne(base)
	for i, exp := range bandExponents {
		res.RangeProfile[i] = atLeastOne(base * math.Pow(rate, exp))
	}
	return res
}

// ForWeapon computes the result from a weapon's shell metadata.
func ForWeapon(w *core.Weapon) Result {
	return Compute(w.CaliberMm, w.Shell, w.BarrelLength)
}

func atLeastOne(v float64) int {
	n := int(math.Round(v))
	if n < 1 {
		return 1
	}
	return n
}
