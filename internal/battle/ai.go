package battle

import (
	"context"
	"errors"
	"math"

	"github.com/tidewatch/battlecore/internal/geo"
	"github.com/tidewatch/battlecore/pkg/core"
)

// NearestTarget is the default AI strategy: fire on the nearest enemy in range, or
// close on the nearest enemy and fire if that brings one into range.
type NearestTarget struct{}

func (NearestTarget) TakeTurn(_ context.Context, t *Turn) error {
	defer t.End()

	fired, err := fireFirstInRange(t)
	if err != nil || fired {
		return err
	}

	opts, err := t.Targets()
	if err != nil || len(opts) == 0 {
		return err
	}
	self, err := t.Self()
	if err != nil {
		return err
	}
	if self.Speed <= 0 {
		return nil
	}

	to := stepToward(self.Pos, opts[0].TargetPos, self.Speed)
	if _, err := t.Move(to); err != nil {
		if errors.Is(err, ErrValidation) {
			return nil
		}
		return err
	}
	_, err = fireFirstInRange(t)
	return err
}

// fireFirstInRange attacks with the nearest in-range option. Validation failures
// move on to the next option.
func fireFirstInRange(t *Turn) (bool, error) {
	opts, err := t.Targets()
	if err != nil {
		return false, err
	}
	for _, o := range opts {
		if !o.InRange {
			continue
		}
		_, err := t.Attack(o.TargetID, o.WeaponID)
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, ErrValidation) {
			return false, err
		}
	}
	return false, nil
}

// stepToward moves at most speed cells along the line to target, stopping on it.
func stepToward(from, to core.Position, speed float64) core.Position {
	d := geo.Distance(from, to)
	if d <= speed {
		return to
	}
	f := speed / d
	return core.Position{
		X: round2(from.X + (to.X-from.X)*f),
		Y: round2(from.Y + (to.Y-from.Y)*f),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
