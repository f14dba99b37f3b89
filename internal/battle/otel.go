package battle

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/tidewatch/battlecore/internal/battle"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// RoundMetrics summarizes one completed round for the metrics sink.
type RoundMetrics struct {
	SessionID    string
	Turn         int
	Weather      string
	Duration     time.Duration
	PlayersAlive int
	EnemiesAlive int
	Damage       int
	Time         time.Time
}

// MetricsSink receives per-round metrics. Writes are best-effort.
type MetricsSink interface {
	RecordRound(ctx context.Context, m RoundMetrics) error
}

type instruments struct {
	rounds   metric.Int64Counter
	attacks  metric.Int64Counter
	damage   metric.Int64Counter
	active   metric.Int64UpDownCounter
	outcomes metric.Int64Counter
	roundDur metric.Float64Histogram
}

// newInstruments uses the global OTel meter provider, a no-op unless one is configured.
func newInstruments() (*instruments, error) {
	m := meter()
	var (
		in  instruments
		err error
	)

	if in.rounds, err = m.Int64Counter("battle.rounds",
		metric.WithDescription("Completed battle rounds")); err != nil {
		return nil, fmt.Errorf("creating rounds counter: %w", err)
	}
	if in.attacks, err = m.Int64Counter("battle.attacks",
		metric.WithDescription("Resolved attacks")); err != nil {
		return nil, fmt.Errorf("creating attacks counter: %w", err)
	}
	if in.damage, err = m.Int64Counter("battle.damage",
		metric.WithDescription("Hit points removed by attacks and status effects")); err != nil {
		return nil, fmt.Errorf("creating damage counter: %w", err)
	}
	if in.active, err = m.Int64UpDownCounter("battle.sessions.active",
		metric.WithDescription("Sessions currently registered")); err != nil {
		return nil, fmt.Errorf("creating active sessions counter: %w", err)
	}
	if in.outcomes, err = m.Int64Counter("battle.outcomes",
		metric.WithDescription("Settled battles by reason")); err != nil {
		return nil, fmt.Errorf("creating outcomes counter: %w", err)
	}
	if in.roundDur, err = m.Float64Histogram("battle.round.duration",
		metric.WithDescription("Wall time of a round"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("creating round duration histogram: %w", err)
	}
	return &in, nil
}

func (in *instruments) attack(hit bool, damage int) {
	ctx := context.Background()
	in.attacks.Add(ctx, 1, metric.WithAttributes(attribute.Bool("hit", hit)))
	if damage > 0 {
		in.damage.Add(ctx, int64(damage), metric.WithAttributes(attribute.String("source", "attack")))
	}
}

func (in *instruments) tickDamage(damage int) {
	if damage > 0 {
		in.damage.Add(context.Background(), int64(damage), metric.WithAttributes(attribute.String("source", "status")))
	}
}

func (in *instruments) round(d time.Duration) {
	ctx := context.Background()
	in.rounds.Add(ctx, 1)
	in.roundDur.Record(ctx, d.Seconds())
}

func (in *instruments) settled(reason string) {
	in.outcomes.Add(context.Background(), 1, metric.WithAttributes(attribute.String("reason", reason)))
}
