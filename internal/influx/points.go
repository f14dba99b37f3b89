package influx

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/tidewatch/battlecore/internal/battle"
	"github.com/tidewatch/battlecore/internal/util"
)

// RecordRound implements battle.MetricsSink.
func (m *Manager) RecordRound(ctx context.Context, rm battle.RoundMetrics) error {
	return m.WritePoint(ctx, m.roundBucket, RoundPoint(rm))
}

// RecordStatus writes the monitor's periodic service status.
func (m *Manager) RecordStatus(ctx context.Context, activeSessions, cachedSnapshots int, lastWrite time.Duration) error {
	return m.WritePoint(ctx, PerformanceBucket, StatusPoint(activeSessions, cachedSnapshots, lastWrite, time.Now()))
}

// RoundPoint is the battle_round point for one completed round.
func RoundPoint(rm battle.RoundMetrics) *influxdb2_write.Point {
	t := rm.Time
	if t.IsZero() {
		t = time.Now()
	}
	return influxdb2.NewPoint(
		"battle_round",
		map[string]string{"session": rm.SessionID, "weather": rm.Weather},
		map[string]any{
			"turn":          rm.Turn,
			"duration_ms":   rm.Duration.Milliseconds(),
			"players_alive": rm.PlayersAlive,
			"enemies_alive": rm.EnemiesAlive,
			"damage":        rm.Damage,
		},
		t,
	)
}

func StatusPoint(activeSessions, cachedSnapshots int, lastWrite time.Duration, at time.Time) *influxdb2_write.Point {
	return influxdb2.NewPoint(
		"service_status",
		nil,
		map[string]any{
			"active_sessions":  activeSessions,
			"cached_snapshots": cachedSnapshots,
			"last_write_ms":    lastWrite.Milliseconds(),
		},
		at,
	)
}

// ParseClientMetric builds a point from METRIC command args:
//
//	bucket, measurement, tag::<name>::<value>..., field::<type>::<name>::<value>...
//
// Field types are string, int, float and bool. An empty bucket means ClientBucket.
// Args matching neither prefix are ignored.
func ParseClientMetric(args []string) (string, *influxdb2_write.Point, error) {
	args = util.CleanArgs(args)
	if len(args) < 2 {
		return "", nil, fmt.Errorf("metric needs a bucket and a measurement, got %d args", len(args))
	}
	bucket := args[0]
	if bucket == "" {
		bucket = ClientBucket
	}
	if args[1] == "" {
		return "", nil, fmt.Errorf("metric measurement is empty")
	}

	point := influxdb2_write.NewPointWithMeasurement(args[1])
	for _, arg := range args[2:] {
		parts := strings.Split(arg, "::")
		switch {
		case parts[0] == "tag" && len(parts) >= 3:
			point.AddTag(parts[1], parts[2])
		case parts[0] == "field" && len(parts) >= 4:
			v, err := fieldValue(parts[1], parts[3])
			if err != nil {
				return "", nil, fmt.Errorf("field %s: %w", parts[2], err)
			}
			point.AddField(parts[2], v)
		}
	}
	return bucket, point, nil
}

func fieldValue(kind, raw string) (any, error) {
	switch kind {
	case "int":
		v, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("error converting field value '%s' to int: %w", raw, err)
		}
		return v, nil
	case "float":
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("error converting field value '%s' to float: %w", raw, err)
		}
		return v, nil
	case "bool":
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("error converting field value '%s' to bool: %w", raw, err)
		}
		return v, nil
	default:
		return raw, nil
	}
}
