package worker

import (
	"context"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/tidewatch/battlecore/internal/battle"
	"github.com/tidewatch/battlecore/internal/logging"
	"github.com/tidewatch/battlecore/internal/monitor"
	"github.com/tidewatch/battlecore/internal/notify"
	"github.com/tidewatch/battlecore/internal/parser"
)

// DefaultAdvanceTimeout bounds one externally driven round.
const DefaultAdvanceTimeout = 10 * time.Minute

// MetricWriter receives client metrics submitted with :METRIC:.
type MetricWriter interface {
	WritePoint(ctx context.Context, bucket string, point *influxdb2_write.Point) error
}

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	Battles    *battle.Manager
	LogManager *logging.SlogManager
	Parser     *parser.Parser

	// Optional
	Narration      *notify.Buffer
	Metrics        MetricWriter
	Monitor        *monitor.Service
	AdvanceTimeout time.Duration
}

// Manager turns dispatcher events into battle manager calls
type Manager struct {
	deps Dependencies
	ctx  context.Context
}

// NewManager creates a new worker manager. ctx bounds every blocking call the
// handlers make; cancelling it releases rounds that wait for player input.
func NewManager(ctx context.Context, deps Dependencies) *Manager {
	if deps.LogManager == nil {
		deps.LogManager = logging.NewSlogManager()
	}
	if deps.Parser == nil {
		deps.Parser = parser.NewParser(deps.LogManager.Logger())
	}
	if deps.AdvanceTimeout <= 0 {
		deps.AdvanceTimeout = DefaultAdvanceTimeout
	}
	return &Manager{
		deps: deps,
		ctx:  ctx,
	}
}
