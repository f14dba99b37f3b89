// Package influx writes battle round and service metrics to InfluxDB. When the
// server cannot be reached the points go to a gzipped line-protocol file instead,
// which can be replayed with `influx write` later.
package influx

import (
	"context"
	"errors"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"
	"github.com/tidewatch/battlecore/internal/config"
)

const (
	// BattleBucket receives one point per completed round unless influx.bucket overrides it.
	BattleBucket = "battle_metrics"
	// PerformanceBucket receives the periodic service status.
	PerformanceBucket = "battlecore_performance"
	// ClientBucket receives METRIC commands that name no bucket.
	ClientBucket = "client_metrics"

	retention = 90 * 24 * time.Hour
)

var ErrDisabled = errors.New("influx.enabled is false")

type Manager struct {
	logger      zerolog.Logger
	backupPath  string
	org         string
	roundBucket string

	client  influxdb2.Client
	writers map[string]influxdb2_api.WriteAPI
	online  bool
	backup  *backupSink
}

func NewManager(log zerolog.Logger, backupPath string) *Manager {
	return &Manager{
		logger:      log.With().Str("component", "influx").Logger(),
		backupPath:  backupPath,
		roundBucket: BattleBucket,
		writers:     make(map[string]influxdb2_api.WriteAPI),
	}
}

// Online reports whether points go to the server rather than the backup file.
func (m *Manager) Online() bool {
	return m.online
}

func (m *Manager) buckets() []string {
	return []string{m.roundBucket, PerformanceBucket, ClientBucket}
}

// Connect pings the server and prepares the org, buckets and writers. An
// unreachable server is not an error: the backup file is opened instead.
func (m *Manager) Connect(cfg config.InfluxConfig) error {
	if !cfg.Enabled {
		return ErrDisabled
	}
	m.org = cfg.Org
	if cfg.Bucket != "" {
		m.roundBucket = cfg.Bucket
	}

	m.client = influxdb2.NewClientWithOptions(
		fmt.Sprintf("%s://%s:%s", cfg.Protocol, cfg.Host, cfg.Port),
		cfg.Token,
		influxdb2.DefaultOptions().SetBatchSize(2500).SetFlushInterval(1000),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if up, err := m.client.Ping(ctx); err != nil || !up {
		m.logger.Warn().Err(err).Str("backupPath", m.backupPath).
			Msg("InfluxDB unreachable, writing to backup file")
		sink, err := openBackup(m.backupPath)
		if err != nil {
			return err
		}
		m.backup = sink
		return nil
	}

	if err := m.ensureBuckets(ctx); err != nil {
		return err
	}
	m.openWriters()
	m.online = true
	m.logger.Info().Strs("buckets", m.buckets()).Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) ensureBuckets(ctx context.Context) error {
	orgs := m.client.OrganizationsAPI()
	org, err := orgs.FindOrganizationByName(ctx, m.org)
	if err != nil {
		m.logger.Info().Str("org", m.org).Msg("Organization not found, creating")
		if org, err = orgs.CreateOrganizationWithName(ctx, m.org); err != nil {
			return fmt.Errorf("create organization %s: %w", m.org, err)
		}
	}

	rule := domain.RetentionRuleTypeExpire
	for _, bucket := range m.buckets() {
		if _, err := m.client.BucketsAPI().FindBucketByName(ctx, bucket); err == nil {
			continue
		}
		m.logger.Info().Str("bucket", bucket).Msg("Bucket not found, creating")
		_, err := m.client.BucketsAPI().CreateBucketWithName(ctx, org, bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: int64(retention / time.Second),
		})
		if err != nil {
			return fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}
	return nil
}

func (m *Manager) openWriters() {
	for _, bucket := range m.buckets() {
		w := m.client.WriteAPI(m.org, bucket)
		go func(bucket string, errs <-chan error) {
			for err := range errs {
				m.logger.Error().Err(err).Str("bucket", bucket).Msg("Error sending data to InfluxDB")
			}
		}(bucket, w.Errors())
		m.writers[bucket] = w
	}
}

// WritePoint queues point for bucket, or appends it to the backup file when offline.
func (m *Manager) WritePoint(ctx context.Context, bucket string, point *influxdb2_write.Point) error {
	if !m.online {
		if m.backup == nil {
			return errors.New("influxDB client not initialized and backup writer not available")
		}
		return m.backup.write(point)
	}
	w, ok := m.writers[bucket]
	if !ok {
		return fmt.Errorf("influxDB bucket '%s' not registered", bucket)
	}
	w.WritePoint(point)
	return nil
}

// Close flushes queued points and releases the client and the backup file.
func (m *Manager) Close() error {
	for _, w := range m.writers {
		w.Flush()
	}
	if m.client != nil {
		m.client.Close()
	}
	if m.backup != nil {
		return m.backup.close()
	}
	return nil
}
