package influx

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	lp "github.com/influxdata/line-protocol"
)

// backupSink appends line protocol to a gzip stream. Sessions write rounds
// concurrently, so writes are serialized.
type backupSink struct {
	mu   sync.Mutex
	gz   *gzip.Writer
	enc  *lp.Encoder
	file io.Closer
}

func newBackupSink(w io.Writer, file io.Closer) *backupSink {
	gz := gzip.NewWriter(w)
	return &backupSink{gz: gz, enc: newEncoder(gz), file: file}
}

// newEncoder matches the client's own write path, which also accepts
// points without tags.
func newEncoder(w io.Writer) *lp.Encoder {
	enc := lp.NewEncoder(w)
	enc.SetFieldTypeSupport(lp.UintSupport)
	enc.FailOnFieldErr(true)
	enc.SetPrecision(time.Nanosecond)
	return enc
}

func openBackup(path string) (*backupSink, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("error creating backup file: %w", err)
	}
	return newBackupSink(f, f), nil
}

func (b *backupSink) write(point *influxdb2_write.Point) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := b.enc.Encode(point); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

func (b *backupSink) close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.gz.Close(); err != nil {
		return fmt.Errorf("error closing InfluxDB backup writer: %w", err)
	}
	if b.file != nil {
		return b.file.Close()
	}
	return nil
}
