package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// LogFilePath returns the per-run log file for a service started at start.
func LogFilePath(logsDir, service string, start time.Time) string {
	return filepath.Join(logsDir, fmt.Sprintf("%s.%s.log", service, start.Format("20060102_150405")))
}

// OpenLogFile creates logsDir if needed and opens the run's log file for appending.
// A file left over from a run that started in the same second is kept as <path>.old.
func OpenLogFile(logsDir, service string, start time.Time) (*os.File, string, error) {
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return nil, "", fmt.Errorf("create logs dir %s: %w", logsDir, err)
	}
	path := LogFilePath(logsDir, service, start)
	if _, err := os.Stat(path); err == nil {
		_ = os.Rename(path, path+".old")
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return nil, path, fmt.Errorf("open log file %s: %w", path, err)
	}
	return f, path, nil
}
