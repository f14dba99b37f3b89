package logging

import (
	"fmt"
	"log/slog"

	"github.com/Graylog2/go-gelf/gelf"
)

// GraylogHandler ships records to a Graylog GELF UDP input as JSON.
type GraylogHandler struct {
	slog.Handler
	writer *gelf.Writer
}

// NewGraylogHandler dials the GELF input at address. Records below level are dropped.
func NewGraylogHandler(address, level string) (*GraylogHandler, error) {
	w, err := gelf.NewWriter(address)
	if err != nil {
		return nil, fmt.Errorf("failed to create GELF writer for %s: %w", address, err)
	}
	w.Facility = "battlecore"
	return &GraylogHandler{
		Handler: slog.NewJSONHandler(w, handlerOptions(level)),
		writer:  w,
	}, nil
}

// Close closes the underlying UDP connection.
func (h *GraylogHandler) Close() error {
	return h.writer.Close()
}
