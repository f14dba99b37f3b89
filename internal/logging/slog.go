package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// osStdout is the console sink used when no log file is given.
var osStdout io.Writer = os.Stdout

// SlogManager manages slog-based logging with optional OTel integration.
type SlogManager struct {
	logger *slog.Logger

	// OTel provider for flushing
	logProvider *sdklog.LoggerProvider

	// contextProvider adds dynamic attributes to every record
	contextProvider ContextProvider
}

// NewSlogManager creates a new slog-based logging manager.
func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetContextProvider registers attributes injected into every record. It must be
// called before Setup.
func (m *SlogManager) SetContextProvider(p ContextProvider) {
	m.contextProvider = p
}

// handlerOptions are the common handler options with RFC3339 time formatting.
func handlerOptions(level string) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level: parseLevel(level),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
				}
			}
			return a
		},
	}
}

// Setup builds the logger: a text sink (file, or stdout when file is nil), the
// OTel bridge when provider is set and any extra sinks such as Graylog. Every
// record passes through the context handler first.
func (m *SlogManager) Setup(file io.Writer, level string, provider *sdklog.LoggerProvider, extra ...slog.Handler) {
	m.logProvider = provider
	if file == nil {
		file = osStdout
	}

	sinks := []slog.Handler{slog.NewTextHandler(file, handlerOptions(level))}
	if provider != nil {
		sinks = append(sinks, otelslog.NewHandler("battlecore", otelslog.WithLoggerProvider(provider)))
	}
	sinks = append(sinks, extra...)

	m.logger = slog.New(NewContextHandler(NewMultiHandler(sinks...), m.contextProvider))
	m.logger.Info("Logging initialized", "level", level)
}

// Logger returns the configured slog.Logger.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		// Return a default logger if Setup hasn't been called
		return slog.Default()
	}
	return m.logger
}

// Flush forces a flush of OTel logs if available.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.logProvider != nil {
		return m.logProvider.ForceFlush(ctx)
	}
	return nil
}

// WriteLog writes data at level, tagged with the calling function's name.
func (m *SlogManager) WriteLog(functionName, data, level string) {
	m.log(context.Background(), functionName, data, level)
}

// WriteSessionLog is WriteLog for messages about one battle session; the record
// carries the session attribute.
func (m *SlogManager) WriteSessionLog(sessionID, functionName, data, level string) {
	m.log(WithSession(context.Background(), sessionID), functionName, data, level)
}

func (m *SlogManager) log(ctx context.Context, functionName, data, level string) {
	if m.logger == nil {
		return
	}
	m.logger.Log(ctx, parseLevel(level), data, "function", functionName)
}
