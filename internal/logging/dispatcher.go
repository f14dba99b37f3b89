package logging

import (
	"fmt"

	"github.com/rs/zerolog"
)

// DispatcherLogger writes dispatcher events to zerolog, tagged component=dispatcher.
type DispatcherLogger struct {
	logger zerolog.Logger
}

func NewDispatcherLogger(logger zerolog.Logger) *DispatcherLogger {
	return &DispatcherLogger{logger: logger.With().Str("component", "dispatcher").Logger()}
}

func (l *DispatcherLogger) Debug(msg string, kv ...any) {
	emit(l.logger.Debug(), msg, kv)
}

func (l *DispatcherLogger) Info(msg string, kv ...any) {
	emit(l.logger.Info(), msg, kv)
}

func (l *DispatcherLogger) Error(msg string, kv ...any) {
	emit(l.logger.Error(), msg, kv)
}

// emit adds kv pairs as fields. Errors are written as strings, non-string keys are
// formatted, and a trailing key without a value is logged under "!BADKEY".
func emit(ev *zerolog.Event, msg string, kv []any) {
	if ev == nil {
		return
	}
	for i := 0; i < len(kv); i += 2 {
		if i+1 == len(kv) {
			ev = ev.Interface("!BADKEY", kv[i])
			break
		}
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		if err, ok := kv[i+1].(error); ok {
			ev = ev.AnErr(key, err)
			continue
		}
		ev = ev.Interface(key, kv[i+1])
	}
	ev.Msg(msg)
}
