// Package logger provides the logging surface used across the data
// layer: a small leveled interface with key-value arguments, backed by
// zerolog by default. The slog subpackage adapts log/slog handlers to the
// same interface for callers that already standardize on slog.
package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger is the leveled logging interface threaded through adapters and
// routers. Arguments alternate key, value.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Info(msg string, args ...any)
	Debug(msg string, args ...any)
}

type zerologLogger struct {
	l zerolog.Logger
}

// New returns a zerolog-backed Logger writing to w. A nil writer logs to
// stderr.
func New(w io.Writer) Logger {
	if w == nil {
		w = os.Stderr
	}
	return &zerologLogger{l: zerolog.New(w).With().Timestamp().Logger()}
}

func (z *zerologLogger) Error(msg string, args ...any) { emit(z.l.Error(), msg, args) }
func (z *zerologLogger) Warn(msg string, args ...any)  { emit(z.l.Warn(), msg, args) }
func (z *zerologLogger) Info(msg string, args ...any)  { emit(z.l.Info(), msg, args) }
func (z *zerologLogger) Debug(msg string, args ...any) { emit(z.l.Debug(), msg, args) }

func emit(ev *zerolog.Event, msg string, args []any) {
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		ev = ev.Interface(key, args[i+1])
	}
	ev.Msg(msg)
}

type nopLogger struct{}

// Nop returns a Logger that discards everything.
func Nop() Logger { return nopLogger{} }

func (nopLogger) Error(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Debug(string, ...any) {}
