// Package logging builds the zerolog logger and adapts it to the engines' Logger interface.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"pharmacore/internal/core"
)

// New returns a zerolog logger writing to w (stderr when nil). Format
// "console" produces human-readable lines, anything else JSON.
func New(level, format string, w io.Writer) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("parse log level: %w", err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	if w == nil {
		w = os.Stderr
	}
	if format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).With().Timestamp().Logger().Level(lvl), nil
}

var _ core.Logger = Adapter{}

// Adapter implements core.Logger on top of zerolog. Alternating key/value
// args become structured fields.
type Adapter struct {
	Logger zerolog.Logger
}

// NewAdapter wraps l.
func NewAdapter(l zerolog.Logger) Adapter { return Adapter{Logger: l} }

func (a Adapter) Debug(msg string, args ...any) { emit(a.Logger.Debug(), msg, args) }
func (a Adapter) Info(msg string, args ...any)  { emit(a.Logger.Info(), msg, args) }
func (a Adapter) Warn(msg string, args ...any)  { emit(a.Logger.Warn(), msg, args) }
func (a Adapter) Error(msg string, args ...any) { emit(a.Logger.Error(), msg, args) }

func emit(ev *zerolog.Event, msg string, args []any) {
	if ev == nil {
		return
	}
	if len(args) > 0 {
		ev = ev.Fields(fields(args))
	}
	ev.Msg(msg)
}

// fields converts key/value pairs to a map. Non-string keys are formatted and
// a trailing key without a value is kept under "!BADKEY".
func fields(args []any) map[string]any {
	out := make(map[string]any, (len(args)+1)/2)
	for i := 0; i < len(args); i += 2 {
		if i+1 >= len(args) {
			out["!BADKEY"] = args[i]
			break
		}
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		out[key] = args[i+1]
	}
	return out
}
