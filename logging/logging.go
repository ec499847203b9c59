// Package logging builds the zerolog logger shared by the loader and its sinks.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

type Config struct {
	Level     string
	Format    string
	Component string
	// RunID tags every line of one run, a new one is generated when empty.
	RunID string
}

// Build returns a logger writing to out (stderr when nil).
func Build(cfg Config, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stderr
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.TimestampFieldName = "timestamp"
	zerolog.LevelFieldName = "level"
	zerolog.MessageFieldName = "msg"

	if strings.ToLower(strings.TrimSpace(cfg.Format)) != FormatJSON {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	runID := cfg.RunID
	if runID == "" {
		runID = NewRunID()
	}
	ctx := zerolog.New(out).Level(ParseLevel(cfg.Level)).With().Timestamp().Str("run_id", runID)
	if cfg.Component != "" {
		ctx = ctx.Str("component", cfg.Component)
	}
	return ctx.Logger()
}

// ParseLevel maps a level name to a zerolog level, info when unknown.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

func NewRunID() string {
	return uuid.NewString()
}

// Printf lets the logger serve as a printf style writer (the gorm logger
// uses one), lines go out at the given level.
type Printf struct {
	Logger zerolog.Logger
	Level  zerolog.Level
}

func (p Printf) Printf(format string, args ...any) {
	p.Logger.WithLevel(p.Level).Msgf(format, args...)
}
