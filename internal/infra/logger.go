package infra

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the process logger: human-readable debug output in
// development, JSON at info level everywhere else. Every line carries the
// service name so api, worker and CLI output can share a sink.
func NewLogger(appEnv, service string) zerolog.Logger {
	return NewLoggerTo(os.Stdout, appEnv, service)
}

// NewLoggerTo is NewLogger writing to out.
func NewLoggerTo(out io.Writer, appEnv, service string) zerolog.Logger {
	level := zerolog.InfoLevel
	if appEnv == "development" {
		level = zerolog.DebugLevel
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	zerolog.DurationFieldUnit = time.Millisecond

	ctx := zerolog.New(out).Level(level).With().Timestamp()
	if service != "" {
		ctx = ctx.Str("service", service)
	}
	return ctx.Logger()
}

// Logger aliases zerolog.Logger for packages that take an optional logger
// pointer.
type Logger = zerolog.Logger
