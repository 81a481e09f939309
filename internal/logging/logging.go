// Package logging builds the root zerolog logger from configuration.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Options configures the root logger.
type Options struct {
	Level  string // zerolog level name; empty means info
	Format string // console or json; empty means console
	Out    io.Writer
}

// New returns a timestamped logger tagged with app=motion. The level is set
// on the logger itself, not globally, so several engines can coexist.
func New(opts Options) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if opts.Level != "" {
		parsed, err := zerolog.ParseLevel(opts.Level)
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("log level %q: %w", opts.Level, err)
		}
		level = parsed
	}

	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	switch opts.Format {
	case "", FormatConsole:
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05.000"}
	case FormatJSON:
	default:
		return zerolog.Nop(), fmt.Errorf("log format %q: must be %s or %s", opts.Format, FormatConsole, FormatJSON)
	}

	return zerolog.New(out).Level(level).With().
		Timestamp().
		Str("app", "motion").
		Logger(), nil
}
