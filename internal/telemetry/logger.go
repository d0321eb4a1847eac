package telemetry

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the run logger: human-readable console output on stderr,
// so stdout stays free for the output descriptor.
func NewLogger(verbose bool) zerolog.Logger {
	return NewLoggerTo(os.Stderr, verbose)
}

func NewLoggerTo(out io.Writer, verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}

	writer := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}

	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}
