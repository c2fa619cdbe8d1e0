package logger

import (
	"log/slog"
	"os"

	"github.com/phsym/console-slog"
)

// NewConsole creates a logger with human-readable output on stderr, for
// interactive tools whose stdout is spoken for. Services normally want
// NewSlog instead.
func NewConsole(level Level) Logger {
	inst := &SlogLogger{
		output: os.Stderr,
	}

	inst.level = &slog.LevelVar{}
	inst.level.Set(toSlogLevel(level))

	opts := &console.HandlerOptions{
		Level: inst.level,
	}
	inst.logger = slog.New(console.NewHandler(inst.output, opts))

	return inst
}
