// Package logger is the logging abstraction used across go-armlink.
//
// Components that can fail away from their caller (the link read loop, a
// transport's read pump) take a Logger and fall back to the package-level
// one. NewSlog emits JSON records for services, NewConsole renders for
// terminals, and MockLogger records calls for tests; any other framework
// can be plugged in by implementing the interface.
package logger

// Level indicates the logging severity level.
type Level = int8

const (
	// DebugLevel logs are voluminous and usually disabled in production.
	DebugLevel Level = iota - 1
	// InfoLevel is the default logging priority.
	InfoLevel
	// WarnLevel logs point at potential issues that need no individual
	// review.
	WarnLevel
	// ErrorLevel logs are high-priority; a healthy deployment produces
	// none.
	ErrorLevel
	// FatalLevel logs a message, then calls os.Exit(1).
	FatalLevel
)

// Logger is the minimal structured logging surface the rest of the module
// depends on. Implementations must accept alternating key/value pairs the
// way log/slog does.
type Logger interface {
	// Debug logs a message at DebugLevel.
	Debug(msg string, keysAndValues ...any)
	// Info logs a message at InfoLevel.
	Info(msg string, keysAndValues ...any)
	// Warn logs a message at WarnLevel.
	Warn(msg string, keysAndValues ...any)
	// Error logs a message at ErrorLevel.
	Error(msg string, keysAndValues ...any)
	// Fatal logs a message and then calls os.Exit(1), even when logging
	// at FatalLevel is disabled.
	Fatal(msg string, keysAndValues ...any)
	// With returns a child logger with the given key/value context bound.
	// The parent is unchanged.
	With(keyValues ...any) Logger
	// Level returns the minimum enabled level.
	Level() Level
	// SetLevel changes the minimum enabled level.
	SetLevel(level Level)
}
