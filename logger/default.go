package logger

// The package-level logger backs components that were not handed one
// explicitly. JSON at InfoLevel until SetLevel says otherwise.
var defLogger = NewSlog(InfoLevel, false)

func Debug(msg string, keysAndValues ...any) {
	defLogger.Debug(msg, keysAndValues...)
}

func Info(msg string, keysAndValues ...any) {
	defLogger.Info(msg, keysAndValues...)
}

func Warn(msg string, keysAndValues ...any) {
	defLogger.Warn(msg, keysAndValues...)
}

func Error(msg string, keysAndValues ...any) {
	defLogger.Error(msg, keysAndValues...)
}

func Fatal(msg string, keysAndValues ...any) {
	defLogger.Fatal(msg, keysAndValues...)
}

// SetLevel changes the package-level logger's minimum enabled level.
func SetLevel(level Level) {
	defLogger.SetLevel(level)
}

// GetLogger returns the package-level logger.
func GetLogger() Logger {
	return defLogger
}

// With returns a child of the package-level logger with the given context
// bound.
func With(keyValues ...any) Logger {
	return defLogger.With(keyValues...)
}
