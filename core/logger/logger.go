package logger

// Logger is the logging facade used across the dispatch pipeline. Adapters
// live in infra/logger so core packages stay free of logging dependencies.
type Logger interface {
	Debugf(format string, args ...any)
	// Debugw logs a debug message with structured fields.
	Debugw(msg string, fields map[string]any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// StructuredLogger is the subset of Logger for adapters that only emit
// structured records.
type StructuredLogger interface {
	Debugw(msg string, fields map[string]any)
}
