package contracts

import "time"

// LogLevel represents the severity level for logging.
type LogLevel int

const (
	// DebugLevel indicates debug messages such as per-frame transmit traces.
	DebugLevel LogLevel = iota - 1
	// InfoLevel indicates informational messages like device attach and detach.
	InfoLevel
	// WarnLevel indicates transport hiccups that the show survives.
	WarnLevel
	// ErrorLevel indicates failures that need operator attention.
	ErrorLevel
	// FatalLevel indicates errors that abort the process.
	FatalLevel LogLevel = 5
)

// LogFormat selects the encoder used by the logger.
type LogFormat string

const (
	// JSONFormat writes one JSON object per line.
	JSONFormat LogFormat = "json"
	// ConsoleFormat writes human readable lines.
	ConsoleFormat LogFormat = "console"
)

// Field is a typed key/value pair attached to a log entry.
type Field interface {
	Bool(key string, val bool) Field
	Int(key string, val int) Field
	Float64(key string, val float64) Field
	String(key string, val string) Field
	Time(key string, val time.Time) Field
	Duration(key string, val time.Duration) Field
	Int64(key string, val int64) Field
	Error(key string, val error) Field
	Uint64(key string, val uint64) Field
	Uint8(key string, val uint8) Field
	Bytes(key string, val []byte) Field
}

// Logger provides leveled, structured logging to every component.
type Logger interface {
	Info(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Debug(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)

	Field() Field

	// With returns a child logger that adds fields to every entry.
	With(fields ...Field) Logger
	SetLevel(level LogLevel)
}
