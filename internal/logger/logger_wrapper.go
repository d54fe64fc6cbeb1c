package logger

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/leandrodaf/stagewire/sdk/contracts"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger implements contracts.Logger on top of a zap.Logger.
type ZapLogger struct {
	logger *zap.Logger
	level  zap.AtomicLevel
}

// NewZapLogger creates a production zap logger at info level.
func NewZapLogger() contracts.Logger {
	l, err := FromConfig(contracts.InfoLevel, contracts.JSONFormat)
	if err != nil {
		return New(zap.NewNop())
	}
	return l
}

// New adapts an existing zap logger. SetLevel can only raise the threshold
// above the level of the wrapped core, never lower it.
func New(l *zap.Logger) *ZapLogger {
	if l == nil {
		l = zap.NewNop()
	}
	level := zap.NewAtomicLevelAt(zapcore.LevelOf(l.Core()))
	return &ZapLogger{
		logger: l.WithOptions(zap.AddCallerSkip(1), zap.IncreaseLevel(level)),
		level:  level,
	}
}

// FromConfig builds a logger for the given level and encoder format.
func FromConfig(level contracts.LogLevel, format contracts.LogFormat) (*ZapLogger, error) {
	var cfg zap.Config
	switch format {
	case contracts.ConsoleFormat:
		cfg = zap.NewDevelopmentConfig()
	case contracts.JSONFormat, "":
		cfg = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("invalid log format %q: must be \"json\" or \"console\"", format)
	}
	cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)

	l, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	z := New(l)
	z.SetLevel(level)
	return z, nil
}

// ParseLevel maps a textual level ("debug", "info", ...) to a LogLevel.
func ParseLevel(text string) (contracts.LogLevel, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(text)); err != nil {
		return contracts.InfoLevel, fmt.Errorf("invalid log level %q: %w", text, err)
	}
	return contracts.LogLevel(lvl), nil
}

// Zap returns the underlying zap logger.
func (z *ZapLogger) Zap() *zap.Logger {
	return z.logger
}

// Info logs a message at the INFO level
func (z *ZapLogger) Info(msg string, fields ...contracts.Field) {
	z.logger.Info(msg, toZap(fields)...)
}

// Error logs a message at the ERROR level
func (z *ZapLogger) Error(msg string, fields ...contracts.Field) {
	z.logger.Error(msg, toZap(fields)...)
}

// Debug logs a message at the DEBUG level
func (z *ZapLogger) Debug(msg string, fields ...contracts.Field) {
	z.logger.Debug(msg, toZap(fields)...)
}

// Warn logs a message at the WARN level
func (z *ZapLogger) Warn(msg string, fields ...contracts.Field) {
	z.logger.Warn(msg, toZap(fields)...)
}

// Fatal logs a message at the FATAL level and terminates the application
func (z *ZapLogger) Fatal(msg string, fields ...contracts.Field) {
	z.logger.Fatal(msg, toZap(fields)...)
}

// Field returns a new field builder.
func (z *ZapLogger) Field() contracts.Field {
	return zapField{}
}

// With returns a child logger sharing the level of its parent.
func (z *ZapLogger) With(fields ...contracts.Field) contracts.Logger {
	return &ZapLogger{logger: z.logger.With(toZap(fields)...), level: z.level}
}

// SetLevel sets the minimum level that reaches the core.
func (z *ZapLogger) SetLevel(level contracts.LogLevel) {
	z.level.SetLevel(zapcore.Level(level))
}

func toZap(fields []contracts.Field) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		if zf, ok := f.(zapField); ok && zf.key != "" {
			out = append(out, zf.field)
		}
	}
	return out
}

// zapField implements contracts.Field around a zap.Field.
type zapField struct {
	key   string
	field zap.Field
}

func (zapField) Bool(key string, val bool) contracts.Field {
	return zapField{key, zap.Bool(key, val)}
}

func (zapField) Int(key string, val int) contracts.Field {
	return zapField{key, zap.Int(key, val)}
}

func (zapField) Float64(key string, val float64) contracts.Field {
	return zapField{key, zap.Float64(key, val)}
}

func (zapField) String(key string, val string) contracts.Field {
	return zapField{key, zap.String(key, val)}
}

func (zapField) Time(key string, val time.Time) contracts.Field {
	return zapField{key, zap.Time(key, val)}
}

func (zapField) Duration(key string, val time.Duration) contracts.Field {
	return zapField{key, zap.Duration(key, val)}
}

func (zapField) Int64(key string, val int64) contracts.Field {
	return zapField{key, zap.Int64(key, val)}
}

func (zapField) Error(key string, val error) contracts.Field {
	return zapField{key, zap.NamedError(key, val)}
}

func (zapField) Uint64(key string, val uint64) contracts.Field {
	return zapField{key, zap.Uint64(key, val)}
}

func (zapField) Uint8(key string, val uint8) contracts.Field {
	return zapField{key, zap.Uint8(key, val)}
}

// Bytes renders raw wire bytes as hex.
func (zapField) Bytes(key string, val []byte) contracts.Field {
	return zapField{key, zap.String(key, hex.EncodeToString(val))}
}
