// Package logger wraps a zap sugared logger with key/value helpers.
package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger struct {
	SugaredLogger *zap.SugaredLogger
	level         zap.AtomicLevel
}

// Option adjusts the zap config before the logger is built.
type Option func(*zap.Config)

// WithLevel overrides the mode's default level (info for prod, debug
// otherwise).
func WithLevel(level zapcore.Level) Option {
	return func(cfg *zap.Config) { cfg.Level = zap.NewAtomicLevelAt(level) }
}

// WithFields stamps every entry with the given key/value pairs, e.g. the
// service name.
func WithFields(keysAndValues ...interface{}) Option {
	return func(cfg *zap.Config) {
		if cfg.InitialFields == nil {
			cfg.InitialFields = map[string]interface{}{}
		}
		keysAndValues = sanitizeKVs(keysAndValues)
		for i := 0; i+1 < len(keysAndValues); i += 2 {
			if k, ok := keysAndValues[i].(string); ok {
				cfg.InitialFields[k] = keysAndValues[i+1]
			}
		}
	}
}

// New builds a logger. "prod" or "production" selects zap's JSON production
// config, anything else the console development config.
func New(mode string, opts ...Option) (*Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(mode) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	for _, o := range opts {
		o(&cfg)
	}
	zapLogger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{SugaredLogger: zapLogger.Sugar(), level: cfg.Level}, nil
}

// NewCore wraps an existing core, mostly for tests.
func NewCore(core zapcore.Core) *Logger {
	return &Logger{SugaredLogger: zap.New(core).Sugar(), level: zap.NewAtomicLevelAt(zap.DebugLevel)}
}

// Nop discards everything.
func Nop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar(), level: zap.NewAtomicLevelAt(zap.FatalLevel)}
}

// Level reports the current minimum level.
func (l *Logger) Level() zapcore.Level { return l.level.Level() }

// SetLevel changes the minimum level of l and every logger derived from it
// with With. It has no effect on loggers built by NewCore or Nop.
func (l *Logger) SetLevel(level zapcore.Level) { l.level.SetLevel(level) }

func (l *Logger) Sync() {
	_ = l.SugaredLogger.Sync()
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Debugw(msg, sanitizeKVs(keysAndValues)...)
}
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Infow(msg, sanitizeKVs(keysAndValues)...)
}
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Warnw(msg, sanitizeKVs(keysAndValues)...)
}
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Errorw(msg, sanitizeKVs(keysAndValues)...)
}
func (l *Logger) Fatal(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Fatalw(msg, sanitizeKVs(keysAndValues)...)
}
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(sanitizeKVs(keysAndValues)...), level: l.level}
}

// sanitizeKVs masks values whose key names a credential.
func sanitizeKVs(kv []interface{}) []interface{} {
	if len(kv) == 0 {
		return kv
	}
	out := make([]interface{}, 0, len(kv))
	for i := 0; i < len(kv); i += 2 {
		if i == len(kv)-1 {
			out = append(out, kv[i])
			break
		}
		key, _ := kv[i].(string)
		if isRedactKey(strings.ToLower(key)) {
			out = append(out, kv[i], "[REDACTED]")
			continue
		}
		out = append(out, kv[i], kv[i+1])
	}
	return out
}

func isRedactKey(key string) bool {
	return strings.Contains(key, "token") ||
		strings.Contains(key, "authorization") ||
		strings.Contains(key, "password") ||
		strings.Contains(key, "secret")
}
