package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// Logger is the structured logger pipeline.Run reports through. The stage
// packages do not log; Run calls Infow/Warnw around the stage boundaries
// (stage start/finish, ICP iteration counts, degraded-quality warnings).
type Logger interface {
	Debugw(msg string, keysAndValues ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
	Level() Level
	Named(name string) Logger
}

type impl struct {
	level Level
	sugar *zap.SugaredLogger
	named string
}

// NewLogger builds a production logger writing structured JSON at the
// given level.
func NewLogger(name string, level Level) Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level.zapLevel())
	zl, err := cfg.Build()
	if err != nil {
		zl = zap.NewNop()
	}
	return &impl{level: level, sugar: zl.Sugar().Named(name), named: name}
}

// NewTestLogger builds a logger that writes to the test's own log sink, at
// DEBUG level, so `go test -v` shows every stage's diagnostics.
func NewTestLogger(t *testing.T) Logger {
	t.Helper()
	zl := zaptest.NewLogger(t, zaptest.Level(zap.DebugLevel))
	return &impl{level: DEBUG, sugar: zl.Sugar()}
}

func (l *impl) Debugw(msg string, kv ...interface{}) { l.sugar.Debugw(msg, kv...) }
func (l *impl) Infow(msg string, kv ...interface{})  { l.sugar.Infow(msg, kv...) }
func (l *impl) Warnw(msg string, kv ...interface{})  { l.sugar.Warnw(msg, kv...) }
func (l *impl) Errorw(msg string, kv ...interface{}) { l.sugar.Errorw(msg, kv...) }
func (l *impl) Level() Level                         { return l.level }

func (l *impl) Named(name string) Logger {
	full := name
	if l.named != "" {
		full = l.named + "." + name
	}
	return &impl{level: l.level, sugar: l.sugar.Named(name), named: full}
}
