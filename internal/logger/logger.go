package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	EnvDev  = "dev"
	EnvProd = "prod"
)

// New builds a zap logger for env. Debug lowers the level to debug in prod.
func New(env string, debug bool) (*zap.Logger, error) {
	if env == EnvProd {
		cfg := zap.NewProductionConfig()
		if debug {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		return cfg.Build()
	}
	return zap.NewDevelopment()
}

// Adapter exposes a zap logger through the key value Logger seam used by
// the auth and expenses packages.
type Adapter struct {
	sugar *zap.SugaredLogger
}

// NewAdapter wraps l, naming it after the component using it
func NewAdapter(l *zap.Logger, name string) *Adapter {
	if l == nil {
		l = zap.NewNop()
	}
	if name != "" {
		l = l.Named(name)
	}
	return &Adapter{sugar: l.Sugar()}
}

func (a *Adapter) Debug(msg string, keyvals ...any) {
	a.sugar.Debugw(msg, keyvals...)
}

func (a *Adapter) Info(msg string, keyvals ...any) {
	a.sugar.Infow(msg, keyvals...)
}

func (a *Adapter) Warn(msg string, keyvals ...any) {
	a.sugar.Warnw(msg, keyvals...)
}

func (a *Adapter) Error(msg string, keyvals ...any) {
	a.sugar.Errorw(msg, keyvals...)
}
