package obs

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LogConfig struct {
	Level   string
	Pretty  bool
	Service string
	Env     string
	Version string
}

// NewLogger builds the process logger: JSON with an ISO8601 "ts" field, or
// zap's console encoder when Pretty is set. Unknown levels fall back to info.
func NewLogger(c LogConfig) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if c.Pretty {
		cfg = zap.NewDevelopmentConfig()
	}

	lvl, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	fields := []zap.Field{zap.String("service", c.Service)}
	if c.Env != "" {
		fields = append(fields, zap.String("env", c.Env))
	}
	if c.Version != "" {
		fields = append(fields, zap.String("version", c.Version))
	}

	l, err := cfg.Build(zap.Fields(fields...))
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return l, nil
}
