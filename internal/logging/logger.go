// Package logging builds the zap loggers used by the crawler commands.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects the logger profile. Service, when set, is attached
// to every entry so multiple crawler instances sharing one database
// stay distinguishable in aggregated logs.
type Options struct {
	Development bool
	Service     string
}

// New builds a zap.Logger for the given options.
func New(opts Options) (*zap.Logger, error) {
	var cfg zap.Config
	if opts.Development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.DisableStacktrace = false
	}
	cfg.EncoderConfig.TimeKey = "ts"
	if opts.Service != "" {
		cfg.InitialFields = map[string]any{"service": opts.Service}
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

// Sync flushes buffered entries. Safe on a nil logger; flush errors on
// process teardown are discarded.
func Sync(logger *zap.Logger) {
	if logger != nil {
		_ = logger.Sync()
	}
}
