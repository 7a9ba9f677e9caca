package logger

import (
	"context"
	"os"

	"github.com/voundbrand/gatehouse/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewFromConfig creates a zap logger from Config and replaces globals.
func NewFromConfig(cfg config.Config) (*zap.Logger, error) {
	level := os.Getenv("LOG_LEVEL")
	if level == "" && !cfg.IsProduction() {
		level = "debug"
	}
	return New(level, cfg.IsProduction())
}

func registerHooks(lc fx.Lifecycle, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			_ = ctx
			_ = log.Sync()
			return nil
		},
	})
}

// Module wires the global zap logger for the application.
var Module = fx.Module("logger",
	fx.Provide(NewFromConfig),
	fx.Invoke(registerHooks),
)
