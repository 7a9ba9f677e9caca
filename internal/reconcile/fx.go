package reconcile

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/voundbrand/gatehouse/internal/config"
	"github.com/voundbrand/gatehouse/internal/ratelimit"
)

const sweepLockKey = "gatehouse:reconcile:sweep"

var Module = fx.Module("reconcile",
	fx.Provide(NewSweeper),
	fx.Invoke(runScheduler),
)

func runScheduler(lc fx.Lifecycle, sweeper *Sweeper, locker *ratelimit.Locker, cfg config.Config, log *zap.Logger) error {
	logger := log.Named("reconcile.cron")
	scheduler := cron.New()

	_, err := scheduler.AddFunc(cfg.ReconcileSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ReconcileTimeout)
		defer cancel()

		lock, held, err := locker.TryLock(ctx, sweepLockKey, cfg.ReconcileTimeout)
		if err != nil {
			logger.Error("reconcile lock failed", zap.Error(err))
			return
		}
		if !held {
			// Another replica is sweeping.
			return
		}
		defer func() {
			if err := lock.Release(ctx); err != nil {
				logger.Warn("reconcile lock release failed", zap.Error(err))
			}
		}()

		repaired, err := sweeper.Sweep(ctx)
		if err != nil {
			logger.Error("reconcile sweep failed", zap.Error(err))
			return
		}
		if repaired > 0 {
			logger.Info("reconcile sweep repaired tasks", zap.Int("count", repaired))
		}
	})
	if err != nil {
		return err
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			scheduler.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			stopped := scheduler.Stop()
			select {
			case <-stopped.Done():
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
	return nil
}
