package task

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/voundbrand/gatehouse/internal/config"
	"github.com/voundbrand/gatehouse/internal/task/domain"
	"github.com/voundbrand/gatehouse/internal/task/service"
	"github.com/voundbrand/gatehouse/internal/task/worker"
	"github.com/voundbrand/gatehouse/pkg/telemetry"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("task",
	fx.Provide(newQueue),
	fx.Provide(newRunner),
	fx.Invoke(runWorkers),
)

func newQueue(db *gorm.DB, log *zap.Logger, genID *snowflake.Node, cfg config.Config) domain.Queue {
	return service.New(db, log, genID, cfg.TaskMaxAttempts)
}

type runnerParams struct {
	fx.In

	Queue    domain.Queue
	Log      *zap.Logger
	Metrics  *telemetry.Metrics
	Handlers []domain.Handler `group:"task_handlers"`
	Cfg      config.Config
}

func newRunner(p runnerParams) *worker.Runner {
	return worker.NewRunner(p.Queue, p.Log, p.Metrics, p.Handlers, p.Cfg.TaskPollInterval, p.Cfg.TaskLeaseDuration)
}

func runWorkers(lc fx.Lifecycle, runner *worker.Runner) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				runner.Run(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}
