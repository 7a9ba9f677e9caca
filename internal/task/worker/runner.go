package worker

import (
	"context"
	"time"

	"github.com/voundbrand/gatehouse/internal/task/domain"
	"github.com/voundbrand/gatehouse/pkg/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// Runner polls the queue and dispatches leased tasks to registered handlers.
// Multiple runner instances may share one queue; the per-task lease keeps
// them from processing the same task concurrently.
type Runner struct {
	queue         domain.Queue
	log           *zap.Logger
	metrics       *telemetry.Metrics
	handlers      map[string]domain.Handler
	kinds         []string
	pollInterval  time.Duration
	leaseDuration time.Duration
}

func NewRunner(
	queue domain.Queue,
	log *zap.Logger,
	metrics *telemetry.Metrics,
	handlers []domain.Handler,
	pollInterval time.Duration,
	leaseDuration time.Duration,
) *Runner {
	byKind := make(map[string]domain.Handler, len(handlers))
	kinds := make([]string, 0, len(handlers))
	for _, h := range handlers {
		byKind[h.Kind()] = h
		kinds = append(kinds, h.Kind())
	}
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	if leaseDuration <= 0 {
		leaseDuration = 30 * time.Second
	}
	return &Runner{
		queue:         queue,
		log:           log.Named("task.runner"),
		metrics:       metrics,
		handlers:      byKind,
		kinds:         kinds,
		pollInterval:  pollInterval,
		leaseDuration: leaseDuration,
	}
}

// Run polls until the context is cancelled.
func (r *Runner) Run(ctx context.Context) {
	if len(r.kinds) == 0 {
		r.log.Warn("no task handlers registered, runner idle")
		return
	}

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		r.drain(ctx)
		r.observeGauges(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// drain processes tasks until the queue has nothing due.
func (r *Runner) drain(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		task, err := r.queue.Lease(ctx, r.kinds, r.leaseDuration)
		if err != nil {
			r.log.Error("task lease failed", zap.Error(err))
			return
		}
		if task == nil {
			return
		}

		r.process(ctx, task)
	}
}

func (r *Runner) process(ctx context.Context, task *domain.Task) {
	handler, ok := r.handlers[task.Kind]
	leaseToken := ""
	if task.LeaseToken != nil {
		leaseToken = *task.LeaseToken
	}
	if !ok {
		// Leased a kind nobody handles anymore; park it for operators.
		_ = r.queue.Fail(ctx, task.ID, leaseToken, false, domain.ErrInvalidKind)
		return
	}

	tracer := otel.Tracer("gatehouse/task")
	taskCtx, span := tracer.Start(ctx, "task "+task.Kind)
	span.SetAttributes(
		attribute.String("task.id", task.ID.String()),
		attribute.String("task.kind", task.Kind),
		attribute.Int("task.attempts", task.Attempts),
	)

	start := time.Now()
	err := handler.Handle(taskCtx, task)
	elapsed := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "task handler failed")
		span.End()

		r.metrics.ObserveTask(task.Kind, "failed", elapsed)
		r.log.Warn("task handler failed",
			zap.String("task_id", task.ID.String()),
			zap.String("kind", task.Kind),
			zap.Int("attempts", task.Attempts),
			zap.Error(err),
		)
		if failErr := r.queue.Fail(ctx, task.ID, leaseToken, true, err); failErr != nil {
			r.log.Error("task fail-mark failed", zap.String("task_id", task.ID.String()), zap.Error(failErr))
		}
		return
	}

	span.End()
	r.metrics.ObserveTask(task.Kind, "done", elapsed)

	if err := r.queue.Complete(ctx, task.ID, leaseToken); err != nil {
		// The side effect already ran; at-least-once delivery means the
		// next holder's handler must no-op.
		r.log.Warn("task complete-mark failed", zap.String("task_id", task.ID.String()), zap.Error(err))
	}
}

func (r *Runner) observeGauges(ctx context.Context) {
	if backlog, err := r.queue.CountBacklog(ctx); err == nil {
		r.metrics.SetTaskBacklog(backlog)
	}
	if dead, err := r.queue.CountDead(ctx); err == nil {
		r.metrics.SetDeadTasks(dead)
	}
}
