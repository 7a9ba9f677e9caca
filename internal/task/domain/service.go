package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// EnqueueRequest describes one job to queue.
type EnqueueRequest struct {
	Kind      string
	Payload   map[string]any
	DedupeKey string
	OrgID     *snowflake.ID
	AccountID *snowflake.ID
}

type Queue interface {
	// Enqueue inserts a task. A duplicate dedupe key is not an error: the
	// existing task's id is returned so orchestrator-internal retries stay
	// single-shot.
	Enqueue(ctx context.Context, req EnqueueRequest) (snowflake.ID, error)

	// Lease claims the next visible task of one of the given kinds for
	// leaseFor. Returns (nil, nil) when nothing is due. A leased task is
	// invisible to other consumers until the lease expires.
	Lease(ctx context.Context, kinds []string, leaseFor time.Duration) (*Task, error)

	// Complete marks a leased task done. Fails with ErrLeaseLost when the
	// lease token no longer matches (another worker took over).
	Complete(ctx context.Context, taskID snowflake.ID, leaseToken string) error

	// Fail records a handler failure. Retriable failures are rescheduled
	// with exponential backoff until the attempt budget is exhausted, then
	// the task is marked dead. Non-retriable failures go dead immediately.
	Fail(ctx context.Context, taskID snowflake.ID, leaseToken string, retriable bool, cause error) error

	CountBacklog(ctx context.Context) (int64, error)
	CountDead(ctx context.Context) (int64, error)
	ListDead(ctx context.Context, limit int) ([]Task, error)

	// HasForDedupeKey reports whether any task (in any state) exists for a
	// dedupe key. Used by the reconciliation sweep.
	HasForDedupeKey(ctx context.Context, dedupeKey string) (bool, error)
}

// Handler consumes one kind of task. Implementations must tolerate duplicate
// delivery.
type Handler interface {
	Kind() string
	Handle(ctx context.Context, task *Task) error
}

var (
	ErrInvalidKind  = errors.New("invalid task kind")
	ErrTaskNotFound = errors.New("task not found")
	ErrLeaseLost    = errors.New("task lease lost")
)
