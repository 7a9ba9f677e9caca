package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/voundbrand/gatehouse/internal/task/domain"
	taskservice "github.com/voundbrand/gatehouse/internal/task/service"
	dbpkg "github.com/voundbrand/gatehouse/pkg/db"
)

type stubHandler struct {
	kind    string
	calls   int
	failErr error
}

func (h *stubHandler) Kind() string { return h.kind }

func (h *stubHandler) Handle(ctx context.Context, task *domain.Task) error {
	h.calls++
	return h.failErr
}

func setupRunnerTest(t *testing.T, handlers ...domain.Handler) (*Runner, *taskservice.Queue) {
	t.Helper()

	db, err := dbpkg.NewTest()
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Task{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	queue := taskservice.New(db, zap.NewNop(), node, 5)
	runner := NewRunner(queue, zap.NewNop(), nil, handlers, time.Second, time.Minute)
	return runner, queue
}

func TestDrainProcessesAllDueTasks(t *testing.T) {
	handler := &stubHandler{kind: domain.KindWelcomeEmail}
	runner, queue := setupRunnerTest(t, handler)
	ctx := context.Background()

	for _, key := range []string{"org-1:welcome", "org-2:welcome"} {
		_, err := queue.Enqueue(ctx, domain.EnqueueRequest{Kind: domain.KindWelcomeEmail, DedupeKey: key})
		require.NoError(t, err)
	}

	runner.drain(ctx)
	require.Equal(t, 2, handler.calls)

	backlog, err := queue.CountBacklog(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(0), backlog)
}

func TestDrainFailsTaskOnHandlerError(t *testing.T) {
	handler := &stubHandler{kind: domain.KindWelcomeEmail, failErr: errors.New("smtp down")}
	runner, queue := setupRunnerTest(t, handler)
	ctx := context.Background()

	id, err := queue.Enqueue(ctx, domain.EnqueueRequest{Kind: domain.KindWelcomeEmail, DedupeKey: "org-1:welcome"})
	require.NoError(t, err)

	runner.drain(ctx)
	require.Equal(t, 1, handler.calls)

	// The task is requeued with backoff, not done and not dead.
	backlog, err := queue.CountBacklog(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), backlog)

	dead, err := queue.CountDead(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(0), dead)

	_ = id
}

func TestUnhandledKindGoesDead(t *testing.T) {
	handler := &stubHandler{kind: domain.KindWelcomeEmail}
	runner, queue := setupRunnerTest(t, handler)
	ctx := context.Background()

	// Enqueue a kind nobody handles, then force the runner to see it by
	// registering its kind in the poll set.
	_, err := queue.Enqueue(ctx, domain.EnqueueRequest{Kind: domain.KindSalesAlert, DedupeKey: "org-1:alert"})
	require.NoError(t, err)
	runner.kinds = append(runner.kinds, domain.KindSalesAlert)

	runner.drain(ctx)
	require.Equal(t, 0, handler.calls)

	dead, err := queue.CountDead(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), dead)
}
