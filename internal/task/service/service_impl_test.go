package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/voundbrand/gatehouse/internal/task/domain"
	dbpkg "github.com/voundbrand/gatehouse/pkg/db"
)

func setupQueueTest(t *testing.T) (*Queue, *gorm.DB) {
	t.Helper()

	db, err := dbpkg.NewTest()
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Task{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return New(db, zap.NewNop(), node, 5), db
}

func enqueueOne(t *testing.T, q *Queue, kind, dedupeKey string) snowflake.ID {
	t.Helper()
	id, err := q.Enqueue(context.Background(), domain.EnqueueRequest{
		Kind:      kind,
		DedupeKey: dedupeKey,
		Payload:   map[string]any{"email": "john@example.com"},
	})
	require.NoError(t, err)
	return id
}

func TestEnqueueDedupeReturnsExistingID(t *testing.T) {
	q, _ := setupQueueTest(t)

	first := enqueueOne(t, q, domain.KindWelcomeEmail, "org-1:welcome")
	second := enqueueOne(t, q, domain.KindWelcomeEmail, "org-1:welcome")
	require.Equal(t, first, second)

	count, err := q.CountBacklog(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}

func TestEnqueueRejectsEmptyKind(t *testing.T) {
	q, _ := setupQueueTest(t)

	_, err := q.Enqueue(context.Background(), domain.EnqueueRequest{Kind: "  "})
	require.ErrorIs(t, err, domain.ErrInvalidKind)
}

func TestLeaseClaimsAndHides(t *testing.T) {
	q, _ := setupQueueTest(t)
	ctx := context.Background()

	id := enqueueOne(t, q, domain.KindWelcomeEmail, "org-1:welcome")

	task, err := q.Lease(ctx, []string{domain.KindWelcomeEmail}, time.Minute)
	require.NoError(t, err)
	require.NotNil(t, task)
	require.Equal(t, id, task.ID)
	require.Equal(t, domain.StatusLeased, task.Status)
	require.Equal(t, 1, task.Attempts)
	require.NotNil(t, task.LeaseToken)

	// The leased task is invisible until its lease expires.
	second, err := q.Lease(ctx, []string{domain.KindWelcomeEmail}, time.Minute)
	require.NoError(t, err)
	require.Nil(t, second)
}

func TestLeaseReturnsNilWhenEmpty(t *testing.T) {
	q, _ := setupQueueTest(t)

	task, err := q.Lease(context.Background(), []string{domain.KindSalesAlert}, time.Minute)
	require.NoError(t, err)
	require.Nil(t, task)
}

func TestLeaseSkipsOtherKinds(t *testing.T) {
	q, _ := setupQueueTest(t)

	enqueueOne(t, q, domain.KindBillingCustomer, "org-1:billing")

	task, err := q.Lease(context.Background(), []string{domain.KindWelcomeEmail}, time.Minute)
	require.NoError(t, err)
	require.Nil(t, task)
}

func TestCompleteMarksDone(t *testing.T) {
	q, db := setupQueueTest(t)
	ctx := context.Background()

	enqueueOne(t, q, domain.KindWelcomeEmail, "org-1:welcome")
	task, err := q.Lease(ctx, []string{domain.KindWelcomeEmail}, time.Minute)
	require.NoError(t, err)

	require.NoError(t, q.Complete(ctx, task.ID, *task.LeaseToken))

	var stored domain.Task
	require.NoError(t, db.First(&stored, "id = ?", task.ID).Error)
	require.Equal(t, domain.StatusDone, stored.Status)
	require.NotNil(t, stored.CompletedAt)

	backlog, err := q.CountBacklog(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(0), backlog)
}

func TestCompleteWithWrongTokenFails(t *testing.T) {
	q, _ := setupQueueTest(t)
	ctx := context.Background()

	enqueueOne(t, q, domain.KindWelcomeEmail, "org-1:welcome")
	task, err := q.Lease(ctx, []string{domain.KindWelcomeEmail}, time.Minute)
	require.NoError(t, err)

	err = q.Complete(ctx, task.ID, "stolen-token")
	require.ErrorIs(t, err, domain.ErrLeaseLost)
}

func TestFailRetriableRequeuesWithBackoff(t *testing.T) {
	q, db := setupQueueTest(t)
	ctx := context.Background()

	enqueueOne(t, q, domain.KindWelcomeEmail, "org-1:welcome")
	task, err := q.Lease(ctx, []string{domain.KindWelcomeEmail}, time.Minute)
	require.NoError(t, err)

	before := time.Now().UTC()
	require.NoError(t, q.Fail(ctx, task.ID, *task.LeaseToken, true, errors.New("smtp timeout")))

	var stored domain.Task
	require.NoError(t, db.First(&stored, "id = ?", task.ID).Error)
	require.Equal(t, domain.StatusQueued, stored.Status)
	require.Equal(t, 1, stored.Attempts)
	require.NotNil(t, stored.LastError)
	require.Equal(t, "smtp timeout", *stored.LastError)
	// First retry waits the base backoff, not zero.
	require.True(t, stored.NextAttemptAt.After(before.Add(25*time.Second)))

	// Not yet visible.
	next, err := q.Lease(ctx, []string{domain.KindWelcomeEmail}, time.Minute)
	require.NoError(t, err)
	require.Nil(t, next)
}

func TestFailNonRetriableGoesDead(t *testing.T) {
	q, db := setupQueueTest(t)
	ctx := context.Background()

	enqueueOne(t, q, domain.KindWelcomeEmail, "org-1:welcome")
	task, err := q.Lease(ctx, []string{domain.KindWelcomeEmail}, time.Minute)
	require.NoError(t, err)

	require.NoError(t, q.Fail(ctx, task.ID, *task.LeaseToken, false, errors.New("unknown kind")))

	var stored domain.Task
	require.NoError(t, db.First(&stored, "id = ?", task.ID).Error)
	require.Equal(t, domain.StatusDead, stored.Status)

	dead, err := q.CountDead(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), dead)
}

func TestFailExhaustsAttemptBudget(t *testing.T) {
	q, db := setupQueueTest(t)
	ctx := context.Background()

	id := enqueueOne(t, q, domain.KindWelcomeEmail, "org-1:welcome")

	for attempt := 1; attempt <= 5; attempt++ {
		// Make the task due again regardless of backoff.
		require.NoError(t, db.Model(&domain.Task{}).
			Where("id = ?", id).
			Update("next_attempt_at", time.Now().UTC().Add(-time.Second)).Error)

		task, err := q.Lease(ctx, []string{domain.KindWelcomeEmail}, time.Minute)
		require.NoError(t, err)
		require.NotNil(t, task, "attempt %d should lease", attempt)
		require.NoError(t, q.Fail(ctx, task.ID, *task.LeaseToken, true, errors.New("still broken")))
	}

	var stored domain.Task
	require.NoError(t, db.First(&stored, "id = ?", id).Error)
	require.Equal(t, domain.StatusDead, stored.Status)
	require.Equal(t, 5, stored.Attempts)

	listed, err := q.ListDead(ctx, 10)
	require.NoError(t, err)
	require.Len(t, listed, 1)
}

func TestExpiredLeaseIsReleasable(t *testing.T) {
	q, db := setupQueueTest(t)
	ctx := context.Background()

	id := enqueueOne(t, q, domain.KindWelcomeEmail, "org-1:welcome")

	first, err := q.Lease(ctx, []string{domain.KindWelcomeEmail}, time.Minute)
	require.NoError(t, err)
	require.NotNil(t, first)

	// Simulate a worker death: expire the lease.
	require.NoError(t, db.Model(&domain.Task{}).
		Where("id = ?", id).
		Update("lease_expires_at", time.Now().UTC().Add(-time.Second)).Error)

	second, err := q.Lease(ctx, []string{domain.KindWelcomeEmail}, time.Minute)
	require.NoError(t, err)
	require.NotNil(t, second)
	require.Equal(t, 2, second.Attempts)
	require.NotEqual(t, *first.LeaseToken, *second.LeaseToken)

	// The dead worker's token no longer completes the task.
	err = q.Complete(ctx, id, *first.LeaseToken)
	require.ErrorIs(t, err, domain.ErrLeaseLost)
}

func TestCrashLoopedTaskGoesDead(t *testing.T) {
	q, db := setupQueueTest(t)
	ctx := context.Background()

	id := enqueueOne(t, q, domain.KindWelcomeEmail, "org-1:welcome")

	// A holder that dies without calling Fail: lease, expire, repeat.
	for attempt := 1; attempt <= 5; attempt++ {
		task, err := q.Lease(ctx, []string{domain.KindWelcomeEmail}, time.Minute)
		require.NoError(t, err)
		require.NotNil(t, task, "attempt %d should lease", attempt)
		require.NoError(t, db.Model(&domain.Task{}).
			Where("id = ?", id).
			Update("lease_expires_at", time.Now().UTC().Add(-time.Second)).Error)
	}

	// The budget is spent; the next poll parks the task instead of
	// re-leasing it.
	task, err := q.Lease(ctx, []string{domain.KindWelcomeEmail}, time.Minute)
	require.NoError(t, err)
	require.Nil(t, task)

	var stored domain.Task
	require.NoError(t, db.First(&stored, "id = ?", id).Error)
	require.Equal(t, domain.StatusDead, stored.Status)
	require.Equal(t, 5, stored.Attempts)
	require.Nil(t, stored.LeaseToken)

	listed, err := q.ListDead(ctx, 10)
	require.NoError(t, err)
	require.Len(t, listed, 1)
}

func TestHasForDedupeKey(t *testing.T) {
	q, _ := setupQueueTest(t)
	ctx := context.Background()

	enqueueOne(t, q, domain.KindBillingCustomer, "org-1:billing")

	exists, err := q.HasForDedupeKey(ctx, "org-1:billing")
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = q.HasForDedupeKey(ctx, "org-2:billing")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	require.Equal(t, 30*time.Second, backoff(1))
	require.Equal(t, time.Minute, backoff(2))
	require.Equal(t, 2*time.Minute, backoff(3))
	require.Equal(t, time.Hour, backoff(10))
}
