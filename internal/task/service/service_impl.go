package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/voundbrand/gatehouse/internal/task/domain"
	dbpkg "github.com/voundbrand/gatehouse/pkg/db"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	leaseCandidateBatch = 5
	retryBackoffBase    = 30 * time.Second
)

type Queue struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	maxAttempts int
}

func New(db *gorm.DB, log *zap.Logger, genID *snowflake.Node, maxAttempts int) *Queue {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Queue{
		db:          db,
		log:         log.Named("task.queue"),
		genID:       genID,
		maxAttempts: maxAttempts,
	}
}

func (q *Queue) Enqueue(ctx context.Context, req domain.EnqueueRequest) (snowflake.ID, error) {
	kind := strings.TrimSpace(req.Kind)
	if kind == "" {
		return 0, domain.ErrInvalidKind
	}
	dedupeKey := strings.TrimSpace(req.DedupeKey)
	if dedupeKey == "" {
		dedupeKey = fmt.Sprintf("%s:%s", kind, uuid.NewString())
	}

	payload := datatypes.JSONMap{}
	for key, value := range req.Payload {
		payload[key] = value
	}

	now := time.Now().UTC()
	task := domain.Task{
		ID:            q.genID.Generate(),
		Kind:          kind,
		Payload:       payload,
		DedupeKey:     dedupeKey,
		OrgID:         req.OrgID,
		AccountID:     req.AccountID,
		Status:        domain.StatusQueued,
		NextAttemptAt: now,
		CreatedAt:     now,
	}

	if err := q.db.WithContext(ctx).Create(&task).Error; err != nil {
		if dbpkg.IsDuplicateKeyErr(err) {
			var existing domain.Task
			if findErr := q.db.WithContext(ctx).
				Where("dedupe_key = ?", dedupeKey).
				First(&existing).Error; findErr == nil {
				return existing.ID, nil
			}
			return 0, err
		}
		return 0, err
	}
	return task.ID, nil
}

// Lease claims a visible task with a guarded update so that two concurrent
// workers can never hold the same lease: the UPDATE re-checks visibility and
// only the caller whose update touched a row wins.
func (q *Queue) Lease(ctx context.Context, kinds []string, leaseFor time.Duration) (*domain.Task, error) {
	if len(kinds) == 0 {
		return nil, domain.ErrInvalidKind
	}
	if leaseFor <= 0 {
		leaseFor = 30 * time.Second
	}

	now := time.Now().UTC()

	// A holder that crashes on every attempt never calls Fail, so expired
	// leases that already spent the attempt budget are parked here instead
	// of being re-leased forever.
	err := q.db.WithContext(ctx).Model(&domain.Task{}).
		Where("status = ? AND lease_expires_at <= ? AND attempts >= ?",
			domain.StatusLeased, now, q.maxAttempts).
		Updates(map[string]any{
			"status":           domain.StatusDead,
			"lease_token":      nil,
			"lease_expires_at": nil,
			"last_error":       "lease expired with no attempts left",
		}).Error
	if err != nil {
		return nil, err
	}

	var candidates []snowflake.ID
	err = q.db.WithContext(ctx).Model(&domain.Task{}).
		Select("id").
		Where("kind IN ?", kinds).
		Where("attempts < ?", q.maxAttempts).
		Where(
			q.db.Where("status = ? AND next_attempt_at <= ?", domain.StatusQueued, now).
				Or("status = ? AND lease_expires_at <= ?", domain.StatusLeased, now),
		).
		Order("next_attempt_at ASC").
		Limit(leaseCandidateBatch).
		Scan(&candidates).Error
	if err != nil {
		return nil, err
	}

	for _, id := range candidates {
		token := uuid.NewString()
		expires := now.Add(leaseFor)

		res := q.db.WithContext(ctx).Model(&domain.Task{}).
			Where("id = ? AND attempts < ?", id, q.maxAttempts).
			Where(
				q.db.Where("status = ? AND next_attempt_at <= ?", domain.StatusQueued, now).
					Or("status = ? AND lease_expires_at <= ?", domain.StatusLeased, now),
			).
			Updates(map[string]any{
				"status":           domain.StatusLeased,
				"attempts":         gorm.Expr("attempts + 1"),
				"lease_token":      token,
				"lease_expires_at": expires,
			})
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			continue // lost the race to another worker
		}

		var task domain.Task
		if err := q.db.WithContext(ctx).Where("id = ?", id).First(&task).Error; err != nil {
			return nil, err
		}
		return &task, nil
	}

	return nil, nil
}

func (q *Queue) Complete(ctx context.Context, taskID snowflake.ID, leaseToken string) error {
	now := time.Now().UTC()
	res := q.db.WithContext(ctx).Model(&domain.Task{}).
		Where("id = ? AND status = ? AND lease_token = ?", taskID, domain.StatusLeased, leaseToken).
		Updates(map[string]any{
			"status":       domain.StatusDone,
			"completed_at": now,
			"lease_token":  nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return q.leaseLostOrMissing(ctx, taskID)
	}
	return nil
}

func (q *Queue) Fail(ctx context.Context, taskID snowflake.ID, leaseToken string, retriable bool, cause error) error {
	var task domain.Task
	err := q.db.WithContext(ctx).Where("id = ?", taskID).First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrTaskNotFound
	}
	if err != nil {
		return err
	}
	if task.Status != domain.StatusLeased || task.LeaseToken == nil || *task.LeaseToken != leaseToken {
		return domain.ErrLeaseLost
	}

	updates := map[string]any{
		"lease_token":      nil,
		"lease_expires_at": nil,
	}
	if cause != nil {
		msg := cause.Error()
		updates["last_error"] = msg
	}

	if !retriable || task.Attempts >= q.maxAttempts {
		updates["status"] = domain.StatusDead
		q.log.Error("task moved to dead letter",
			zap.String("task_id", taskID.String()),
			zap.String("kind", task.Kind),
			zap.Int("attempts", task.Attempts),
			zap.Error(cause),
		)
	} else {
		updates["status"] = domain.StatusQueued
		updates["next_attempt_at"] = time.Now().UTC().Add(backoff(task.Attempts))
	}

	res := q.db.WithContext(ctx).Model(&domain.Task{}).
		Where("id = ? AND status = ? AND lease_token = ?", taskID, domain.StatusLeased, leaseToken).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return q.leaseLostOrMissing(ctx, taskID)
	}
	return nil
}

func (q *Queue) CountBacklog(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.WithContext(ctx).Model(&domain.Task{}).
		Where("status IN ?", []domain.Status{domain.StatusQueued, domain.StatusLeased}).
		Count(&count).Error
	return count, err
}

func (q *Queue) CountDead(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.WithContext(ctx).Model(&domain.Task{}).
		Where("status = ?", domain.StatusDead).
		Count(&count).Error
	return count, err
}

func (q *Queue) ListDead(ctx context.Context, limit int) ([]domain.Task, error) {
	if limit <= 0 || limit > 250 {
		limit = 50
	}
	var tasks []domain.Task
	err := q.db.WithContext(ctx).
		Where("status = ?", domain.StatusDead).
		Order("created_at DESC").
		Limit(limit).
		Find(&tasks).Error
	return tasks, err
}

func (q *Queue) HasForDedupeKey(ctx context.Context, dedupeKey string) (bool, error) {
	var count int64
	err := q.db.WithContext(ctx).Model(&domain.Task{}).
		Where("dedupe_key = ?", dedupeKey).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (q *Queue) leaseLostOrMissing(ctx context.Context, taskID snowflake.ID) error {
	var count int64
	if err := q.db.WithContext(ctx).Model(&domain.Task{}).
		Where("id = ?", taskID).
		Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return domain.ErrTaskNotFound
	}
	return domain.ErrLeaseLost
}

// backoff doubles per attempt: 30s, 1m, 2m, 4m, ...
func backoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	d := retryBackoffBase
	for i := 1; i < attempts; i++ {
		d *= 2
		if d > time.Hour {
			return time.Hour
		}
	}
	return d
}
