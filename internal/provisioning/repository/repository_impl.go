package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/voundbrand/gatehouse/internal/provisioning/domain"
)

type repo struct {
	db *gorm.DB
}

// New creates a provisioning attempt repository.
func New(db *gorm.DB) domain.Repository {
	return &repo{db: db}
}

func (r *repo) WithTx(tx *gorm.DB) domain.Repository {
	if tx == nil {
		return r
	}
	return &repo{db: tx}
}

func (r *repo) Create(ctx context.Context, attempt *domain.Attempt) error {
	return r.db.WithContext(ctx).Create(attempt).Error
}

func (r *repo) FindByKey(ctx context.Context, key string) (*domain.Attempt, error) {
	var attempt domain.Attempt
	err := r.db.WithContext(ctx).
		Where("idempotency_key = ?", key).
		First(&attempt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrAttemptNotFound
	}
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *repo) TakeOver(ctx context.Context, id snowflake.ID, oldToken, newToken string, leaseExpiresAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&domain.Attempt{}).
		Where("id = ? AND lease_token = ? AND status IN ?", id, oldToken,
			[]domain.AttemptStatus{domain.AttemptInFlight, domain.AttemptFailed}).
		Updates(map[string]any{
			"status":           domain.AttemptInFlight,
			"lease_token":      newToken,
			"lease_expires_at": leaseExpiresAt,
			"failure_reason":   nil,
			"updated_at":       time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) MarkSucceeded(ctx context.Context, id snowflake.ID, token string, accountID, orgID snowflake.ID, isNew bool) error {
	res := r.db.WithContext(ctx).
		Model(&domain.Attempt{}).
		Where("id = ? AND lease_token = ?", id, token).
		Updates(map[string]any{
			"status":         domain.AttemptSucceeded,
			"account_id":     accountID,
			"org_id":         orgID,
			"is_new_account": isNew,
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (r *repo) MarkFailed(ctx context.Context, id snowflake.ID, token, reason string) error {
	res := r.db.WithContext(ctx).
		Model(&domain.Attempt{}).
		Where("id = ? AND lease_token = ?", id, token).
		Updates(map[string]any{
			"status":         domain.AttemptFailed,
			"failure_reason": reason,
			// Releasing the lease lets the next retry take over immediately.
			"lease_expires_at": time.Now().UTC(),
			"updated_at":       time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}
