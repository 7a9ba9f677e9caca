package repository

import (
	"context"

	"github.com/voundbrand/gatehouse/internal/audit/domain"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, event *domain.Event) error
	ListByAction(ctx context.Context, action string, limit int) ([]domain.Event, error)
}

type repo struct {
	db *gorm.DB
}

func New(db *gorm.DB) Repository {
	return &repo{db: db}
}

func (r *repo) Insert(ctx context.Context, event *domain.Event) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repo) ListByAction(ctx context.Context, action string, limit int) ([]domain.Event, error) {
	var events []domain.Event
	query := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if action != "" {
		query = query.Where("action = ?", action)
	}
	if err := query.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
