package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/voundbrand/gatehouse/internal/account/domain"
	"gorm.io/gorm"
)

type repo struct {
	db *gorm.DB
}

func New(db *gorm.DB) domain.Repository {
	return &repo{db: db}
}

func (r *repo) WithTx(tx *gorm.DB) domain.Repository {
	return &repo{db: tx}
}

func (r *repo) Create(ctx context.Context, account *domain.Account) error {
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *repo) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	var account domain.Account
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repo) FindByID(ctx context.Context, id snowflake.ID) (*domain.Account, error) {
	var account domain.Account
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repo) UpdateFields(ctx context.Context, id snowflake.ID, fields map[string]any) error {
	tx := r.db.WithContext(ctx).Model(&domain.Account{}).Where("id = ?", id).Updates(fields)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (r *repo) CreateIdentity(ctx context.Context, identity *domain.ExternalIdentity) error {
	return r.db.WithContext(ctx).Create(identity).Error
}

func (r *repo) FindIdentity(ctx context.Context, provider, subject string) (*domain.ExternalIdentity, error) {
	var identity domain.ExternalIdentity
	err := r.db.WithContext(ctx).
		Where("provider = ? AND subject = ?", provider, subject).
		First(&identity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrIdentityNotFound
	}
	if err != nil {
		return nil, err
	}
	return &identity, nil
}
