package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/voundbrand/gatehouse/internal/organization/domain"
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

func (r *repo) CreateOrganization(ctx context.Context, org *domain.Organization) error {
	return r.db.WithContext(ctx).Create(org).Error
}

func (r *repo) GetByID(ctx context.Context, id snowflake.ID) (*domain.Organization, error) {
	var org domain.Organization
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&org).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrOrgNotFound
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *repo) GetBySlug(ctx context.Context, slug string) (*domain.Organization, error) {
	var org domain.Organization
	err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&org).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrOrgNotFound
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *repo) SlugExists(ctx context.Context, slug string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Organization{}).
		Where("slug = ?", slug).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) SetBillingCustomerID(ctx context.Context, orgID snowflake.ID, customerID string) error {
	tx := r.db.WithContext(ctx).Model(&domain.Organization{}).
		Where("id = ?", orgID).
		Updates(map[string]any{
			"billing_customer_id": customerID,
			"updated_at":          time.Now().UTC(),
		})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrOrgNotFound
	}
	return nil
}

func (r *repo) ListSweepCandidates(ctx context.Context, createdSince time.Time, limit int) ([]domain.Organization, error) {
	var orgs []domain.Organization
	err := r.db.WithContext(ctx).
		Where("is_system = ?", false).
		Where("created_at >= ? OR billing_customer_id IS NULL OR billing_customer_id = ''", createdSince).
		Order("created_at ASC").
		Limit(limit).
		Find(&orgs).Error
	if err != nil {
		return nil, err
	}
	return orgs, nil
}

func (r *repo) OwnerAccountID(ctx context.Context, orgID snowflake.ID) (snowflake.ID, error) {
	var membership domain.Membership
	err := r.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("id ASC").
		First(&membership).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, domain.ErrOrgNotFound
	}
	if err != nil {
		return 0, err
	}
	return membership.AccountID, nil
}

func (r *repo) AddMembership(ctx context.Context, membership *domain.Membership) error {
	return r.db.WithContext(ctx).Create(membership).Error
}

func (r *repo) FindRole(ctx context.Context, name string) (*domain.Role, error) {
	var role domain.Role
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&role).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, gorm.ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *repo) CreateRole(ctx context.Context, role *domain.Role) error {
	return r.db.WithContext(ctx).Create(role).Error
}

func (r *repo) CreateStarterResource(ctx context.Context, resource *domain.StarterResource) error {
	return r.db.WithContext(ctx).Create(resource).Error
}
