package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrganization(ctx context.Context, org *Organization) error
	GetByID(ctx context.Context, id snowflake.ID) (*Organization, error)
	GetBySlug(ctx context.Context, slug string) (*Organization, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	SetBillingCustomerID(ctx context.Context, orgID snowflake.ID, customerID string) error

	// ListSweepCandidates returns non-system organizations that may be
	// missing followup tasks: everything created since createdSince plus
	// any organization still without a billing customer.
	ListSweepCandidates(ctx context.Context, createdSince time.Time, limit int) ([]Organization, error)

	// OwnerAccountID returns the account behind the organization's first
	// membership.
	OwnerAccountID(ctx context.Context, orgID snowflake.ID) (snowflake.ID, error)
	AddMembership(ctx context.Context, membership *Membership) error
	FindRole(ctx context.Context, name string) (*Role, error)
	CreateRole(ctx context.Context, role *Role) error
	CreateStarterResource(ctx context.Context, resource *StarterResource) error
}
