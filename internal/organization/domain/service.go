package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// RoleOwner is the well-known owner-equivalent role name every new
// organization's first membership carries.
const RoleOwner = "owner"

type Service interface {
	// AllocateSlug derives a unique URL-safe slug from a display name,
	// resolving collisions with an incrementing counter. Must be called
	// inside the same transaction as the organization insert.
	AllocateSlug(ctx context.Context, repo Repository, displayName string) (string, error)

	// GetOrCreateRole resolves a role by well-known name, creating it on
	// first use. Idempotent.
	GetOrCreateRole(ctx context.Context, repo Repository, name string) (*Role, error)
}

var (
	ErrInvalidName   = errors.New("invalid_name")
	ErrSlugExhausted = errors.New("slug_exhausted")
	ErrOrgNotFound   = errors.New("organization not found")
)

// OwnerResult reports the organization and membership created for an owner.
type OwnerResult struct {
	OrgID        snowflake.ID
	MembershipID snowflake.ID
}
