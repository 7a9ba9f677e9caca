package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

const (
	TierFree       = "free"
	TierPro        = "pro"
	TierEnterprise = "enterprise"
)

type Initializer interface {
	// LimitsFor returns the ceiling set for a plan tier.
	LimitsFor(tier string) (Limits, error)

	// Initialize creates the organization- and account-level quota rows for
	// a newly provisioned tenant, inside the caller's transaction.
	Initialize(ctx context.Context, tx *gorm.DB, tier string, orgID, accountID snowflake.ID) error
}

var ErrUnknownTier = errors.New("unknown plan tier")
