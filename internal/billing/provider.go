// Package billing creates the upstream billing customer for a new tenant.
// It runs asynchronously so a billing outage never blocks signup.
package billing

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Provider is the upstream billing system.
type Provider interface {
	// CreateCustomer registers the organization with the billing system
	// and returns the external customer id.
	CreateCustomer(ctx context.Context, orgID snowflake.ID, email string) (string, error)
}

// LocalProvider mints customer ids locally. Stands in until a real billing
// backend is wired up; the handler's idempotency contract is the same
// either way.
type LocalProvider struct {
	log *zap.Logger
}

func NewLocalProvider(log *zap.Logger) *LocalProvider {
	return &LocalProvider{log: log.Named("billing.local")}
}

func (p *LocalProvider) CreateCustomer(ctx context.Context, orgID snowflake.ID, email string) (string, error) {
	customerID := fmt.Sprintf("cus_%s", uuid.NewString())
	p.log.Info("billing customer created",
		zap.String("org_id", orgID.String()),
		zap.String("customer_id", customerID))
	return customerID, nil
}
