package billing

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	orgdomain "github.com/voundbrand/gatehouse/internal/organization/domain"
	taskdomain "github.com/voundbrand/gatehouse/internal/task/domain"
)

// CustomerHandler processes billing.create_customer tasks. Delivery is
// at-least-once, so the handler checks for an existing customer id before
// calling out; a redelivered task then becomes a no-op.
type CustomerHandler struct {
	provider Provider
	orgs     orgdomain.Repository
	log      *zap.Logger
}

func NewCustomerHandler(provider Provider, orgs orgdomain.Repository, log *zap.Logger) *CustomerHandler {
	return &CustomerHandler{
		provider: provider,
		orgs:     orgs,
		log:      log.Named("billing.customer"),
	}
}

func (h *CustomerHandler) Kind() string { return taskdomain.KindBillingCustomer }

func (h *CustomerHandler) Handle(ctx context.Context, task *taskdomain.Task) error {
	if task.OrgID == nil {
		return fmt.Errorf("billing customer task %s has no org", task.ID)
	}

	org, err := h.orgs.GetByID(ctx, *task.OrgID)
	if err != nil {
		return err
	}
	if org.BillingCustomerID != nil && *org.BillingCustomerID != "" {
		h.log.Info("billing customer already exists, skipping",
			zap.String("org_id", org.ID.String()))
		return nil
	}

	email, _ := task.Payload["email"].(string)
	customerID, err := h.provider.CreateCustomer(ctx, org.ID, email)
	if err != nil {
		return err
	}

	return h.orgs.SetBillingCustomerID(ctx, org.ID, customerID)
}
