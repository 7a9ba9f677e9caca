// Package reconcile repairs side effects lost between tenant commit and task
// enqueue. The creation transaction commits first and followup tasks are
// enqueued best effort afterwards, so a crash in that window leaves an
// organization without some or all of its followup tasks. The sweep finds
// and re-enqueues them; dedupe keys keep the repair single-shot.
package reconcile

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	accountdomain "github.com/voundbrand/gatehouse/internal/account/domain"
	orgdomain "github.com/voundbrand/gatehouse/internal/organization/domain"
	taskdomain "github.com/voundbrand/gatehouse/internal/task/domain"
)

const (
	sweepBatchSize = 200

	// sweepLookback bounds the scan for lost welcome and sales-alert
	// tasks. The loss happens at provisioning time, so any lookback
	// longer than the sweep interval catches it.
	sweepLookback = 24 * time.Hour
)

// followupKinds are the tasks every provisioned organization must have on
// record, in enqueue order.
var followupKinds = []string{
	taskdomain.KindWelcomeEmail,
	taskdomain.KindSalesAlert,
	taskdomain.KindBillingCustomer,
}

type Sweeper struct {
	orgs     orgdomain.Repository
	accounts accountdomain.Repository
	queue    taskdomain.Queue
	log      *zap.Logger
}

func NewSweeper(orgs orgdomain.Repository, accounts accountdomain.Repository, queue taskdomain.Queue, log *zap.Logger) *Sweeper {
	return &Sweeper{
		orgs:     orgs,
		accounts: accounts,
		queue:    queue,
		log:      log.Named("reconcile.sweeper"),
	}
}

// Sweep re-enqueues missing followup tasks for recently provisioned
// organizations and for organizations still lacking a billing customer.
// Returns the number of tasks enqueued.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	since := time.Now().UTC().Add(-sweepLookback)
	orgs, err := s.orgs.ListSweepCandidates(ctx, since, sweepBatchSize)
	if err != nil {
		return 0, err
	}

	repaired := 0
	for i := range orgs {
		n, err := s.repairOrg(ctx, &orgs[i])
		repaired += n
		if err != nil {
			return repaired, err
		}
	}
	return repaired, nil
}

func (s *Sweeper) repairOrg(ctx context.Context, org *orgdomain.Organization) (int, error) {
	var missing []string
	for _, kind := range followupKinds {
		if kind == taskdomain.KindBillingCustomer && org.BillingCustomerID != nil && *org.BillingCustomerID != "" {
			// Customer exists; no billing task needed.
			continue
		}
		exists, err := s.queue.HasForDedupeKey(ctx, org.ID.String()+":"+kind)
		if err != nil {
			return 0, err
		}
		if !exists {
			missing = append(missing, kind)
		}
	}
	if len(missing) == 0 {
		return 0, nil
	}

	owner, err := s.ownerAccount(ctx, org.ID)
	if err != nil {
		// Without the owner row the payloads cannot be hydrated; leave
		// the org for the next sweep rather than enqueue blind tasks.
		s.log.Warn("sweep cannot resolve owner account",
			zap.String("org_id", org.ID.String()),
			zap.Error(err))
		return 0, nil
	}

	orgID := org.ID
	accountID := owner.ID
	repaired := 0
	for _, kind := range missing {
		_, err := s.queue.Enqueue(ctx, taskdomain.EnqueueRequest{
			Kind:      kind,
			DedupeKey: orgID.String() + ":" + kind,
			Payload:   s.payloadFor(kind, org, owner),
			OrgID:     &orgID,
			AccountID: &accountID,
		})
		if err != nil {
			return repaired, err
		}
		s.log.Warn("re-enqueued lost followup task",
			zap.String("kind", kind),
			zap.String("org_id", org.ID.String()),
			zap.String("slug", org.Slug))
		repaired++
	}
	return repaired, nil
}

func (s *Sweeper) ownerAccount(ctx context.Context, orgID snowflake.ID) (*accountdomain.Account, error) {
	accountID, err := s.orgs.OwnerAccountID(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return s.accounts.FindByID(ctx, accountID)
}

// payloadFor rebuilds the task payload the orchestrator would have written,
// from the committed rows instead of the original request.
func (s *Sweeper) payloadFor(kind string, org *orgdomain.Organization, owner *accountdomain.Account) map[string]any {
	switch kind {
	case taskdomain.KindWelcomeEmail:
		return map[string]any{"email": owner.Email, "display_name": owner.DisplayName}
	case taskdomain.KindSalesAlert:
		return map[string]any{"email": owner.Email, "org_name": org.Name, "tier": org.PlanTier}
	case taskdomain.KindBillingCustomer:
		return map[string]any{"email": owner.Email}
	default:
		return map[string]any{}
	}
}
