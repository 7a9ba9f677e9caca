package billing

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	orgdomain "github.com/voundbrand/gatehouse/internal/organization/domain"
	orgrepo "github.com/voundbrand/gatehouse/internal/organization/repository"
	taskdomain "github.com/voundbrand/gatehouse/internal/task/domain"
	dbpkg "github.com/voundbrand/gatehouse/pkg/db"
)

type countingProvider struct {
	calls int
	fail  bool
}

func (p *countingProvider) CreateCustomer(ctx context.Context, orgID snowflake.ID, email string) (string, error) {
	p.calls++
	if p.fail {
		return "", errors.New("billing unavailable")
	}
	return "cus_test_1", nil
}

func setupBillingTest(t *testing.T) (*gorm.DB, orgdomain.Repository, *snowflake.Node) {
	t.Helper()

	db, err := dbpkg.NewTest()
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&orgdomain.Organization{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return db, orgrepo.New(db), node
}

func billingTask(node *snowflake.Node, orgID snowflake.ID) *taskdomain.Task {
	return &taskdomain.Task{
		ID:      node.Generate(),
		Kind:    taskdomain.KindBillingCustomer,
		OrgID:   &orgID,
		Payload: map[string]any{"email": "john@example.com"},
	}
}

func TestCustomerHandlerCreatesAndStoresCustomer(t *testing.T) {
	db, orgs, node := setupBillingTest(t)
	ctx := context.Background()

	org := &orgdomain.Organization{
		ID:       node.Generate(),
		Name:     "Acme",
		Slug:     "acme",
		PlanTier: "free",
		Metadata: map[string]any{},
	}
	require.NoError(t, orgs.CreateOrganization(ctx, org))

	provider := &countingProvider{}
	handler := NewCustomerHandler(provider, orgs, zap.NewNop())

	require.NoError(t, handler.Handle(ctx, billingTask(node, org.ID)))
	require.Equal(t, 1, provider.calls)

	var stored orgdomain.Organization
	require.NoError(t, db.First(&stored, "id = ?", org.ID).Error)
	require.NotNil(t, stored.BillingCustomerID)
	require.Equal(t, "cus_test_1", *stored.BillingCustomerID)
}

func TestCustomerHandlerSkipsExistingCustomer(t *testing.T) {
	_, orgs, node := setupBillingTest(t)
	ctx := context.Background()

	existing := "cus_already"
	org := &orgdomain.Organization{
		ID:                node.Generate(),
		Name:              "Acme",
		Slug:              "acme",
		PlanTier:          "free",
		BillingCustomerID: &existing,
		Metadata:          map[string]any{},
	}
	require.NoError(t, orgs.CreateOrganization(ctx, org))

	provider := &countingProvider{}
	handler := NewCustomerHandler(provider, orgs, zap.NewNop())

	// Redelivered task is a no-op.
	require.NoError(t, handler.Handle(ctx, billingTask(node, org.ID)))
	require.Equal(t, 0, provider.calls)
}

func TestCustomerHandlerPropagatesProviderFailure(t *testing.T) {
	_, orgs, node := setupBillingTest(t)
	ctx := context.Background()

	org := &orgdomain.Organization{
		ID:       node.Generate(),
		Name:     "Acme",
		Slug:     "acme",
		PlanTier: "free",
		Metadata: map[string]any{},
	}
	require.NoError(t, orgs.CreateOrganization(ctx, org))

	handler := NewCustomerHandler(&countingProvider{fail: true}, orgs, zap.NewNop())
	require.Error(t, handler.Handle(ctx, billingTask(node, org.ID)))
}

func TestCustomerHandlerRequiresOrg(t *testing.T) {
	_, orgs, node := setupBillingTest(t)

	handler := NewCustomerHandler(&countingProvider{}, orgs, zap.NewNop())
	task := &taskdomain.Task{ID: node.Generate(), Kind: taskdomain.KindBillingCustomer, Payload: map[string]any{}}
	require.Error(t, handler.Handle(context.Background(), task))
}
