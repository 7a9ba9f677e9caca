package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	accountdomain "github.com/voundbrand/gatehouse/internal/account/domain"
	accountrepo "github.com/voundbrand/gatehouse/internal/account/repository"
	"github.com/voundbrand/gatehouse/internal/identity/domain"
	dbpkg "github.com/voundbrand/gatehouse/pkg/db"
)

func setupResolverTest(t *testing.T) (domain.Resolver, accountdomain.Repository, *gorm.DB, *snowflake.Node) {
	t.Helper()

	db, err := dbpkg.NewTest()
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&accountdomain.Account{}, &accountdomain.ExternalIdentity{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	accounts := accountrepo.New(db)
	return New(zap.NewNop(), accounts), accounts, db, node
}

func seedAccount(t *testing.T, accounts accountdomain.Repository, node *snowflake.Node, email string) *accountdomain.Account {
	t.Helper()
	account := &accountdomain.Account{
		ID:          node.Generate(),
		Email:       email,
		DisplayName: "Seeded",
		Metadata:    map[string]any{},
	}
	require.NoError(t, accounts.Create(context.Background(), account))
	return account
}

func TestResolvePasswordNewEmail(t *testing.T) {
	resolver, _, _, _ := setupResolverTest(t)

	res, err := resolver.Resolve(context.Background(), domain.FlowPassword, domain.Credential{
		Email: "John@Example.com",
	})
	require.NoError(t, err)
	require.False(t, res.Existing)
	require.Equal(t, "john@example.com", res.NormalizedEmail)
}

func TestResolvePasswordExistingEmailRefuses(t *testing.T) {
	resolver, accounts, _, node := setupResolverTest(t)
	seedAccount(t, accounts, node, "john@example.com")

	_, err := resolver.Resolve(context.Background(), domain.FlowPassword, domain.Credential{
		Email: "JOHN@example.com",
	})
	require.ErrorIs(t, err, domain.ErrAccountExists)
}

func TestResolvePasswordInvalidEmail(t *testing.T) {
	resolver, _, _, _ := setupResolverTest(t)

	_, err := resolver.Resolve(context.Background(), domain.FlowPassword, domain.Credential{
		Email: "not-an-email",
	})
	require.ErrorIs(t, err, domain.ErrInvalidEmail)
}

func TestResolveOAuthIdentityBindingWinsOverEmail(t *testing.T) {
	resolver, accounts, _, node := setupResolverTest(t)
	ctx := context.Background()

	bound := seedAccount(t, accounts, node, "old@example.com")
	require.NoError(t, accounts.CreateIdentity(ctx, &accountdomain.ExternalIdentity{
		ID:        node.Generate(),
		AccountID: bound.ID,
		Provider:  "google",
		Subject:   "sub-1",
		Email:     "old@example.com",
	}))

	// The provider now asserts a different email for the same subject; an
	// unrelated account owns that email. The binding must still win.
	other := seedAccount(t, accounts, node, "new@example.com")

	res, err := resolver.Resolve(ctx, domain.FlowOAuthWeb, domain.Credential{
		Assertion: &domain.Assertion{Provider: "google", Subject: "sub-1", Email: "new@example.com"},
	})
	require.NoError(t, err)
	require.True(t, res.Existing)
	require.Equal(t, bound.ID, res.AccountID)
	require.NotEqual(t, other.ID, res.AccountID)
	require.False(t, res.LinkIdentity)
}

func TestResolveOAuthEmailMatchLinksIdentity(t *testing.T) {
	resolver, accounts, _, node := setupResolverTest(t)

	account := seedAccount(t, accounts, node, "john@example.com")

	res, err := resolver.Resolve(context.Background(), domain.FlowOAuthNative, domain.Credential{
		Assertion: &domain.Assertion{Provider: "github", Subject: "gh-9", Email: "John@Example.com"},
	})
	require.NoError(t, err)
	require.True(t, res.Existing)
	require.True(t, res.LinkIdentity)
	require.Equal(t, account.ID, res.AccountID)
}

func TestResolveOAuthNewIdentity(t *testing.T) {
	resolver, _, _, _ := setupResolverTest(t)

	res, err := resolver.Resolve(context.Background(), domain.FlowOAuthWeb, domain.Credential{
		Assertion: &domain.Assertion{Provider: "google", Subject: "sub-7", Email: "fresh@example.com"},
	})
	require.NoError(t, err)
	require.False(t, res.Existing)
	require.Equal(t, "fresh@example.com", res.NormalizedEmail)
}

func TestResolveOAuthMissingAssertion(t *testing.T) {
	resolver, _, _, _ := setupResolverTest(t)

	_, err := resolver.Resolve(context.Background(), domain.FlowOAuthWeb, domain.Credential{})
	require.ErrorIs(t, err, domain.ErrInvalidFlow)
}

func TestResolveUnknownFlow(t *testing.T) {
	resolver, _, _, _ := setupResolverTest(t)

	_, err := resolver.Resolve(context.Background(), domain.Flow("magic_link"), domain.Credential{})
	require.ErrorIs(t, err, domain.ErrInvalidFlow)
}
