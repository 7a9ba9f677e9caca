package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/voundbrand/gatehouse/internal/organization/domain"
	"github.com/voundbrand/gatehouse/internal/organization/repository"
	dbpkg "github.com/voundbrand/gatehouse/pkg/db"
)

func setupSlugTest(t *testing.T) (domain.Service, domain.Repository, *gorm.DB, *snowflake.Node) {
	t.Helper()

	db, err := dbpkg.NewTest()
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Organization{}, &domain.Role{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return New(zap.NewNop(), node), repository.New(db), db, node
}

func insertOrg(t *testing.T, db *gorm.DB, node *snowflake.Node, slug string) {
	t.Helper()
	require.NoError(t, db.Create(&domain.Organization{
		ID:       node.Generate(),
		Name:     slug,
		Slug:     slug,
		PlanTier: "free",
		Metadata: map[string]any{},
	}).Error)
}

func TestAllocateSlugBase(t *testing.T) {
	svc, repo, _, _ := setupSlugTest(t)

	slug, err := svc.AllocateSlug(context.Background(), repo, "Acme Inc")
	require.NoError(t, err)
	require.Equal(t, "acme-inc", slug)
}

func TestAllocateSlugStripsApostrophes(t *testing.T) {
	svc, repo, _, _ := setupSlugTest(t)

	slug, err := svc.AllocateSlug(context.Background(), repo, "John's Workspace")
	require.NoError(t, err)
	require.Equal(t, "johns-workspace", slug)
}

func TestAllocateSlugCollisionCounter(t *testing.T) {
	svc, repo, db, node := setupSlugTest(t)

	insertOrg(t, db, node, "acme")
	slug, err := svc.AllocateSlug(context.Background(), repo, "Acme")
	require.NoError(t, err)
	require.Equal(t, "acme-2", slug)

	insertOrg(t, db, node, "acme-2")
	slug, err = svc.AllocateSlug(context.Background(), repo, "Acme")
	require.NoError(t, err)
	require.Equal(t, "acme-3", slug)
}

func TestAllocateSlugTruncatesLongNames(t *testing.T) {
	svc, repo, db, node := setupSlugTest(t)

	name := strings.Repeat("very long organization name ", 4)
	slug, err := svc.AllocateSlug(context.Background(), repo, name)
	require.NoError(t, err)
	require.LessOrEqual(t, len(slug), 50)
	require.False(t, strings.HasSuffix(slug, "-"))

	// The counter suffix must also fit inside the length cap.
	insertOrg(t, db, node, slug)
	next, err := svc.AllocateSlug(context.Background(), repo, name)
	require.NoError(t, err)
	require.LessOrEqual(t, len(next), 50)
	require.True(t, strings.HasSuffix(next, "-2"))
}

func TestAllocateSlugFallbackForUnsluggableNames(t *testing.T) {
	svc, repo, _, _ := setupSlugTest(t)

	slug, err := svc.AllocateSlug(context.Background(), repo, "!!! ***")
	require.NoError(t, err)
	require.Equal(t, "workspace", slug)
}

func TestAllocateSlugExhaustion(t *testing.T) {
	svc, repo, db, node := setupSlugTest(t)

	insertOrg(t, db, node, "acme")
	for i := 2; i <= 25; i++ {
		insertOrg(t, db, node, fmt.Sprintf("acme-%d", i))
	}

	_, err := svc.AllocateSlug(context.Background(), repo, "Acme")
	require.ErrorIs(t, err, domain.ErrSlugExhausted)
}

func TestGetOrCreateRoleIdempotent(t *testing.T) {
	svc, repo, _, _ := setupSlugTest(t)
	ctx := context.Background()

	first, err := svc.GetOrCreateRole(ctx, repo, domain.RoleOwner)
	require.NoError(t, err)
	require.Equal(t, domain.RoleOwner, first.Name)

	second, err := svc.GetOrCreateRole(ctx, repo, domain.RoleOwner)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
}

func TestGetOrCreateRoleRejectsEmptyName(t *testing.T) {
	svc, repo, _, _ := setupSlugTest(t)

	_, err := svc.GetOrCreateRole(context.Background(), repo, "  ")
	require.ErrorIs(t, err, domain.ErrInvalidName)
}
