package seed

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"

	organizationdomain "github.com/voundbrand/gatehouse/internal/organization/domain"
	dbpkg "github.com/voundbrand/gatehouse/pkg/db"
)

func TestEnsureSystemOrgIdempotent(t *testing.T) {
	db, err := dbpkg.NewTest()
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&organizationdomain.Organization{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	require.NoError(t, EnsureSystemOrg(db, node, "system"))
	require.NoError(t, EnsureSystemOrg(db, node, "system"))

	var orgs []organizationdomain.Organization
	require.NoError(t, db.Find(&orgs).Error)
	require.Len(t, orgs, 1)
	require.True(t, orgs[0].IsSystem)
	require.Equal(t, "system", orgs[0].Slug)
}

func TestEnsureSystemOrgRequiresSlug(t *testing.T) {
	db, err := dbpkg.NewTest()
	require.NoError(t, err)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	require.Error(t, EnsureSystemOrg(db, node, ""))
}
