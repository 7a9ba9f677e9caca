package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/voundbrand/gatehouse/internal/audit/domain"
	"github.com/voundbrand/gatehouse/internal/audit/repository"
	dbpkg "github.com/voundbrand/gatehouse/pkg/db"
)

func setupAuditTest(t *testing.T) domain.Service {
	t.Helper()

	db, err := dbpkg.NewTest()
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Event{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return New(zap.NewNop(), node, repository.New(db))
}

func TestRecordAndListByAction(t *testing.T) {
	svc := setupAuditTest(t)
	ctx := context.Background()

	actor := "12345"
	require.NoError(t, svc.Record(ctx, domain.Record{
		ActorType:  domain.ActorTypeAccount,
		ActorID:    &actor,
		Action:     "account.signup",
		TargetType: "organization",
		Outcome:    "succeeded",
		Metadata:   map[string]any{"method": "password"},
	}))
	require.NoError(t, svc.Record(ctx, domain.Record{
		Action:     "account.signup",
		TargetType: "organization",
		Outcome:    "failed",
	}))
	require.NoError(t, svc.Record(ctx, domain.Record{
		Action:     "other.action",
		TargetType: "task",
		Outcome:    "succeeded",
	}))

	events, err := svc.ListByAction(ctx, "account.signup", 10)
	require.NoError(t, err)
	require.Len(t, events, 2)

	all, err := svc.ListByAction(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func TestRecordDefaultsActorToSystem(t *testing.T) {
	svc := setupAuditTest(t)
	ctx := context.Background()

	require.NoError(t, svc.Record(ctx, domain.Record{
		Action:     "account.signup",
		TargetType: "organization",
		Outcome:    "succeeded",
	}))

	events, err := svc.ListByAction(ctx, "account.signup", 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, domain.ActorTypeSystem, events[0].ActorType)
}

func TestRecordRejectsEmptyAction(t *testing.T) {
	svc := setupAuditTest(t)

	err := svc.Record(context.Background(), domain.Record{Outcome: "succeeded"})
	require.ErrorIs(t, err, domain.ErrInvalidAction)
}
