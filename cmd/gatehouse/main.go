package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/voundbrand/gatehouse/internal/account"
	"github.com/voundbrand/gatehouse/internal/audit"
	"github.com/voundbrand/gatehouse/internal/billing"
	"github.com/voundbrand/gatehouse/internal/config"
	"github.com/voundbrand/gatehouse/internal/identity"
	"github.com/voundbrand/gatehouse/internal/logger"
	"github.com/voundbrand/gatehouse/internal/migration"
	"github.com/voundbrand/gatehouse/internal/notification"
	"github.com/voundbrand/gatehouse/internal/observability"
	"github.com/voundbrand/gatehouse/internal/organization"
	"github.com/voundbrand/gatehouse/internal/provisioning"
	"github.com/voundbrand/gatehouse/internal/quota"
	"github.com/voundbrand/gatehouse/internal/ratelimit"
	"github.com/voundbrand/gatehouse/internal/reconcile"
	"github.com/voundbrand/gatehouse/internal/server"
	"github.com/voundbrand/gatehouse/internal/task"
	"github.com/voundbrand/gatehouse/pkg/db"
	"github.com/voundbrand/gatehouse/pkg/telemetry"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		observability.Module,
		telemetry.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		ratelimit.Module,

		// Domains
		account.Module,
		identity.Module,
		organization.Module,
		quota.Module,
		audit.Module,
		provisioning.Module,

		// Async side effects
		task.Module,
		notification.Module,
		billing.Module,
		reconcile.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
