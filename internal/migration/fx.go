package migration

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/gorm"

	accountdomain "github.com/voundbrand/gatehouse/internal/account/domain"
	apikeydomain "github.com/voundbrand/gatehouse/internal/apikey/domain"
	auditdomain "github.com/voundbrand/gatehouse/internal/audit/domain"
	"github.com/voundbrand/gatehouse/internal/config"
	organizationdomain "github.com/voundbrand/gatehouse/internal/organization/domain"
	provisioningdomain "github.com/voundbrand/gatehouse/internal/provisioning/domain"
	quotadomain "github.com/voundbrand/gatehouse/internal/quota/domain"
	"github.com/voundbrand/gatehouse/internal/seed"
	taskdomain "github.com/voundbrand/gatehouse/internal/task/domain"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, node *snowflake.Node) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			// Versioned migrations are postgres only; sqlite and mysql
			// development setups get the schema from the models.
			if err := conn.AutoMigrate(
				&accountdomain.Account{},
				&accountdomain.ExternalIdentity{},
				&organizationdomain.Organization{},
				&organizationdomain.Membership{},
				&organizationdomain.Role{},
				&organizationdomain.StarterResource{},
				&quotadomain.Quota{},
				&apikeydomain.APIKey{},
				&provisioningdomain.Attempt{},
				&taskdomain.Task{},
				&auditdomain.Event{},
			); err != nil {
				return err
			}
		}
		return seed.EnsureSystemOrg(conn, node, cfg.SystemOrgSlug)
	}),
)
