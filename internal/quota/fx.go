package quota

import (
	"github.com/bwmarrin/snowflake"
	"github.com/voundbrand/gatehouse/internal/config"
	"github.com/voundbrand/gatehouse/internal/quota/domain"
	"github.com/voundbrand/gatehouse/internal/quota/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("quota",
	fx.Provide(newInitializer),
)

func newInitializer(log *zap.Logger, genID *snowflake.Node, cfg config.Config) (domain.Initializer, error) {
	return service.New(log, genID, cfg.QuotaTiersFile)
}
