package billing

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	orgdomain "github.com/voundbrand/gatehouse/internal/organization/domain"
	taskdomain "github.com/voundbrand/gatehouse/internal/task/domain"
)

var Module = fx.Module("billing",
	fx.Provide(newProvider),
	fx.Provide(
		fx.Annotate(newCustomerHandler,
			fx.As(new(taskdomain.Handler)),
			fx.ResultTags(`group:"task_handlers"`)),
	),
)

func newProvider(log *zap.Logger) Provider {
	return NewLocalProvider(log)
}

func newCustomerHandler(provider Provider, orgs orgdomain.Repository, log *zap.Logger) *CustomerHandler {
	return NewCustomerHandler(provider, orgs, log)
}
