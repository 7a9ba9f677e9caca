package organization

import (
	"github.com/voundbrand/gatehouse/internal/organization/repository"
	"github.com/voundbrand/gatehouse/internal/organization/service"
	"go.uber.org/fx"
)

var Module = fx.Module("organization",
	fx.Provide(repository.New),
	fx.Provide(service.New),
)
