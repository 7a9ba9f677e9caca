package provisioning

import (
	"github.com/voundbrand/gatehouse/internal/provisioning/repository"
	"github.com/voundbrand/gatehouse/internal/provisioning/service"
	"go.uber.org/fx"
)

var Module = fx.Module("provisioning",
	fx.Provide(repository.New),
	fx.Provide(service.New),
)
