package audit

import (
	"github.com/voundbrand/gatehouse/internal/audit/repository"
	"github.com/voundbrand/gatehouse/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit",
	fx.Provide(repository.New),
	fx.Provide(service.New),
)
