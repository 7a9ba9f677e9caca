package account

import (
	"github.com/voundbrand/gatehouse/internal/account/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("account",
	fx.Provide(repository.New),
)
