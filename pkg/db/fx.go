package db

import (
	"context"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

// Module provides the shared gorm connection.
var Module = fx.Module("db",
	fx.Provide(Open),
	fx.Invoke(registerClose),
)

func registerClose(lc fx.Lifecycle, conn *gorm.DB) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			_ = ctx
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})
}
