package db

import (
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"github.com/voundbrand/gatehouse/internal/config"
	"gorm.io/gorm"
	prometheusplugin "gorm.io/plugin/prometheus"
)

// Open connects to the configured database and installs the tracing and
// pool-metrics plugins.
func Open(cfg config.Config) (*gorm.DB, error) {
	dialector, err := Dialect(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Use(otelgorm.NewPlugin()); err != nil {
		return nil, err
	}
	if err := conn.Use(prometheusplugin.New(prometheusplugin.Config{
		DBName:          cfg.DBName,
		RefreshInterval: 15,
	})); err != nil {
		return nil, err
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConn)
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConn)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.DBConnMaxLifetime) * time.Second)

	return conn, nil
}
