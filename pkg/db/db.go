// Package db wires the GORM connection into the fx graph.
package db

import (
	"context"

	"github.com/rxbuddy/loyalty/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var Module = fx.Module("db",
	fx.Provide(NewConnection),
)

// NewConnection opens the database described by the configuration and
// closes it when the application stops.
func NewConnection(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	}

	var (
		conn *gorm.DB
		err  error
	)
	if cfg.DatabaseURL != "" {
		conn, err = gorm.Open(postgres.Open(cfg.DatabaseURL), gormCfg)
	} else {
		log.Warn("LOYALTY_DATABASE_URL not set, using local sqlite", zap.String("path", cfg.SQLitePath))
		conn, err = gorm.Open(sqlite.Open(cfg.SQLitePath), gormCfg)
	}
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return conn, nil
}
