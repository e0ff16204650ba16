// Package migration owns the database schema. Models register here so
// startup migrates everything in one place.
package migration

import (
	"context"

	"github.com/rxbuddy/loyalty/internal/audit"
	carddomain "github.com/rxbuddy/loyalty/internal/card/domain"
	"github.com/rxbuddy/loyalty/internal/events"
	ledgerdomain "github.com/rxbuddy/loyalty/internal/ledger/domain"
	"github.com/rxbuddy/loyalty/internal/server"
	tenantconfigdomain "github.com/rxbuddy/loyalty/internal/tenantconfig/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// models lists every persisted type, in dependency order.
func models() []interface{} {
	return []interface{}{
		&tenantconfigdomain.TenantPointsConfig{},
		&tenantconfigdomain.CategoryRate{},
		&tenantconfigdomain.CategoryDiscount{},
		&carddomain.Card{},
		&ledgerdomain.LedgerEntry{},
		&events.Event{},
		&audit.Log{},
		&server.TenantAPIKey{},
	}
}

// Run applies the schema. AutoMigrate only adds; it never drops columns
// or data.
func Run(db *gorm.DB, log *zap.Logger) error {
	if err := db.AutoMigrate(models()...); err != nil {
		return err
	}
	log.Info("database schema up to date")
	return nil
}

var Module = fx.Module("migration",
	fx.Invoke(func(lc fx.Lifecycle, db *gorm.DB, log *zap.Logger) {
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				return Run(db, log.Named("migration"))
			},
		})
	}),
)
