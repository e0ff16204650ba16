package main

import (
	"github.com/rxbuddy/loyalty/internal/audit"
	"github.com/rxbuddy/loyalty/internal/card"
	"github.com/rxbuddy/loyalty/internal/clock"
	"github.com/rxbuddy/loyalty/internal/config"
	"github.com/rxbuddy/loyalty/internal/events"
	"github.com/rxbuddy/loyalty/internal/idgen"
	"github.com/rxbuddy/loyalty/internal/ledger"
	"github.com/rxbuddy/loyalty/internal/migration"
	"github.com/rxbuddy/loyalty/internal/observability"
	"github.com/rxbuddy/loyalty/internal/points"
	"github.com/rxbuddy/loyalty/internal/referral"
	"github.com/rxbuddy/loyalty/internal/seed"
	"github.com/rxbuddy/loyalty/internal/server"
	"github.com/rxbuddy/loyalty/internal/tenantconfig"
	"github.com/rxbuddy/loyalty/pkg/db"
	"go.uber.org/fx"
)

// @title Loyalty API
// @version 1.0
// @description Multi-tenant loyalty points ledger: cards, earning,
// @description redemption and single-level referral payouts.
// @BasePath /v1
func main() {
	fx.New(
		config.Module,
		observability.Module,
		clock.Module,
		idgen.Module,
		db.Module,
		migration.Module,
		seed.Module,

		tenantconfig.Module,
		card.Module,
		ledger.Module,
		referral.Module,
		points.Module,
		events.Module,
		audit.Module,

		server.Module,
	).Run()
}
