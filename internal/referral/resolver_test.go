package referral

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	carddomain "github.com/rxbuddy/loyalty/internal/card/domain"
	"github.com/rxbuddy/loyalty/internal/clock"
	ledgerdomain "github.com/rxbuddy/loyalty/internal/ledger/domain"
	ledgerstore "github.com/rxbuddy/loyalty/internal/ledger/store"
	tenantconfigdomain "github.com/rxbuddy/loyalty/internal/tenantconfig/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupResolver(t *testing.T) (Resolver, *gorm.DB, *snowflake.Node) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&carddomain.Card{}, &ledgerdomain.LedgerEntry{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(3)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	ledger := ledgerstore.NewStore(ledgerstore.StoreParam{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.SystemClock{},
	})
	resolver := NewResolver(ResolverParam{
		DB:     db,
		Log:    zap.NewNop(),
		Ledger: ledger,
	})
	return resolver, db, node
}

func newCard(t *testing.T, db *gorm.DB, node *snowflake.Node, tenantID int64, active bool, referrer *snowflake.ID) *carddomain.Card {
	t.Helper()

	suffix := node.Generate().String()
	card := &carddomain.Card{
		ID:             node.Generate(),
		TenantID:       tenantID,
		CardNumber:     fmt.Sprintf("LOY-%03d-%s", tenantID%1000, suffix[len(suffix)-6:]),
		CustomerID:     node.Generate().Int64(),
		CustomerName:   "Customer",
		ReferrerCardID: referrer,
		IsActive:       active,
		IssuedAt:       time.Now().UTC(),
	}
	if err := db.Create(card).Error; err != nil {
		t.Fatalf("create card: %v", err)
	}
	return card
}

func enabledConfig(tenantID int64) tenantconfigdomain.TenantPointsConfig {
	cfg := tenantconfigdomain.DefaultConfig(tenantID)
	cfg.Enabled = true
	return cfg
}

func TestApplyCascadePaysReferrer(t *testing.T) {
	resolver, db, node := setupResolver(t)
	ctx := context.Background()

	referrer := newCard(t, db, node, 1, true, nil)
	referred := newCard(t, db, node, 1, true, &referrer.ID)

	result, err := resolver.ApplyCascade(ctx, CascadeRequest{
		TenantID:   1,
		Card:       referred,
		BillID:     "bill-9",
		BillAmount: decimal.RequireFromString("1000.00"),
		Config:     enabledConfig(1),
	})
	if err != nil {
		t.Fatalf("apply cascade: %v", err)
	}
	// 0.50% of 1000.00 = 5.00
	if got := result.Points.String(); got != "5" {
		t.Fatalf("payout = %s, want 5", got)
	}
	if result.ReferrerCardID != referrer.ID {
		t.Fatalf("referrer = %d, want %d", result.ReferrerCardID, referrer.ID)
	}
	if result.Entry == nil || result.Entry.EntryType != ledgerdomain.EntryTypeReferralEarned {
		t.Fatalf("entry = %+v, want REFERRAL_EARNED", result.Entry)
	}
	if result.Entry.ReferredCardID == nil || *result.Entry.ReferredCardID != referred.ID {
		t.Fatal("expected referred card id recorded on the entry")
	}

	var reloaded carddomain.Card
	if err := db.First(&reloaded, "id = ?", referrer.ID).Error; err != nil {
		t.Fatalf("reload referrer: %v", err)
	}
	if got := reloaded.TotalReferralEarned.String(); got != "5" {
		t.Fatalf("total_referral_earned = %s, want 5", got)
	}
}

func TestApplyCascadeRoundsHalfUp(t *testing.T) {
	resolver, db, node := setupResolver(t)
	ctx := context.Background()

	referrer := newCard(t, db, node, 1, true, nil)
	referred := newCard(t, db, node, 1, true, &referrer.ID)

	// 0.50% of 101.00 = 0.505 -> 0.51
	result, err := resolver.ApplyCascade(ctx, CascadeRequest{
		TenantID:   1,
		Card:       referred,
		BillAmount: decimal.RequireFromString("101.00"),
		Config:     enabledConfig(1),
	})
	if err != nil {
		t.Fatalf("apply cascade: %v", err)
	}
	if got := result.Points.String(); got != "0.51" {
		t.Fatalf("payout = %s, want 0.51", got)
	}
}

func TestApplyCascadeSkips(t *testing.T) {
	resolver, db, node := setupResolver(t)
	ctx := context.Background()

	referrer := newCard(t, db, node, 1, true, nil)
	inactiveReferrer := newCard(t, db, node, 1, false, nil)
	missing := node.Generate()

	withReferrer := newCard(t, db, node, 1, true, &referrer.ID)
	withInactive := newCard(t, db, node, 1, true, &inactiveReferrer.ID)
	withMissing := newCard(t, db, node, 1, true, &missing)
	orphan := newCard(t, db, node, 1, true, nil)

	disabled := enabledConfig(1)
	disabled.ReferralEnabled = false

	cases := []struct {
		name   string
		card   *carddomain.Card
		amount string
		config tenantconfigdomain.TenantPointsConfig
		reason string
	}{
		{"referral disabled", withReferrer, "1000.00", disabled, "referral_disabled"},
		{"no referrer", orphan, "1000.00", enabledConfig(1), "no_referrer"},
		{"referrer missing", withMissing, "1000.00", enabledConfig(1), "referrer_not_found"},
		{"referrer inactive", withInactive, "1000.00", enabledConfig(1), "referrer_inactive"},
		{"rounds to zero", withReferrer, "0.50", enabledConfig(1), "zero_points"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := resolver.ApplyCascade(ctx, CascadeRequest{
				TenantID:   1,
				Card:       tc.card,
				BillAmount: decimal.RequireFromString(tc.amount),
				Config:     tc.config,
			})
			if err != nil {
				t.Fatalf("apply cascade: %v", err)
			}
			if !result.Points.IsZero() {
				t.Fatalf("payout = %s, want 0", result.Points)
			}
			if result.Reason != tc.reason {
				t.Fatalf("reason = %q, want %q", result.Reason, tc.reason)
			}
			if result.Entry != nil {
				t.Fatal("expected no ledger entry for skipped cascade")
			}
		})
	}

	var entries int64
	if err := db.Model(&ledgerdomain.LedgerEntry{}).Count(&entries).Error; err != nil {
		t.Fatalf("count entries: %v", err)
	}
	if entries != 0 {
		t.Fatalf("entries = %d, want 0", entries)
	}
}
