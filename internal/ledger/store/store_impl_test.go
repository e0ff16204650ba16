package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	carddomain "github.com/rxbuddy/loyalty/internal/card/domain"
	"github.com/rxbuddy/loyalty/internal/clock"
	"github.com/rxbuddy/loyalty/internal/ledger/domain"
	"github.com/rxbuddy/loyalty/pkg/db/pagination"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupStore(t *testing.T) (domain.Store, *gorm.DB, *snowflake.Node) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&carddomain.Card{}, &domain.LedgerEntry{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(2)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	store := NewStore(StoreParam{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.SystemClock{},
	})
	return store, db, node
}

func seedCard(t *testing.T, db *gorm.DB, node *snowflake.Node, tenantID int64, balance string) *carddomain.Card {
	t.Helper()

	bal := decimal.RequireFromString(balance)
	suffix := node.Generate().String()
	card := &carddomain.Card{
		ID:            node.Generate(),
		TenantID:      tenantID,
		CardNumber:    fmt.Sprintf("LOY-%03d-%s", tenantID%1000, suffix[len(suffix)-6:]),
		CustomerID:    node.Generate().Int64(),
		CustomerName:  "Test Customer",
		PointsBalance: bal,
		TotalEarned:   bal,
		IsActive:      true,
		IssuedAt:      time.Now().UTC(),
	}
	if err := db.Create(card).Error; err != nil {
		t.Fatalf("seed card: %v", err)
	}
	return card
}

func TestApplyDeltaEarn(t *testing.T) {
	store, db, node := setupStore(t)
	ctx := context.Background()
	card := seedCard(t, db, node, 1, "0")

	entry, err := store.ApplyDelta(ctx, domain.ApplyDeltaRequest{
		TenantID:      1,
		CardID:        card.ID,
		EntryType:     domain.EntryTypeEarned,
		Points:        decimal.RequireFromString("10.00"),
		ReferenceType: domain.ReferenceTypeBill,
		BillID:        "bill-1",
		BillAmount:    decimal.RequireFromString("500.00"),
	})
	if err != nil {
		t.Fatalf("apply delta: %v", err)
	}
	if got := entry.BalanceAfter.String(); got != "10" {
		t.Fatalf("balance_after = %s, want 10", got)
	}

	reloaded, err := store.Balance(ctx, 1, card.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if got := reloaded.PointsBalance.String(); got != "10" {
		t.Fatalf("points_balance = %s, want 10", got)
	}
	if got := reloaded.TotalEarned.String(); got != "10" {
		t.Fatalf("total_earned = %s, want 10", got)
	}
	if reloaded.LastTransactionAt == nil {
		t.Fatal("expected last_transaction_at set")
	}
}

func TestApplyDeltaRejectsNegativeBalance(t *testing.T) {
	store, db, node := setupStore(t)
	ctx := context.Background()
	card := seedCard(t, db, node, 1, "50")

	_, err := store.ApplyDelta(ctx, domain.ApplyDeltaRequest{
		TenantID:  1,
		CardID:    card.ID,
		EntryType: domain.EntryTypeRedeemed,
		Points:    decimal.RequireFromString("-60.00"),
	})
	if !errors.Is(err, domain.ErrBalanceConflict) {
		t.Fatalf("err = %v, want ErrBalanceConflict", err)
	}

	// The rejected delta leaves no trace.
	reloaded, err := store.Balance(ctx, 1, card.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if got := reloaded.PointsBalance.String(); got != "50" {
		t.Fatalf("points_balance = %s, want 50", got)
	}
	var entries int64
	if err := db.Model(&domain.LedgerEntry{}).Count(&entries).Error; err != nil {
		t.Fatalf("count entries: %v", err)
	}
	if entries != 0 {
		t.Fatalf("entries = %d, want 0", entries)
	}
}

func TestApplyDeltaValidatesSign(t *testing.T) {
	store, db, node := setupStore(t)
	ctx := context.Background()
	card := seedCard(t, db, node, 1, "100")

	cases := []domain.ApplyDeltaRequest{
		{TenantID: 1, CardID: card.ID, EntryType: domain.EntryTypeEarned, Points: decimal.RequireFromString("-5")},
		{TenantID: 1, CardID: card.ID, EntryType: domain.EntryTypeRedeemed, Points: decimal.RequireFromString("5")},
		{TenantID: 1, CardID: card.ID, EntryType: domain.EntryTypeReferralEarned, Points: decimal.Zero},
		{TenantID: 1, CardID: card.ID, EntryType: "UNKNOWN", Points: decimal.RequireFromString("5")},
	}
	for _, req := range cases {
		if _, err := store.ApplyDelta(ctx, req); !errors.Is(err, domain.ErrInvalidDelta) {
			t.Fatalf("%s %s: err = %v, want ErrInvalidDelta", req.EntryType, req.Points, err)
		}
	}
}

func TestApplyDeltaUnknownCard(t *testing.T) {
	store, _, node := setupStore(t)

	_, err := store.ApplyDelta(context.Background(), domain.ApplyDeltaRequest{
		TenantID:  1,
		CardID:    node.Generate(),
		EntryType: domain.EntryTypeEarned,
		Points:    decimal.RequireFromString("5"),
	})
	if !errors.Is(err, domain.ErrCardNotFound) {
		t.Fatalf("err = %v, want ErrCardNotFound", err)
	}
}

func TestApplyDeltaTenantScoped(t *testing.T) {
	store, db, node := setupStore(t)
	card := seedCard(t, db, node, 1, "100")

	_, err := store.ApplyDelta(context.Background(), domain.ApplyDeltaRequest{
		TenantID:  2,
		CardID:    card.ID,
		EntryType: domain.EntryTypeEarned,
		Points:    decimal.RequireFromString("5"),
	})
	if !errors.Is(err, domain.ErrCardNotFound) {
		t.Fatalf("cross-tenant err = %v, want ErrCardNotFound", err)
	}
}

func TestConcurrentRedemptionsNeverOverdraw(t *testing.T) {
	store, db, node := setupStore(t)
	ctx := context.Background()
	card := seedCard(t, db, node, 1, "100")

	const workers = 8
	redeem := decimal.RequireFromString("-30.00")

	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.ApplyDelta(ctx, domain.ApplyDeltaRequest{
				TenantID:  1,
				CardID:    card.ID,
				EntryType: domain.EntryTypeRedeemed,
				Points:    redeem,
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, domain.ErrBalanceConflict):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	// 100 / 30 allows exactly three redemptions.
	if succeeded != 3 {
		t.Fatalf("succeeded = %d, want 3", succeeded)
	}

	reloaded, err := store.Balance(ctx, 1, card.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if got := reloaded.PointsBalance.String(); got != "10" {
		t.Fatalf("points_balance = %s, want 10", got)
	}
	if got := reloaded.TotalRedeemed.String(); got != "90" {
		t.Fatalf("total_redeemed = %s, want 90", got)
	}
}

func TestBalanceInvariantHoldsAcrossMixedEntries(t *testing.T) {
	store, db, node := setupStore(t)
	ctx := context.Background()
	card := seedCard(t, db, node, 1, "0")

	deltas := []domain.ApplyDeltaRequest{
		{TenantID: 1, CardID: card.ID, EntryType: domain.EntryTypeEarned, Points: decimal.RequireFromString("25.50")},
		{TenantID: 1, CardID: card.ID, EntryType: domain.EntryTypeReferralEarned, Points: decimal.RequireFromString("5.00")},
		{TenantID: 1, CardID: card.ID, EntryType: domain.EntryTypeRedeemed, Points: decimal.RequireFromString("-10.25")},
		{TenantID: 1, CardID: card.ID, EntryType: domain.EntryTypeEarned, Points: decimal.RequireFromString("4.75")},
	}
	for _, req := range deltas {
		if _, err := store.ApplyDelta(ctx, req); err != nil {
			t.Fatalf("apply %s: %v", req.EntryType, err)
		}
	}

	reloaded, err := store.Balance(ctx, 1, card.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	expected := reloaded.TotalEarned.
		Add(reloaded.TotalReferralEarned).
		Sub(reloaded.TotalRedeemed)
	if !reloaded.PointsBalance.Equal(expected) {
		t.Fatalf("balance %s != earned %s + referral %s - redeemed %s",
			reloaded.PointsBalance, reloaded.TotalEarned, reloaded.TotalReferralEarned, reloaded.TotalRedeemed)
	}
	if got := reloaded.PointsBalance.String(); got != "25" {
		t.Fatalf("points_balance = %s, want 25", got)
	}
}

func TestListEntriesNewestFirstWithPaging(t *testing.T) {
	store, db, node := setupStore(t)
	ctx := context.Background()
	card := seedCard(t, db, node, 1, "0")

	for i := 0; i < 5; i++ {
		if _, err := store.ApplyDelta(ctx, domain.ApplyDeltaRequest{
			TenantID:  1,
			CardID:    card.ID,
			EntryType: domain.EntryTypeEarned,
			Points:    decimal.NewFromInt(int64(i + 1)),
			BillID:    fmt.Sprintf("bill-%d", i),
		}); err != nil {
			t.Fatalf("apply delta %d: %v", i, err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	first, err := store.ListEntries(ctx, domain.ListEntriesRequest{
		TenantID: 1,
		CardID:   card.ID,
		Page:     pagination.Pagination{PageSize: 2},
	})
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	if len(first.Entries) != 2 {
		t.Fatalf("page 1 size = %d, want 2", len(first.Entries))
	}
	if got := first.Entries[0].Points.String(); got != "5" {
		t.Fatalf("newest entry points = %s, want 5", got)
	}
	if !first.PageInfo.HasMore || first.PageInfo.NextPageToken == "" {
		t.Fatal("expected more pages with a next token")
	}

	second, err := store.ListEntries(ctx, domain.ListEntriesRequest{
		TenantID: 1,
		CardID:   card.ID,
		Page:     pagination.Pagination{PageSize: 2, PageToken: first.PageInfo.NextPageToken},
	})
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	if len(second.Entries) != 2 {
		t.Fatalf("page 2 size = %d, want 2", len(second.Entries))
	}
	if got := second.Entries[0].Points.String(); got != "3" {
		t.Fatalf("page 2 first points = %s, want 3", got)
	}
}

func TestListEntriesFiltersByType(t *testing.T) {
	store, db, node := setupStore(t)
	ctx := context.Background()
	card := seedCard(t, db, node, 1, "0")

	if _, err := store.ApplyDelta(ctx, domain.ApplyDeltaRequest{
		TenantID: 1, CardID: card.ID, EntryType: domain.EntryTypeEarned, Points: decimal.RequireFromString("20"),
	}); err != nil {
		t.Fatalf("earn: %v", err)
	}
	if _, err := store.ApplyDelta(ctx, domain.ApplyDeltaRequest{
		TenantID: 1, CardID: card.ID, EntryType: domain.EntryTypeRedeemed, Points: decimal.RequireFromString("-5"),
	}); err != nil {
		t.Fatalf("redeem: %v", err)
	}

	resp, err := store.ListEntries(ctx, domain.ListEntriesRequest{
		TenantID:  1,
		CardID:    card.ID,
		EntryType: domain.EntryTypeRedeemed,
		Page:      pagination.Pagination{PageSize: 10},
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(resp.Entries) != 1 {
		t.Fatalf("filtered entries = %d, want 1", len(resp.Entries))
	}
	if resp.Entries[0].EntryType != domain.EntryTypeRedeemed {
		t.Fatalf("entry type = %s, want REDEEMED", resp.Entries[0].EntryType)
	}
}
