package events

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/rxbuddy/loyalty/internal/clock"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupOutbox(t *testing.T) (*Outbox, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Event{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(4)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	return NewOutbox(OutboxParam{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.Fixed(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
	}), db
}

func TestPublishDeduplicates(t *testing.T) {
	outbox, db := setupOutbox(t)
	ctx := context.Background()

	payload := map[string]interface{}{"bill_id": "bill-1", "points": "10.00"}
	if err := outbox.Publish(ctx, 1, EventPointsEarned, "earn:1:bill-1", payload); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := outbox.Publish(ctx, 1, EventPointsEarned, "earn:1:bill-1", payload); err != nil {
		t.Fatalf("duplicate publish: %v", err)
	}

	var count int64
	if err := db.Model(&Event{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("events = %d, want 1", count)
	}
}

func TestRelayMarksPublished(t *testing.T) {
	outbox, db := setupOutbox(t)
	ctx := context.Background()

	if err := outbox.Publish(ctx, 1, EventPointsRedeemed, "redeem:1:bill-2", nil); err != nil {
		t.Fatalf("publish: %v", err)
	}

	outbox.relay(ctx)

	var pending int64
	if err := db.Model(&Event{}).Where("published_at IS NULL").Count(&pending).Error; err != nil {
		t.Fatalf("count pending: %v", err)
	}
	if pending != 0 {
		t.Fatalf("pending = %d, want 0", pending)
	}
}
