// Package events implements a transactional outbox for loyalty domain
// events. Producers insert rows; a relay drains them in the background.
package events

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	EventPointsEarned   = "points.earned"
	EventPointsRedeemed = "points.redeemed"
	EventReferralEarned = "referral.earned"
	EventCardCreated    = "card.created"
	EventConfigChanged  = "config.changed"
)

// Event is one outbox row. DedupeKey makes producer retries idempotent;
// a duplicate insert is silently dropped.
type Event struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	TenantID  int64             `gorm:"not null;index" json:"tenant_id"`
	EventType string            `gorm:"type:text;not null" json:"event_type"`
	DedupeKey string            `gorm:"type:text;not null;uniqueIndex:ux_loyalty_events_dedupe" json:"dedupe_key"`
	Payload   datatypes.JSONMap `gorm:"type:jsonb" json:"payload"`

	CreatedAt   time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
	PublishedAt *time.Time `gorm:"index" json:"published_at,omitempty"`
}

// TableName sets the database table name.
func (Event) TableName() string { return "loyalty_events" }

// Publisher records domain events. Implementations must tolerate
// duplicate dedupe keys without error.
type Publisher interface {
	Publish(ctx context.Context, tenantID int64, eventType, dedupeKey string, payload map[string]interface{}) error
}
