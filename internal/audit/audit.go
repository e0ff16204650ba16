// Package audit records administrative actions for later review.
// Business balance mutations are not audited here; the ledger already
// is the immutable record for those.
package audit

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/rxbuddy/loyalty/internal/clock"
	"github.com/rxbuddy/loyalty/internal/tenantcontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Log is one recorded admin action.
type Log struct {
	ID           snowflake.ID      `gorm:"primaryKey" json:"id"`
	TenantID     int64             `gorm:"not null;index" json:"tenant_id"`
	Actor        string            `gorm:"type:text" json:"actor"`
	Action       string            `gorm:"type:text;not null" json:"action"`
	ResourceType string            `gorm:"type:text;not null" json:"resource_type"`
	ResourceID   string            `gorm:"type:text;index" json:"resource_id"`
	Detail       datatypes.JSONMap `gorm:"type:jsonb" json:"detail,omitempty"`
	CreatedAt    time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
}

// TableName sets the database table name.
func (Log) TableName() string { return "audit_logs" }

// Entry describes an action to record. Actor defaults to the one on the
// request context when empty.
type Entry struct {
	TenantID     int64
	Actor        string
	Action       string
	ResourceType string
	ResourceID   string
	Detail       map[string]interface{}
}

// Recorder persists audit entries. Recording is best effort: a failed
// write is logged, never surfaced to the caller.
type Recorder interface {
	Record(ctx context.Context, entry Entry)
	List(ctx context.Context, tenantID int64, limit int) ([]*Log, error)
}

type RecorderParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type recorder struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

func NewRecorder(p RecorderParam) Recorder {
	return &recorder{
		db:    p.DB,
		log:   p.Log.Named("audit.recorder"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (r *recorder) Record(ctx context.Context, entry Entry) {
	actor := entry.Actor
	if actor == "" {
		actorType, actorID := tenantcontext.ActorFromContext(ctx)
		actor = actorType
		if actorID != "" {
			actor = actorType + ":" + actorID
		}
	}

	row := &Log{
		ID:           r.genID.Generate(),
		TenantID:     entry.TenantID,
		Actor:        actor,
		Action:       entry.Action,
		ResourceType: entry.ResourceType,
		ResourceID:   entry.ResourceID,
		Detail:       datatypes.JSONMap(entry.Detail),
		CreatedAt:    r.clock.Now(),
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		r.log.Error("record audit entry",
			zap.Int64("tenant_id", entry.TenantID),
			zap.String("action", entry.Action),
			zap.Error(err),
		)
	}
}

func (r *recorder) List(ctx context.Context, tenantID int64, limit int) ([]*Log, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var rows []*Log
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

var Module = fx.Module("audit.recorder",
	fx.Provide(NewRecorder),
)
