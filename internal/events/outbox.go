package events

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/rxbuddy/loyalty/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OutboxParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

// Outbox persists events and relays them from a background loop. The
// relay only logs the drained events today; swapping in a broker client
// is a matter of replacing deliver.
type Outbox struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock

	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

func NewOutbox(p OutboxParam) *Outbox {
	return &Outbox{
		db:       p.DB,
		log:      p.Log.Named("events.outbox"),
		genID:    p.GenID,
		clock:    p.Clock,
		interval: 5 * time.Second,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Publish inserts an outbox row. Duplicate dedupe keys are dropped so
// retried business operations never double-emit.
func (o *Outbox) Publish(ctx context.Context, tenantID int64, eventType, dedupeKey string, payload map[string]interface{}) error {
	event := &Event{
		ID:        o.genID.Generate(),
		TenantID:  tenantID,
		EventType: eventType,
		DedupeKey: dedupeKey,
		Payload:   datatypes.JSONMap(payload),
		CreatedAt: o.clock.Now(),
	}
	return o.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(event).Error
}

// Start begins the relay loop; Stop drains once more and shuts it down.
func (o *Outbox) Start() {
	go func() {
		defer close(o.done)
		ticker := time.NewTicker(o.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				o.relay(context.Background())
			case <-o.stop:
				o.relay(context.Background())
				return
			}
		}
	}()
}

func (o *Outbox) Stop() {
	close(o.stop)
	<-o.done
}

func (o *Outbox) relay(ctx context.Context) {
	var pending []*Event
	err := o.db.WithContext(ctx).
		Where("published_at IS NULL").
		Order("created_at ASC").Order("id ASC").
		Limit(100).
		Find(&pending).Error
	if err != nil {
		o.log.Error("load pending events", zap.Error(err))
		return
	}
	if len(pending) == 0 {
		return
	}

	now := o.clock.Now()
	for _, event := range pending {
		o.deliver(event)
		err := o.db.WithContext(ctx).Model(&Event{}).
			Where("id = ?", event.ID).
			Update("published_at", now).Error
		if err != nil {
			o.log.Error("mark event published", zap.Int64("event_id", int64(event.ID)), zap.Error(err))
			return
		}
	}
}

func (o *Outbox) deliver(event *Event) {
	o.log.Info("event",
		zap.String("event_type", event.EventType),
		zap.Int64("tenant_id", event.TenantID),
		zap.String("dedupe_key", event.DedupeKey),
	)
}

var Module = fx.Module("events.outbox",
	fx.Provide(
		NewOutbox,
		func(o *Outbox) Publisher { return o },
	),
	fx.Invoke(func(lc fx.Lifecycle, o *Outbox) {
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				o.Start()
				return nil
			},
			OnStop: func(context.Context) error {
				o.Stop()
				return nil
			},
		})
	}),
)
