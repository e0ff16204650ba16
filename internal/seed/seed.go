// Package seed bootstraps a development tenant so a fresh instance is
// usable without manual setup.
package seed

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strconv"

	"github.com/bwmarrin/snowflake"
	carddomain "github.com/rxbuddy/loyalty/internal/card/domain"
	"github.com/rxbuddy/loyalty/internal/clock"
	"github.com/rxbuddy/loyalty/internal/config"
	"github.com/rxbuddy/loyalty/internal/server"
	tenantconfigdomain "github.com/rxbuddy/loyalty/internal/tenantconfig/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type SeederParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Cfg   config.Config
	GenID *snowflake.Node
	Clock clock.Clock
}

type Seeder struct {
	db    *gorm.DB
	log   *zap.Logger
	cfg   config.Config
	genID *snowflake.Node
	clock clock.Clock
}

func NewSeeder(p SeederParam) *Seeder {
	return &Seeder{
		db:    p.DB,
		log:   p.Log.Named("seed"),
		cfg:   p.Cfg,
		genID: p.GenID,
		clock: p.Clock,
	}
}

// Run creates the default tenant's config row and an API key if neither
// exists yet. The plaintext key is logged once; it is not recoverable
// afterwards.
func (s *Seeder) Run(ctx context.Context) error {
	if !s.cfg.Bootstrap.SeedDefaultTenant || s.cfg.IsProduction() {
		return nil
	}
	tenantID := s.cfg.Bootstrap.DefaultTenantID
	if tenantID == 0 {
		tenantID = 1
	}

	now := s.clock.Now()

	var existing tenantconfigdomain.TenantPointsConfig
	err := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		row := tenantconfigdomain.DefaultConfig(tenantID)
		row.ID = s.genID.Generate()
		row.CreatedAt = now
		row.UpdatedAt = now
		if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
			return err
		}
		s.log.Info("seeded default tenant config", zap.Int64("tenant_id", tenantID))
	} else if err != nil {
		return err
	}

	var cards int64
	if err := s.db.WithContext(ctx).Model(&carddomain.Card{}).
		Where("tenant_id = ?", tenantID).Count(&cards).Error; err != nil {
		return err
	}
	if cards == 0 {
		card := &carddomain.Card{
			ID:                  s.genID.Generate(),
			TenantID:            tenantID,
			CardNumber:          "LOY-001-DEMO01",
			CustomerID:          1,
			CustomerName:        "Demo Customer",
			PointsBalance:       decimal.Zero,
			TotalEarned:         decimal.Zero,
			TotalRedeemed:       decimal.Zero,
			TotalReferralEarned: decimal.Zero,
			IsActive:            true,
			IssuedAt:            now,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		if err := s.db.WithContext(ctx).Create(card).Error; err != nil {
			return err
		}
		s.log.Info("seeded demo card",
			zap.Int64("tenant_id", tenantID),
			zap.String("card_number", card.CardNumber),
		)
	}

	var keys int64
	if err := s.db.WithContext(ctx).Model(&server.TenantAPIKey{}).
		Where("tenant_id = ?", tenantID).Count(&keys).Error; err != nil {
		return err
	}
	if keys > 0 {
		return nil
	}

	plaintext, err := randomKey()
	if err != nil {
		return err
	}
	key := &server.TenantAPIKey{
		ID:        s.genID.Generate(),
		TenantID:  tenantID,
		Name:      "bootstrap-" + strconv.FormatInt(tenantID, 10),
		KeyHash:   server.HashAPIKey(plaintext),
		IsActive:  true,
		CreatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(key).Error; err != nil {
		return err
	}

	s.log.Info("seeded bootstrap api key",
		zap.Int64("tenant_id", tenantID),
		zap.String("api_key", plaintext),
	)
	return nil
}

func randomKey() (string, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return "loy_" + hex.EncodeToString(raw), nil
}

var Module = fx.Module("seed",
	fx.Provide(NewSeeder),
	fx.Invoke(func(lc fx.Lifecycle, s *Seeder) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				return s.Run(ctx)
			},
		})
	}),
)
