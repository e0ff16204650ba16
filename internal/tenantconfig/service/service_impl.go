package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/rxbuddy/loyalty/internal/cache"
	"github.com/rxbuddy/loyalty/internal/clock"
	"github.com/rxbuddy/loyalty/internal/config"
	"github.com/rxbuddy/loyalty/internal/events"
	"github.com/rxbuddy/loyalty/internal/tenantconfig/domain"
	"github.com/rxbuddy/loyalty/pkg/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type rateKey struct {
	TenantID   int64
	CategoryID int64
}

type ServiceParam struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Cfg    config.Config
	Events events.Publisher `optional:"true"`
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	genID  *snowflake.Node
	clock  clock.Clock
	events events.Publisher

	configs   repository.Repository[domain.TenantPointsConfig]
	rates     repository.Repository[domain.CategoryRate]
	discounts repository.Repository[domain.CategoryDiscount]

	// Caches bound the staleness of hot-path reads. Rate mistakes only
	// affect amounts, never balance safety, so a short TTL is enough.
	ttl         time.Duration
	configCache cache.Cache[int64, domain.TenantPointsConfig]
	rateCache   cache.Cache[rateKey, decimal.Decimal]
}

func NewService(p ServiceParam) domain.Service {
	ttl := p.Cfg.ConfigTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("tenantconfig.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		events:      p.Events,
		configs:     repository.ProvideStore[domain.TenantPointsConfig](p.DB),
		rates:       repository.ProvideStore[domain.CategoryRate](p.DB),
		discounts:   repository.ProvideStore[domain.CategoryDiscount](p.DB),
		ttl:         ttl,
		configCache: cache.NewTTLCache[int64, domain.TenantPointsConfig](),
		rateCache:   cache.NewTTLCache[rateKey, decimal.Decimal](),
	}
}

// Resolve returns the tenant configuration, falling back to the
// documented defaults when no row exists. The defaults are never
// persisted here; reads stay side-effect-free.
func (s *Service) Resolve(ctx context.Context, tenantID int64) (domain.TenantPointsConfig, error) {
	if tenantID == 0 {
		return domain.TenantPointsConfig{}, domain.ErrInvalidTenant
	}
	if cached, ok := s.configCache.Get(tenantID); ok {
		return cached, nil
	}

	record, err := s.configs.First(ctx, &domain.TenantPointsConfig{TenantID: tenantID})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			cfg := domain.DefaultConfig(tenantID)
			s.configCache.Set(tenantID, cfg, s.ttl)
			return cfg, nil
		}
		return domain.TenantPointsConfig{}, err
	}

	s.configCache.Set(tenantID, *record, s.ttl)
	return *record, nil
}

// CategoryRate returns the active earning percentage for a category, or
// the 1.00% default when no active row exists.
func (s *Service) CategoryRate(ctx context.Context, tenantID, categoryID int64) (decimal.Decimal, error) {
	if tenantID == 0 {
		return decimal.Decimal{}, domain.ErrInvalidTenant
	}
	if categoryID == 0 {
		return decimal.Decimal{}, domain.ErrInvalidCategory
	}

	key := rateKey{TenantID: tenantID, CategoryID: categoryID}
	if cached, ok := s.rateCache.Get(key); ok {
		return cached, nil
	}

	record, err := s.rates.First(ctx, &domain.CategoryRate{TenantID: tenantID, CategoryID: categoryID})
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Decimal{}, err
	}

	percentage := domain.DefaultCategoryRatePercent
	if record != nil && record.IsActive {
		percentage = record.Percentage
	}
	s.rateCache.Set(key, percentage, s.ttl)
	return percentage, nil
}

func (s *Service) Update(ctx context.Context, tenantID int64, req domain.UpdateConfigRequest) (domain.TenantPointsConfig, error) {
	if req.PointsToAmountRate != nil && req.PointsToAmountRate.IsNegative() {
		return domain.TenantPointsConfig{}, domain.ErrInvalidRate
	}
	if req.MaxRedemptionPercent != nil && !validPercent(*req.MaxRedemptionPercent) {
		return domain.TenantPointsConfig{}, domain.ErrInvalidPercent
	}
	if req.ReferralPointsPercent != nil && !validPercent(*req.ReferralPointsPercent) {
		return domain.TenantPointsConfig{}, domain.ErrInvalidPercent
	}
	if req.MinPointsToRedeem != nil && *req.MinPointsToRedeem < 0 {
		return domain.TenantPointsConfig{}, domain.ErrInvalidMinPoints
	}

	return s.mutateConfig(ctx, tenantID, func(cfg *domain.TenantPointsConfig) {
		if req.PointsToAmountRate != nil {
			cfg.PointsToAmountRate = *req.PointsToAmountRate
		}
		if req.MaxRedemptionPercent != nil {
			cfg.MaxRedemptionPercent = *req.MaxRedemptionPercent
		}
		if req.MinPointsToRedeem != nil {
			cfg.MinPointsToRedeem = *req.MinPointsToRedeem
		}
		if req.ReferralPointsPercent != nil {
			cfg.ReferralPointsPercent = *req.ReferralPointsPercent
		}
		if req.ReferralEnabled != nil {
			cfg.ReferralEnabled = *req.ReferralEnabled
		}
	})
}

func (s *Service) Enable(ctx context.Context, tenantID int64) (domain.TenantPointsConfig, error) {
	return s.mutateConfig(ctx, tenantID, func(cfg *domain.TenantPointsConfig) {
		cfg.Enabled = true
	})
}

func (s *Service) Disable(ctx context.Context, tenantID int64) (domain.TenantPointsConfig, error) {
	return s.mutateConfig(ctx, tenantID, func(cfg *domain.TenantPointsConfig) {
		cfg.Enabled = false
	})
}

// mutateConfig lazily creates the stored row from the defaults on the
// first administrative write, applies the mutation and invalidates the
// read cache.
func (s *Service) mutateConfig(ctx context.Context, tenantID int64, mutate func(*domain.TenantPointsConfig)) (domain.TenantPointsConfig, error) {
	if tenantID == 0 {
		return domain.TenantPointsConfig{}, domain.ErrInvalidTenant
	}

	now := s.clock.Now()
	record, err := s.configs.First(ctx, &domain.TenantPointsConfig{TenantID: tenantID})
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.TenantPointsConfig{}, err
		}
		cfg := domain.DefaultConfig(tenantID)
		cfg.ID = s.genID.Generate()
		cfg.CreatedAt = now
		record = &cfg
	}

	mutate(record)
	record.UpdatedAt = now

	if err := s.configs.Save(ctx, record); err != nil {
		return domain.TenantPointsConfig{}, err
	}
	s.configCache.Delete(tenantID)

	if s.events != nil {
		if err := s.events.Publish(ctx, tenantID, events.EventConfigChanged,
			fmt.Sprintf("%s:%d:%d", events.EventConfigChanged, tenantID, now.UnixNano()),
			map[string]interface{}{
				"enabled":               record.Enabled,
				"points_to_amount_rate": record.PointsToAmountRate.String(),
			}); err != nil {
			s.log.Warn("publish config.changed", zap.Error(err))
		}
	}

	s.log.Info("updated tenant points config", zap.Int64("tenant_id", tenantID), zap.Bool("enabled", record.Enabled))
	return *record, nil
}

func (s *Service) ListCategoryRates(ctx context.Context, tenantID int64) ([]*domain.CategoryRate, error) {
	if tenantID == 0 {
		return nil, domain.ErrInvalidTenant
	}
	return s.rates.Find(ctx, &domain.CategoryRate{TenantID: tenantID, IsActive: true})
}

func (s *Service) SaveCategoryRate(ctx context.Context, tenantID int64, req domain.SaveCategoryRateRequest) (*domain.CategoryRate, error) {
	if tenantID == 0 {
		return nil, domain.ErrInvalidTenant
	}
	if req.CategoryID == 0 {
		return nil, domain.ErrInvalidCategory
	}
	if !validPercent(req.Percentage) {
		return nil, domain.ErrInvalidPercent
	}

	now := s.clock.Now()
	record, err := s.rates.First(ctx, &domain.CategoryRate{TenantID: tenantID, CategoryID: req.CategoryID})
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		record = &domain.CategoryRate{
			ID:         s.genID.Generate(),
			TenantID:   tenantID,
			CategoryID: req.CategoryID,
			CreatedAt:  now,
		}
	}

	record.CategoryName = req.CategoryName
	record.Percentage = req.Percentage
	record.IsActive = true
	if req.IsActive != nil {
		record.IsActive = *req.IsActive
	}
	record.UpdatedAt = now

	if err := s.rates.Save(ctx, record); err != nil {
		return nil, err
	}
	s.rateCache.Delete(rateKey{TenantID: tenantID, CategoryID: req.CategoryID})
	return record, nil
}

func (s *Service) DeleteCategoryRate(ctx context.Context, tenantID int64, rateID snowflake.ID) error {
	if tenantID == 0 {
		return domain.ErrInvalidTenant
	}
	record, err := s.rates.First(ctx, &domain.CategoryRate{ID: rateID, TenantID: tenantID})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrRateNotFound
		}
		return err
	}
	if err := s.db.WithContext(ctx).Delete(&domain.CategoryRate{}, "id = ? AND tenant_id = ?", rateID, tenantID).Error; err != nil {
		return err
	}
	s.rateCache.Delete(rateKey{TenantID: tenantID, CategoryID: record.CategoryID})
	return nil
}

func (s *Service) ListCategoryDiscounts(ctx context.Context, tenantID int64) ([]*domain.CategoryDiscount, error) {
	if tenantID == 0 {
		return nil, domain.ErrInvalidTenant
	}
	return s.discounts.Find(ctx, &domain.CategoryDiscount{TenantID: tenantID, IsActive: true})
}

func (s *Service) SaveCategoryDiscount(ctx context.Context, tenantID int64, req domain.SaveCategoryDiscountRequest) (*domain.CategoryDiscount, error) {
	if tenantID == 0 {
		return nil, domain.ErrInvalidTenant
	}
	if req.CategoryID == 0 {
		return nil, domain.ErrInvalidCategory
	}
	if !validPercent(req.Percentage) {
		return nil, domain.ErrInvalidPercent
	}

	now := s.clock.Now()
	record, err := s.discounts.First(ctx, &domain.CategoryDiscount{TenantID: tenantID, CategoryID: req.CategoryID})
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		record = &domain.CategoryDiscount{
			ID:         s.genID.Generate(),
			TenantID:   tenantID,
			CategoryID: req.CategoryID,
			CreatedAt:  now,
		}
	}

	record.CategoryName = req.CategoryName
	record.Percentage = req.Percentage
	record.IsActive = true
	if req.IsActive != nil {
		record.IsActive = *req.IsActive
	}
	record.UpdatedAt = now

	if err := s.discounts.Save(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *Service) DeleteCategoryDiscount(ctx context.Context, tenantID int64, discountID snowflake.ID) error {
	if tenantID == 0 {
		return domain.ErrInvalidTenant
	}
	if _, err := s.discounts.First(ctx, &domain.CategoryDiscount{ID: discountID, TenantID: tenantID}); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrRateNotFound
		}
		return err
	}
	return s.db.WithContext(ctx).Delete(&domain.CategoryDiscount{}, "id = ? AND tenant_id = ?", discountID, tenantID).Error
}

func validPercent(value decimal.Decimal) bool {
	return !value.IsNegative() && value.LessThanOrEqual(decimal.NewFromInt(100))
}
