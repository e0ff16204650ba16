package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Service resolves and administers tenant loyalty configuration.
// Resolve and CategoryRate are the hot read path used by the points
// engine; both are side-effect-free and may serve slightly stale values
// from a short-lived cache.
type Service interface {
	Resolve(ctx context.Context, tenantID int64) (TenantPointsConfig, error)
	CategoryRate(ctx context.Context, tenantID, categoryID int64) (decimal.Decimal, error)

	Update(ctx context.Context, tenantID int64, req UpdateConfigRequest) (TenantPointsConfig, error)
	Enable(ctx context.Context, tenantID int64) (TenantPointsConfig, error)
	Disable(ctx context.Context, tenantID int64) (TenantPointsConfig, error)

	ListCategoryRates(ctx context.Context, tenantID int64) ([]*CategoryRate, error)
	SaveCategoryRate(ctx context.Context, tenantID int64, req SaveCategoryRateRequest) (*CategoryRate, error)
	DeleteCategoryRate(ctx context.Context, tenantID int64, rateID snowflake.ID) error

	ListCategoryDiscounts(ctx context.Context, tenantID int64) ([]*CategoryDiscount, error)
	SaveCategoryDiscount(ctx context.Context, tenantID int64, req SaveCategoryDiscountRequest) (*CategoryDiscount, error)
	DeleteCategoryDiscount(ctx context.Context, tenantID int64, discountID snowflake.ID) error
}

var (
	ErrInvalidTenant    = errors.New("invalid_tenant")
	ErrInvalidCategory  = errors.New("invalid_category")
	ErrInvalidPercent   = errors.New("invalid_percent")
	ErrInvalidRate      = errors.New("invalid_rate")
	ErrInvalidMinPoints = errors.New("invalid_min_points")
	ErrConfigNotFound   = errors.New("config_not_found")
	ErrRateNotFound     = errors.New("category_rate_not_found")
)

// UpdateConfigRequest carries partial configuration updates; nil fields
// keep their stored (or default) values.
type UpdateConfigRequest struct {
	PointsToAmountRate    *decimal.Decimal
	MaxRedemptionPercent  *decimal.Decimal
	MinPointsToRedeem     *int64
	ReferralPointsPercent *decimal.Decimal
	ReferralEnabled       *bool
}

type SaveCategoryRateRequest struct {
	CategoryID   int64
	CategoryName string
	Percentage   decimal.Decimal
	IsActive     *bool
}

type SaveCategoryDiscountRequest struct {
	CategoryID   int64
	CategoryName string
	Percentage   decimal.Decimal
	IsActive     *bool
}
