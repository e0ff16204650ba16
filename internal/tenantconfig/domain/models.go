// Package domain holds the per-tenant loyalty configuration models.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// TenantPointsConfig is the per-tenant singleton controlling earning
// and redemption behavior. When no row exists the documented defaults
// apply; reads never create the row.
type TenantPointsConfig struct {
	ID       snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID int64        `gorm:"not null;uniqueIndex" json:"tenant_id"`

	Enabled bool `gorm:"not null;default:false" json:"enabled"`

	// PointsToAmountRate is currency per point when redeeming.
	PointsToAmountRate decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"points_to_amount_rate"`

	// MaxRedemptionPercent caps the redeemed amount as a percentage of
	// the bill.
	MaxRedemptionPercent decimal.Decimal `gorm:"type:numeric(5,2);not null" json:"max_redemption_percent"`

	MinPointsToRedeem int64 `gorm:"not null" json:"min_points_to_redeem"`

	ReferralPointsPercent decimal.Decimal `gorm:"type:numeric(5,2);not null" json:"referral_points_percent"`
	ReferralEnabled       bool            `gorm:"not null;default:true" json:"referral_enabled"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (TenantPointsConfig) TableName() string { return "tenant_points_configs" }

// DefaultConfig returns the documented defaults for a tenant with no
// stored configuration. The loyalty program starts disabled.
func DefaultConfig(tenantID int64) TenantPointsConfig {
	return TenantPointsConfig{
		TenantID:              tenantID,
		Enabled:               false,
		PointsToAmountRate:    decimal.RequireFromString("0.10"),
		MaxRedemptionPercent:  decimal.RequireFromString("50.00"),
		MinPointsToRedeem:     100,
		ReferralPointsPercent: decimal.RequireFromString("0.50"),
		ReferralEnabled:       true,
	}
}

// DefaultCategoryRatePercent is the earning percentage applied when a
// category has no active rate row.
var DefaultCategoryRatePercent = decimal.RequireFromString("1.00")

// CategoryRate is the per-tenant, per-category earning percentage.
type CategoryRate struct {
	ID           snowflake.ID    `gorm:"primaryKey" json:"id"`
	TenantID     int64           `gorm:"not null;index;uniqueIndex:ux_category_rates_tenant_category,priority:1" json:"tenant_id"`
	CategoryID   int64           `gorm:"not null;uniqueIndex:ux_category_rates_tenant_category,priority:2" json:"category_id"`
	CategoryName string          `gorm:"type:text" json:"category_name"`
	Percentage   decimal.Decimal `gorm:"type:numeric(5,2);not null" json:"percentage"`
	IsActive     bool            `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (CategoryRate) TableName() string { return "category_rates" }

// CategoryDiscount is display-only data carried alongside the rates; it
// never influences balance mutations.
type CategoryDiscount struct {
	ID           snowflake.ID    `gorm:"primaryKey" json:"id"`
	TenantID     int64           `gorm:"not null;index;uniqueIndex:ux_category_discounts_tenant_category,priority:1" json:"tenant_id"`
	CategoryID   int64           `gorm:"not null;uniqueIndex:ux_category_discounts_tenant_category,priority:2" json:"category_id"`
	CategoryName string          `gorm:"type:text" json:"category_name"`
	Percentage   decimal.Decimal `gorm:"type:numeric(5,2);not null" json:"percentage"`
	IsActive     bool            `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (CategoryDiscount) TableName() string { return "category_discounts" }
