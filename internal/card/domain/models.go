// Package domain contains the loyalty card model and its service contract.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Card is a customer's loyalty account within one tenant. The balance
// fields are owned exclusively by the ledger store; everything else is
// administrative state.
//
// Invariant: PointsBalance == TotalEarned + TotalReferralEarned - TotalRedeemed,
// and PointsBalance >= 0.
type Card struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID   int64        `gorm:"not null;index;uniqueIndex:ux_cards_tenant_number,priority:1" json:"tenant_id"`
	CardNumber string       `gorm:"type:text;not null;uniqueIndex:ux_cards_tenant_number,priority:2" json:"card_number"`
	CustomerID int64        `gorm:"not null;index" json:"customer_id"`

	// Customer info, denormalized for display.
	CustomerName  string `gorm:"type:text;not null" json:"customer_name"`
	CustomerPhone string `gorm:"type:text" json:"customer_phone"`
	CustomerEmail string `gorm:"type:text" json:"customer_email"`

	// ReferrerCardID is the identity of the direct referrer, set at most
	// once and never repointed. Stored as a plain id, not an owning
	// association, so the chain stays single-level and acyclic.
	ReferrerCardID *snowflake.ID `gorm:"index" json:"referrer_card_id,omitempty"`

	PointsBalance       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"points_balance"`
	TotalEarned         decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_earned"`
	TotalRedeemed       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_redeemed"`
	TotalReferralEarned decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_referral_earned"`

	IsActive          bool       `gorm:"not null;default:true" json:"is_active"`
	IssuedAt          time.Time  `gorm:"not null" json:"issued_at"`
	LastTransactionAt *time.Time `json:"last_transaction_at,omitempty"`
	CreatedAt         time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Card) TableName() string { return "loyalty_cards" }
