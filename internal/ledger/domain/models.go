// Package domain defines the append-only points ledger.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// EntryType classifies a ledger entry.
type EntryType string

const (
	EntryTypeEarned         EntryType = "EARNED"
	EntryTypeRedeemed       EntryType = "REDEEMED"
	EntryTypeReferralEarned EntryType = "REFERRAL_EARNED"
)

// ReferenceType names the business document an entry points back to.
type ReferenceType string

const (
	ReferenceTypeBill     ReferenceType = "BILL"
	ReferenceTypeReferral ReferenceType = "REFERRAL"
)

// LedgerEntry is one immutable balance mutation. Points is signed:
// positive for EARNED and REFERRAL_EARNED, negative for REDEEMED.
// BalanceAfter snapshots the card balance as of this entry, so the
// history replays without recomputation.
type LedgerEntry struct {
	ID       snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID int64        `gorm:"not null;index:ix_ledger_entries_tenant_card,priority:1" json:"tenant_id"`
	CardID   snowflake.ID `gorm:"not null;index:ix_ledger_entries_tenant_card,priority:2" json:"card_id"`

	EntryType    EntryType       `gorm:"type:text;not null" json:"entry_type"`
	Points       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"points"`
	BalanceAfter decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"balance_after"`

	ReferenceType ReferenceType   `gorm:"type:text" json:"reference_type,omitempty"`
	BillID        string          `gorm:"type:text;index" json:"bill_id,omitempty"`
	BillAmount    decimal.Decimal `gorm:"type:numeric(12,2)" json:"bill_amount"`

	// ReferredCardID is set on REFERRAL_EARNED entries and names the
	// referred card whose earn produced the payout.
	ReferredCardID *snowflake.ID `gorm:"index" json:"referred_card_id,omitempty"`

	Description string            `gorm:"type:text" json:"description,omitempty"`
	PerformedBy string            `gorm:"type:text" json:"performed_by,omitempty"`
	Metadata    datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
}

// TableName sets the database table name.
func (LedgerEntry) TableName() string { return "ledger_entries" }
