// Package domain defines the points engine contract: earning against
// bills, redeeming against balances and reading card history.
package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	carddomain "github.com/rxbuddy/loyalty/internal/card/domain"
	ledgerdomain "github.com/rxbuddy/loyalty/internal/ledger/domain"
	"github.com/rxbuddy/loyalty/internal/referral"
	"github.com/rxbuddy/loyalty/pkg/db/pagination"
	"github.com/shopspring/decimal"
)

// Service orchestrates config resolution, ledger writes and the
// referral cascade. All operations are tenant scoped.
type Service interface {
	Earn(ctx context.Context, req EarnRequest) (*EarnResult, error)
	Redeem(ctx context.Context, req RedeemRequest) (*RedeemResult, error)
	Balance(ctx context.Context, tenantID int64, cardID snowflake.ID) (*BalanceResult, error)
	Transactions(ctx context.Context, req TransactionsRequest) (*ledgerdomain.ListEntriesResponse, error)
}

var (
	ErrConfigDisabled       = errors.New("loyalty_disabled")
	ErrInvalidBill          = errors.New("invalid_bill")
	ErrInvalidAmount        = errors.New("invalid_amount")
	ErrInvalidPoints        = errors.New("invalid_points")
	ErrBelowMinimum         = errors.New("below_minimum_points")
	ErrExceedsMaxRedemption = errors.New("exceeds_max_redemption")
	ErrInsufficientBalance  = errors.New("insufficient_balance")
)

// EarnItem is one bill line: the purchase amount in a category. Points
// are computed and rounded per item, then summed.
type EarnItem struct {
	CategoryID int64           `json:"category_id"`
	Amount     decimal.Decimal `json:"amount"`
}

type EarnRequest struct {
	TenantID    int64
	CardID      snowflake.ID
	BillID      string
	BillAmount  decimal.Decimal
	Items       []EarnItem
	PerformedBy string
}

// EarnResult reports both legs of the earn: the primary entry and the
// referral payout, which is zero when the cascade was skipped.
type EarnResult struct {
	CardID       snowflake.ID              `json:"card_id"`
	BillID       string                    `json:"bill_id"`
	PointsEarned decimal.Decimal           `json:"points_earned"`
	Balance      decimal.Decimal           `json:"balance"`
	Entry        *ledgerdomain.LedgerEntry `json:"entry,omitempty"`
	Referral     *referral.CascadeResult   `json:"referral,omitempty"`
}

type RedeemRequest struct {
	TenantID    int64
	CardID      snowflake.ID
	BillID      string
	BillAmount  decimal.Decimal
	Points      decimal.Decimal
	PerformedBy string
}

// RedeemResult reports the redemption. AmountDeducted is the exact
// points-to-currency conversion, deliberately unrounded; the billing
// side decides how to present it.
type RedeemResult struct {
	CardID         snowflake.ID              `json:"card_id"`
	BillID         string                    `json:"bill_id"`
	PointsRedeemed decimal.Decimal           `json:"points_redeemed"`
	AmountDeducted decimal.Decimal           `json:"amount_deducted"`
	Balance        decimal.Decimal           `json:"balance"`
	Entry          *ledgerdomain.LedgerEntry `json:"entry,omitempty"`
}

type BalanceResult struct {
	Card *carddomain.Card `json:"card"`
}

type TransactionsRequest struct {
	TenantID  int64
	CardID    snowflake.ID
	EntryType ledgerdomain.EntryType
	Page      pagination.Pagination
}
