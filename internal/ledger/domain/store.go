package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	carddomain "github.com/rxbuddy/loyalty/internal/card/domain"
	"github.com/rxbuddy/loyalty/pkg/db/pagination"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Store is the only writer of card balances. ApplyDelta serializes
// writes per card, so concurrent mutations of the same card never lose
// an update or drive the balance negative.
type Store interface {
	ApplyDelta(ctx context.Context, req ApplyDeltaRequest) (*LedgerEntry, error)
	Balance(ctx context.Context, tenantID int64, cardID snowflake.ID) (*carddomain.Card, error)
	ListEntries(ctx context.Context, req ListEntriesRequest) (*ListEntriesResponse, error)
}

var (
	// ErrBalanceConflict is returned when a delta would take the balance
	// below zero at commit time. Distinct from the engine's pre-check so
	// losers of a redemption race are observable as such.
	ErrBalanceConflict = errors.New("insufficient_balance_conflict")

	ErrCardNotFound = errors.New("card_not_found")
	ErrInvalidDelta = errors.New("invalid_ledger_delta")
)

// ApplyDeltaRequest describes one balance mutation. Points carries the
// sign; the store validates the sign against the entry type.
type ApplyDeltaRequest struct {
	TenantID int64
	CardID   snowflake.ID

	EntryType EntryType
	Points    decimal.Decimal

	ReferenceType  ReferenceType
	BillID         string
	BillAmount     decimal.Decimal
	ReferredCardID *snowflake.ID
	Description    string
	PerformedBy    string
	Metadata       datatypes.JSONMap
}

type ListEntriesRequest struct {
	TenantID  int64
	CardID    snowflake.ID
	EntryType EntryType
	Page      pagination.Pagination
}

type ListEntriesResponse struct {
	Entries  []*LedgerEntry       `json:"entries"`
	PageInfo *pagination.PageInfo `json:"page_info"`
}
