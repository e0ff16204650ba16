// Package referral pays out single-level referral bonuses when a
// referred card earns points on a bill.
package referral

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	carddomain "github.com/rxbuddy/loyalty/internal/card/domain"
	ledgerdomain "github.com/rxbuddy/loyalty/internal/ledger/domain"
	tenantconfigdomain "github.com/rxbuddy/loyalty/internal/tenantconfig/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Resolver decides whether an earn event triggers a referral payout and
// applies it. The cascade is exactly one level: the referrer of the
// referrer is never paid.
type Resolver interface {
	ApplyCascade(ctx context.Context, req CascadeRequest) (*CascadeResult, error)
}

// CascadeRequest carries the earn event that may trigger a payout.
// Card is the card that just earned; Config is the tenant configuration
// resolved for that earn, reused here so both legs see the same rates.
type CascadeRequest struct {
	TenantID    int64
	Card        *carddomain.Card
	BillID      string
	BillAmount  decimal.Decimal
	Config      tenantconfigdomain.TenantPointsConfig
	PerformedBy string
}

// CascadeResult reports the payout. A zero Points value means the
// cascade was skipped; Reason says why.
type CascadeResult struct {
	ReferrerCardID     snowflake.ID              `json:"referrer_card_id,omitempty"`
	ReferrerCardNumber string                    `json:"referrer_card_number,omitempty"`
	Points             decimal.Decimal           `json:"points"`
	Reason             string                    `json:"reason,omitempty"`
	Entry              *ledgerdomain.LedgerEntry `json:"-"`
}

const (
	skipDisabled         = "referral_disabled"
	skipNoReferrer       = "no_referrer"
	skipReferrerMissing  = "referrer_not_found"
	skipReferrerInactive = "referrer_inactive"
	skipZeroPoints       = "zero_points"
)

var oneHundred = decimal.NewFromInt(100)

type ResolverParam struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Ledger ledgerdomain.Store
}

type resolver struct {
	db     *gorm.DB
	log    *zap.Logger
	ledger ledgerdomain.Store
}

func NewResolver(p ResolverParam) Resolver {
	return &resolver{
		db:     p.DB,
		log:    p.Log.Named("referral.resolver"),
		ledger: p.Ledger,
	}
}

// ApplyCascade pays round2(billAmount * referralPercent / 100) points to
// the direct referrer. Every skip condition returns a zero result, not
// an error; only infrastructure failures propagate.
func (r *resolver) ApplyCascade(ctx context.Context, req CascadeRequest) (*CascadeResult, error) {
	if !req.Config.ReferralEnabled {
		return &CascadeResult{Points: decimal.Zero, Reason: skipDisabled}, nil
	}
	if req.Card == nil || req.Card.ReferrerCardID == nil {
		return &CascadeResult{Points: decimal.Zero, Reason: skipNoReferrer}, nil
	}

	referrerID := *req.Card.ReferrerCardID

	var referrer carddomain.Card
	err := r.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", referrerID, req.TenantID).
		First(&referrer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			r.log.Warn("referrer card missing, skipping payout",
				zap.Int64("tenant_id", req.TenantID),
				zap.Int64("card_id", int64(req.Card.ID)),
				zap.Int64("referrer_card_id", int64(referrerID)),
			)
			return &CascadeResult{Points: decimal.Zero, Reason: skipReferrerMissing}, nil
		}
		return nil, err
	}
	if !referrer.IsActive {
		return &CascadeResult{Points: decimal.Zero, Reason: skipReferrerInactive}, nil
	}

	points := req.BillAmount.Mul(req.Config.ReferralPointsPercent).DivRound(oneHundred, 2)
	if !points.IsPositive() {
		return &CascadeResult{Points: decimal.Zero, Reason: skipZeroPoints}, nil
	}

	referredID := req.Card.ID
	entry, err := r.ledger.ApplyDelta(ctx, ledgerdomain.ApplyDeltaRequest{
		TenantID:       req.TenantID,
		CardID:         referrer.ID,
		EntryType:      ledgerdomain.EntryTypeReferralEarned,
		Points:         points,
		ReferenceType:  ledgerdomain.ReferenceTypeReferral,
		BillID:         req.BillID,
		BillAmount:     req.BillAmount,
		ReferredCardID: &referredID,
		Description:    "referral bonus from " + req.Card.CardNumber,
		PerformedBy:    req.PerformedBy,
	})
	if err != nil {
		return nil, err
	}

	return &CascadeResult{
		ReferrerCardID:     referrer.ID,
		ReferrerCardNumber: referrer.CardNumber,
		Points:             points,
		Entry:              entry,
	}, nil
}

var Module = fx.Module("referral.resolver",
	fx.Provide(NewResolver),
)
