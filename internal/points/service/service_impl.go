package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	carddomain "github.com/rxbuddy/loyalty/internal/card/domain"
	"github.com/rxbuddy/loyalty/internal/events"
	ledgerdomain "github.com/rxbuddy/loyalty/internal/ledger/domain"
	"github.com/rxbuddy/loyalty/internal/observability/metrics"
	"github.com/rxbuddy/loyalty/internal/points/domain"
	"github.com/rxbuddy/loyalty/internal/referral"
	tenantconfigdomain "github.com/rxbuddy/loyalty/internal/tenantconfig/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var oneHundred = decimal.NewFromInt(100)

type ServiceParam struct {
	fx.In

	Log      *zap.Logger
	Configs  tenantconfigdomain.Service
	Ledger   ledgerdomain.Store
	Referral referral.Resolver
	Metrics  *metrics.LoyaltyMetrics `optional:"true"`
	Events   events.Publisher        `optional:"true"`
}

type Service struct {
	log      *zap.Logger
	configs  tenantconfigdomain.Service
	ledger   ledgerdomain.Store
	referral referral.Resolver
	metrics  *metrics.LoyaltyMetrics
	events   events.Publisher
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		log:      p.Log.Named("points.service"),
		configs:  p.Configs,
		ledger:   p.Ledger,
		referral: p.Referral,
		metrics:  p.Metrics,
		events:   p.Events,
	}
}

// Earn awards points for a bill. Points are computed per item with the
// category's percentage, rounded to two places per item, then summed.
// An empty item list, or a bill that rounds to zero points, succeeds
// without writing an entry.
func (s *Service) Earn(ctx context.Context, req domain.EarnRequest) (*domain.EarnResult, error) {
	if req.TenantID == 0 || req.CardID == 0 || req.BillID == "" {
		return nil, domain.ErrInvalidBill
	}
	if !req.BillAmount.IsPositive() {
		return nil, domain.ErrInvalidBill
	}
	for _, item := range req.Items {
		if item.CategoryID == 0 {
			return nil, domain.ErrInvalidBill
		}
		if !item.Amount.IsPositive() {
			return nil, domain.ErrInvalidAmount
		}
	}

	card, err := s.ledger.Balance(ctx, req.TenantID, req.CardID)
	if err != nil {
		return nil, err
	}
	if !card.IsActive {
		s.metrics.IncRejected(ctx, req.TenantID, carddomain.ErrCardInactive.Error())
		return nil, carddomain.ErrCardInactive
	}

	cfg, err := s.configs.Resolve(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		s.metrics.IncRejected(ctx, req.TenantID, domain.ErrConfigDisabled.Error())
		return nil, domain.ErrConfigDisabled
	}

	totalPoints := decimal.Zero
	for _, item := range req.Items {
		rate, err := s.configs.CategoryRate(ctx, req.TenantID, item.CategoryID)
		if err != nil {
			return nil, err
		}
		totalPoints = totalPoints.Add(item.Amount.Mul(rate).DivRound(oneHundred, 2))
	}

	result := &domain.EarnResult{
		CardID:       req.CardID,
		BillID:       req.BillID,
		PointsEarned: totalPoints,
		Balance:      card.PointsBalance,
	}

	if !totalPoints.IsPositive() {
		s.log.Info("earn rounded to zero, no entry written",
			zap.Int64("tenant_id", req.TenantID),
			zap.Int64("card_id", int64(req.CardID)),
			zap.String("bill_id", req.BillID),
		)
		result.Referral = &referral.CascadeResult{Points: decimal.Zero}
		return result, nil
	}

	entry, err := s.ledger.ApplyDelta(ctx, ledgerdomain.ApplyDeltaRequest{
		TenantID:      req.TenantID,
		CardID:        req.CardID,
		EntryType:     ledgerdomain.EntryTypeEarned,
		Points:        totalPoints,
		ReferenceType: ledgerdomain.ReferenceTypeBill,
		BillID:        req.BillID,
		BillAmount:    req.BillAmount,
		Description:   fmt.Sprintf("points for bill %s", req.BillID),
		PerformedBy:   req.PerformedBy,
	})
	if err != nil {
		return nil, err
	}
	result.Entry = entry
	result.Balance = entry.BalanceAfter

	s.metrics.IncEarn(ctx, req.TenantID)
	s.publish(ctx, req.TenantID, events.EventPointsEarned,
		fmt.Sprintf("%s:%d:%d:%s", events.EventPointsEarned, req.TenantID, req.CardID, req.BillID),
		map[string]interface{}{
			"card_id": req.CardID.String(),
			"bill_id": req.BillID,
			"points":  totalPoints.String(),
		})

	// The referral leg is best effort: a failure here never unwinds the
	// primary earn.
	cascade, err := s.referral.ApplyCascade(ctx, referral.CascadeRequest{
		TenantID:    req.TenantID,
		Card:        card,
		BillID:      req.BillID,
		BillAmount:  req.BillAmount,
		Config:      cfg,
		PerformedBy: req.PerformedBy,
	})
	if err != nil {
		s.log.Warn("referral cascade failed",
			zap.Int64("tenant_id", req.TenantID),
			zap.Int64("card_id", int64(req.CardID)),
			zap.String("bill_id", req.BillID),
			zap.Error(err),
		)
		cascade = &referral.CascadeResult{Points: decimal.Zero, Reason: "cascade_failed"}
	}
	result.Referral = cascade

	if cascade.Points.IsPositive() {
		s.metrics.IncReferral(ctx, req.TenantID)
		s.publish(ctx, req.TenantID, events.EventReferralEarned,
			fmt.Sprintf("%s:%d:%d:%s", events.EventReferralEarned, req.TenantID, cascade.ReferrerCardID, req.BillID),
			map[string]interface{}{
				"referrer_card_id": cascade.ReferrerCardID.String(),
				"referred_card_id": req.CardID.String(),
				"bill_id":          req.BillID,
				"points":           cascade.Points.String(),
			})
	}

	s.log.Info("points earned",
		zap.Int64("tenant_id", req.TenantID),
		zap.Int64("card_id", int64(req.CardID)),
		zap.String("bill_id", req.BillID),
		zap.String("points", totalPoints.String()),
		zap.String("referral_points", cascade.Points.String()),
	)
	return result, nil
}

// Redeem converts points into a bill deduction. The deducted amount is
// points * rate, unrounded; the cap check compares it against
// round2(billAmount * maxRedemptionPercent / 100).
func (s *Service) Redeem(ctx context.Context, req domain.RedeemRequest) (*domain.RedeemResult, error) {
	if req.TenantID == 0 || req.CardID == 0 || req.BillID == "" {
		return nil, domain.ErrInvalidBill
	}
	if !req.BillAmount.IsPositive() {
		return nil, domain.ErrInvalidBill
	}
	if !req.Points.IsPositive() {
		return nil, domain.ErrInvalidPoints
	}

	card, err := s.ledger.Balance(ctx, req.TenantID, req.CardID)
	if err != nil {
		return nil, err
	}
	if !card.IsActive {
		s.metrics.IncRejected(ctx, req.TenantID, carddomain.ErrCardInactive.Error())
		return nil, carddomain.ErrCardInactive
	}

	cfg, err := s.configs.Resolve(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		s.metrics.IncRejected(ctx, req.TenantID, domain.ErrConfigDisabled.Error())
		return nil, domain.ErrConfigDisabled
	}

	if req.Points.LessThan(decimal.NewFromInt(cfg.MinPointsToRedeem)) {
		s.metrics.IncRejected(ctx, req.TenantID, domain.ErrBelowMinimum.Error())
		return nil, domain.ErrBelowMinimum
	}
	if req.Points.GreaterThan(card.PointsBalance) {
		s.metrics.IncRejected(ctx, req.TenantID, domain.ErrInsufficientBalance.Error())
		return nil, domain.ErrInsufficientBalance
	}

	amountDeducted := req.Points.Mul(cfg.PointsToAmountRate)
	maxAllowed := req.BillAmount.Mul(cfg.MaxRedemptionPercent).DivRound(oneHundred, 2)
	if amountDeducted.GreaterThan(maxAllowed) {
		s.metrics.IncRejected(ctx, req.TenantID, domain.ErrExceedsMaxRedemption.Error())
		return nil, domain.ErrExceedsMaxRedemption
	}

	entry, err := s.ledger.ApplyDelta(ctx, ledgerdomain.ApplyDeltaRequest{
		TenantID:      req.TenantID,
		CardID:        req.CardID,
		EntryType:     ledgerdomain.EntryTypeRedeemed,
		Points:        req.Points.Neg(),
		ReferenceType: ledgerdomain.ReferenceTypeBill,
		BillID:        req.BillID,
		BillAmount:    req.BillAmount,
		Description:   fmt.Sprintf("redemption against bill %s", req.BillID),
		PerformedBy:   req.PerformedBy,
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncRedeem(ctx, req.TenantID)
	s.publish(ctx, req.TenantID, events.EventPointsRedeemed,
		fmt.Sprintf("%s:%d:%d:%s", events.EventPointsRedeemed, req.TenantID, req.CardID, req.BillID),
		map[string]interface{}{
			"card_id":         req.CardID.String(),
			"bill_id":         req.BillID,
			"points":          req.Points.String(),
			"amount_deducted": amountDeducted.String(),
		})

	s.log.Info("points redeemed",
		zap.Int64("tenant_id", req.TenantID),
		zap.Int64("card_id", int64(req.CardID)),
		zap.String("bill_id", req.BillID),
		zap.String("points", req.Points.String()),
		zap.String("amount_deducted", amountDeducted.String()),
	)

	return &domain.RedeemResult{
		CardID:         req.CardID,
		BillID:         req.BillID,
		PointsRedeemed: req.Points,
		AmountDeducted: amountDeducted,
		Balance:        entry.BalanceAfter,
		Entry:          entry,
	}, nil
}

func (s *Service) Balance(ctx context.Context, tenantID int64, cardID snowflake.ID) (*domain.BalanceResult, error) {
	card, err := s.ledger.Balance(ctx, tenantID, cardID)
	if err != nil {
		return nil, err
	}
	return &domain.BalanceResult{Card: card}, nil
}

func (s *Service) Transactions(ctx context.Context, req domain.TransactionsRequest) (*ledgerdomain.ListEntriesResponse, error) {
	return s.ledger.ListEntries(ctx, ledgerdomain.ListEntriesRequest{
		TenantID:  req.TenantID,
		CardID:    req.CardID,
		EntryType: req.EntryType,
		Page:      req.Page,
	})
}

func (s *Service) publish(ctx context.Context, tenantID int64, eventType, dedupeKey string, payload map[string]interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, tenantID, eventType, dedupeKey, payload); err != nil {
		s.log.Warn("publish event failed",
			zap.String("event_type", eventType),
			zap.Int64("tenant_id", tenantID),
			zap.Error(err),
		)
	}
}
