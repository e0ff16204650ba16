// Package metrics defines the service's OpenTelemetry instruments.
package metrics

import (
	"context"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// LoyaltyMetrics counts balance mutations by tenant. Amounts are not
// recorded as metric values to keep cardinality and precision concerns
// out of the metrics pipeline; the ledger is the source of truth.
type LoyaltyMetrics struct {
	earnOps     metric.Int64Counter
	redeemOps   metric.Int64Counter
	referralOps metric.Int64Counter
	rejections  metric.Int64Counter
}

func NewLoyaltyMetrics(provider metric.MeterProvider) (*LoyaltyMetrics, error) {
	meter := provider.Meter("loyalty/points")

	earnOps, err := meter.Int64Counter("loyalty.points.earn_total")
	if err != nil {
		return nil, err
	}
	redeemOps, err := meter.Int64Counter("loyalty.points.redeem_total")
	if err != nil {
		return nil, err
	}
	referralOps, err := meter.Int64Counter("loyalty.points.referral_total")
	if err != nil {
		return nil, err
	}
	rejections, err := meter.Int64Counter("loyalty.points.rejected_total")
	if err != nil {
		return nil, err
	}

	return &LoyaltyMetrics{
		earnOps:     earnOps,
		redeemOps:   redeemOps,
		referralOps: referralOps,
		rejections:  rejections,
	}, nil
}

func (m *LoyaltyMetrics) IncEarn(ctx context.Context, tenantID int64) {
	if m == nil {
		return
	}
	m.earnOps.Add(ctx, 1, metric.WithAttributes(tenantAttr(tenantID)))
}

func (m *LoyaltyMetrics) IncRedeem(ctx context.Context, tenantID int64) {
	if m == nil {
		return
	}
	m.redeemOps.Add(ctx, 1, metric.WithAttributes(tenantAttr(tenantID)))
}

func (m *LoyaltyMetrics) IncReferral(ctx context.Context, tenantID int64) {
	if m == nil {
		return
	}
	m.referralOps.Add(ctx, 1, metric.WithAttributes(tenantAttr(tenantID)))
}

func (m *LoyaltyMetrics) IncRejected(ctx context.Context, tenantID int64, reason string) {
	if m == nil {
		return
	}
	m.rejections.Add(ctx, 1, metric.WithAttributes(
		tenantAttr(tenantID),
		attribute.String("reason", reason),
	))
}

func tenantAttr(tenantID int64) attribute.KeyValue {
	return attribute.String("tenant_id", strconv.FormatInt(tenantID, 10))
}
