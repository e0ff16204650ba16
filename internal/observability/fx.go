// Package observability aggregates logging, metrics and tracing wiring.
package observability

import (
	"github.com/rxbuddy/loyalty/internal/config"
	"github.com/rxbuddy/loyalty/internal/observability/logger"
	"github.com/rxbuddy/loyalty/internal/observability/metrics"
	"github.com/rxbuddy/loyalty/internal/observability/tracing"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("observability",
	logger.Module,
	fx.Provide(func() metric.MeterProvider {
		return sdkmetric.NewMeterProvider()
	}),
	fx.Provide(metrics.NewHTTPMetrics),
	fx.Provide(metrics.NewLoyaltyMetrics),
	fx.Invoke(func(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) error {
		_, err := tracing.NewProvider(lc, cfg, log)
		return err
	}),
)
