package llm

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const costMeterName = "github.com/dativo-io/claimpilot/internal/llm"

var (
	costRequestHistogram  metric.Float64Histogram
	costMetricsOnce       sync.Once
	costMetricsRegistered bool
)

func initCostMetrics() {
	meter := otel.Meter(costMeterName)
	var err error
	costRequestHistogram, err = meter.Float64Histogram(
		"claimpilot.ai.cost",
		metric.WithDescription("Cost in USD per AI invocation"),
		metric.WithUnit("usd"),
	)
	if err != nil {
		return
	}
	costMetricsRegistered = true
}

// RecordCostMetrics records cost per AI invocation. Attributes route, model,
// and cache_hit allow filtering in observability backends.
func RecordCostMetrics(ctx context.Context, costUSD float64, route, model string, cacheHit bool) {
	costMetricsOnce.Do(initCostMetrics)
	if !costMetricsRegistered {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("route", route),
		attribute.String("model", model),
		attribute.Bool("cache_hit", cacheHit),
	)
	costRequestHistogram.Record(ctx, costUSD, attrs)
}
