package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// DiscoveryMetricsMeterName is the name used for the discovery metrics meter
const DiscoveryMetricsMeterName = "github.com/fontcatalog/font-sources/discovery"

// DiscoveryMetrics holds the OpenTelemetry instruments for a discovery run
type DiscoveryMetrics struct {
	discoveries       metric.Int64Counter
	cooldowns         metric.Int64Counter
	discoveryDuration metric.Float64Histogram
	catalogSources    metric.Int64Gauge
}

// NewDiscoveryMetrics creates a new DiscoveryMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewDiscoveryMetrics(provider metric.MeterProvider) (*DiscoveryMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(DiscoveryMetricsMeterName)

	discoveries, err := meter.Int64Counter(
		"font_sources_discoveries",
		metric.WithDescription("Repositories probed, by strategy and outcome"),
		metric.WithUnit("{repository}"),
	)
	if err != nil {
		return nil, err
	}

	cooldowns, err := meter.Int64Counter(
		"font_sources_rate_limit_cooldowns",
		metric.WithDescription("Rate limit cooldowns taken by the worker pool"),
		metric.WithUnit("{cooldown}"),
	)
	if err != nil {
		return nil, err
	}

	discoveryDuration, err := meter.Float64Histogram(
		"font_sources_discovery_duration",
		metric.WithDescription("Duration of a single repository discovery in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300),
	)
	if err != nil {
		return nil, err
	}

	catalogSources, err := meter.Int64Gauge(
		"font_sources_catalog_sources",
		metric.WithDescription("Number of sources in the written catalog"),
		metric.WithUnit("{source}"),
	)
	if err != nil {
		return nil, err
	}

	return &DiscoveryMetrics{
		discoveries:       discoveries,
		cooldowns:         cooldowns,
		discoveryDuration: discoveryDuration,
		catalogSources:    catalogSources,
	}, nil
}

// RecordDiscovery records one discovery attempt and how long it took
func (m *DiscoveryMetrics) RecordDiscovery(ctx context.Context, strategy, outcome string, duration time.Duration) {
	if m == nil || m.discoveries == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("strategy", strategy),
		attribute.String("outcome", outcome),
	)
	m.discoveries.Add(ctx, 1, attrs)
	m.discoveryDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordCooldown records a rate limit cooldown
func (m *DiscoveryMetrics) RecordCooldown(ctx context.Context) {
	if m == nil || m.cooldowns == nil {
		return
	}

	m.cooldowns.Add(ctx, 1)
}

// RecordCatalogSources records the size of the catalog a run produced
func (m *DiscoveryMetrics) RecordCatalogSources(ctx context.Context, count int64) {
	if m == nil || m.catalogSources == nil {
		return
	}

	m.catalogSources.Record(ctx, count)
}
