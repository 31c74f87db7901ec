package telemetry

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

func TestConfig_Defaults(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	assert.Equal(t, DefaultServiceName, cfg.GetServiceName())
	assert.Equal(t, "unknown", cfg.GetServiceVersion())
	assert.InDelta(t, DefaultSampling, (&TracingConfig{}).GetSampling(), 0)

	cfg = &Config{ServiceName: "svc", ServiceVersion: "1.2.3"}
	assert.Equal(t, "svc", cfg.GetServiceName())
	assert.Equal(t, "1.2.3", cfg.GetServiceVersion())
	assert.InDelta(t, 0.25, (&TracingConfig{Sampling: 0.25}).GetSampling(), 0)
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		config        *Config
		errorContains string
	}{
		{name: "nil config", config: nil},
		{name: "disabled config skips validation", config: &Config{Tracing: &TracingConfig{Enabled: true, Sampling: 5}}},
		{
			name:   "metrics to textfile",
			config: &Config{Enabled: true, Metrics: &MetricsConfig{Enabled: true, Textfile: "/tmp/m.prom"}},
		},
		{
			name:   "tracing with endpoint",
			config: &Config{Enabled: true, Endpoint: "localhost:4318", Tracing: &TracingConfig{Enabled: true, Sampling: 0.5}},
		},
		{
			name:          "sampling out of range",
			config:        &Config{Enabled: true, Endpoint: "localhost:4318", Tracing: &TracingConfig{Enabled: true, Sampling: 1.5}},
			errorContains: "sampling must be between 0.0 and 1.0",
		},
		{
			name:          "tracing without endpoint",
			config:        &Config{Enabled: true, Tracing: &TracingConfig{Enabled: true}},
			errorContains: "tracing: an endpoint is required",
		},
		{
			name:          "metrics without destination",
			config:        &Config{Enabled: true, Metrics: &MetricsConfig{Enabled: true}},
			errorContains: "metrics: an endpoint or a textfile is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.config.Validate()
			if tt.errorContains == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorContains)
		})
	}
}

func TestNew_Disabled(t *testing.T) {
	t.Parallel()

	for _, opts := range [][]Option{nil, {WithTelemetryConfig(&Config{Enabled: false})}} {
		tel, err := New(context.Background(), opts...)
		require.NoError(t, err)

		_, ok := tel.MeterProvider().(noop.MeterProvider)
		assert.True(t, ok, "expected no-op meter provider")
		_, ok = tel.TracerProvider().(tracenoop.TracerProvider)
		assert.True(t, ok, "expected no-op tracer provider")

		require.NoError(t, tel.WriteTextfile())
		require.NoError(t, tel.Shutdown(context.Background()))
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), WithTelemetryConfig(&Config{
		Enabled: true,
		Metrics: &MetricsConfig{Enabled: true},
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid telemetry configuration")
}

func TestTelemetry_WriteTextfile(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "font_sources.prom")

	tel, err := New(ctx, WithRunID("run-1"), WithTelemetryConfig(&Config{
		Enabled: true,
		Metrics: &MetricsConfig{Enabled: true, Textfile: path},
	}))
	require.NoError(t, err)
	_, ok := tel.MeterProvider().(*sdkmetric.MeterProvider)
	require.True(t, ok, "expected SDK meter provider")

	metrics, err := NewDiscoveryMetrics(tel.MeterProvider())
	require.NoError(t, err)
	metrics.RecordDiscovery(ctx, "probe", "found", 150*time.Millisecond)
	metrics.RecordCooldown(ctx)
	metrics.RecordCatalogSources(ctx, 7)

	require.NoError(t, tel.WriteTextfile())
	require.NoError(t, tel.Shutdown(ctx))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "font_sources_discoveries")
	assert.Contains(t, text, "font_sources_rate_limit_cooldowns")
	assert.Contains(t, text, "font_sources_discovery_duration")
	assert.Contains(t, text, "font_sources_catalog_sources")
	assert.Contains(t, text, `strategy="probe"`)
	assert.Contains(t, text, `service_instance_id="run-1"`)
}

func TestNewTracerProvider_NoEndpointIsNoOp(t *testing.T) {
	t.Parallel()

	tp, err := newTracerProvider(context.Background(),
		&Config{Enabled: true, Tracing: &TracingConfig{Enabled: true}},
		resource.Empty())
	require.NoError(t, err)
	_, ok := tp.(tracenoop.TracerProvider)
	assert.True(t, ok, "expected no-op tracer provider")
}

func TestNewResource_RunID(t *testing.T) {
	t.Parallel()

	res, err := newResource(context.Background(), &Config{ServiceVersion: "1.2.3"}, "run-1")
	require.NoError(t, err)

	values := map[string]string{}
	for _, kv := range res.Attributes() {
		values[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, DefaultServiceName, values["service.name"])
	assert.Equal(t, "1.2.3", values["service.version"])
	assert.Equal(t, "run-1", values["service.instance.id"])

	res, err = newResource(context.Background(), &Config{}, "")
	require.NoError(t, err)
	_, ok := res.Set().Value("service.instance.id")
	assert.False(t, ok)
}

func TestDiscoveryMetrics(t *testing.T) {
	t.Parallel()

	t.Run("returns nil when provider is nil", func(t *testing.T) {
		t.Parallel()

		metrics, err := NewDiscoveryMetrics(nil)
		require.NoError(t, err)
		assert.Nil(t, metrics)
	})

	t.Run("no-op when metrics is nil", func(t *testing.T) {
		t.Parallel()

		var metrics *DiscoveryMetrics
		// Should not panic
		metrics.RecordDiscovery(context.Background(), "clone", "error", time.Second)
		metrics.RecordCooldown(context.Background())
		metrics.RecordCatalogSources(context.Background(), 1)
	})

	t.Run("records outcomes with strategy attribute", func(t *testing.T) {
		t.Parallel()

		reader := sdkmetric.NewManualReader()
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		defer func() { _ = mp.Shutdown(context.Background()) }()

		metrics, err := NewDiscoveryMetrics(mp)
		require.NoError(t, err)
		require.NotNil(t, metrics)

		ctx := context.Background()
		metrics.RecordDiscovery(ctx, "local", "found", time.Second)
		metrics.RecordDiscovery(ctx, "clone", "no_config", 2*time.Second)
		metrics.RecordCooldown(ctx)

		var rm metricdata.ResourceMetrics
		require.NoError(t, reader.Collect(ctx, &rm))

		counts := map[string]int64{}
		for _, scope := range rm.ScopeMetrics {
			if scope.Scope.Name != DiscoveryMetricsMeterName {
				continue
			}
			for _, m := range scope.Metrics {
				if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
					for _, dp := range sum.DataPoints {
						counts[m.Name] += dp.Value
					}
				}
			}
		}
		assert.Equal(t, int64(2), counts["font_sources_discoveries"])
		assert.Equal(t, int64(1), counts["font_sources_rate_limit_cooldowns"])
	})
}
