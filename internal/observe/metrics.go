// Package observe provides application-wide observability primitives for
// Conclave: OpenTelemetry metrics, distributed tracing, structured logging,
// and the operational HTTP endpoints that expose them.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
//
// Because the MCP protocol itself runs over stdio, all diagnostics (logs
// included) stay off stdout.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Conclave metrics.
const meterName = "github.com/MrWong99/conclave"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// ToolDuration tracks end-to-end tool execution latency. Use with
	// attribute.String("tool", ...).
	ToolDuration metric.Float64Histogram

	// ProviderDuration tracks upstream model call latency. Use with
	// attributes: attribute.String("provider", ...), attribute.String("model", ...)
	ProviderDuration metric.Float64Histogram

	// ToolCalls counts tool invocations. Use with attributes:
	//   attribute.String("tool", ...), attribute.String("status", ...)
	ToolCalls metric.Int64Counter

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("model", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ProviderTokens counts tokens exchanged with providers. Use with
	// attributes: attribute.String("provider", ...), attribute.String("model", ...),
	// attribute.String("direction", "in"|"out").
	ProviderTokens metric.Int64Counter

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("model", ...)
	ProviderErrors metric.Int64Counter

	// ActiveThreads tracks the number of live conversation threads.
	ActiveThreads metric.Int64UpDownCounter

	// HTTPRequestDuration tracks operational HTTP request processing time.
	// Use with attributes: attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). Model
// calls with deep thinking modes legitimately run for minutes, so the upper
// buckets reach the per-call timeout ceiling.
var latencyBuckets = []float64{
	0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.ToolDuration, err = m.Float64Histogram("conclave.tool.duration",
		metric.WithDescription("End-to-end tool execution latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ProviderDuration, err = m.Float64Histogram("conclave.provider.duration",
		metric.WithDescription("Upstream model call latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ToolCalls, err = m.Int64Counter("conclave.tool.calls",
		metric.WithDescription("Total tool invocations by tool name and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("conclave.provider.requests",
		metric.WithDescription("Total provider API requests by provider, model, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderTokens, err = m.Int64Counter("conclave.provider.tokens",
		metric.WithDescription("Tokens exchanged with providers by direction."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("conclave.provider.errors",
		metric.WithDescription("Total provider errors by provider and model."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveThreads, err = m.Int64UpDownCounter("conclave.conversation.threads",
		metric.WithDescription("Number of live conversation threads."),
	); err != nil {
		return nil, err
	}

	// Operational HTTP histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("conclave.http.request.duration",
		metric.WithDescription("Operational HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordToolCall records a tool call counter increment together with its
// latency.
func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string, seconds float64) {
	m.ToolCalls.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("tool", tool),
			attribute.String("status", status),
		),
	)
	m.ToolDuration.Record(ctx, seconds,
		metric.WithAttributes(attribute.String("tool", tool)),
	)
}

// RecordProviderRequest records a provider request counter increment together
// with its latency.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, model, status string, seconds float64) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("model", model),
			attribute.String("status", status),
		),
	)
	m.ProviderDuration.Record(ctx, seconds,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("model", model),
		),
	)
}

// RecordProviderTokens records prompt and completion token usage for a call.
func (m *Metrics) RecordProviderTokens(ctx context.Context, provider, model string, in, out int) {
	if in > 0 {
		m.ProviderTokens.Add(ctx, int64(in),
			metric.WithAttributes(
				attribute.String("provider", provider),
				attribute.String("model", model),
				attribute.String("direction", "in"),
			),
		)
	}
	if out > 0 {
		m.ProviderTokens.Add(ctx, int64(out),
			metric.WithAttributes(
				attribute.String("provider", provider),
				attribute.String("model", model),
				attribute.String("direction", "out"),
			),
		)
	}
}

// RecordProviderError records a provider error counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, model string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("model", model),
		),
	)
}
