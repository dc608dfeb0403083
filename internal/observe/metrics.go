// Package observe provides OpenTelemetry metrics, tracing, and structured
// logging for btcamcp tool invocations.
//
// Tests should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution; the server uses [DefaultMetrics].
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all btcamcp metrics.
const meterName = "github.com/deixis/btcamcp"

// Tool call statuses.
const (
	StatusOK      = "ok"      // exit 0
	StatusError   = "error"   // non-zero exit or spawn failure
	StatusInvalid = "invalid" // rejected before spawning
	StatusTimeout = "timeout" // raced wait elapsed
)

// Metrics holds the metric instruments for tool invocations.
type Metrics struct {
	// ToolCalls counts tool invocations. Use with attributes:
	//   attribute.String("tool", ...), attribute.String("status", ...)
	ToolCalls metric.Int64Counter

	// ToolDuration tracks how long btca ran for each tool.
	ToolDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). Questions
// over large resources routinely take tens of seconds.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120,
}

// NewMetrics creates a [Metrics] using the given [metric.MeterProvider].
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.ToolCalls, err = m.Int64Counter("btcamcp.tool.calls",
		metric.WithDescription("Total tool invocations by tool name and status."),
	); err != nil {
		return nil, err
	}
	if met.ToolDuration, err = m.Float64Histogram("btcamcp.tool.duration",
		metric.WithDescription("Time spent waiting on btca per tool invocation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, created on
// first call from [otel.GetMeterProvider]. Call it after [InitProvider] so
// the instruments bind to the exporting provider.
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

// RecordToolCall records one invocation of tool with its outcome. A nil
// receiver is a no-op so callers need not guard optional metrics.
func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("status", status),
	)
	m.ToolCalls.Add(ctx, 1, attrs)
	if status != StatusInvalid {
		m.ToolDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("tool", tool)))
	}
}
