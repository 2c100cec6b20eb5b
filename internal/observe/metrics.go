// Package observe provides OpenTelemetry metrics and tracing for modelchat,
// plus HTTP middleware tying them to request logs.
//
// Metrics are exported through a Prometheus bridge set up by [InitProvider].
// Tests should build a [Metrics] with [NewMetrics] over their own
// [metric.MeterProvider].
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope for all modelchat metrics.
const meterName = "github.com/ashureev/modelchat"

// Metrics holds the metric instruments of the service.
type Metrics struct {
	// ProviderDuration tracks latency of outbound backend calls. Attributes:
	// provider, model, status.
	ProviderDuration metric.Float64Histogram

	// ProviderRequests counts outbound backend calls. Attributes: provider,
	// model, status.
	ProviderRequests metric.Int64Counter

	// Fallbacks counts fallback chain activations. Attributes: requested,
	// outcome.
	Fallbacks metric.Int64Counter

	// CannedReplies counts locally generated replies. Attribute: reason.
	CannedReplies metric.Int64Counter

	// ImageUploads counts upload attempts. Attribute: status.
	ImageUploads metric.Int64Counter

	// ActiveSockets tracks open websocket chat connections.
	ActiveSockets metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request processing time. Attributes:
	// method, route, status.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are histogram boundaries in seconds sized for LLM calls.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 60, 120,
}

// NewMetrics creates all instruments from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.ProviderDuration, err = m.Float64Histogram("modelchat.provider.duration",
		metric.WithDescription("Latency of calls to model, image and upload backends."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("modelchat.provider.requests",
		metric.WithDescription("Backend calls by provider, model and status."),
	); err != nil {
		return nil, err
	}
	if met.Fallbacks, err = m.Int64Counter("modelchat.router.fallbacks",
		metric.WithDescription("Fallback chain activations after a rate limit."),
	); err != nil {
		return nil, err
	}
	if met.CannedReplies, err = m.Int64Counter("modelchat.router.canned_replies",
		metric.WithDescription("Replies produced locally without a backend."),
	); err != nil {
		return nil, err
	}
	if met.ImageUploads, err = m.Int64Counter("modelchat.image.uploads",
		metric.WithDescription("Image host uploads by status."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSockets, err = m.Int64UpDownCounter("modelchat.ws.active",
		metric.WithDescription("Open websocket chat connections."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("modelchat.http.request.duration",
		metric.WithDescription("HTTP request latency by method and route."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns a package-level [Metrics] built from the global
// meter provider on first use.
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

// RecordProviderCall records one backend call.
func (m *Metrics) RecordProviderCall(ctx context.Context, provider, model, status string, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("model", model),
		attribute.String("status", status),
	)
	m.ProviderRequests.Add(ctx, 1, attrs)
	m.ProviderDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordFallback records a fallback chain run.
func (m *Metrics) RecordFallback(ctx context.Context, requested, outcome string) {
	m.Fallbacks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("requested", requested),
		attribute.String("outcome", outcome),
	))
}

// RecordCanned records a locally generated reply.
func (m *Metrics) RecordCanned(ctx context.Context, reason string) {
	m.CannedReplies.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordUpload records an image upload attempt.
func (m *Metrics) RecordUpload(ctx context.Context, status string) {
	m.ImageUploads.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}
