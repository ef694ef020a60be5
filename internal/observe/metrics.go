// Package observe provides application-wide observability primitives for
// Verbatim: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Verbatim metrics.
const meterName = "github.com/verbatimhq/verbatim"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// FinalizeDuration tracks end-to-end segment finalization latency,
	// from trigger to persisted message.
	FinalizeDuration metric.Float64Histogram

	// UploadDuration tracks audio blob upload latency.
	UploadDuration metric.Float64Histogram

	// PersistDuration tracks conversation store write latency.
	PersistDuration metric.Float64Histogram

	// --- Counters ---

	// FragmentsProcessed counts transcript fragment updates. Use with attribute:
	//   attribute.String("participant", ...)
	FragmentsProcessed metric.Int64Counter

	// SegmentsFinalized counts finalized segments. Use with attributes:
	//   attribute.String("participant", ...), attribute.String("trigger", ...)
	SegmentsFinalized metric.Int64Counter

	// ExtractionMisses counts finalizations where no audio could be
	// recovered from the rolling buffer.
	ExtractionMisses metric.Int64Counter

	// PersistDuplicates counts messages dropped by content deduplication.
	PersistDuplicates metric.Int64Counter

	// BufferResets counts rolling-buffer ceiling resets.
	BufferResets metric.Int64Counter

	// --- Error counters ---

	// UploadFailures counts failed blob uploads. Use with attribute:
	//   attribute.String("participant", ...)
	UploadFailures metric.Int64Counter

	// PersistFailures counts failed conversation store writes.
	PersistFailures metric.Int64Counter

	// --- Gauges ---

	// ActiveInterviews tracks the number of live interview sessions.
	ActiveInterviews metric.Int64UpDownCounter

	// OpenSegments tracks the number of unfinalized segment mappings
	// across all sessions.
	OpenSegments metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for finalization-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.FinalizeDuration, err = m.Float64Histogram("verbatim.finalize.duration",
		metric.WithDescription("Latency of segment finalization from trigger to persisted message."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.UploadDuration, err = m.Float64Histogram("verbatim.upload.duration",
		metric.WithDescription("Latency of audio blob uploads."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PersistDuration, err = m.Float64Histogram("verbatim.persist.duration",
		metric.WithDescription("Latency of conversation store writes."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.FragmentsProcessed, err = m.Int64Counter("verbatim.fragments.processed",
		metric.WithDescription("Total transcript fragment updates by participant."),
	); err != nil {
		return nil, err
	}
	if met.SegmentsFinalized, err = m.Int64Counter("verbatim.segments.finalized",
		metric.WithDescription("Total finalized segments by participant and trigger."),
	); err != nil {
		return nil, err
	}
	if met.ExtractionMisses, err = m.Int64Counter("verbatim.extraction.misses",
		metric.WithDescription("Total finalizations with no recoverable audio."),
	); err != nil {
		return nil, err
	}
	if met.PersistDuplicates, err = m.Int64Counter("verbatim.persist.duplicates",
		metric.WithDescription("Total messages dropped by content deduplication."),
	); err != nil {
		return nil, err
	}
	if met.BufferResets, err = m.Int64Counter("verbatim.buffer.resets",
		metric.WithDescription("Total rolling-buffer ceiling resets."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.UploadFailures, err = m.Int64Counter("verbatim.upload.failures",
		metric.WithDescription("Total failed blob uploads by participant."),
	); err != nil {
		return nil, err
	}
	if met.PersistFailures, err = m.Int64Counter("verbatim.persist.failures",
		metric.WithDescription("Total failed conversation store writes."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveInterviews, err = m.Int64UpDownCounter("verbatim.active_interviews",
		metric.WithDescription("Number of live interview sessions."),
	); err != nil {
		return nil, err
	}
	if met.OpenSegments, err = m.Int64UpDownCounter("verbatim.open_segments",
		metric.WithDescription("Number of unfinalized segment mappings across all sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("verbatim.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
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

// RecordFinalized is a convenience method that increments the finalized
// segment counter with the standard attribute set.
func (m *Metrics) RecordFinalized(ctx context.Context, participant, trigger string) {
	m.SegmentsFinalized.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("participant", participant),
			attribute.String("trigger", trigger),
		),
	)
}

// RecordFragment increments the fragment counter for the given participant.
func (m *Metrics) RecordFragment(ctx context.Context, participant string) {
	m.FragmentsProcessed.Add(ctx, 1,
		metric.WithAttributes(attribute.String("participant", participant)),
	)
}
