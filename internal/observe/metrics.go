// Package observe provides OpenTelemetry metrics for the studio.
//
// Instruments are created through the OpenTelemetry Metrics API. A
// Prometheus exporter bridge is available via [InitProvider] so a running
// studio can be scraped on /metrics. Tests should use [NewMetrics] with their
// own [metric.MeterProvider].
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all studio metrics.
const meterName = "github.com/miovo/miovo"

// Metrics holds all metric instruments. The underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// SynthesisDuration tracks backend synthesis latency. Attributes:
	//   attribute.String("engine", ...), attribute.String("status", ...)
	SynthesisDuration metric.Float64Histogram

	// SynthesisRequests counts synthesis calls by engine and status
	// ("ok", "error", "canceled").
	SynthesisRequests metric.Int64Counter

	// SynthesisErrors counts failed synthesis calls by engine and error code.
	SynthesisErrors metric.Int64Counter

	// PlaybackSessions counts finished play-all sessions by outcome
	// ("completed", "stopped", "failed", "empty").
	PlaybackSessions metric.Int64Counter

	// ActivePlayback is 1 while a play-all session exists.
	ActivePlayback metric.Int64UpDownCounter

	// CacheLookups counts audio cache reads by result ("hit", "miss").
	CacheLookups metric.Int64Counter

	// ExportedBytes counts WAV bytes written by exports.
	ExportedBytes metric.Int64Counter
}

// latencyBuckets are histogram boundaries in seconds. Speech synthesis of
// one line usually lands between a few hundred milliseconds and seconds.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60,
}

// NewMetrics creates every instrument from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.SynthesisDuration, err = m.Float64Histogram("miovo.synthesis.duration",
		metric.WithDescription("Latency of one synthesis request."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.SynthesisRequests, err = m.Int64Counter("miovo.synthesis.requests",
		metric.WithDescription("Total synthesis requests by engine and status."),
	); err != nil {
		return nil, err
	}
	if met.SynthesisErrors, err = m.Int64Counter("miovo.synthesis.errors",
		metric.WithDescription("Total synthesis failures by engine and code."),
	); err != nil {
		return nil, err
	}
	if met.PlaybackSessions, err = m.Int64Counter("miovo.playback.sessions",
		metric.WithDescription("Finished play-all sessions by outcome."),
	); err != nil {
		return nil, err
	}
	if met.ActivePlayback, err = m.Int64UpDownCounter("miovo.playback.active",
		metric.WithDescription("Number of live play-all sessions."),
	); err != nil {
		return nil, err
	}
	if met.CacheLookups, err = m.Int64Counter("miovo.cache.lookups",
		metric.WithDescription("Audio cache reads by result."),
	); err != nil {
		return nil, err
	}
	if met.ExportedBytes, err = m.Int64Counter("miovo.export.bytes",
		metric.WithDescription("WAV bytes written by exports."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level instance built from the global
// meter provider. Until [InitProvider] runs, the global provider is a no-op.
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

// RecordSynthesis records one synthesis call.
func (m *Metrics) RecordSynthesis(ctx context.Context, engine, status string, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("engine", engine),
		attribute.String("status", status),
	)
	m.SynthesisDuration.Record(ctx, d.Seconds(), attrs)
	m.SynthesisRequests.Add(ctx, 1, attrs)
}

// RecordSynthesisError records a failed synthesis call by error code.
func (m *Metrics) RecordSynthesisError(ctx context.Context, engine, code string) {
	m.SynthesisErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("engine", engine),
			attribute.String("code", code),
		),
	)
}

// SessionStarted marks a play-all session as live.
func (m *Metrics) SessionStarted(ctx context.Context) {
	m.ActivePlayback.Add(ctx, 1)
}

// SessionEnded records how a play-all session finished.
func (m *Metrics) SessionEnded(ctx context.Context, outcome string) {
	m.ActivePlayback.Add(ctx, -1)
	m.PlaybackSessions.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
}

// RecordCacheLookup records an audio cache read.
func (m *Metrics) RecordCacheLookup(ctx context.Context, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.Add(ctx, 1,
		metric.WithAttributes(attribute.String("result", result)),
	)
}

// RecordExport records the size of a written export.
func (m *Metrics) RecordExport(ctx context.Context, bytes int64) {
	m.ExportedBytes.Add(ctx, bytes)
}
