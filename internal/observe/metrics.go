// Package observe provides observability primitives for voxhook:
// OpenTelemetry metrics with a Prometheus exporter bridge, tracing helpers,
// and trace-aware structured logging.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exposed
// via the standard /metrics endpoint after [InitProvider]. A package-level
// default [Metrics] instance ([DefaultMetrics]) is provided for
// convenience; tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all voxhook metrics.
const meterName = "github.com/voxhook/voxhook"

// Metrics holds all OpenTelemetry metric instruments for the daemon.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// ASRDuration tracks per-utterance transcription latency.
	ASRDuration metric.Float64Histogram

	// SegmentDuration tracks the audio length of emitted utterance segments.
	SegmentDuration metric.Float64Histogram

	// --- Pipeline counters ---

	// FramesProcessed counts audio frames drained from the capture queue.
	FramesProcessed metric.Int64Counter

	// FramesDropped counts frames discarded because the capture queue was
	// full or the pipeline was paused.
	FramesDropped metric.Int64Counter

	// SegmentsEmitted counts utterance segments produced by the segmenter.
	SegmentsEmitted metric.Int64Counter

	// SegmentsSkipped counts segments rejected before transcription. Use
	// with attribute: attribute.String("reason", ...)
	SegmentsSkipped metric.Int64Counter

	// TriggerMatches counts accepted trigger matches. Use with attributes:
	//   attribute.String("phrase", ...), attribute.String("source", ...)
	TriggerMatches metric.Int64Counter

	// MatchRejected counts match attempts that produced no dispatch. Use
	// with attribute: attribute.String("reason", ...)
	MatchRejected metric.Int64Counter

	// ControlMessages counts inbound control-plane datagrams. Use with
	// attributes:
	//   attribute.String("verb", ...), attribute.String("status", ...)
	ControlMessages metric.Int64Counter

	// DispatchErrors counts trigger commands that failed to spawn.
	DispatchErrors metric.Int64Counter

	// --- Gauges ---

	// ListeningState is 1 while the gate is open and 0 while paused.
	ListeningState metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) suited to
// local ASR inference on utterance-sized audio.
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
	if met.ASRDuration, err = m.Float64Histogram("voxhook.asr.duration",
		metric.WithDescription("Latency of utterance transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SegmentDuration, err = m.Float64Histogram("voxhook.segment.duration",
		metric.WithDescription("Audio length of emitted utterance segments."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.FramesProcessed, err = m.Int64Counter("voxhook.frames.processed",
		metric.WithDescription("Total audio frames drained from the capture queue."),
	); err != nil {
		return nil, err
	}
	if met.FramesDropped, err = m.Int64Counter("voxhook.frames.dropped",
		metric.WithDescription("Total audio frames dropped before segmentation."),
	); err != nil {
		return nil, err
	}
	if met.SegmentsEmitted, err = m.Int64Counter("voxhook.segments.emitted",
		metric.WithDescription("Total utterance segments emitted by the segmenter."),
	); err != nil {
		return nil, err
	}
	if met.SegmentsSkipped, err = m.Int64Counter("voxhook.segments.skipped",
		metric.WithDescription("Total segments rejected before transcription, by reason."),
	); err != nil {
		return nil, err
	}
	if met.TriggerMatches, err = m.Int64Counter("voxhook.trigger.matches",
		metric.WithDescription("Total accepted trigger matches by phrase and source."),
	); err != nil {
		return nil, err
	}
	if met.MatchRejected, err = m.Int64Counter("voxhook.match.rejected",
		metric.WithDescription("Total match attempts without dispatch, by reason."),
	); err != nil {
		return nil, err
	}
	if met.ControlMessages, err = m.Int64Counter("voxhook.control.messages",
		metric.WithDescription("Total inbound control datagrams by verb and status."),
	); err != nil {
		return nil, err
	}
	if met.DispatchErrors, err = m.Int64Counter("voxhook.dispatch.errors",
		metric.WithDescription("Total trigger commands that failed to spawn."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ListeningState, err = m.Int64UpDownCounter("voxhook.listening",
		metric.WithDescription("1 while the listening gate is open, 0 while paused."),
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

// DefaultMetrics returns the package-level [Metrics] instance, creating it
// on first call using [otel.GetMeterProvider]. Subsequent calls return the
// same pointer. Panics if instrument creation fails (should not happen with
// the global provider).
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

// RecordSegmentSkipped increments the skipped-segment counter with the
// standard reason attribute.
func (m *Metrics) RecordSegmentSkipped(ctx context.Context, reason string) {
	m.SegmentsSkipped.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}

// RecordTriggerMatch increments the trigger-match counter for a phrase.
// source distinguishes audio-driven matches from remote ones.
func (m *Metrics) RecordTriggerMatch(ctx context.Context, phrase, source string) {
	m.TriggerMatches.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("phrase", phrase),
			attribute.String("source", source),
		),
	)
}

// RecordMatchRejected increments the rejected-match counter with the
// standard reason attribute.
func (m *Metrics) RecordMatchRejected(ctx context.Context, reason string) {
	m.MatchRejected.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}

// RecordControlMessage increments the control-message counter with the
// standard verb and status attributes.
func (m *Metrics) RecordControlMessage(ctx context.Context, verb, status string) {
	m.ControlMessages.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("verb", verb),
			attribute.String("status", status),
		),
	)
}

// SetListening records a listening-gate transition: +1 when the gate
// opens, -1 when it closes.
func (m *Metrics) SetListening(ctx context.Context, listening bool) {
	if listening {
		m.ListeningState.Add(ctx, 1)
	} else {
		m.ListeningState.Add(ctx, -1)
	}
}
