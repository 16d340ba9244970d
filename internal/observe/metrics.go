// Package observe provides pipeline metrics and the HTTP endpoint that exposes them.
//
// Instruments are recorded through the OpenTelemetry metrics API and bridged
// to Prometheus by InitProvider. Components take a *Metrics; a nil *Metrics
// records nothing, which keeps tests free of telemetry setup.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/rbright/livesub"

// Metrics holds every instrument the pipeline records.
type Metrics struct {
	// SegmentsFlushed counts closed audio segments by attribute "reason".
	SegmentsFlushed metric.Int64Counter
	// SegmentDuration records the audio length of each closed segment.
	SegmentDuration metric.Float64Histogram

	// TranscribeDuration records engine latency by attribute "engine".
	TranscribeDuration metric.Float64Histogram
	// TranscribeErrors counts failed engine calls by "engine" and "kind".
	TranscribeErrors metric.Int64Counter
	// EmptyFragments counts segments that produced no text.
	EmptyFragments metric.Int64Counter

	// LinesEmitted counts finished subtitle lines by "reason".
	LinesEmitted metric.Int64Counter
	// SinkErrors counts failed sink deliveries by "sink".
	SinkErrors metric.Int64Counter

	TranslateDuration metric.Float64Histogram
	TranslateErrors   metric.Int64Counter

	// QueueDepth is the frame backlog observed by the segmentation worker.
	QueueDepth metric.Int64Gauge
}

var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30,
}

var segmentBuckets = []float64{
	0.5, 1, 2, 2.5, 3, 4, 5, 6, 8, 10,
}

// NewMetrics creates all instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.SegmentsFlushed, err = m.Int64Counter("livesub.segments.flushed",
		metric.WithDescription("Audio segments closed by the segmentation buffer, by reason."),
	); err != nil {
		return nil, err
	}
	if met.SegmentDuration, err = m.Float64Histogram("livesub.segment.duration",
		metric.WithDescription("Audio length of closed segments."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(segmentBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranscribeDuration, err = m.Float64Histogram("livesub.transcribe.duration",
		metric.WithDescription("Latency of speech engine calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranscribeErrors, err = m.Int64Counter("livesub.transcribe.errors",
		metric.WithDescription("Speech engine failures by engine and kind."),
	); err != nil {
		return nil, err
	}
	if met.EmptyFragments, err = m.Int64Counter("livesub.transcribe.empty",
		metric.WithDescription("Segments that produced no text."),
	); err != nil {
		return nil, err
	}
	if met.LinesEmitted, err = m.Int64Counter("livesub.lines.emitted",
		metric.WithDescription("Finished subtitle lines by reason."),
	); err != nil {
		return nil, err
	}
	if met.SinkErrors, err = m.Int64Counter("livesub.sink.errors",
		metric.WithDescription("Failed line deliveries by sink."),
	); err != nil {
		return nil, err
	}
	if met.TranslateDuration, err = m.Float64Histogram("livesub.translate.duration",
		metric.WithDescription("Latency of line translation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranslateErrors, err = m.Int64Counter("livesub.translate.errors",
		metric.WithDescription("Failed line translations."),
	); err != nil {
		return nil, err
	}
	if met.QueueDepth, err = m.Int64Gauge("livesub.frames.queued",
		metric.WithDescription("Frames waiting for the segmentation worker."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

func (m *Metrics) RecordSegment(ctx context.Context, reason string, d time.Duration) {
	if m == nil {
		return
	}
	m.SegmentsFlushed.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	m.SegmentDuration.Record(ctx, d.Seconds())
}

// RecordTranscription records one engine call. kind is empty on success.
func (m *Metrics) RecordTranscription(ctx context.Context, engine string, d time.Duration, kind string) {
	if m == nil {
		return
	}
	engineAttr := attribute.String("engine", engine)
	m.TranscribeDuration.Record(ctx, d.Seconds(), metric.WithAttributes(engineAttr))
	if kind != "" {
		m.TranscribeErrors.Add(ctx, 1, metric.WithAttributes(engineAttr, attribute.String("kind", kind)))
	}
}

func (m *Metrics) RecordEmptyFragment(ctx context.Context) {
	if m == nil {
		return
	}
	m.EmptyFragments.Add(ctx, 1)
}

func (m *Metrics) RecordLine(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.LinesEmitted.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *Metrics) RecordSinkError(ctx context.Context, sink string) {
	if m == nil {
		return
	}
	m.SinkErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("sink", sink)))
}

func (m *Metrics) RecordTranslation(ctx context.Context, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.TranslateDuration.Record(ctx, d.Seconds())
	if err != nil {
		m.TranslateErrors.Add(ctx, 1)
	}
}

func (m *Metrics) RecordQueueDepth(ctx context.Context, n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Record(ctx, int64(n))
}
