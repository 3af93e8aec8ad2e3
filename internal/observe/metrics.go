// Package observe provides observability primitives for VoiceMirror:
// OpenTelemetry metrics and the provider setup that bridges them to a
// Prometheus /metrics endpoint.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
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

// meterName is the instrumentation scope name used for all VoiceMirror metrics.
const meterName = "github.com/voicemirror/voicemirror"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// AnalysisDuration tracks the time spent analysing one window, from
	// taper application through smoothing.
	AnalysisDuration metric.Float64Histogram

	// CaptureBlocks counts audio blocks delivered by the capture source.
	CaptureBlocks metric.Int64Counter

	// CaptureDropped counts audio blocks evicted because analysis fell
	// behind capture.
	CaptureDropped metric.Int64Counter

	// Windows counts analysis windows. Use with attribute:
	//   attribute.Bool("voiced", ...)
	Windows metric.Int64Counter

	// AbsentSlots counts formant slots reported absent in voiced windows.
	AbsentSlots metric.Int64Counter

	// RejectedJumps counts raw slot values discarded by the smoother's
	// max-jump gate.
	RejectedJumps metric.Int64Counter

	// ProfileSwaps counts target profile changes during a session. Use with
	// attribute: attribute.String("profile", ...)
	ProfileSwaps metric.Int64Counter

	// FramesRendered counts frames delivered to the render sink.
	FramesRendered metric.Int64Counter
}

// analysisBuckets defines histogram bucket boundaries (in seconds) optimised
// for per-window analysis latencies, which sit well below audio block time.
var analysisBuckets = []float64{
	0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.AnalysisDuration, err = m.Float64Histogram("voicemirror.analysis.duration",
		metric.WithDescription("Time spent analysing one window."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(analysisBuckets...),
	); err != nil {
		return nil, err
	}
	if met.CaptureBlocks, err = m.Int64Counter("voicemirror.capture.blocks",
		metric.WithDescription("Audio blocks delivered by the capture source."),
	); err != nil {
		return nil, err
	}
	if met.CaptureDropped, err = m.Int64Counter("voicemirror.capture.dropped",
		metric.WithDescription("Audio blocks evicted because analysis fell behind."),
	); err != nil {
		return nil, err
	}
	if met.Windows, err = m.Int64Counter("voicemirror.analysis.windows",
		metric.WithDescription("Analysis windows by voicing state."),
	); err != nil {
		return nil, err
	}
	if met.AbsentSlots, err = m.Int64Counter("voicemirror.formant.absent_slots",
		metric.WithDescription("Formant slots reported absent in voiced windows."),
	); err != nil {
		return nil, err
	}
	if met.RejectedJumps, err = m.Int64Counter("voicemirror.smoothing.rejected_jumps",
		metric.WithDescription("Raw slot values discarded by the max-jump gate."),
	); err != nil {
		return nil, err
	}
	if met.ProfileSwaps, err = m.Int64Counter("voicemirror.profile.swaps",
		metric.WithDescription("Target profile changes by profile name."),
	); err != nil {
		return nil, err
	}
	if met.FramesRendered, err = m.Int64Counter("voicemirror.render.frames",
		metric.WithDescription("Frames delivered to the render sink."),
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

// RecordWindow records one analysed window with its voicing state and
// analysis latency in seconds.
func (m *Metrics) RecordWindow(ctx context.Context, voiced bool, seconds float64) {
	m.Windows.Add(ctx, 1, metric.WithAttributes(attribute.Bool("voiced", voiced)))
	m.AnalysisDuration.Record(ctx, seconds)
}

// RecordProfileSwap records a target profile change.
func (m *Metrics) RecordProfileSwap(ctx context.Context, profile string) {
	m.ProfileSwaps.Add(ctx, 1, metric.WithAttributes(attribute.String("profile", profile)))
}
