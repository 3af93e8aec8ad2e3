// Package app wires the VoiceMirror subsystems into a running session.
//
// A Session owns three concerns bound by two boundaries: a capture source
// feeding the analysis goroutine through a bounded drop-oldest channel, and
// the analysis goroutine feeding the render goroutine through the single-slot
// [Bridge]. The render side runs at its own refresh cadence and can never
// slow analysis down; analysis can never block capture for longer than one
// block either.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/voicemirror/voicemirror/internal/analysis"
	"github.com/voicemirror/voicemirror/internal/config"
	"github.com/voicemirror/voicemirror/internal/observe"
	"github.com/voicemirror/voicemirror/pkg/audio"
	"github.com/voicemirror/voicemirror/pkg/formant"
	"github.com/voicemirror/voicemirror/pkg/render"
)

// errCaptureEnded signals that the capture source closed its frame channel
// without a fault. Run treats it as a clean session end.
var errCaptureEnded = errors.New("app: capture source closed")

// Session runs one biofeedback loop: capture, analysis, render. Create with
// [NewSession], drive with [Session.Run], and adjust mid-run through
// [Session.SwapProfile] and [Session.SwapSource].
type Session struct {
	cfg      *config.Config
	src      audio.Source
	sink     render.Sink
	pipeline *analysis.Pipeline
	metrics  *observe.Metrics
	bridge   Bridge

	profile atomic.Pointer[formant.Profile]
	swapCh  chan audio.Source

	// Analysis-goroutine state.
	seq          uint64
	lastDropped  uint64
	lastRejected uint64
}

// NewSession builds a Session around an already-constructed source and sink.
// The capture source must not have been started. A nil metrics falls back to
// [observe.DefaultMetrics].
func NewSession(cfg *config.Config, src audio.Source, sink render.Sink, profile *formant.Profile, metrics *observe.Metrics) (*Session, error) {
	if profile == nil {
		return nil, errors.New("app: a target profile is required")
	}
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}

	pipeline, err := analysis.NewPipeline(analysis.Config{
		SampleRate:     cfg.Audio.SampleRate,
		WindowSize:     cfg.WindowSamples(),
		Hop:            cfg.HopSamples(),
		PreEmphasis:    cfg.Analysis.PreEmphasis,
		Taper:          analysis.Taper(cfg.Analysis.Taper),
		Order:          cfg.Analysis.Order,
		Slots:          cfg.Analysis.Formants,
		SilenceRMS:     cfg.Analysis.SilenceRMS,
		MaxBandwidthHz: cfg.Analysis.MaxBandwidthHz,
		MinFrequencyHz: cfg.Analysis.MinFrequencyHz,
		MaxFrequencyHz: cfg.Analysis.MaxFrequencyHz,
		Alpha:          cfg.Smoothing.Alpha,
		MaxJumpHz:      cfg.Smoothing.MaxJumpHz,
		ResetAfter:     cfg.Smoothing.ResetAfter,
		HistoryDepth:   cfg.Smoothing.HistoryDepth,
	})
	if err != nil {
		return nil, err
	}

	s := &Session{
		cfg:      cfg,
		src:      src,
		sink:     sink,
		pipeline: pipeline,
		metrics:  metrics,
		swapCh:   make(chan audio.Source),
	}
	s.profile.Store(profile)
	return s, nil
}

// Profile returns the current target profile.
func (s *Session) Profile() *formant.Profile {
	return s.profile.Load()
}

// SwapProfile atomically replaces the target profile. Frames published after
// the swap carry the new profile and deltas computed against it; analysis
// state is untouched.
func (s *Session) SwapProfile(ctx context.Context, p *formant.Profile) error {
	if p == nil {
		return errors.New("app: a target profile is required")
	}
	s.profile.Store(p)
	s.metrics.RecordProfileSwap(ctx, p.Name())
	slog.Info("target profile swapped", "profile", p.Name())
	return nil
}

// SwapSource hands a replacement capture source to the analysis goroutine.
// The new source must not have been started; the old one is closed once the
// swap takes effect and the analysis state is reset so no window mixes
// samples from both devices. Blocks until the analysis goroutine picks the
// source up or ctx is cancelled.
func (s *Session) SwapSource(ctx context.Context, src audio.Source) error {
	if src == nil {
		return errors.New("app: a capture source is required")
	}
	select {
	case s.swapCh <- src:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Latest returns the most recently published frame, or nil before the first
// analysis window completes.
func (s *Session) Latest() *render.Frame {
	return s.bridge.Latest()
}

// Run starts the capture source and blocks until ctx is cancelled, the
// source fails, or the source is exhausted. The source and sink are closed
// before Run returns. A cancelled context and an exhausted source are both
// clean endings and return nil.
func (s *Session) Run(ctx context.Context) error {
	if err := s.src.Start(ctx); err != nil {
		return fmt.Errorf("app: start capture: %w", err)
	}

	slog.Info("session running",
		"source", s.cfg.Audio.Source,
		"sample_rate", s.cfg.Audio.SampleRate,
		"window", s.cfg.WindowSamples(),
		"hop", s.cfg.HopSamples(),
		"order", s.pipeline.Order(),
		"profile", s.Profile().Name(),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.analyze(ctx) })
	g.Go(func() error { return s.renderLoop(ctx) })
	err := g.Wait()

	if cerr := s.src.Close(); cerr != nil {
		slog.Warn("capture close error", "err", cerr)
	}
	if cerr := s.sink.Close(); cerr != nil {
		slog.Warn("sink close error", "err", cerr)
	}

	if errors.Is(err, errCaptureEnded) || errors.Is(err, context.Canceled) {
		slog.Info("session ended",
			"windows", s.pipeline.Windows(),
			"silent", s.pipeline.SilentWindows(),
			"dropped", s.lastDropped,
		)
		return nil
	}
	return err
}

// analyze drains capture frames into the pipeline and publishes one render
// frame per completed window.
func (s *Session) analyze(ctx context.Context) error {
	frames := s.src.Frames()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case next := <-s.swapCh:
			if err := s.swapTo(ctx, next); err != nil {
				return err
			}
			frames = s.src.Frames()
		case f, ok := <-frames:
			if !ok {
				if err := s.src.Err(); err != nil {
					return fmt.Errorf("app: capture failed: %w", err)
				}
				return errCaptureEnded
			}
			s.handleFrame(ctx, f)
		}
	}
}

// swapTo starts the replacement source, retires the old one, and resets the
// analysis state. On start failure the old source keeps running.
func (s *Session) swapTo(ctx context.Context, next audio.Source) error {
	if err := next.Start(ctx); err != nil {
		slog.Error("replacement source failed to start, keeping current", "err", err)
		return nil
	}
	if err := s.src.Close(); err != nil {
		slog.Warn("old source close error", "err", err)
	}
	s.src = next
	s.lastDropped = 0
	s.pipeline.Reset()
	slog.Info("capture source swapped")
	return nil
}

// handleFrame feeds one capture block through the pipeline and updates the
// session counters.
func (s *Session) handleFrame(ctx context.Context, f audio.AudioFrame) {
	s.metrics.CaptureBlocks.Add(ctx, 1)
	if d := s.src.Dropped(); d > s.lastDropped {
		s.metrics.CaptureDropped.Add(ctx, int64(d-s.lastDropped))
		s.lastDropped = d
	}

	start := time.Now()
	s.pipeline.Process(f, func(res analysis.Result) {
		s.publish(ctx, res)
		s.metrics.RecordWindow(ctx, res.Voiced, time.Since(start).Seconds())
		start = time.Now()
	})

	if rj := s.pipeline.RejectedJumps(); rj > s.lastRejected {
		s.metrics.RejectedJumps.Add(ctx, int64(rj-s.lastRejected))
		s.lastRejected = rj
	}
}

// publish copies the pipeline's borrowed buffers into a self-contained frame
// and hands it to the bridge.
func (s *Session) publish(ctx context.Context, res analysis.Result) {
	prof := s.Profile()
	s.seq++
	f := &render.Frame{
		Seq:           s.seq,
		Time:          res.Center,
		Formants:      res.Formants.Clone(),
		Averages:      res.Averages.Clone(),
		Profile:       prof,
		Voiced:        res.Voiced,
		DroppedFrames: s.lastDropped,
	}
	f.Deltas = formant.Deltas(&f.Formants, prof, nil)
	if s.cfg.Render.Waveform {
		wf := make([]float32, len(res.Window))
		for i, v := range res.Window {
			wf[i] = float32(v)
		}
		f.Waveform = wf
	}

	if res.Voiced {
		if absent := f.Formants.Len() - f.Formants.PresentCount(); absent > 0 {
			s.metrics.AbsentSlots.Add(ctx, int64(absent))
		}
	}

	s.bridge.Publish(f)
}

// renderLoop redraws the latest frame at the configured refresh rate,
// skipping ticks where no new frame arrived.
func (s *Session) renderLoop(ctx context.Context) error {
	interval := time.Duration(float64(time.Second) / s.cfg.Render.RefreshHz)
	tick := time.NewTicker(interval)
	defer tick.Stop()

	var lastSeq uint64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
			f := s.bridge.Latest()
			if f == nil || f.Seq == lastSeq {
				continue
			}
			lastSeq = f.Seq
			if err := s.sink.Render(f); err != nil {
				slog.Warn("render failed", "seq", f.Seq, "err", err)
				continue
			}
			s.metrics.FramesRendered.Add(ctx, 1)
		}
	}
}
