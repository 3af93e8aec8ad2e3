package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/voicemirror/voicemirror/internal/config"
	"github.com/voicemirror/voicemirror/pkg/audio/synth"
	"github.com/voicemirror/voicemirror/pkg/formant"
	"github.com/voicemirror/voicemirror/pkg/render"
)

// captureSink records every rendered frame for later inspection.
type captureSink struct {
	mu     sync.Mutex
	frames []*render.Frame
	closed bool
}

func (c *captureSink) Render(f *render.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, f)
	return nil
}

func (c *captureSink) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *captureSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func (c *captureSink) snapshot() []*render.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*render.Frame(nil), c.frames...)
}

func (c *captureSink) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// testConfig returns a session config sized for fast synthetic tests.
func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Audio.Source = "synth"
	cfg.Audio.SampleRate = 16000
	cfg.Audio.BlockSize = 512
	cfg.Analysis.WindowMs = 30
	cfg.Analysis.Order = 8
	cfg.Render.RefreshHz = 500
	cfg.Render.Waveform = false
	return cfg
}

// voicedSource returns an unpaced synthetic source carrying three resonances.
func voicedSource(t *testing.T, sampleRate, blockSize int) *synth.Source {
	t.Helper()
	src, err := synth.New(synth.Config{
		SampleRate: sampleRate,
		BlockSize:  blockSize,
		Unpaced:    true,
		Generator: synth.GeneratorConfig{
			Amplitude: 0.5,
			Resonances: []synth.Resonance{
				{FrequencyHz: 600, BandwidthHz: 80},
				{FrequencyHz: 1700, BandwidthHz: 90},
				{FrequencyHz: 2600, BandwidthHz: 120},
			},
		},
	})
	if err != nil {
		t.Fatalf("synth.New: %v", err)
	}
	return src
}

// silentSource returns an unpaced synthetic source producing zeros.
func silentSource(t *testing.T, sampleRate, blockSize int) *synth.Source {
	t.Helper()
	src, err := synth.New(synth.Config{
		SampleRate: sampleRate,
		BlockSize:  blockSize,
		Unpaced:    true,
		Generator:  synth.GeneratorConfig{Amplitude: 0},
	})
	if err != nil {
		t.Fatalf("synth.New: %v", err)
	}
	return src
}

// runSession starts s.Run in the background and returns a stop function that
// cancels the session and waits for Run to return.
func runSession(t *testing.T, s *Session) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	return func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Run() error: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("Run() did not return after cancellation")
		}
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestSessionSilenceProducesAbsentFrames(t *testing.T) {
	cfg := testConfig()
	sink := &captureSink{}
	src := silentSource(t, cfg.Audio.SampleRate, cfg.Audio.BlockSize)

	prof, err := formant.Preset("training-default")
	if err != nil {
		t.Fatalf("Preset: %v", err)
	}
	s, err := NewSession(cfg, src, sink, prof, nil)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	stop := runSession(t, s)
	waitFor(t, "rendered frames", func() bool { return sink.count() >= 3 })
	stop()

	for _, f := range sink.snapshot() {
		if f.Voiced {
			t.Fatalf("frame %d is voiced on silent input", f.Seq)
		}
		if !f.Formants.AllAbsent() {
			t.Fatalf("frame %d has present slots on silent input", f.Seq)
		}
		if got := f.Advice(); got != "waiting for voice" {
			t.Fatalf("frame %d advice = %q, want %q", f.Seq, got, "waiting for voice")
		}
	}
	if !sink.isClosed() {
		t.Error("sink was not closed when the session ended")
	}
}

func TestSessionVoicedInputFillsSlots(t *testing.T) {
	cfg := testConfig()
	sink := &captureSink{}
	src := voicedSource(t, cfg.Audio.SampleRate, cfg.Audio.BlockSize)

	prof, err := formant.Preset("training-default")
	if err != nil {
		t.Fatalf("Preset: %v", err)
	}
	s, err := NewSession(cfg, src, sink, prof, nil)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	stop := runSession(t, s)
	waitFor(t, "a voiced frame with detections", func() bool {
		f := s.Latest()
		return f != nil && f.Voiced && f.Formants.PresentCount() >= 2
	})
	stop()

	f := s.Latest()
	// Present slots come in ascending frequency order.
	last := 0.0
	for i, sl := range f.Formants.Slots {
		if !sl.Present {
			continue
		}
		if sl.FrequencyHz < last {
			t.Errorf("slot %d frequency %v below slot before it (%v)", i, sl.FrequencyHz, last)
		}
		last = sl.FrequencyHz
	}

	// Targeted, detected slots carry defined deltas.
	for i, d := range f.Deltas {
		if _, targeted := prof.Target(i); targeted && f.Formants.Slots[i].Present && !d.Defined {
			t.Errorf("delta %d undefined for a present, targeted slot", i)
		}
	}

	// Sequence numbers are strictly increasing across rendered frames.
	var lastSeq uint64
	for _, rf := range sink.snapshot() {
		if rf.Seq <= lastSeq {
			t.Fatalf("frame sequence went %d -> %d", lastSeq, rf.Seq)
		}
		lastSeq = rf.Seq
	}
}

func TestSessionSwapProfileMidRun(t *testing.T) {
	cfg := testConfig()
	sink := &captureSink{}
	src := voicedSource(t, cfg.Audio.SampleRate, cfg.Audio.BlockSize)

	prof, err := formant.Preset("training-default")
	if err != nil {
		t.Fatalf("Preset: %v", err)
	}
	s, err := NewSession(cfg, src, sink, prof, nil)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	stop := runSession(t, s)
	waitFor(t, "first frame", func() bool { return s.Latest() != nil })

	next, err := formant.Preset("vowel-i")
	if err != nil {
		t.Fatalf("Preset: %v", err)
	}
	if err := s.SwapProfile(context.Background(), next); err != nil {
		t.Fatalf("SwapProfile: %v", err)
	}

	waitFor(t, "a frame carrying the new profile", func() bool {
		f := s.Latest()
		return f != nil && f.Profile.Name() == "vowel-i"
	})
	stop()

	// Capture kept flowing through the swap.
	frames := sink.snapshot()
	var lastSeq uint64
	for _, f := range frames {
		if f.Seq <= lastSeq {
			t.Fatalf("frame sequence went %d -> %d across the swap", lastSeq, f.Seq)
		}
		lastSeq = f.Seq
	}
}

func TestSessionSwapSourceMidRun(t *testing.T) {
	cfg := testConfig()
	sink := &captureSink{}
	src := silentSource(t, cfg.Audio.SampleRate, cfg.Audio.BlockSize)

	prof, err := formant.Preset("training-default")
	if err != nil {
		t.Fatalf("Preset: %v", err)
	}
	s, err := NewSession(cfg, src, sink, prof, nil)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	stop := runSession(t, s)
	waitFor(t, "a frame from the silent source", func() bool { return s.Latest() != nil })

	replacement := voicedSource(t, cfg.Audio.SampleRate, cfg.Audio.BlockSize)
	if err := s.SwapSource(context.Background(), replacement); err != nil {
		t.Fatalf("SwapSource: %v", err)
	}

	waitFor(t, "voiced frames from the replacement source", func() bool {
		f := s.Latest()
		return f != nil && f.Voiced
	})
	stop()
}

func TestNewSessionRejectsNilProfile(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	src := silentSource(t, cfg.Audio.SampleRate, cfg.Audio.BlockSize)
	if _, err := NewSession(cfg, src, &captureSink{}, nil, nil); err == nil {
		t.Fatal("NewSession accepted a nil profile")
	}
}
