// Package synth implements [audio.Source] with a vowel-like signal
// generator instead of a microphone: a glottal impulse train passed through
// a cascade of two-pole resonators, one per configured formant. It serves
// demo sessions on machines without audio hardware and provides ground
// truth for extractor accuracy tests, since the resonance frequencies and
// bandwidths are known exactly.
package synth

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/voicemirror/voicemirror/pkg/audio"
)

// Compile-time interface assertion.
var _ audio.Source = (*Source)(nil)

// Resonance is one vocal-tract resonance to synthesize.
type Resonance struct {
	// FrequencyHz is the resonance center frequency.
	FrequencyHz float64

	// BandwidthHz is the -3 dB bandwidth. Narrow bandwidths produce the
	// sharp spectral peaks characteristic of formants.
	BandwidthHz float64
}

// resonator is a two-pole digital resonator in the Klatt formulation:
//
//	y[n] = a*x[n] + b*y[n-1] + c*y[n-2]
//
// with c = -r², b = 2r·cos(2πF/fs), a = 1-b-c and r = exp(-πB/fs).
type resonator struct {
	a, b, c float64
	p1, p2  float64
}

func newResonator(freqHz, bwHz, sampleRate float64) *resonator {
	r := math.Exp(-math.Pi * bwHz / sampleRate)
	c := -r * r
	b := 2 * r * math.Cos(2*math.Pi*freqHz/sampleRate)
	return &resonator{a: 1 - b - c, b: b, c: c}
}

func (r *resonator) step(x float64) float64 {
	y := r.a*x + r.b*r.p1 + r.c*r.p2
	r.p2 = r.p1
	r.p1 = y
	return y
}

// Generator produces the raw waveform: an impulse train at the fundamental
// frequency driving the resonator cascade. It is deterministic — the same
// configuration always yields the same samples.
type Generator struct {
	sampleRate float64
	f0         float64
	amplitude  float64
	cascade    []*resonator
	phase      float64 // samples until next glottal impulse
}

// GeneratorConfig configures a [Generator].
type GeneratorConfig struct {
	// SampleRate in Hz.
	SampleRate int

	// FundamentalHz is the glottal pulse rate (voice pitch). Zero selects
	// 120 Hz.
	FundamentalHz float64

	// Amplitude scales the output into [-Amplitude, Amplitude]. Zero
	// produces silence, which is useful for exercising the silence path.
	Amplitude float64

	// Resonances lists the formants to synthesize.
	Resonances []Resonance
}

// NewGenerator creates a Generator for the given configuration.
func NewGenerator(cfg GeneratorConfig) (*Generator, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("synth: sample rate must be positive, got %d", cfg.SampleRate)
	}
	f0 := cfg.FundamentalHz
	if f0 == 0 {
		f0 = 120
	}
	if f0 < 0 {
		return nil, fmt.Errorf("synth: fundamental must be positive, got %v", f0)
	}

	g := &Generator{
		sampleRate: float64(cfg.SampleRate),
		f0:         f0,
		amplitude:  cfg.Amplitude,
	}
	for _, res := range cfg.Resonances {
		g.cascade = append(g.cascade, newResonator(res.FrequencyHz, res.BandwidthHz, g.sampleRate))
	}
	return g, nil
}

// Fill writes len(dst) samples into dst.
func (g *Generator) Fill(dst []float32) {
	period := g.sampleRate / g.f0
	for i := range dst {
		var x float64
		g.phase--
		if g.phase <= 0 {
			g.phase += period
			x = 1
		}
		for _, r := range g.cascade {
			x = r.step(x)
		}
		dst[i] = float32(x * g.amplitude)
	}
}

// Source paces a [Generator] at real time and delivers frames like a live
// device. The generator can be swapped mid-session to change the synthetic
// vowel.
type Source struct {
	cfg    Config
	frames chan audio.AudioFrame

	gen atomic.Pointer[Generator]

	bufs [][]float32
	next int

	dropped atomic.Uint64
	seq     uint64

	mu      sync.Mutex
	started bool
	closed  bool
	stop    chan struct{}
	done    chan struct{}
}

// Config configures a synthetic [Source].
type Config struct {
	// SampleRate in Hz.
	SampleRate int

	// BlockSize is the number of samples per delivered frame.
	BlockSize int

	// QueueDepth is the delivery queue length. Zero means 8.
	QueueDepth int

	// Generator is the initial waveform generator.
	Generator GeneratorConfig

	// Unpaced disables the real-time pacing ticker, producing frames as
	// fast as the consumer drains them. Tests use this to avoid waiting on
	// wall-clock time.
	Unpaced bool
}

// New creates a synthetic Source.
func New(cfg Config) (*Source, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("synth: sample rate must be positive, got %d", cfg.SampleRate)
	}
	if cfg.BlockSize <= 0 {
		return nil, fmt.Errorf("synth: block size must be positive, got %d", cfg.BlockSize)
	}
	depth := cfg.QueueDepth
	if depth <= 0 {
		depth = 8
	}
	cfg.Generator.SampleRate = cfg.SampleRate
	gen, err := NewGenerator(cfg.Generator)
	if err != nil {
		return nil, err
	}

	s := &Source{
		cfg:    cfg,
		frames: make(chan audio.AudioFrame, depth),
		bufs:   make([][]float32, depth+2),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	for i := range s.bufs {
		s.bufs[i] = make([]float32, cfg.BlockSize)
	}
	s.gen.Store(gen)
	return s, nil
}

// SwapGenerator atomically replaces the waveform generator. The swap takes
// effect at the next block boundary; no block ever mixes two generators.
func (s *Source) SwapGenerator(cfg GeneratorConfig) error {
	cfg.SampleRate = s.cfg.SampleRate
	gen, err := NewGenerator(cfg)
	if err != nil {
		return err
	}
	s.gen.Store(gen)
	return nil
}

// Start launches the generation loop.
func (s *Source) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("synth: Start called twice")
	}
	if s.closed {
		return errors.New("synth: source already closed")
	}
	s.started = true
	go s.loop(ctx)
	return nil
}

func (s *Source) loop(ctx context.Context) {
	defer close(s.done)
	defer close(s.frames)

	blockDur := time.Duration(s.cfg.BlockSize) * time.Second / time.Duration(s.cfg.SampleRate)

	var tick <-chan time.Time
	if !s.cfg.Unpaced {
		t := time.NewTicker(blockDur)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		default:
		}

		buf := s.bufs[s.next]
		s.next = (s.next + 1) % len(s.bufs)
		s.gen.Load().Fill(buf)

		frame := audio.AudioFrame{
			Samples:    buf,
			SampleRate: s.cfg.SampleRate,
			Seq:        s.seq,
			Timestamp:  time.Duration(s.seq) * blockDur,
		}
		s.seq++

		if s.cfg.Unpaced {
			// Blocking delivery: unpaced mode is consumer-clocked.
			select {
			case s.frames <- frame:
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			}
			continue
		}

		audio.PushLatest(s.frames, frame, &s.dropped)
		select {
		case <-tick:
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		}
	}
}

// Frames returns the delivery channel.
func (s *Source) Frames() <-chan audio.AudioFrame { return s.frames }

// Dropped returns the overrun drop counter.
func (s *Source) Dropped() uint64 { return s.dropped.Load() }

// Err always returns nil: the synthetic source has no device to fail.
func (s *Source) Err() error { return nil }

// Close stops the generation loop. Safe to call more than once.
func (s *Source) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	started := s.started
	s.mu.Unlock()

	close(s.stop)
	if started {
		<-s.done
	}
	return nil
}
