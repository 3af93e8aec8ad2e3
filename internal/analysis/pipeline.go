package analysis

import (
	"fmt"
	"time"

	"github.com/voicemirror/voicemirror/pkg/audio"
	"github.com/voicemirror/voicemirror/pkg/formant"
)

// Config holds every tunable of the analysis pipeline. All values are fixed
// at session start; changing one means building a new pipeline.
type Config struct {
	// SampleRate in Hz.
	SampleRate int

	// WindowSize is the analysis window length in samples.
	WindowSize int

	// Hop is the number of new samples between consecutive windows.
	Hop int

	// PreEmphasis is the first-order pre-emphasis coefficient.
	PreEmphasis float64

	// Taper selects the window taper.
	Taper Taper

	// Order is the LPC order. Zero selects [SuggestOrder] of SampleRate.
	Order int

	// Slots is the number of formant slots (K).
	Slots int

	// SilenceRMS is the window RMS below which no model is fitted.
	SilenceRMS float64

	// MaxBandwidthHz, MinFrequencyHz, MaxFrequencyHz filter formant
	// candidates; see [ExtractorConfig].
	MaxBandwidthHz float64
	MinFrequencyHz float64
	MaxFrequencyHz float64

	// Alpha, MaxJumpHz, ResetAfter, HistoryDepth configure the smoother;
	// see [SmootherConfig].
	Alpha        float64
	MaxJumpHz    float64
	ResetAfter   int
	HistoryDepth int
}

// Result is the outcome of analysing one window. All reference fields
// borrow pipeline-owned buffers and are valid only inside the emit callback;
// consumers that publish across goroutines must copy.
type Result struct {
	// Center is the capture time of the window's center sample.
	Center time.Duration

	// Voiced is false when the silence gate suppressed analysis; Formants
	// is then all absent.
	Voiced bool

	// Formants is the smoothed formant set.
	Formants *formant.Set

	// Averages holds the per-slot rolling means.
	Averages *formant.Set

	// Window is the tapered analysis window that produced this result.
	Window []float64
}

// Pipeline chains the four analysis stages — windowing, LPC, formant
// extraction, smoothing — behind a single per-capture-frame entry point.
// All buffers are allocated at construction; Process does not allocate.
//
// Not safe for concurrent use; exactly one analysis goroutine drives it.
type Pipeline struct {
	windower  *Windower
	lpc       *LPC
	extractor *Extractor
	smoother  *Smoother

	raw      formant.Set
	smoothed formant.Set
	averages formant.Set

	windows uint64
	silent  uint64
}

// NewPipeline builds a Pipeline from cfg, validating every stage's
// parameters.
func NewPipeline(cfg Config) (*Pipeline, error) {
	order := cfg.Order
	if order == 0 {
		order = SuggestOrder(cfg.SampleRate)
	}

	windower, err := NewWindower(WindowerConfig{
		SampleRate:  cfg.SampleRate,
		Size:        cfg.WindowSize,
		Hop:         cfg.Hop,
		PreEmphasis: cfg.PreEmphasis,
		Taper:       cfg.Taper,
	})
	if err != nil {
		return nil, err
	}
	if cfg.WindowSize <= order {
		return nil, fmt.Errorf("analysis: window size %d must exceed LPC order %d", cfg.WindowSize, order)
	}

	lpc, err := NewLPC(order, cfg.SilenceRMS)
	if err != nil {
		return nil, err
	}

	extractor, err := NewExtractor(ExtractorConfig{
		SampleRate:     cfg.SampleRate,
		Order:          order,
		Slots:          cfg.Slots,
		MaxBandwidthHz: cfg.MaxBandwidthHz,
		MinFrequencyHz: cfg.MinFrequencyHz,
		MaxFrequencyHz: cfg.MaxFrequencyHz,
	})
	if err != nil {
		return nil, err
	}

	smoother, err := NewSmoother(SmootherConfig{
		Slots:        cfg.Slots,
		Alpha:        cfg.Alpha,
		MaxJumpHz:    cfg.MaxJumpHz,
		ResetAfter:   cfg.ResetAfter,
		HistoryDepth: cfg.HistoryDepth,
	})
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		windower:  windower,
		lpc:       lpc,
		extractor: extractor,
		smoother:  smoother,
		raw:       formant.NewSet(cfg.Slots),
		smoothed:  formant.NewSet(cfg.Slots),
		averages:  formant.NewSet(cfg.Slots),
	}, nil
}

// Order returns the effective LPC order.
func (p *Pipeline) Order() int { return p.lpc.Order() }

// Process consumes one capture frame and invokes emit once per completed
// analysis window. Zero emissions (startup, short frame) are normal.
func (p *Pipeline) Process(f audio.AudioFrame, emit func(Result)) {
	p.windower.Push(f.Samples, func(w Window) {
		p.windows++
		res := Result{
			Center:   w.Center,
			Formants: &p.smoothed,
			Averages: &p.averages,
			Window:   w.Samples,
		}

		model, voiced := p.lpc.Analyze(w.Samples)
		res.Voiced = voiced
		if voiced {
			p.extractor.Extract(model, &p.raw)
		} else {
			p.silent++
			p.raw.Clear()
		}

		p.smoother.Apply(&p.raw, &p.smoothed)
		p.smoother.Averages(&p.averages)
		emit(res)
	})
}

// Windows returns the number of windows analysed so far.
func (p *Pipeline) Windows() uint64 { return p.windows }

// SilentWindows returns how many of those were gated as silent.
func (p *Pipeline) SilentWindows() uint64 { return p.silent }

// RejectedJumps returns the smoother's cumulative discard count.
func (p *Pipeline) RejectedJumps() uint64 { return p.smoother.Rejected() }

// Reset clears windowing and smoothing state so the next samples start a
// fresh window. Used on input-device swap.
func (p *Pipeline) Reset() {
	p.windower.Reset()
	p.smoother.Reset()
}
