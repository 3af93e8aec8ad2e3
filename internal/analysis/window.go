// Package analysis implements the real-time formant estimation pipeline:
// sliding-window assembly with pre-emphasis and taper, linear-prediction
// modelling via autocorrelation and Levinson–Durbin, formant extraction from
// the LPC polynomial roots, and temporal smoothing with outlier rejection.
//
// Every stage pre-allocates its working buffers at construction time; the
// per-frame path performs no allocation apart from the eigenvalue
// factorization inside the extractor, which works per analysis window, not
// per sample. Identical input always produces identical output — no stage
// consults the clock or a random source.
package analysis

import (
	"fmt"
	"math"
	"time"
)

// Taper selects the window taper function applied before spectral analysis.
type Taper string

const (
	// TaperHann is the Hann (raised cosine) window.
	TaperHann Taper = "hann"

	// TaperHamming is the Hamming window.
	TaperHamming Taper = "hamming"
)

// IsValid reports whether t is a recognised taper name.
func (t Taper) IsValid() bool {
	return t == TaperHann || t == TaperHamming
}

// WindowerConfig holds the parameters for a [Windower].
type WindowerConfig struct {
	// SampleRate in Hz.
	SampleRate int

	// Size is the analysis window length in samples.
	Size int

	// Hop is the number of new samples between consecutive windows.
	// Commonly around 40% of Size.
	Hop int

	// PreEmphasis is the first-order pre-emphasis coefficient in [0, 1).
	// Speech work typically uses ~0.97. Zero disables pre-emphasis.
	PreEmphasis float64

	// Taper selects the taper function.
	Taper Taper
}

// Window is one assembled analysis window: pre-emphasized, tapered samples
// plus the capture time of the window's center sample. The Samples slice is
// owned by the Windower and valid only until the next emission.
type Window struct {
	Samples []float64
	Center  time.Duration
}

// Windower assembles fixed-length analysis windows from a stream of capture
// blocks. It keeps a ring buffer of the most recent Size pre-emphasized
// samples and emits one window every Hop samples once the ring has filled.
// Until then it emits nothing — there is no partial-window output at
// session start.
//
// Not safe for concurrent use; the analysis loop owns it.
type Windower struct {
	cfg   WindowerConfig
	taper []float64

	ring []float64
	head int // next write position
	fill int // samples accumulated, capped at len(ring)

	sinceHop int
	total    uint64 // total samples consumed, for center timestamps

	prevRaw float64 // pre-emphasis filter state across block boundaries

	out Window
}

// NewWindower creates a Windower with all buffers pre-allocated.
func NewWindower(cfg WindowerConfig) (*Windower, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("analysis: sample rate must be positive, got %d", cfg.SampleRate)
	}
	if cfg.Size <= 0 {
		return nil, fmt.Errorf("analysis: window size must be positive, got %d", cfg.Size)
	}
	if cfg.Hop <= 0 || cfg.Hop > cfg.Size {
		return nil, fmt.Errorf("analysis: hop must be in (0, size], got %d", cfg.Hop)
	}
	if cfg.PreEmphasis < 0 || cfg.PreEmphasis >= 1 {
		return nil, fmt.Errorf("analysis: pre-emphasis must be in [0, 1), got %v", cfg.PreEmphasis)
	}
	if !cfg.Taper.IsValid() {
		return nil, fmt.Errorf("analysis: unknown taper %q", cfg.Taper)
	}

	w := &Windower{
		cfg:   cfg,
		taper: makeTaper(cfg.Taper, cfg.Size),
		ring:  make([]float64, cfg.Size),
		out:   Window{Samples: make([]float64, cfg.Size)},
	}
	return w, nil
}

// makeTaper precomputes the taper coefficients.
func makeTaper(t Taper, n int) []float64 {
	coeffs := make([]float64, n)
	for i := range coeffs {
		phase := 2 * math.Pi * float64(i) / float64(n-1)
		switch t {
		case TaperHamming:
			coeffs[i] = 0.54 - 0.46*math.Cos(phase)
		default: // Hann
			coeffs[i] = 0.5 * (1 - math.Cos(phase))
		}
	}
	return coeffs
}

// Push consumes one capture block and invokes emit for every analysis
// window completed by it. A block may complete zero windows (startup, or
// hop larger than the block) or several (hop smaller than the block).
//
// The Window passed to emit borrows the Windower's internal buffer; emit
// must finish with it before returning.
func (w *Windower) Push(samples []float32, emit func(Window)) {
	for _, s := range samples {
		raw := float64(s)
		w.ring[w.head] = raw - w.cfg.PreEmphasis*w.prevRaw
		w.prevRaw = raw
		w.head = (w.head + 1) % len(w.ring)
		if w.fill < len(w.ring) {
			w.fill++
		}
		w.total++

		w.sinceHop++
		if w.fill == len(w.ring) && w.sinceHop >= w.cfg.Hop {
			w.sinceHop = 0
			w.assemble()
			emit(w.out)
		}
	}
}

// assemble copies the ring contents in chronological order into the output
// buffer, applying the taper.
func (w *Windower) assemble() {
	n := len(w.ring)
	// Oldest sample sits at head (the next overwrite position).
	for i := 0; i < n; i++ {
		w.out.Samples[i] = w.ring[(w.head+i)%n] * w.taper[i]
	}
	centerSample := w.total - uint64(n)/2
	w.out.Center = time.Duration(centerSample) * time.Second / time.Duration(w.cfg.SampleRate)
}

// Reset clears all accumulated state, as if no samples had been pushed.
// Used when the input device is swapped mid-session so windows never mix
// samples from two devices.
func (w *Windower) Reset() {
	w.head = 0
	w.fill = 0
	w.sinceHop = 0
	w.prevRaw = 0
	for i := range w.ring {
		w.ring[i] = 0
	}
}
