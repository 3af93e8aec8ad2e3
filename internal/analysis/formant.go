package analysis

import (
	"fmt"
	"math"
	"math/cmplx"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/voicemirror/voicemirror/pkg/formant"
)

// ExtractorConfig holds the parameters for a formant [Extractor].
type ExtractorConfig struct {
	// SampleRate in Hz.
	SampleRate int

	// Order is the LPC order the extractor receives models of.
	Order int

	// Slots is the number of formant slots to fill (K).
	Slots int

	// MaxBandwidthHz rejects poles broader than this; broad poles model
	// spectral tilt and noise, not formants.
	MaxBandwidthHz float64

	// MinFrequencyHz / MaxFrequencyHz bound the plausible voice range.
	MinFrequencyHz float64
	MaxFrequencyHz float64
}

// Extractor derives formant candidates from an LPC model by finding the
// complex roots of the prediction polynomial. Each conjugate pole pair
// inside the unit circle corresponds to a resonance: frequency from the
// root's angle, bandwidth from its radius. Candidates surviving the
// bandwidth and frequency filters are assigned ascending to slots F1..FK;
// unfilled slots are explicitly absent, never guessed.
//
// Root finding goes through the companion matrix's eigenvalues, which is
// numerically stable for the orders used in speech work.
//
// Not safe for concurrent use; the analysis loop owns it.
type Extractor struct {
	cfg ExtractorConfig

	companion *mat.Dense
	roots     []complex128
	cands     []formant.Formant
}

// NewExtractor creates an Extractor with pre-allocated working storage.
func NewExtractor(cfg ExtractorConfig) (*Extractor, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("analysis: sample rate must be positive, got %d", cfg.SampleRate)
	}
	if cfg.Order < 2 {
		return nil, fmt.Errorf("analysis: order must be at least 2, got %d", cfg.Order)
	}
	if cfg.Slots < 1 {
		return nil, fmt.Errorf("analysis: slot count must be positive, got %d", cfg.Slots)
	}
	if cfg.MaxBandwidthHz <= 0 {
		return nil, fmt.Errorf("analysis: max bandwidth must be positive, got %v", cfg.MaxBandwidthHz)
	}
	if cfg.MinFrequencyHz < 0 || cfg.MaxFrequencyHz <= cfg.MinFrequencyHz {
		return nil, fmt.Errorf("analysis: invalid frequency range [%v, %v]",
			cfg.MinFrequencyHz, cfg.MaxFrequencyHz)
	}

	return &Extractor{
		cfg:       cfg,
		companion: mat.NewDense(cfg.Order, cfg.Order, nil),
		roots:     make([]complex128, cfg.Order),
		cands:     make([]formant.Formant, 0, cfg.Order),
	}, nil
}

// Extract fills dst from the model. dst must have the configured number of
// slots. When the polynomial cannot be factorized (a rare numerical
// failure) every slot comes back absent, which downstream stages treat the
// same as an unvoiced window.
func (e *Extractor) Extract(m Model, dst *formant.Set) {
	dst.Clear()
	if len(m.Coeffs) != e.cfg.Order+1 {
		return
	}

	// Companion matrix of zᵖ + a₁zᵖ⁻¹ + … + aₚ: negated coefficients on
	// the first row, ones on the subdiagonal.
	p := e.cfg.Order
	e.companion.Zero()
	for j := 0; j < p; j++ {
		e.companion.Set(0, j, -m.Coeffs[j+1])
	}
	for i := 1; i < p; i++ {
		e.companion.Set(i, i-1, 1)
	}

	var eig mat.Eigen
	if ok := eig.Factorize(e.companion, mat.EigenNone); !ok {
		return
	}
	eig.Values(e.roots)

	fs := float64(e.cfg.SampleRate)
	e.cands = e.cands[:0]
	for _, z := range e.roots {
		// One root per conjugate pair; the lower half-plane duplicates it.
		if imag(z) <= 0 {
			continue
		}
		r := cmplx.Abs(z)
		if r <= 0 || r >= 1 {
			continue
		}
		freq := math.Atan2(imag(z), real(z)) * fs / (2 * math.Pi)
		bw := -math.Log(r) * fs / math.Pi

		if bw > e.cfg.MaxBandwidthHz {
			continue
		}
		if freq < e.cfg.MinFrequencyHz || freq > e.cfg.MaxFrequencyHz {
			continue
		}
		e.cands = append(e.cands, formant.Formant{FrequencyHz: freq, BandwidthHz: bw})
	}

	sort.Slice(e.cands, func(i, j int) bool {
		return e.cands[i].FrequencyHz < e.cands[j].FrequencyHz
	})

	for i := 0; i < len(dst.Slots) && i < len(e.cands); i++ {
		dst.Slots[i] = formant.Slot{Formant: e.cands[i], Present: true}
	}
}
