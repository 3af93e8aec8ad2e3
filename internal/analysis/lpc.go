package analysis

import (
	"fmt"
	"math"
)

// Model is the all-pole linear-prediction model of one analysis window:
// prediction coefficients in the convention A(z) = 1 + a[1]z⁻¹ + … + a[p]z⁻ᵖ
// (so Coeffs[0] is always 1), plus the residual gain.
//
// Coeffs borrows the analyzer's internal buffer and is valid only until the
// next Analyze call.
type Model struct {
	Coeffs []float64
	Gain   float64
	Order  int
}

// LPC computes linear-prediction models from analysis windows using the
// autocorrelation method with Levinson–Durbin recursion. The recursion is
// numerically stable and needs no explicit matrix inversion.
//
// Windows whose energy falls below the silence threshold produce no model:
// that is the normal no-voiced-input condition, not a fault, and it avoids
// dividing by near-zero energy.
//
// Not safe for concurrent use; the analysis loop owns it.
type LPC struct {
	order      int
	silenceRMS float64

	r []float64 // autocorrelation, lags 0..order
	a []float64 // coefficients, a[0] = 1
	t []float64 // recursion scratch
}

// SuggestOrder returns the conventional LPC order for a sample rate:
// the rate in kHz plus two.
func SuggestOrder(sampleRate int) int {
	return sampleRate/1000 + 2
}

// NewLPC creates an analyzer of fixed order. silenceRMS is the root-mean-
// square level (on samples in [-1, 1]) below which a window is treated as
// silent.
func NewLPC(order int, silenceRMS float64) (*LPC, error) {
	if order < 2 {
		return nil, fmt.Errorf("analysis: LPC order must be at least 2, got %d", order)
	}
	if silenceRMS < 0 {
		return nil, fmt.Errorf("analysis: silence threshold must not be negative, got %v", silenceRMS)
	}
	return &LPC{
		order:      order,
		silenceRMS: silenceRMS,
		r:          make([]float64, order+1),
		a:          make([]float64, order+1),
		t:          make([]float64, order+1),
	}, nil
}

// Order returns the fixed prediction order.
func (l *LPC) Order() int { return l.order }

// Analyze fits the model to one window. The second return value is false
// when the window is silent (or effectively zero-energy) and no model was
// produced. Identical windows always yield identical coefficients.
func (l *LPC) Analyze(window []float64) (Model, bool) {
	if len(window) <= l.order {
		return Model{}, false
	}

	// Autocorrelation up to lag order.
	for lag := 0; lag <= l.order; lag++ {
		sum := 0.0
		for i := lag; i < len(window); i++ {
			sum += window[i] * window[i-lag]
		}
		l.r[lag] = sum
	}

	r0 := l.r[0]
	rms := math.Sqrt(r0 / float64(len(window)))
	if rms < l.silenceRMS || r0 < 1e-12 {
		return Model{}, false
	}

	gain, ok := l.levinsonDurbin()
	if !ok {
		return Model{}, false
	}
	return Model{Coeffs: l.a, Gain: gain, Order: l.order}, true
}

// levinsonDurbin runs the recursion over l.r, leaving coefficients in l.a.
// Returns the residual gain and whether the recursion stayed well-posed.
func (l *LPC) levinsonDurbin() (float64, bool) {
	p := l.order
	e := l.r[0]

	l.a[0] = 1
	for i := 1; i <= p; i++ {
		l.a[i] = 0
	}

	for i := 1; i <= p; i++ {
		// Reflection coefficient, in the inverse-filter convention so the
		// coefficients land directly in A(z) = 1 + a₁z⁻¹ + … form.
		acc := l.r[i]
		for j := 1; j < i; j++ {
			acc += l.a[j] * l.r[i-j]
		}
		if e <= 0 {
			return 0, false
		}
		k := -acc / e

		// Update coefficients symmetrically via scratch.
		for j := 1; j < i; j++ {
			l.t[j] = l.a[j] + k*l.a[i-j]
		}
		copy(l.a[1:i], l.t[1:i])
		l.a[i] = k

		e *= 1 - k*k
	}

	if e < 0 {
		return 0, false
	}
	return math.Sqrt(e), true
}
