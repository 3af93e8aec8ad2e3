// Package formant defines the data types shared between the analysis
// pipeline and render sinks: individual formants, fixed-size formant sets
// with explicit per-slot presence, and target profiles for voice training.
//
// The central rule of this package is that absence is always explicit.
// A slot that could not be filled with a verified detection is marked
// not-present rather than carrying a guessed value; downstream consumers
// must check [Slot.Present] before using a frequency.
//
// This package lives under pkg/ because external render sinks consume these
// types directly.
package formant

import "math"

// Formant is a single vocal-tract resonance: a center frequency and the
// bandwidth of the spectral peak around it. Narrow bandwidths distinguish
// true formants from broad noise poles.
type Formant struct {
	// FrequencyHz is the resonance center frequency in Hz.
	FrequencyHz float64

	// BandwidthHz is the -3 dB width of the resonance in Hz.
	BandwidthHz float64
}

// Slot is one position in a [Set]. A slot either holds a detected formant
// (Present true) or is explicitly empty (Present false, zero Formant).
type Slot struct {
	Formant

	// Present reports whether this slot holds a verified detection.
	Present bool
}

// Set is an ordered collection of formant slots F1..FK, ascending by
// frequency where present. The slot count is fixed when the Set is created
// and never changes for the lifetime of a session.
type Set struct {
	Slots []Slot
}

// NewSet returns a Set with k empty slots.
func NewSet(k int) Set {
	return Set{Slots: make([]Slot, k)}
}

// Clear marks every slot absent.
func (s *Set) Clear() {
	for i := range s.Slots {
		s.Slots[i] = Slot{}
	}
}

// Len returns the number of slots (present or not).
func (s *Set) Len() int { return len(s.Slots) }

// PresentCount returns how many slots hold a detection.
func (s *Set) PresentCount() int {
	n := 0
	for _, sl := range s.Slots {
		if sl.Present {
			n++
		}
	}
	return n
}

// AllAbsent reports whether no slot holds a detection. A fully absent set is
// the normal outcome for silent or unvoiced input, not an error.
func (s *Set) AllAbsent() bool { return s.PresentCount() == 0 }

// CopyInto copies s into dst slot by slot. dst must have the same length.
// Used to hand a stable snapshot across the analysis/render boundary without
// sharing the pipeline's reusable buffers.
func (s *Set) CopyInto(dst *Set) {
	copy(dst.Slots, s.Slots)
}

// Clone returns an independent copy of s.
func (s *Set) Clone() Set {
	c := NewSet(len(s.Slots))
	s.CopyInto(&c)
	return c
}

// Delta is a per-slot signed difference between a detected frequency and its
// target. Defined is false when either side is missing: the slot was absent,
// or the profile declares no target for it.
type Delta struct {
	// Hz is detected minus target, in Hz. Meaningless when Defined is false.
	Hz float64

	// Defined reports whether both the detection and the target exist.
	Defined bool

	// InRange reports whether the detected frequency fell inside the
	// profile's good range for this slot. Always false when Defined is false
	// or the profile has no range for the slot.
	InRange bool
}

// Deltas computes the per-slot deltas between a detected set and a profile.
// The result has one entry per slot in s; dst is reused when it has the right
// length, otherwise a new slice is allocated.
func Deltas(s *Set, p *Profile, dst []Delta) []Delta {
	if len(dst) != len(s.Slots) {
		dst = make([]Delta, len(s.Slots))
	}
	for i, sl := range s.Slots {
		dst[i] = Delta{}
		if !sl.Present || p == nil {
			continue
		}
		target, ok := p.Target(i)
		if !ok {
			continue
		}
		dst[i] = Delta{
			Hz:      sl.FrequencyHz - target,
			Defined: true,
			InRange: p.InGoodRange(i, sl.FrequencyHz),
		}
	}
	return dst
}

// MaxAbsDelta returns the largest absolute defined delta in ds, or 0 and
// false when no delta is defined.
func MaxAbsDelta(ds []Delta) (float64, bool) {
	maxAbs := 0.0
	any := false
	for _, d := range ds {
		if !d.Defined {
			continue
		}
		any = true
		if a := math.Abs(d.Hz); a > maxAbs {
			maxAbs = a
		}
	}
	return maxAbs, any
}
