package analysis

import (
	"fmt"

	"github.com/voicemirror/voicemirror/pkg/formant"
)

// SmootherConfig holds the parameters for a [Smoother].
type SmootherConfig struct {
	// Slots is the number of formant slots (K).
	Slots int

	// Alpha is the exponential smoothing weight given to the new raw value,
	// in (0, 1]. 1 disables smoothing.
	Alpha float64

	// MaxJumpHz is the largest slot change accepted as a real articulation
	// move. Larger jumps are treated as misdetections and discarded.
	MaxJumpHz float64

	// ResetAfter is the number of consecutive discarded jumps after which
	// the slot resets to the new raw value. This frees a slot that latched
	// onto a stale value when the speaker genuinely moved fast.
	ResetAfter int

	// HistoryDepth is the rolling-average window, in accepted values.
	HistoryDepth int
}

// Smoother applies per-slot temporal filtering across consecutive formant
// sets: exponential smoothing for plausible updates, discard-and-hold for
// implausible jumps, and a staleness escape hatch so a real fast transition
// cannot be rejected forever. It also maintains a rolling mean of accepted
// values per slot for a steadier secondary display.
//
// Absent input slots pass through as absent and leave the slot's history
// untouched.
//
// Not safe for concurrent use; the analysis loop owns it.
type Smoother struct {
	cfg      SmootherConfig
	slots    []slotState
	rejected uint64
}

type slotState struct {
	tracked  bool    // a smoothed value exists
	value    float64 // current smoothed frequency
	bw       float64 // smoothed bandwidth
	stale    int     // consecutive discarded jumps
	hist     []float64
	histLen  int
	histNext int
}

// NewSmoother creates a Smoother with pre-allocated per-slot history.
func NewSmoother(cfg SmootherConfig) (*Smoother, error) {
	if cfg.Slots < 1 {
		return nil, fmt.Errorf("analysis: slot count must be positive, got %d", cfg.Slots)
	}
	if cfg.Alpha <= 0 || cfg.Alpha > 1 {
		return nil, fmt.Errorf("analysis: alpha must be in (0, 1], got %v", cfg.Alpha)
	}
	if cfg.MaxJumpHz <= 0 {
		return nil, fmt.Errorf("analysis: max jump must be positive, got %v", cfg.MaxJumpHz)
	}
	if cfg.ResetAfter < 1 {
		return nil, fmt.Errorf("analysis: reset count must be positive, got %d", cfg.ResetAfter)
	}
	if cfg.HistoryDepth < 1 {
		return nil, fmt.Errorf("analysis: history depth must be positive, got %d", cfg.HistoryDepth)
	}

	s := &Smoother{
		cfg:   cfg,
		slots: make([]slotState, cfg.Slots),
	}
	for i := range s.slots {
		s.slots[i].hist = make([]float64, cfg.HistoryDepth)
	}
	return s, nil
}

// Apply consumes one raw formant set and writes the smoothed result into
// out. raw and out must both have the configured slot count.
func (s *Smoother) Apply(raw, out *formant.Set) {
	for i := range s.slots {
		st := &s.slots[i]
		in := raw.Slots[i]

		if !in.Present {
			// Absence propagates; the slot keeps its smoothed value for
			// future jump comparisons but emits nothing.
			out.Slots[i] = formant.Slot{}
			continue
		}

		if st.tracked {
			jump := in.FrequencyHz - st.value
			if jump > s.cfg.MaxJumpHz || jump < -s.cfg.MaxJumpHz {
				s.rejected++
				st.stale++
				if st.stale < s.cfg.ResetAfter {
					// Likely misdetection: hold the previous smoothed value.
					out.Slots[i] = formant.Slot{
						Formant: formant.Formant{FrequencyHz: st.value, BandwidthHz: st.bw},
						Present: true,
					}
					continue
				}
				// Too many consecutive rejections — accept the move.
				st.value = in.FrequencyHz
				st.bw = in.BandwidthHz
				st.stale = 0
			} else {
				st.value += s.cfg.Alpha * (in.FrequencyHz - st.value)
				st.bw += s.cfg.Alpha * (in.BandwidthHz - st.bw)
				st.stale = 0
			}
		} else {
			st.tracked = true
			st.value = in.FrequencyHz
			st.bw = in.BandwidthHz
			st.stale = 0
		}

		st.record(st.value)
		out.Slots[i] = formant.Slot{
			Formant: formant.Formant{FrequencyHz: st.value, BandwidthHz: st.bw},
			Present: true,
		}
	}
}

// record pushes v into the slot's rolling history.
func (st *slotState) record(v float64) {
	st.hist[st.histNext] = v
	st.histNext = (st.histNext + 1) % len(st.hist)
	if st.histLen < len(st.hist) {
		st.histLen++
	}
}

// Averages writes the per-slot rolling means into out. Slots with no
// accepted values yet come back absent.
func (s *Smoother) Averages(out *formant.Set) {
	for i := range s.slots {
		st := &s.slots[i]
		if st.histLen == 0 {
			out.Slots[i] = formant.Slot{}
			continue
		}
		sum := 0.0
		for j := 0; j < st.histLen; j++ {
			sum += st.hist[j]
		}
		out.Slots[i] = formant.Slot{
			Formant: formant.Formant{FrequencyHz: sum / float64(st.histLen)},
			Present: true,
		}
	}
}

// Rejected returns the cumulative count of raw values discarded by the
// max-jump gate. It survives [Smoother.Reset] so session-long counters
// stay monotonic.
func (s *Smoother) Rejected() uint64 { return s.rejected }

// Reset clears all smoothing state and history.
func (s *Smoother) Reset() {
	for i := range s.slots {
		st := &s.slots[i]
		st.tracked = false
		st.value = 0
		st.bw = 0
		st.stale = 0
		st.histLen = 0
		st.histNext = 0
	}
}
