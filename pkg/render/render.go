// Package render defines the boundary between the analysis pipeline and the
// visual display: the [Frame] value that crosses it and the [Sink] interface
// a display implementation provides.
//
// A Frame is a complete, self-contained snapshot. Sinks never reach back
// into the pipeline; they only ever receive the latest Frame at their own
// cadence. Absent formant slots and undefined deltas are ordinary data the
// sink must handle, not error conditions.
//
// This package lives under pkg/ because external renderers (GUI plots,
// web dashboards) are expected to implement [Sink].
package render

import (
	"time"

	"github.com/voicemirror/voicemirror/pkg/formant"
)

// Frame is the visualization payload produced once per analysis window.
// All slices are owned by the Frame: the pipeline copies out of its internal
// buffers before publishing, so a sink may retain a Frame indefinitely.
type Frame struct {
	// Seq is a monotonic frame counter.
	Seq uint64

	// Time is the capture timestamp of the analysis window's center sample,
	// relative to session start.
	Time time.Duration

	// Formants is the smoothed formant set for this window. Slots that
	// could not be detected are explicitly absent.
	Formants formant.Set

	// Averages holds per-slot rolling means over recently accepted values,
	// for a steadier secondary display next to the instantaneous bars.
	Averages formant.Set

	// Profile is the target the speaker is training toward.
	Profile *formant.Profile

	// Deltas is detected-minus-target per slot, undefined where either
	// side is missing.
	Deltas []formant.Delta

	// Waveform is a copy of the analysis window, for sinks that draw a
	// waveform strip. May be nil when the session disables it.
	Waveform []float32

	// Voiced reports whether the window carried voiced input. False means
	// the silence gate suppressed analysis and all slots are absent.
	Voiced bool

	// DroppedFrames is the capture overrun counter at publish time.
	DroppedFrames uint64
}

// Advice returns the coaching hint for this frame's deltas.
func (f *Frame) Advice() string {
	return formant.Advice(f.Deltas)
}

// Sink consumes visualization frames. Render is called from the render
// goroutine at the display refresh rate, never concurrently with itself.
// Implementations must not block for longer than a refresh interval;
// the pipeline is never throttled by a slow sink either way.
type Sink interface {
	// Render draws the frame. Errors are logged by the caller and do not
	// stop the session.
	Render(f *Frame) error

	// Close releases any display resources.
	Close() error
}
