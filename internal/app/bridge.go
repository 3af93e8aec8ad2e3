package app

import (
	"sync/atomic"

	"github.com/voicemirror/voicemirror/pkg/render"
)

// Bridge is the single-slot handoff between the analysis goroutine and the
// render goroutine. The analysis side publishes a complete frame per window;
// the render side reads whatever is latest at its own cadence. Intermediate
// frames are overwritten, never queued, so a slow display can never apply
// backpressure to analysis.
//
// The zero value is ready to use. Safe for concurrent use by one publisher
// and any number of readers.
type Bridge struct {
	latest atomic.Pointer[render.Frame]
}

// Publish replaces the latest frame. The frame must not be mutated after
// publishing; the analysis loop hands over ownership.
func (b *Bridge) Publish(f *render.Frame) {
	b.latest.Store(f)
}

// Latest returns the most recently published frame, or nil before the first
// publish. Callers must treat the frame as read-only.
func (b *Bridge) Latest() *render.Frame {
	return b.latest.Load()
}
