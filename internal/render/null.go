package render

import (
	"sync/atomic"

	"github.com/voicemirror/voicemirror/pkg/render"
)

// Null discards every frame. Useful for headless runs where only the
// Prometheus metrics matter, and as a baseline in benchmarks.
type Null struct {
	frames atomic.Uint64
}

// NewNull creates a null sink.
func NewNull() *Null { return &Null{} }

// Render counts the frame and discards it.
func (n *Null) Render(f *render.Frame) error {
	n.frames.Add(1)
	return nil
}

// Frames returns how many frames were discarded so far.
func (n *Null) Frames() uint64 { return n.frames.Load() }

// Close is a no-op.
func (n *Null) Close() error { return nil }
