// Package audio defines the capture-side types and interfaces of the
// VoiceMirror pipeline: PCM frames, input devices, and the [Source]
// abstraction that delivers frames from a device (or a synthesizer) to the
// analysis loop.
//
// Sources follow a strict overrun policy: when the consumer falls behind,
// the oldest unconsumed frame is dropped and a counter incremented. Capture
// is never blocked by a slow consumer and the in-flight queue never grows
// beyond its fixed depth.
//
// This package lives under pkg/ because external capture adapters (host
// audio APIs, file replay, network taps) are expected to implement [Source].
package audio

import (
	"context"
	"sync/atomic"
)

// Source delivers a stream of fixed-size [AudioFrame] blocks.
//
// Lifecycle: Start begins production; frames arrive on the channel returned
// by Frames until the context is cancelled, the device fails, or Close is
// called. Device failures are fatal to the source — the frames channel is
// closed and Err reports the cause. A closed channel with a nil Err means a
// clean stop.
//
// Implementations must be safe for concurrent use of Dropped and Err while
// one goroutine consumes Frames.
type Source interface {
	// Start opens the device and begins producing frames. It returns an
	// error immediately when the device cannot be opened (missing device,
	// permission denial). Start may be called at most once.
	Start(ctx context.Context) error

	// Frames returns the channel on which captured frames are delivered.
	// The channel is closed when production stops for any reason.
	Frames() <-chan AudioFrame

	// Dropped returns the number of frames discarded under overrun so far.
	Dropped() uint64

	// Err returns the fatal error that stopped production, or nil after a
	// clean stop. Only meaningful once Frames is closed.
	Err() error

	// Close stops production and releases the device. Safe to call more
	// than once.
	Close() error
}

// PushLatest delivers f on ch without ever blocking. When ch is full the
// oldest queued frame is discarded first and dropped is incremented. This is
// the shared overrun policy for all capture adapters: bounded queue,
// latest-biased, capture never stalls.
func PushLatest(ch chan AudioFrame, f AudioFrame, dropped *atomic.Uint64) {
	select {
	case ch <- f:
		return
	default:
	}
	// Queue full: evict the oldest, then retry once. A concurrent consumer
	// may have drained the queue between the two selects, in which case the
	// eviction receive gets a fresh frame slot anyway.
	select {
	case <-ch:
		dropped.Add(1)
	default:
	}
	select {
	case ch <- f:
	default:
		dropped.Add(1)
	}
}
