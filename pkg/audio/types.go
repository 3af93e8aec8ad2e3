package audio

import "time"

// AudioFrame is one fixed-size block of mono PCM captured from an input
// device. Frames are immutable once produced: the capture source never
// touches Samples again after the frame has been handed to the consumer.
type AudioFrame struct {
	// Samples holds normalized mono samples in [-1, 1]. The length equals
	// the session's configured block size.
	Samples []float32

	// SampleRate in Hz.
	SampleRate int

	// Seq is a monotonic sequence number starting at 0. Gaps indicate
	// frames dropped under overrun; under normal operation there are none.
	Seq uint64

	// Timestamp marks when the first sample of this frame was captured,
	// relative to stream start.
	Timestamp time.Duration
}

// Duration returns the time span covered by the frame.
func (f AudioFrame) Duration() time.Duration {
	if f.SampleRate == 0 {
		return 0
	}
	return time.Duration(len(f.Samples)) * time.Second / time.Duration(f.SampleRate)
}

// Device describes an audio input device as reported by the host API.
type Device struct {
	// ID is the host-API device index used to select the device.
	ID int

	// Name is the human-readable device name.
	Name string

	// Default reports whether this is the host's default input device.
	Default bool

	// MaxInputChannels is the number of input channels the device supports.
	MaxInputChannels int

	// DefaultSampleRate is the device's preferred sample rate in Hz.
	DefaultSampleRate float64
}
