// Package portaudio implements [audio.Source] on top of the PortAudio host
// API via github.com/gordonklaus/portaudio. It opens one mono input stream
// at a fixed sample rate and block size and delivers frames through a
// bounded queue with drop-oldest overrun semantics.
package portaudio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/voicemirror/voicemirror/pkg/audio"
)

// Compile-time interface assertion.
var _ audio.Source = (*Capture)(nil)

// DefaultQueueDepth is the number of frames the delivery queue holds before
// the drop-oldest policy kicks in. At 2048 samples / 44.1 kHz this is about
// 370 ms of slack.
const DefaultQueueDepth = 8

// Config holds the parameters for opening a capture stream.
type Config struct {
	// DeviceID selects the input device by host index. Use -1 for the
	// host's default input device.
	DeviceID int

	// SampleRate in Hz (e.g., 44100 or 16000).
	SampleRate int

	// BlockSize is the number of samples per delivered frame.
	BlockSize int

	// QueueDepth overrides the delivery queue length. Zero means
	// [DefaultQueueDepth].
	QueueDepth int
}

// Capture is a PortAudio-backed [audio.Source].
type Capture struct {
	cfg    Config
	frames chan audio.AudioFrame

	// bufs is a fixed ring of sample buffers reused across frames. The ring
	// is one larger than everything that can be in flight at once (queue
	// plus the frame the consumer currently holds), so a buffer is never
	// rewritten while still visible downstream.
	bufs [][]float32
	next int

	stream *portaudio.Stream
	read   []float32 // stream read target

	dropped atomic.Uint64
	seq     uint64

	mu      sync.Mutex
	started bool
	closed  bool
	stop    chan struct{}
	done    chan struct{}
	err     error
}

// New creates a Capture for the given config. The device is not opened until
// [Capture.Start].
func New(cfg Config) (*Capture, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("portaudio: sample rate must be positive, got %d", cfg.SampleRate)
	}
	if cfg.BlockSize <= 0 {
		return nil, fmt.Errorf("portaudio: block size must be positive, got %d", cfg.BlockSize)
	}
	depth := cfg.QueueDepth
	if depth <= 0 {
		depth = DefaultQueueDepth
	}

	c := &Capture{
		cfg:    cfg,
		frames: make(chan audio.AudioFrame, depth),
		bufs:   make([][]float32, depth+2),
		read:   make([]float32, cfg.BlockSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	for i := range c.bufs {
		c.bufs[i] = make([]float32, cfg.BlockSize)
	}
	return c, nil
}

// ListDevices initializes PortAudio, enumerates input-capable devices, and
// terminates again. Intended for a device-selection step before a session.
func ListDevices() ([]audio.Device, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: initialize: %w", err)
	}
	defer portaudio.Terminate()

	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("portaudio: enumerate devices: %w", err)
	}
	def, _ := portaudio.DefaultInputDevice()

	var devices []audio.Device
	for i, info := range infos {
		if info.MaxInputChannels < 1 {
			continue
		}
		devices = append(devices, audio.Device{
			ID:                i,
			Name:              info.Name,
			Default:           def != nil && info.Name == def.Name,
			MaxInputChannels:  info.MaxInputChannels,
			DefaultSampleRate: info.DefaultSampleRate,
		})
	}
	return devices, nil
}

// Start opens the configured device and launches the capture loop. Open
// failures (unknown device, permission denial) are returned immediately and
// are fatal: the source cannot be restarted.
func (c *Capture) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return errors.New("portaudio: Start called twice")
	}
	if c.closed {
		return errors.New("portaudio: source already closed")
	}
	c.started = true

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("portaudio: initialize: %w", err)
	}

	stream, err := c.openStream()
	if err != nil {
		portaudio.Terminate()
		return err
	}
	c.stream = stream

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("portaudio: start stream: %w", err)
	}

	slog.Info("capture started",
		"device", c.cfg.DeviceID,
		"sample_rate", c.cfg.SampleRate,
		"block_size", c.cfg.BlockSize,
	)

	go c.loop(ctx)
	return nil
}

// openStream opens either the default input device or the one selected by ID.
func (c *Capture) openStream() (*portaudio.Stream, error) {
	if c.cfg.DeviceID < 0 {
		stream, err := portaudio.OpenDefaultStream(1, 0, float64(c.cfg.SampleRate), c.cfg.BlockSize, c.read)
		if err != nil {
			return nil, fmt.Errorf("portaudio: open default input: %w", err)
		}
		return stream, nil
	}

	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("portaudio: enumerate devices: %w", err)
	}
	if c.cfg.DeviceID >= len(infos) {
		return nil, fmt.Errorf("portaudio: device index %d out of range (%d devices)", c.cfg.DeviceID, len(infos))
	}
	info := infos[c.cfg.DeviceID]
	if info.MaxInputChannels < 1 {
		return nil, fmt.Errorf("portaudio: device %q has no input channels", info.Name)
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   info,
			Channels: 1,
			Latency:  info.DefaultLowInputLatency,
		},
		SampleRate:      float64(c.cfg.SampleRate),
		FramesPerBuffer: c.cfg.BlockSize,
	}
	stream, err := portaudio.OpenStream(params, c.read)
	if err != nil {
		return nil, fmt.Errorf("portaudio: open device %q: %w", info.Name, err)
	}
	return stream, nil
}

// loop blocks on stream reads and pushes frames until cancelled or the
// device fails. A read error mid-session (device disappeared) is fatal and
// recorded for Err.
func (c *Capture) loop(ctx context.Context) {
	defer close(c.done)
	defer close(c.frames)

	blockDur := time.Duration(c.cfg.BlockSize) * time.Second / time.Duration(c.cfg.SampleRate)

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		default:
		}

		if err := c.stream.Read(); err != nil {
			// Overflow means the host dropped samples because we were slow;
			// that is the host-side flavour of our own drop policy.
			if errors.Is(err, portaudio.InputOverflowed) {
				c.dropped.Add(1)
				continue
			}
			c.setErr(fmt.Errorf("portaudio: read: %w", err))
			slog.Error("capture failed, stopping session", "err", err)
			return
		}

		buf := c.bufs[c.next]
		c.next = (c.next + 1) % len(c.bufs)
		copy(buf, c.read)

		frame := audio.AudioFrame{
			Samples:    buf,
			SampleRate: c.cfg.SampleRate,
			Seq:        c.seq,
			Timestamp:  time.Duration(c.seq) * blockDur,
		}
		c.seq++
		audio.PushLatest(c.frames, frame, &c.dropped)
	}
}

// Frames returns the delivery channel.
func (c *Capture) Frames() <-chan audio.AudioFrame { return c.frames }

// Dropped returns the overrun drop counter.
func (c *Capture) Dropped() uint64 { return c.dropped.Load() }

// Err returns the fatal capture error, if any.
func (c *Capture) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Capture) setErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		c.err = err
	}
}

// Close stops the capture loop and releases the device. Safe to call more
// than once.
func (c *Capture) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	started := c.started
	c.mu.Unlock()

	close(c.stop)
	if !started {
		return nil
	}

	// Abort unblocks a pending stream.Read.
	var errs []error
	if c.stream != nil {
		if err := c.stream.Abort(); err != nil {
			errs = append(errs, err)
		}
		<-c.done
		if err := c.stream.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := portaudio.Terminate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
