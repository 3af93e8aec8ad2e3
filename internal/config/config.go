// Package config provides the configuration schema, loader, and adapter
// registry for the VoiceMirror formant trainer.
package config

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for VoiceMirror.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
// Every analysis knob is fixed at session start; there is no runtime
// mutation beyond the atomic profile and source swaps the app exposes.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Audio     AudioConfig     `yaml:"audio"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Smoothing SmoothingConfig `yaml:"smoothing"`
	Target    TargetConfig    `yaml:"target"`
	Render    RenderConfig    `yaml:"render"`
}

// ServerConfig holds logging and telemetry settings.
type ServerConfig struct {
	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// MetricsAddr is the TCP address for the Prometheus /metrics endpoint
	// (e.g., ":9090"). Empty disables the endpoint.
	MetricsAddr string `yaml:"metrics_addr"`
}

// AudioConfig selects and parameterises the capture source.
type AudioConfig struct {
	// Source selects the registered capture adapter ("portaudio", "synth").
	Source string `yaml:"source"`

	// Device is the input device index for host-API sources. -1 selects
	// the default input device.
	Device int `yaml:"device"`

	// SampleRate in Hz.
	SampleRate int `yaml:"sample_rate"`

	// BlockSize is the number of samples per capture block.
	BlockSize int `yaml:"block_size"`

	// QueueDepth is the capture delivery queue length in blocks. Zero
	// leaves the adapter default.
	QueueDepth int `yaml:"queue_depth"`
}

// AnalysisConfig holds the spectral estimation parameters.
type AnalysisConfig struct {
	// WindowMs is the analysis window length in milliseconds.
	WindowMs float64 `yaml:"window_ms"`

	// HopFraction is the hop between windows as a fraction of the window
	// length, in (0, 1].
	HopFraction float64 `yaml:"hop_fraction"`

	// PreEmphasis is the first-order pre-emphasis coefficient in [0, 1).
	PreEmphasis float64 `yaml:"pre_emphasis"`

	// Taper selects the window taper function ("hann" or "hamming").
	Taper string `yaml:"taper"`

	// Order is the LPC order. Zero derives it from the sample rate
	// (rate in kHz plus two).
	Order int `yaml:"order"`

	// Formants is the number of formant slots to track (K).
	Formants int `yaml:"formants"`

	// SilenceRMS is the window RMS below which no model is fitted.
	SilenceRMS float64 `yaml:"silence_rms"`

	// MaxBandwidthHz rejects formant candidates broader than this.
	MaxBandwidthHz float64 `yaml:"max_bandwidth_hz"`

	// MinFrequencyHz / MaxFrequencyHz bound the plausible voice range.
	MinFrequencyHz float64 `yaml:"min_frequency_hz"`
	MaxFrequencyHz float64 `yaml:"max_frequency_hz"`
}

// SmoothingConfig holds the temporal filtering parameters.
type SmoothingConfig struct {
	// Alpha is the exponential smoothing weight for new values, in (0, 1].
	Alpha float64 `yaml:"alpha"`

	// MaxJumpHz is the largest accepted frame-to-frame slot change.
	MaxJumpHz float64 `yaml:"max_jump_hz"`

	// ResetAfter is the consecutive-discard count that unlocks a slot.
	ResetAfter int `yaml:"reset_after"`

	// HistoryDepth is the rolling-average window in accepted values.
	HistoryDepth int `yaml:"history_depth"`
}

// TargetConfig selects the training target.
type TargetConfig struct {
	// Preset names a built-in target profile (see formant.PresetNames).
	// Ignored when Custom is set.
	Preset string `yaml:"preset"`

	// Custom defines a user-specific profile, one entry per slot.
	Custom []CustomTarget `yaml:"custom"`
}

// CustomTarget is one slot of a user-defined profile.
type CustomTarget struct {
	// FrequencyHz is the target frequency. Zero leaves the slot untargeted.
	FrequencyHz float64 `yaml:"frequency_hz"`

	// GoodMinHz / GoodMaxHz optionally declare the on-target band.
	GoodMinHz float64 `yaml:"good_min_hz"`
	GoodMaxHz float64 `yaml:"good_max_hz"`
}

// RenderConfig selects and parameterises the display sink.
type RenderConfig struct {
	// Sink selects the registered render adapter ("terminal", "null").
	Sink string `yaml:"sink"`

	// RefreshHz is the display refresh rate.
	RefreshHz float64 `yaml:"refresh_hz"`

	// Waveform enables the waveform strip in published frames.
	Waveform bool `yaml:"waveform"`
}

// Default returns the configuration used when no file is supplied:
// default input device at 44.1 kHz, 2048-sample blocks, a 40 ms Hann
// window with 40% hop, and the default training target.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			LogLevel: LogInfo,
		},
		Audio: AudioConfig{
			Source:     "portaudio",
			Device:     -1,
			SampleRate: 44100,
			BlockSize:  2048,
		},
		Analysis: AnalysisConfig{
			WindowMs:       40,
			HopFraction:    0.4,
			PreEmphasis:    0.97,
			Taper:          "hann",
			Formants:       4,
			SilenceRMS:     0.005,
			MaxBandwidthHz: 400,
			MinFrequencyHz: 50,
			MaxFrequencyHz: 5000,
		},
		Smoothing: SmoothingConfig{
			Alpha:        0.4,
			MaxJumpHz:    300,
			ResetAfter:   3,
			HistoryDepth: 10,
		},
		Target: TargetConfig{
			Preset: "training-default",
		},
		Render: RenderConfig{
			Sink:      "terminal",
			RefreshHz: 30,
			Waveform:  true,
		},
	}
}

// WindowSamples converts the configured window length to samples.
func (c *Config) WindowSamples() int {
	return int(c.Analysis.WindowMs * float64(c.Audio.SampleRate) / 1000)
}

// HopSamples converts the configured hop fraction to samples.
func (c *Config) HopSamples() int {
	return int(float64(c.WindowSamples()) * c.Analysis.HopFraction)
}
