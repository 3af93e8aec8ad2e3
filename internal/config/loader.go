package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/voicemirror/voicemirror/pkg/formant"
)

// Load reads the YAML configuration file at path, applies defaults for
// omitted fields, and returns a validated [Config].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r on top of the defaults and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Audio
	if cfg.Audio.Source == "" {
		errs = append(errs, errors.New("audio.source must name a capture adapter"))
	}
	if cfg.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate must be positive, got %d", cfg.Audio.SampleRate))
	}
	if cfg.Audio.BlockSize <= 0 {
		errs = append(errs, fmt.Errorf("audio.block_size must be positive, got %d", cfg.Audio.BlockSize))
	}
	if cfg.Audio.QueueDepth < 0 {
		errs = append(errs, fmt.Errorf("audio.queue_depth must not be negative, got %d", cfg.Audio.QueueDepth))
	}

	// Analysis
	if cfg.Analysis.WindowMs <= 0 {
		errs = append(errs, fmt.Errorf("analysis.window_ms must be positive, got %v", cfg.Analysis.WindowMs))
	}
	if cfg.Analysis.HopFraction <= 0 || cfg.Analysis.HopFraction > 1 {
		errs = append(errs, fmt.Errorf("analysis.hop_fraction must be in (0, 1], got %v", cfg.Analysis.HopFraction))
	}
	if cfg.Analysis.PreEmphasis < 0 || cfg.Analysis.PreEmphasis >= 1 {
		errs = append(errs, fmt.Errorf("analysis.pre_emphasis must be in [0, 1), got %v", cfg.Analysis.PreEmphasis))
	}
	switch cfg.Analysis.Taper {
	case "hann", "hamming":
	default:
		errs = append(errs, fmt.Errorf("analysis.taper %q is invalid; valid values: hann, hamming", cfg.Analysis.Taper))
	}
	if cfg.Analysis.Order < 0 {
		errs = append(errs, fmt.Errorf("analysis.order must not be negative, got %d", cfg.Analysis.Order))
	}
	if cfg.Analysis.Formants < 1 {
		errs = append(errs, fmt.Errorf("analysis.formants must be at least 1, got %d", cfg.Analysis.Formants))
	}
	if cfg.Analysis.SilenceRMS < 0 {
		errs = append(errs, fmt.Errorf("analysis.silence_rms must not be negative, got %v", cfg.Analysis.SilenceRMS))
	}
	if cfg.Analysis.MaxBandwidthHz <= 0 {
		errs = append(errs, fmt.Errorf("analysis.max_bandwidth_hz must be positive, got %v", cfg.Analysis.MaxBandwidthHz))
	}
	if cfg.Analysis.MinFrequencyHz < 0 || cfg.Analysis.MaxFrequencyHz <= cfg.Analysis.MinFrequencyHz {
		errs = append(errs, fmt.Errorf("analysis frequency range [%v, %v] is invalid",
			cfg.Analysis.MinFrequencyHz, cfg.Analysis.MaxFrequencyHz))
	}

	// Smoothing
	if cfg.Smoothing.Alpha <= 0 || cfg.Smoothing.Alpha > 1 {
		errs = append(errs, fmt.Errorf("smoothing.alpha must be in (0, 1], got %v", cfg.Smoothing.Alpha))
	}
	if cfg.Smoothing.MaxJumpHz <= 0 {
		errs = append(errs, fmt.Errorf("smoothing.max_jump_hz must be positive, got %v", cfg.Smoothing.MaxJumpHz))
	}
	if cfg.Smoothing.ResetAfter < 1 {
		errs = append(errs, fmt.Errorf("smoothing.reset_after must be at least 1, got %d", cfg.Smoothing.ResetAfter))
	}
	if cfg.Smoothing.HistoryDepth < 1 {
		errs = append(errs, fmt.Errorf("smoothing.history_depth must be at least 1, got %d", cfg.Smoothing.HistoryDepth))
	}

	// Target
	if len(cfg.Target.Custom) == 0 && cfg.Target.Preset == "" {
		errs = append(errs, errors.New("target: either a preset or a custom profile is required"))
	}
	for i, ct := range cfg.Target.Custom {
		if ct.FrequencyHz < 0 {
			errs = append(errs, fmt.Errorf("target.custom[%d].frequency_hz must not be negative, got %v", i, ct.FrequencyHz))
		}
		if (ct.GoodMinHz != 0 || ct.GoodMaxHz != 0) && ct.GoodMaxHz <= ct.GoodMinHz {
			errs = append(errs, fmt.Errorf("target.custom[%d] good range [%v, %v] is invalid", i, ct.GoodMinHz, ct.GoodMaxHz))
		}
	}

	// Render
	if cfg.Render.Sink == "" {
		errs = append(errs, errors.New("render.sink must name a render adapter"))
	}
	if cfg.Render.RefreshHz <= 0 {
		errs = append(errs, fmt.Errorf("render.refresh_hz must be positive, got %v", cfg.Render.RefreshHz))
	}

	return errors.Join(errs...)
}

// Profile builds the target profile selected by cfg: the custom profile
// when one is defined, otherwise the named preset.
func (c *Config) Profile() (*formant.Profile, error) {
	if len(c.Target.Custom) > 0 {
		targets := make([]*formant.Target, len(c.Target.Custom))
		for i, ct := range c.Target.Custom {
			if ct.FrequencyHz == 0 {
				continue // untargeted slot
			}
			t := &formant.Target{FrequencyHz: ct.FrequencyHz}
			if ct.GoodMaxHz > ct.GoodMinHz && ct.GoodMaxHz > 0 {
				t.GoodRange = &formant.Range{MinHz: ct.GoodMinHz, MaxHz: ct.GoodMaxHz}
			}
			targets[i] = t
		}
		return formant.NewProfile("custom", targets), nil
	}
	return formant.Preset(c.Target.Preset)
}
