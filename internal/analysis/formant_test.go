package analysis

import (
	"math"
	"testing"

	"github.com/voicemirror/voicemirror/pkg/audio/synth"
	"github.com/voicemirror/voicemirror/pkg/formant"
)

// synthWindow renders a vowel-like signal with the given resonances and
// returns one tapered analysis window taken past the onset transient.
func synthWindow(t *testing.T, sampleRate int, resonances []synth.Resonance, size int) []float64 {
	t.Helper()
	gen, err := synth.NewGenerator(synth.GeneratorConfig{
		SampleRate:    sampleRate,
		FundamentalHz: 100,
		Amplitude:     0.5,
		Resonances:    resonances,
	})
	if err != nil {
		t.Fatal(err)
	}

	raw := make([]float32, size*4)
	gen.Fill(raw)

	taper := makeTaper(TaperHann, size)
	window := make([]float64, size)
	for i := range window {
		window[i] = float64(raw[size*2+i]) * taper[i]
	}
	return window
}

func testExtractorConfig(order int) ExtractorConfig {
	return ExtractorConfig{
		SampleRate:     16000,
		Order:          order,
		Slots:          4,
		MaxBandwidthHz: 400,
		MinFrequencyHz: 50,
		MaxFrequencyHz: 5000,
	}
}

func TestExtractor_RecoversKnownResonances(t *testing.T) {
	t.Parallel()
	const order = 8
	want := []float64{500, 1500, 2500}
	window := synthWindow(t, 16000, []synth.Resonance{
		{FrequencyHz: 500, BandwidthHz: 60},
		{FrequencyHz: 1500, BandwidthHz: 90},
		{FrequencyHz: 2500, BandwidthHz: 120},
	}, 1024)

	lpc, err := NewLPC(order, 0)
	if err != nil {
		t.Fatal(err)
	}
	model, ok := lpc.Analyze(window)
	if !ok {
		t.Fatal("no LPC model produced")
	}

	ex, err := NewExtractor(testExtractorConfig(order))
	if err != nil {
		t.Fatal(err)
	}
	set := formant.NewSet(4)
	ex.Extract(model, &set)

	const tol = 50.0
	for i, w := range want {
		sl := set.Slots[i]
		if !sl.Present {
			t.Fatalf("slot %d absent, want ~%v Hz", i, w)
		}
		if math.Abs(sl.FrequencyHz-w) > tol {
			t.Errorf("F%d = %v Hz, want %v ± %v", i+1, sl.FrequencyHz, w, tol)
		}
	}

	// Ascending order across present slots.
	prev := 0.0
	for i, sl := range set.Slots {
		if !sl.Present {
			continue
		}
		if sl.FrequencyHz <= prev {
			t.Errorf("slot %d (%v Hz) not strictly above previous (%v Hz)", i, sl.FrequencyHz, prev)
		}
		prev = sl.FrequencyHz
	}
}

func TestExtractor_MarksMissingSlotsAbsent(t *testing.T) {
	t.Parallel()
	const order = 2
	window := synthWindow(t, 16000, []synth.Resonance{
		{FrequencyHz: 800, BandwidthHz: 70},
	}, 1024)

	lpc, err := NewLPC(order, 0)
	if err != nil {
		t.Fatal(err)
	}
	model, ok := lpc.Analyze(window)
	if !ok {
		t.Fatal("no LPC model produced")
	}

	ex, err := NewExtractor(testExtractorConfig(order))
	if err != nil {
		t.Fatal(err)
	}
	set := formant.NewSet(4)
	ex.Extract(model, &set)

	if !set.Slots[0].Present {
		t.Fatal("slot 0 should hold the lone resonance")
	}
	if math.Abs(set.Slots[0].FrequencyHz-800) > 50 {
		t.Errorf("F1 = %v Hz, want 800 ± 50", set.Slots[0].FrequencyHz)
	}
	for i := 1; i < 4; i++ {
		if set.Slots[i].Present {
			t.Errorf("slot %d should be explicitly absent, got %v Hz", i, set.Slots[i].FrequencyHz)
		}
	}
}

func TestExtractor_RejectsBroadBandwidth(t *testing.T) {
	t.Parallel()
	const order = 2
	// A 700 Hz bandwidth pole is spectral tilt, not a formant.
	window := synthWindow(t, 16000, []synth.Resonance{
		{FrequencyHz: 1200, BandwidthHz: 700},
	}, 1024)

	lpc, err := NewLPC(order, 0)
	if err != nil {
		t.Fatal(err)
	}
	model, ok := lpc.Analyze(window)
	if !ok {
		t.Fatal("no LPC model produced")
	}

	ex, err := NewExtractor(testExtractorConfig(order))
	if err != nil {
		t.Fatal(err)
	}
	set := formant.NewSet(4)
	ex.Extract(model, &set)

	for i, sl := range set.Slots {
		if sl.Present && math.Abs(sl.FrequencyHz-1200) < 200 {
			t.Errorf("slot %d kept the broad pole at %v Hz (bw %v)", i, sl.FrequencyHz, sl.BandwidthHz)
		}
	}
}

func TestExtractor_RejectsOutOfRangeFrequencies(t *testing.T) {
	t.Parallel()
	const order = 2
	window := synthWindow(t, 16000, []synth.Resonance{
		{FrequencyHz: 6000, BandwidthHz: 80}, // above the 5 kHz voice ceiling
	}, 1024)

	lpc, err := NewLPC(order, 0)
	if err != nil {
		t.Fatal(err)
	}
	model, ok := lpc.Analyze(window)
	if !ok {
		t.Fatal("no LPC model produced")
	}

	ex, err := NewExtractor(testExtractorConfig(order))
	if err != nil {
		t.Fatal(err)
	}
	set := formant.NewSet(4)
	ex.Extract(model, &set)

	for i, sl := range set.Slots {
		if sl.Present && sl.FrequencyHz > 5000 {
			t.Errorf("slot %d kept out-of-range frequency %v Hz", i, sl.FrequencyHz)
		}
	}
}

func TestExtractor_WrongModelOrderComesBackAbsent(t *testing.T) {
	t.Parallel()
	ex, err := NewExtractor(testExtractorConfig(8))
	if err != nil {
		t.Fatal(err)
	}
	set := formant.NewSet(4)
	set.Slots[0] = formant.Slot{Present: true} // stale content must be cleared

	ex.Extract(Model{Coeffs: []float64{1, -0.5}, Order: 1}, &set)
	if !set.AllAbsent() {
		t.Error("mismatched model order must clear the set")
	}
}

func TestNewExtractor_Validation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		mut  func(*ExtractorConfig)
	}{
		{"zero sample rate", func(c *ExtractorConfig) { c.SampleRate = 0 }},
		{"order too small", func(c *ExtractorConfig) { c.Order = 1 }},
		{"zero slots", func(c *ExtractorConfig) { c.Slots = 0 }},
		{"zero bandwidth", func(c *ExtractorConfig) { c.MaxBandwidthHz = 0 }},
		{"inverted range", func(c *ExtractorConfig) { c.MinFrequencyHz = 5000; c.MaxFrequencyHz = 50 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testExtractorConfig(8)
			tt.mut(&cfg)
			if _, err := NewExtractor(cfg); err == nil {
				t.Error("expected a config error, got nil")
			}
		})
	}
}
