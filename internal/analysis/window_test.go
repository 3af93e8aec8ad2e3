package analysis

import (
	"math"
	"testing"
)

func testWindowerConfig() WindowerConfig {
	return WindowerConfig{
		SampleRate:  16000,
		Size:        400,
		Hop:         160,
		PreEmphasis: 0.97,
		Taper:       TaperHann,
	}
}

func TestWindower_NoEmissionBeforeFull(t *testing.T) {
	t.Parallel()
	w, err := NewWindower(testWindowerConfig())
	if err != nil {
		t.Fatal(err)
	}

	emitted := 0
	block := make([]float32, 399) // one short of a full window
	w.Push(block, func(Window) { emitted++ })
	if emitted != 0 {
		t.Fatalf("emitted %d windows before the ring filled", emitted)
	}

	// One more sample completes the first window.
	w.Push([]float32{0.1}, func(Window) { emitted++ })
	if emitted != 1 {
		t.Fatalf("emitted %d windows after fill, want 1", emitted)
	}
}

func TestWindower_HopCadence(t *testing.T) {
	t.Parallel()
	cfg := testWindowerConfig()
	w, err := NewWindower(cfg)
	if err != nil {
		t.Fatal(err)
	}

	emitted := 0
	// 400 (fill) + 4*160 (four hops) samples → 5 windows.
	block := make([]float32, cfg.Size+4*cfg.Hop)
	w.Push(block, func(Window) { emitted++ })
	if emitted != 5 {
		t.Fatalf("emitted %d windows, want 5", emitted)
	}
}

func TestWindower_TaperAppliedAtEdges(t *testing.T) {
	t.Parallel()
	cfg := testWindowerConfig()
	cfg.PreEmphasis = 0 // isolate the taper
	w, err := NewWindower(cfg)
	if err != nil {
		t.Fatal(err)
	}

	block := make([]float32, cfg.Size)
	for i := range block {
		block[i] = 1
	}

	var got []float64
	w.Push(block, func(win Window) {
		got = append(got[:0], win.Samples...)
	})
	if got == nil {
		t.Fatal("no window emitted")
	}

	// Hann endpoints are zero, the middle is near one.
	if math.Abs(got[0]) > 1e-12 {
		t.Errorf("first sample = %v, want 0 (Hann edge)", got[0])
	}
	if math.Abs(got[len(got)-1]) > 1e-12 {
		t.Errorf("last sample = %v, want 0 (Hann edge)", got[len(got)-1])
	}
	if got[len(got)/2] < 0.99 {
		t.Errorf("center sample = %v, want ~1", got[len(got)/2])
	}
}

func TestWindower_PreEmphasisFlattensConstant(t *testing.T) {
	t.Parallel()
	cfg := testWindowerConfig()
	w, err := NewWindower(cfg)
	if err != nil {
		t.Fatal(err)
	}

	block := make([]float32, cfg.Size)
	for i := range block {
		block[i] = 0.5
	}

	var sum float64
	w.Push(block, func(win Window) {
		for _, s := range win.Samples[1:] { // skip the filter's startup sample
			sum += math.Abs(s)
		}
	})

	// A constant signal pre-emphasized with a=0.97 leaves only 3% residual
	// per sample before the taper; the tapered sum must be small relative
	// to the untouched signal's energy.
	if sum > 0.03*0.5*float64(cfg.Size) {
		t.Errorf("pre-emphasized constant signal has residual sum %v", sum)
	}
}

func TestWindower_EmissionsPerBlockWithLargeBlocks(t *testing.T) {
	t.Parallel()
	cfg := testWindowerConfig()
	w, err := NewWindower(cfg)
	if err != nil {
		t.Fatal(err)
	}

	// A block several hops long must emit several windows.
	emitted := 0
	w.Push(make([]float32, cfg.Size+10*cfg.Hop), func(Window) { emitted++ })
	if emitted != 11 {
		t.Fatalf("emitted %d windows from one large block, want 11", emitted)
	}
}

func TestWindower_ResetClearsState(t *testing.T) {
	t.Parallel()
	cfg := testWindowerConfig()
	w, err := NewWindower(cfg)
	if err != nil {
		t.Fatal(err)
	}

	w.Push(make([]float32, cfg.Size), func(Window) {})
	w.Reset()

	emitted := 0
	w.Push(make([]float32, cfg.Size-1), func(Window) { emitted++ })
	if emitted != 0 {
		t.Fatalf("windower emitted %d windows right after Reset", emitted)
	}
}

func TestNewWindower_Validation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mut    func(*WindowerConfig)
	}{
		{"zero sample rate", func(c *WindowerConfig) { c.SampleRate = 0 }},
		{"zero size", func(c *WindowerConfig) { c.Size = 0 }},
		{"zero hop", func(c *WindowerConfig) { c.Hop = 0 }},
		{"hop exceeds size", func(c *WindowerConfig) { c.Hop = c.Size + 1 }},
		{"negative pre-emphasis", func(c *WindowerConfig) { c.PreEmphasis = -0.1 }},
		{"pre-emphasis of one", func(c *WindowerConfig) { c.PreEmphasis = 1 }},
		{"bad taper", func(c *WindowerConfig) { c.Taper = "blackman-harris-7" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testWindowerConfig()
			tt.mut(&cfg)
			if _, err := NewWindower(cfg); err == nil {
				t.Error("expected a config error, got nil")
			}
		})
	}
}
