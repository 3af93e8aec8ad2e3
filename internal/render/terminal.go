// Package render provides the built-in display sinks: an ANSI terminal
// renderer and a null sink for headless runs.
package render

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/voicemirror/voicemirror/pkg/render"
)

// barScaleHz is the frequency covered by a full bar. Chosen to keep F1
// through F4 of typical voices on screen.
const barScaleHz = 4000

// TerminalConfig configures a [Terminal] sink.
type TerminalConfig struct {
	// Out is the destination. Nil means os.Stdout.
	Out io.Writer

	// BarWidth is the bar length in cells. Zero means 48.
	BarWidth int

	// Waveform enables the waveform strip above the bars.
	Waveform bool
}

// Terminal draws frames as horizontal per-formant bars with target markers,
// signed deltas, rolling averages, and a coaching line. Each Render call
// repaints the full display in place using ANSI cursor control.
type Terminal struct {
	out      *bufio.Writer
	barWidth int
	waveform bool
	painted  bool
}

// NewTerminal creates a terminal sink.
func NewTerminal(cfg TerminalConfig) *Terminal {
	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}
	width := cfg.BarWidth
	if width <= 0 {
		width = 48
	}
	return &Terminal{
		out:      bufio.NewWriter(out),
		barWidth: width,
		waveform: cfg.Waveform,
	}
}

// Render repaints the display with f.
func (t *Terminal) Render(f *render.Frame) error {
	if t.painted {
		t.out.WriteString("\x1b[H\x1b[J")
	}
	t.painted = true

	fmt.Fprintf(t.out, "voicemirror  t=%.2fs  frame %d", f.Time.Seconds(), f.Seq)
	if f.DroppedFrames > 0 {
		fmt.Fprintf(t.out, "  dropped=%d", f.DroppedFrames)
	}
	t.out.WriteString("\n\n")

	if t.waveform && len(f.Waveform) > 0 {
		t.out.WriteString(sparkline(f.Waveform, t.barWidth+20))
		t.out.WriteString("\n\n")
	}

	if prof := f.Profile; prof != nil {
		fmt.Fprintf(t.out, "target: %s\n", prof.Name())
	}

	for i := range f.Formants.Slots {
		t.writeSlot(f, i)
	}

	t.out.WriteString("\n")
	for i, sl := range f.Averages.Slots {
		if !sl.Present {
			continue
		}
		fmt.Fprintf(t.out, "F%d avg %4.0f Hz  ", i+1, sl.FrequencyHz)
	}
	t.out.WriteString("\n\n")
	fmt.Fprintf(t.out, "%s\n", f.Advice())

	return t.out.Flush()
}

// writeSlot draws one formant line: bar, frequency, target, and delta.
func (t *Terminal) writeSlot(f *render.Frame, i int) {
	sl := f.Formants.Slots[i]

	var target float64
	targeted := false
	if f.Profile != nil {
		target, targeted = f.Profile.Target(i)
	}

	bar := make([]byte, t.barWidth)
	for j := range bar {
		bar[j] = ' '
	}
	if sl.Present {
		fill := t.cell(sl.FrequencyHz)
		for j := 0; j < fill; j++ {
			bar[j] = '='
		}
	}
	if targeted {
		bar[t.cell(target)] = '|'
	}

	fmt.Fprintf(t.out, "F%d ", i+1)
	if sl.Present {
		fmt.Fprintf(t.out, "%5.0f Hz ", sl.FrequencyHz)
	} else {
		t.out.WriteString("   -- Hz ")
	}
	fmt.Fprintf(t.out, "[%s]", bar)

	if targeted {
		fmt.Fprintf(t.out, " target %4.0f", target)
		if i < len(f.Deltas) && f.Deltas[i].Defined {
			d := f.Deltas[i]
			fmt.Fprintf(t.out, "  %+5.0f", d.Hz)
			if d.InRange {
				t.out.WriteString("  ok")
			}
		}
	}
	t.out.WriteString("\n")
}

// cell maps a frequency onto a bar cell index, clamped to the bar.
func (t *Terminal) cell(hz float64) int {
	c := int(hz / barScaleHz * float64(t.barWidth))
	if c < 0 {
		c = 0
	}
	if c >= t.barWidth {
		c = t.barWidth - 1
	}
	return c
}

// sparkRamp maps amplitude to glyph density.
const sparkRamp = " .:-=+*#@"

// sparkline downsamples samples into a width-cell amplitude strip.
func sparkline(samples []float32, width int) string {
	if width < 1 || len(samples) == 0 {
		return ""
	}
	if width > len(samples) {
		width = len(samples)
	}
	var b strings.Builder
	b.Grow(width)
	per := len(samples) / width
	for i := 0; i < width; i++ {
		peak := 0.0
		for _, v := range samples[i*per : (i+1)*per] {
			if a := math.Abs(float64(v)); a > peak {
				peak = a
			}
		}
		idx := int(peak * float64(len(sparkRamp)))
		if idx >= len(sparkRamp) {
			idx = len(sparkRamp) - 1
		}
		b.WriteByte(sparkRamp[idx])
	}
	return b.String()
}

// Close flushes any buffered output and leaves the cursor below the display.
func (t *Terminal) Close() error {
	if t.painted {
		t.out.WriteString("\n")
	}
	return t.out.Flush()
}
