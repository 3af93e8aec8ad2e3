package formant

import (
	"fmt"
	"sort"
)

// Target is a single slot's training goal. Profiles may define targets for
// fewer slots than the session analyses (a two-formant vowel target in a
// four-formant session leaves F3/F4 untargeted).
type Target struct {
	// FrequencyHz is the desired formant frequency in Hz.
	FrequencyHz float64

	// GoodRange, when non-nil, is the band considered "on target" for
	// display purposes. The range is advisory; deltas are always computed
	// against FrequencyHz.
	GoodRange *Range
}

// Range is an inclusive frequency band in Hz.
type Range struct {
	MinHz float64
	MaxHz float64
}

// Contains reports whether hz falls inside the band.
func (r Range) Contains(hz float64) bool {
	return hz >= r.MinHz && hz <= r.MaxHz
}

// Profile is a read-only set of target formant frequencies the speaker is
// training toward. A Profile is immutable after construction; changing the
// target mid-session means swapping in a different Profile, never mutating
// one in place.
type Profile struct {
	name    string
	targets []Target
	defined []bool
}

// NewProfile builds a Profile from per-slot targets. A nil entry leaves that
// slot untargeted.
func NewProfile(name string, targets []*Target) *Profile {
	p := &Profile{
		name:    name,
		targets: make([]Target, len(targets)),
		defined: make([]bool, len(targets)),
	}
	for i, t := range targets {
		if t != nil {
			p.targets[i] = *t
			p.defined[i] = true
		}
	}
	return p
}

// Name returns the profile's display name.
func (p *Profile) Name() string { return p.name }

// Slots returns the number of slots the profile defines entries for,
// counting untargeted gaps.
func (p *Profile) Slots() int { return len(p.targets) }

// Target returns the target frequency for slot, and whether one is defined.
// Slots beyond the profile's length are undefined.
func (p *Profile) Target(slot int) (float64, bool) {
	if slot < 0 || slot >= len(p.targets) || !p.defined[slot] {
		return 0, false
	}
	return p.targets[slot].FrequencyHz, true
}

// InGoodRange reports whether hz falls inside the good range declared for
// slot. Returns false when the slot is untargeted or declares no range.
func (p *Profile) InGoodRange(slot int, hz float64) bool {
	if slot < 0 || slot >= len(p.targets) || !p.defined[slot] {
		return false
	}
	r := p.targets[slot].GoodRange
	return r != nil && r.Contains(hz)
}

// ─── Presets ─────────────────────────────────────────────────────────────────

// presets maps preset names to constructor functions. Each call returns a
// fresh Profile so callers can never alias a shared mutable object.
var presets = map[string]func() *Profile{
	// The default training target with its good ranges.
	"training-default": func() *Profile {
		return NewProfile("training-default", []*Target{
			{FrequencyHz: 550, GoodRange: &Range{MinHz: 500, MaxHz: 600}},
			{FrequencyHz: 2500, GoodRange: &Range{MinHz: 2400, MaxHz: 2600}},
		})
	},

	// Japanese vowel targets (F1/F2).
	"vowel-a": vowelPreset("vowel-a", 850, 1200),
	"vowel-i": vowelPreset("vowel-i", 300, 2200),
	"vowel-u": vowelPreset("vowel-u", 350, 1300),
	"vowel-e": vowelPreset("vowel-e", 500, 1900),
	"vowel-o": vowelPreset("vowel-o", 500, 900),
}

func vowelPreset(name string, f1, f2 float64) func() *Profile {
	return func() *Profile {
		return NewProfile(name, []*Target{
			{FrequencyHz: f1},
			{FrequencyHz: f2},
		})
	}
}

// Preset returns a fresh copy of the named preset profile.
func Preset(name string) (*Profile, error) {
	mk, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("formant: unknown preset %q (known: %v)", name, PresetNames())
	}
	return mk(), nil
}

// PresetNames lists the available preset names in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
