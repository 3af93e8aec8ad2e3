package formant

// Advice thresholds in Hz. F1 tracks mouth opening, F2 tracks tongue
// position, so the coaching text is derived from which delta is out of
// bounds and in which direction.
const (
	adviceF1Tolerance = 50
	adviceF2Tolerance = 100
)

// Advice returns a short coaching hint derived from the F1/F2 deltas.
// It looks only at the first two slots; sessions with more formants still
// coach on F1/F2, which carry the vowel identity.
func Advice(ds []Delta) string {
	if len(ds) < 2 || !ds[0].Defined || !ds[1].Defined {
		return "waiting for voice"
	}
	f1, f2 := ds[0].Hz, ds[1].Hz
	switch {
	case f1 < adviceF1Tolerance && f1 > -adviceF1Tolerance &&
		f2 < adviceF2Tolerance && f2 > -adviceF2Tolerance:
		return "good — voice matches the target"
	case f1 > adviceF1Tolerance:
		return "narrow your mouth opening"
	case f1 < -adviceF1Tolerance:
		return "open your mouth wider"
	case f2 > adviceF2Tolerance:
		return "lower your tongue"
	case f2 < -adviceF2Tolerance:
		return "raise your tongue"
	}
	return "keep adjusting"
}
