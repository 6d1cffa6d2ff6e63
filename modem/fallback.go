package modem

// FallbackStep is one entry of the caller's bit-rate/modem-family
// negotiation walk (spec.md §4.1).
type FallbackStep struct {
	Rate   Rate
	Family Family
}

// FallbackSequence is the ordered fallback walk: the caller starts at
// index 0 and advances on every TCF/training failure until a rate both
// sides advertise succeeds, or the sequence is exhausted.
var FallbackSequence = []FallbackStep{
	{Rate14400, FamilyV17},
	{Rate12000, FamilyV17},
	{Rate9600, FamilyV17},
	{Rate9600, FamilyV29},
	{Rate7200, FamilyV17},
	{Rate7200, FamilyV29},
	{Rate4800, FamilyV27ter},
	{Rate2400, FamilyV27ter},
}

// Capable reports whether step is usable given the bitmask of families
// both sides advertised (caller's transmit capability intersected with
// the answerer's DIS, or vice versa).
func (s FallbackStep) Capable(supported map[Family]bool) bool {
	return supported[s.Family]
}

// FirstCapable returns the first fallback step both ends can use, at or
// after start, and true. If none qualify it returns the zero step and
// false, meaning the caller must send DCN (spec.md §8: "Fallback
// exhaustion: attempting to negotiate below 2400/V.27ter must send DCN
// rather than loop.").
func FirstCapable(start int, supported map[Family]bool) (FallbackStep, int, bool) {
	for i := start; i < len(FallbackSequence); i++ {
		if FallbackSequence[i].Capable(supported) {
			return FallbackSequence[i], i, true
		}
	}
	return FallbackStep{}, len(FallbackSequence), false
}
