package t30

import "fmt"

// Samples is a duration expressed in audio samples at the fixed 8 kHz
// rate every T.30 timer is specified against (spec.md §4.1). Giving
// timer units their own type, rather than passing bare ints or
// time.Duration around, is the redesign spec.md calls for in place of
// the original's implicit "samples are just an int" convention.
type Samples int

// SampleRate is the PSTN audio sample rate T.30 timers are defined against.
const SampleRate = 8000

// SecondsToSamples converts a duration in seconds to Samples.
func SecondsToSamples(seconds float64) Samples {
	return Samples(seconds * SampleRate)
}

// TimerID names one of the six T.30 timers.
type TimerID int

const (
	T0 TimerID = iota // 60s initial connect
	T1                // 35s first valid response
	T2                // 6s within-sequence response
	T3                // 10s operator alert
	T4                // 3s command-response turnaround
	T5                // 60s ECM recovery
)

func (id TimerID) String() string {
	return [...]string{"T0", "T1", "T2", "T3", "T4", "T5"}[id]
}

// defaultDurations holds each timer's nominal duration (spec.md §4.1).
var defaultDurations = [...]Samples{
	T0: SecondsToSamples(60),
	T1: SecondsToSamples(35),
	T2: SecondsToSamples(6),
	T3: SecondsToSamples(10),
	T4: SecondsToSamples(3),
	T5: SecondsToSamples(60),
}

// Timers tracks the six T.30 timers for one session. All timers are
// decremented together by the number of samples passed to the
// session's receive-audio entry point.
type Timers struct {
	remaining [6]Samples
	armed     [6]bool
}

// Arm starts id counting down from its default duration.
func (t *Timers) Arm(id TimerID) {
	t.remaining[id] = defaultDurations[id]
	t.armed[id] = true
}

// ArmFor starts id counting down from a caller-supplied duration
// (tests use this to avoid waiting out real T0/T1-scale values).
func (t *Timers) ArmFor(id TimerID, d Samples) {
	t.remaining[id] = d
	t.armed[id] = true
}

// Disarm stops id from counting down and clears its expiry.
func (t *Timers) Disarm(id TimerID) {
	t.armed[id] = false
	t.remaining[id] = 0
}

// Armed reports whether id is currently counting down.
func (t *Timers) Armed(id TimerID) bool {
	return t.armed[id]
}

// Tick advances every armed timer by n samples and returns the IDs of
// any timer that expired (reached zero) on this call, ordered T0..T5.
// An expired timer is automatically disarmed; callers that want it to
// keep firing must re-Arm it.
func (t *Timers) Tick(n Samples) []TimerID {
	var expired []TimerID
	for id := T0; id <= T5; id++ {
		if !t.armed[id] {
			continue
		}
		t.remaining[id] -= n
		if t.remaining[id] <= 0 {
			t.armed[id] = false
			t.remaining[id] = 0
			expired = append(expired, id)
		}
	}
	return expired
}

// Remaining returns how many samples are left on id, or 0 if disarmed.
func (t *Timers) Remaining(id TimerID) Samples {
	return t.remaining[id]
}

func (s Samples) String() string {
	return fmt.Sprintf("%d samples (%.3fs)", int(s), float64(s)/SampleRate)
}
