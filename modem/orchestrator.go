package modem

import (
	"fmt"

	"github.com/xrg/gofax30/dwlog"
)

// Direction is which way a Variant is armed: pulling audio out to the
// line, or consuming audio in from it.
type Direction int

const (
	DirectionReceive Direction = iota
	DirectionTransmit
)

func (d Direction) String() string {
	if d == DirectionTransmit {
		return "transmit"
	}
	return "receive"
}

// BitSource is called by a Variant while transmitting to pull the next
// payload bit. ok is false when there is no more data (end of the
// current HDLC frame group or T.4 page), which the original modeled as
// a sentinel bit value layered onto get_bit's return (spec.md §6); here
// it is just a second return value.
type BitSource func() (bit int, ok bool)

// BitSink is called by a Variant while receiving for every demodulated
// payload bit.
type BitSink func(bit int)

// Variant is the narrow interface a DSP modem implementation (V.21,
// V.27ter, V.29, or V.17) must satisfy. The DSP itself — FSK/QAM
// modulation, equalization, trellis decoding — is out of scope
// (spec.md §1); Variant is the seam between that external collaborator
// and this package's orchestration.
type Variant interface {
	Family() Family

	// Prepare (re)arms the modem for direction dir at rate. shortTrain
	// requests an abbreviated retrain sequence where the scheme
	// supports one.
	Prepare(dir Direction, rate Rate, shortTrain bool) error

	// FeedAudio consumes samples while armed to receive, returning any
	// events raised (carrier transitions, training outcome, payload
	// bits via sink).
	FeedAudio(samples []int16, sink BitSink) []Event

	// PullAudio fills up to len(buf) samples while armed to transmit,
	// pulling payload bits from source as needed. n==0 means the
	// generator has nothing to send right now.
	PullAudio(buf []int16, source BitSource) (n int, events []Event)
}

// Orchestrator enforces session invariant 1 (spec.md §3): at most one
// transmit/receive generator — silence, V.21, or a fast modem — is
// active at any instant. It holds one Variant per family and swaps
// which one is "live" as the procedure engine changes phase, instead of
// the teacher's pattern of several candidate demodulators running
// concurrently and voting (src/multi_modem.go's pick_best_candidate).
type Orchestrator struct {
	log      dwlog.Logger
	variants map[Family]Variant

	active    Variant
	direction Direction
	armed     bool

	transmitOnIdle bool
	tep            bool

	silenceRemaining int
}

// NewOrchestrator returns an Orchestrator with no variants registered.
func NewOrchestrator() *Orchestrator {
	return &Orchestrator{
		log:      dwlog.For("modem"),
		variants: make(map[Family]Variant),
	}
}

// Register installs v as the implementation for its family. Re-registering
// a family replaces the previous implementation.
func (o *Orchestrator) Register(v Variant) {
	o.variants[v.Family()] = v
}

// SetTransmitOnIdle controls whether PullAudio synthesizes silence
// samples (true) or returns 0 (false) when no generator is armed.
func (o *Orchestrator) SetTransmitOnIdle(on bool) { o.transmitOnIdle = on }

// SetTEP enables Talker Echo Protection: 1800 Hz for 1 s ahead of any
// training signal. Tone synthesis itself belongs to the registered
// fast-modem Variant; this flag records operator intent so a Variant
// that supports TEP knows to emit it at its next Prepare for transmit.
func (o *Orchestrator) SetTEP(on bool) { o.tep = on }
func (o *Orchestrator) TEP() bool      { return o.tep }

// ArmSilence schedules n samples of explicit all-zero PCM before the
// next Prepare's generator may run — the 75 ms V.21-to-fast-carrier gap
// and the 200 ms CED/Phase-E silences in spec.md §4.2.
func (o *Orchestrator) ArmSilence(n int) {
	o.silenceRemaining = n
}

// Prepare arms family at rate for dir, disarming anything currently
// active first so invariant 1 never observes two simultaneous
// generators. Arming a fast-modem family while V.21 is still the active
// variant is allowed: V.21 is disarmed first and the switch is logged at
// Debug, so the two are never armed together (invariant 2).
func (o *Orchestrator) Prepare(family Family, rate Rate, dir Direction, shortTrain bool) error {
	v, ok := o.variants[family]
	if !ok {
		return fmt.Errorf("modem: no variant registered for %s", family)
	}
	if o.active != nil && o.active.Family() == FamilyV21 && family != FamilyV21 {
		o.log.Debug("disarming V.21 before arming fast modem", "family", family)
	}
	o.active = nil
	o.armed = false
	if err := v.Prepare(dir, rate, shortTrain); err != nil {
		return err
	}
	o.active = v
	o.direction = dir
	o.armed = true
	o.log.Debug("modem prepared", "family", family, "rate", rate, "direction", dir)
	return nil
}

// Disarm releases the active variant; PullAudio/FeedAudio become no-ops
// (subject to transmit-on-idle) until the next Prepare.
func (o *Orchestrator) Disarm() {
	o.active = nil
	o.armed = false
}

// Active reports the currently armed family and direction, if any.
func (o *Orchestrator) Active() (Family, Direction, bool) {
	if !o.armed || o.active == nil {
		return 0, 0, false
	}
	return o.active.Family(), o.direction, true
}

// FeedAudio delivers samples to the active variant's receiver. It is an
// error to call this while armed for transmit or while nothing is
// armed; callers are expected to check Active() first, matching the
// single-threaded cooperative model of spec.md §5.
func (o *Orchestrator) FeedAudio(samples []int16, sink BitSink) ([]Event, error) {
	if !o.armed || o.direction != DirectionReceive {
		return nil, fmt.Errorf("modem: FeedAudio called while not armed to receive")
	}
	return o.active.FeedAudio(samples, sink), nil
}

// PullAudio fills buf from the active transmit variant, or from the
// timed-silence budget armed via ArmSilence, or with synthesized
// silence when transmit-on-idle is set, or returns 0 samples produced.
func (o *Orchestrator) PullAudio(buf []int16, source BitSource) (int, []Event, error) {
	if o.silenceRemaining > 0 {
		n := len(buf)
		if n > o.silenceRemaining {
			n = o.silenceRemaining
		}
		for i := 0; i < n; i++ {
			buf[i] = 0
		}
		o.silenceRemaining -= n
		return n, nil, nil
	}
	if o.armed && o.direction == DirectionTransmit {
		n, events := o.active.PullAudio(buf, source)
		if n > 0 || !o.transmitOnIdle {
			return n, events, nil
		}
	}
	if o.transmitOnIdle {
		for i := range buf {
			buf[i] = 0
		}
		return len(buf), nil, nil
	}
	return 0, nil, nil
}
