package modem

// LoopbackVariant is a reference Variant that performs no DSP at all:
// PullAudio drains bits straight from its BitSource into int16 samples
// (one bit per sample) and FeedAudio turns samples back into bits for
// its BitSink. It exists to exercise the Orchestrator, and the t30
// engine above it, without a real FSK/QAM implementation, the same
// role src/dlq_test.go's hand-built cdata fixtures play for the
// teacher's data-link tests: a minimal stand-in for an external
// collaborator that is out of this repository's scope.
//
// Training succeeds once TrainingDelay samples have been fed; with a
// TrainingDelay of 0 FeedAudio raises no training event at all. Callers
// that want to exercise training failure should set FailTraining.
type LoopbackVariant struct {
	family Family

	dir        Direction
	rate       Rate
	shortTrain bool

	// TrainingDelay is how many samples FeedAudio consumes before
	// declaring training complete after each Prepare; tests adjust it
	// between rounds to force or clear a training failure.
	TrainingDelay   int
	trainingElapsed int
	trainingSent    bool

	carrierUpSent bool

	// FailTraining, when true, causes the next Prepare for
	// DirectionReceive to raise EventTrainingFailed instead of
	// EventTrainingSucceeded once TrainingDelay samples have elapsed.
	FailTraining bool

	// FlagFraming, when set, makes FeedAudio watch the reconstructed
	// byte stream for literal 0x7E flag octets and raise
	// EventFramingOK at each one instead of forwarding every bit
	// straight to sink. This is how the loopback stands in for a
	// V.21 demodulator's flag detector/bit-destuffer (an external
	// DSP collaborator in production) without implementing real
	// bit-stuffing.
	FlagFraming bool

	rxByte         byte
	rxBitCount     int
	bytesThisFrame int
}

// NewLoopbackVariant returns a loopback stand-in for family. trainingDelay
// is the number of samples FeedAudio consumes before declaring training
// complete, modeling the ~1.5s TCF window at whatever sample rate the
// caller is using.
func NewLoopbackVariant(family Family, trainingDelay int) *LoopbackVariant {
	return &LoopbackVariant{family: family, TrainingDelay: trainingDelay}
}

func (m *LoopbackVariant) Family() Family { return m.family }

func (m *LoopbackVariant) Prepare(dir Direction, rate Rate, shortTrain bool) error {
	m.dir = dir
	m.rate = rate
	m.shortTrain = shortTrain
	m.trainingElapsed = 0
	m.trainingSent = false
	m.carrierUpSent = false
	m.rxByte = 0
	m.rxBitCount = 0
	m.bytesThisFrame = 0
	return nil
}

func (m *LoopbackVariant) FeedAudio(samples []int16, sink BitSink) []Event {
	var events []Event
	if !m.carrierUpSent {
		events = append(events, Event{Kind: EventCarrierUp})
		m.carrierUpSent = true
	}
	for _, s := range samples {
		if m.trainingElapsed < m.TrainingDelay {
			m.trainingElapsed++
			if m.trainingElapsed == m.TrainingDelay && !m.trainingSent {
				m.trainingSent = true
				if m.FailTraining {
					events = append(events, Event{Kind: EventTrainingFailed})
				} else {
					events = append(events, Event{Kind: EventTrainingSucceeded})
				}
			}
			continue
		}
		bit := 0
		if s != 0 {
			bit = 1
		}
		if !m.FlagFraming {
			sink(bit)
			events = append(events, bitEvent(bit))
			continue
		}
		events = append(events, m.feedFramedBit(bit, sink)...)
	}
	return events
}

func (m *LoopbackVariant) feedFramedBit(bit int, sink BitSink) []Event {
	if bit != 0 {
		m.rxByte |= 1 << uint(m.rxBitCount)
	}
	m.rxBitCount++
	if m.rxBitCount < 8 {
		return nil
	}
	b := m.rxByte
	m.rxByte = 0
	m.rxBitCount = 0

	if b == 0x7E {
		if m.bytesThisFrame > 0 {
			m.bytesThisFrame = 0
			return []Event{{Kind: EventFramingOK}}
		}
		return nil
	}
	var events []Event
	for i := 0; i < 8; i++ {
		bit := int((b >> uint(i)) & 1)
		sink(bit)
		events = append(events, bitEvent(bit))
	}
	m.bytesThisFrame++
	return events
}

func (m *LoopbackVariant) PullAudio(buf []int16, source BitSource) (int, []Event) {
	var events []Event
	n := 0
	for n < len(buf) {
		bit, ok := source()
		if !ok {
			break
		}
		if bit != 0 {
			buf[n] = 1
		} else {
			buf[n] = 0
		}
		events = append(events, bitEvent(bit))
		n++
	}
	return n, events
}
