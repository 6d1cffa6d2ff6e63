package t38

import (
	"github.com/xrg/gofax30/dwlog"
	"github.com/xrg/gofax30/hdlc"
	"github.com/xrg/gofax30/modem"
)

// Bridge terminates the PSTN half of a gateway: audio in one side,
// IFP packets out the other, and vice versa (spec.md §4.4's
// bidirectional semantics). It owns a modem.Orchestrator for the audio
// side and drives a Gateway for the packet side; T.30 semantics flow
// through untouched — the bridge never interprets control frames, it
// only preserves carrier, framing, and ordering across the boundary.
type Bridge struct {
	log  dwlog.Logger
	gw   *Gateway
	orch *modem.Orchestrator

	// Audio -> IFP receive side.
	rxFamily modem.Family
	rxRate   modem.Rate
	rxHDLC   bool
	accum    hdlc.BitAccumulator

	// IFP -> audio transmit side.
	txQueue          []func() (int, bool)
	txSource         func() (int, bool)
	preambleSent     bool
	disarmAfterDrain bool
}

// NewBridge wires gw's packet-delivery handlers into a new bridge
// driving orch. The caller retains gw for RxPacket deliveries and
// configuration; the bridge takes over the five typed-record handlers.
func NewBridge(gw *Gateway, orch *modem.Orchestrator) *Bridge {
	b := &Bridge{
		log:  dwlog.For("t38"),
		gw:   gw,
		orch: orch,
	}
	gw.SetIndicatorHandler(b.onIndicator)
	gw.SetHDLCDataHandler(b.onHDLCData)
	gw.SetHDLCSigEndHandler(b.onHDLCSigEnd)
	gw.SetNonECMDataHandler(b.onNonECMData)
	gw.SetNonECMSigEndHandler(b.onNonECMSigEnd)
	return b
}

// ArmReceive points the audio-side demodulator at family/rate. V.21
// (and, when ECM is on, the fast modem too) is treated as HDLC-framed;
// otherwise fast-modem bits are forwarded as raw non-ECM image data.
func (b *Bridge) ArmReceive(family modem.Family, rate modem.Rate) error {
	b.rxFamily = family
	b.rxRate = rate
	b.rxHDLC = family == modem.FamilyV21 || b.gw.cfg.ECMCapable
	b.accum.Reset()
	return b.orch.Prepare(family, rate, modem.DirectionReceive, false)
}

// ReceiveAudio is the PSTN-side input: demodulate samples and translate
// the resulting events into IFP packets. Indicator packets always
// precede the data of their carrier; sig-end follows all of it
// (spec.md §5 ordering guarantee 3).
func (b *Bridge) ReceiveAudio(samples []int16) error {
	_, dir, armed := b.orch.Active()
	if !armed || dir != modem.DirectionReceive {
		return nil
	}
	sink := b.accum.PutBit
	if !b.rxHDLC {
		sink = func(int) {}
	}
	events, err := b.orch.FeedAudio(samples, sink)
	if err != nil {
		return err
	}
	var bits []int
	for _, ev := range events {
		switch ev.Kind {
		case modem.EventCarrierUp:
			b.accum.Reset()
			if b.rxFamily == modem.FamilyV21 {
				b.gw.EmitIndicator(Indicator{Kind: IndicatorV21Preamble})
			} else {
				b.gw.EmitIndicator(IndicatorForTraining(b.rxFamily, b.rxRate))
			}
		case modem.EventCarrierDown:
			if b.rxHDLC {
				b.gw.EmitHDLCSigEnd()
			} else {
				if len(bits) > 0 {
					b.gw.FeedNonECMBits(bits)
					bits = nil
				}
				b.gw.EndNonECMData()
			}
		case modem.EventFramingOK:
			raw := append([]byte(nil), b.accum.Bytes()...)
			b.accum.Reset()
			if _, err := hdlc.Decode(raw); err != nil {
				b.log.Warn("dropping corrupt HDLC frame at gateway", "err", err)
				break
			}
			b.gw.EmitHDLCFrame(raw[:len(raw)-2])
		case modem.EventPayloadBit:
			if !b.rxHDLC {
				bits = append(bits, ev.Bit)
			}
		}
	}
	if len(bits) > 0 {
		b.gw.FeedNonECMBits(bits)
	}
	return nil
}

// TransmitAudio is the PSTN-side output: fill buf from whatever the
// packet side has queued (re-framed HDLC bursts or raw non-ECM data).
// 0 means the line is idle right now.
func (b *Bridge) TransmitAudio(buf []int16) (int, error) {
	n, _, err := b.orch.PullAudio(buf, b.nextBit)
	if err != nil {
		return 0, err
	}
	if n == 0 && b.txSource == nil && len(b.txQueue) == 0 && b.disarmAfterDrain {
		b.orch.Disarm()
		b.disarmAfterDrain = false
	}
	return n, nil
}

func (b *Bridge) nextBit() (int, bool) {
	for {
		if b.txSource != nil {
			if bit, ok := b.txSource(); ok {
				return bit, true
			}
			b.txSource = nil
		}
		if len(b.txQueue) == 0 {
			return 0, false
		}
		b.txSource = b.txQueue[0]
		b.txQueue = b.txQueue[1:]
	}
}

func (b *Bridge) onIndicator(ind Indicator) {
	switch ind.Kind {
	case IndicatorNoSignal:
		b.orch.Disarm()
	case IndicatorCNG, IndicatorCED:
		// Tone synthesis is the DSP collaborator's job; hold the line
		// with the tone's duration of no-signal so downstream timing
		// stays continuous.
		b.orch.Disarm()
		if ind.Kind == IndicatorCED {
			b.orch.ArmSilence(26 * 800) // 2.6s at 8 kHz
		} else {
			b.orch.ArmSilence(5 * 800) // 0.5s on-period
		}
	case IndicatorV21Preamble:
		b.preambleSent = false
		if err := b.orch.Prepare(modem.FamilyV21, 0, modem.DirectionTransmit, false); err != nil {
			b.log.Warn("cannot arm V.21 transmitter", "err", err)
		}
	case IndicatorTraining:
		if err := b.orch.Prepare(ind.Family, ind.Rate, modem.DirectionTransmit, false); err != nil {
			b.log.Warn("cannot arm fast modem", "family", ind.Family, "rate", ind.Rate, "err", err)
		}
	}
}

// onHDLCData re-frames one unstuffed HDLC body for the audio side:
// CRC appended, preamble ahead of the burst's first frame, flag idle
// between subsequent ones (spec.md §4.4: "HDLC-data is passed to the
// HDLC transmitter (re-stuffed, CRC appended)").
func (b *Bridge) onHDLCData(body []byte) {
	var out []byte
	if !b.preambleSent {
		out = append(out, hdlc.Preamble(hdlc.MinPreambleOctets)...)
		b.preambleSent = true
	} else {
		out = append(out, hdlc.InterFrameIdle(hdlc.MinInterFrameFlags)...)
	}
	out = append(out, hdlc.AppendCRC(append([]byte(nil), body...))...)
	b.txQueue = append(b.txQueue, hdlc.BitSource(out))
}

func (b *Bridge) onHDLCSigEnd() {
	b.txQueue = append(b.txQueue, hdlc.BitSource(hdlc.TrailingIdle(hdlc.MinTrailingFlags)))
	b.preambleSent = false
	b.disarmAfterDrain = true
}

func (b *Bridge) onNonECMData(data []byte) {
	bits := bytesToBits(data)
	pos := 0
	b.txQueue = append(b.txQueue, func() (int, bool) {
		if pos >= len(bits) {
			return 0, false
		}
		bit := bits[pos]
		pos++
		return bit, true
	})
}

func (b *Bridge) onNonECMSigEnd() {
	b.disarmAfterDrain = true
}

// bytesToBits reverses bitsToBytes' MSB-first packing, so a chunk
// paced out by one gateway replays bit-exact from the peer.
func bytesToBits(data []byte) []int {
	out := make([]int, 0, len(data)*8)
	for _, b := range data {
		for i := 7; i >= 0; i-- {
			out = append(out, int((b>>uint(i))&1))
		}
	}
	return out
}
