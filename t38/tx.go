package t38

import "github.com/xrg/gofax30/modem"

// EmitIndicator sends an indicator packet for a state transition on the
// audio side (carrier up, CNG/CED tone, V.21 preamble, or fast-modem
// training at a rate), repeated IndicatorRepeatCount times per
// spec.md §4.4's loss-robustness rule.
func (g *Gateway) EmitIndicator(ind Indicator) {
	g.pacer.reset()
	g.sendRepeated(Packet{Type: PacketIndicator, Indicator: ind})
}

// EmitHDLCFrame wraps one unstuffed HDLC frame body as an HDLC-data
// packet. Data packets are never repeated (spec.md §4.4).
func (g *Gateway) EmitHDLCFrame(payload []byte) {
	g.sendOnce(Packet{Type: PacketHDLCData, Data: append([]byte(nil), payload...)})
}

// EmitHDLCSigEnd marks carrier-down on a low-speed HDLC burst.
func (g *Gateway) EmitHDLCSigEnd() {
	g.sendRepeated(Packet{Type: PacketHDLCSigEnd})
}

// FeedNonECMBits pushes demodulated non-ECM image bits into the pacer,
// which batches them into one PacketT4NonECMData per MsPerTxChunk
// interval (spec.md §4.4 pacing) instead of emitting a packet per bit.
func (g *Gateway) FeedNonECMBits(bits []int) {
	for _, b := range g.pacer.push(bits) {
		g.sendOnce(Packet{Type: PacketT4NonECMData, Data: b})
	}
}

// EndNonECMData flushes any partial chunk still held by the pacer and
// emits the non-ECM sig-end packet (fast carrier dropping).
func (g *Gateway) EndNonECMData() {
	if b := g.pacer.flush(); b != nil {
		g.sendOnce(Packet{Type: PacketT4NonECMData, Data: b})
	}
	g.sendRepeated(Packet{Type: PacketT4NonECMSigEnd})
}

func (g *Gateway) sendOnce(p Packet) {
	g.dispatch(p, 1)
}

func (g *Gateway) sendRepeated(p Packet) {
	n := g.cfg.IndicatorRepeatCount
	if p.Type != PacketIndicator {
		n = g.cfg.DataEndRepeatCount
	}
	if n < 1 {
		n = 1
	}
	g.dispatch(p, n)
}

func (g *Gateway) dispatch(p Packet, repeatCount int) {
	p.Seq = g.txSeq
	g.txSeq++
	raw, err := g.codec.Encode(p)
	if err != nil {
		g.log.Warn("t38 encode failed", "type", p.Type, "err", err)
		return
	}
	if g.send != nil {
		g.send(raw, repeatCount)
	}
}

// nonECMPacer batches non-ECM bits into byte-aligned chunks of
// chunkSamples bits (8 kHz PCM, one bit per "sample" at the abstraction
// this package works at — the real bit rate conversion lives in the
// modem package's Variant, out of t38's concern) before handing a
// chunk back to the caller to wrap as one PacketT4NonECMData.
type nonECMPacer struct {
	chunkBits int
	buf       []int
}

func newNonECMPacer(chunkSamples int) nonECMPacer {
	return nonECMPacer{chunkBits: chunkSamples}
}

func (p *nonECMPacer) reset() { p.buf = nil }

func (p *nonECMPacer) push(bits []int) [][]byte {
	p.buf = append(p.buf, bits...)
	var out [][]byte
	for len(p.buf) >= p.chunkBits {
		out = append(out, bitsToBytes(p.buf[:p.chunkBits]))
		p.buf = p.buf[p.chunkBits:]
	}
	return out
}

func (p *nonECMPacer) flush() []byte {
	if len(p.buf) == 0 {
		return nil
	}
	b := bitsToBytes(p.buf)
	p.buf = nil
	return b
}

func bitsToBytes(bits []int) []byte {
	out := make([]byte, (len(bits)+7)/8)
	for i, bit := range bits {
		if bit != 0 {
			out[i/8] |= 1 << uint(7-i%8)
		}
	}
	return out
}

// IndicatorForTraining is a small helper the caller (the audio-side
// observer, such as Bridge) can use to build the
// training Indicator for a chosen fast-modem rate.
func IndicatorForTraining(family modem.Family, rate modem.Rate) Indicator {
	return Indicator{Kind: IndicatorTraining, Family: family, Rate: rate}
}
