package t38

import "fmt"

// rxState tracks, per packet class, the sequence number of the last
// delivered packet
// (for repeated-class dedup) and the next expected sequence number
// (for data-class gap detection), per spec.md §4.4: "the receiver must
// deduplicate by sequence number and must tolerate gaps up to the
// repeat count without declaring data loss. Data packets are not
// repeated and gaps in them are reported as missing-data."
type rxState struct {
	lastSeen map[PacketType]*uint16
	nextData map[PacketType]*uint16
}

func newRxState() rxState {
	return rxState{
		lastSeen: make(map[PacketType]*uint16),
		nextData: make(map[PacketType]*uint16),
	}
}

// MissingDataHandler is invoked when a gap is detected in a non-ECM
// data sequence (spec.md §4.4 gap handling); the procedure engine may
// then emit RTN at page end.
type MissingDataHandler func(class PacketType, expectedSeq, gotSeq uint16)

// SetMissingDataHandler registers the gap-notification callback.
func (g *Gateway) SetMissingDataHandler(fn MissingDataHandler) { g.onMissingData = fn }

// RxPacket delivers one incoming IFP packet (spec.md §6's rx_packet):
// the gateway decodes it, deduplicates repeated classes by sequence
// number, detects gaps in unrepeated data classes, and dispatches to
// the registered handler.
func (g *Gateway) RxPacket(raw []byte) error {
	p, err := g.codec.Decode(raw)
	if err != nil {
		return fmt.Errorf("t38: rx_packet: %w", err)
	}

	if p.Type.repeated() {
		if seen := g.rx.lastSeen[p.Type]; seen != nil {
			if withinWindow(*seen, p.Seq, g.cfg.IndicatorRepeatCount) {
				g.stats.DuplicatesDropped++
				return nil // already delivered this redundant copy.
			}
		}
		next := p.Seq
		g.rx.lastSeen[p.Type] = &next
	} else {
		if exp := g.rx.nextData[p.Type]; exp != nil && p.Seq != *exp {
			g.stats.MissingData++
			if g.onMissingData != nil {
				g.onMissingData(p.Type, *exp, p.Seq)
			}
		}
		next := p.Seq + 1
		g.rx.nextData[p.Type] = &next
	}

	switch p.Type {
	case PacketIndicator:
		if g.onIndicator != nil {
			g.onIndicator(p.Indicator)
		}
	case PacketHDLCData:
		if g.onHDLCData != nil {
			g.onHDLCData(p.Data)
		}
	case PacketHDLCSigEnd:
		if g.onHDLCEnd != nil {
			g.onHDLCEnd()
		}
	case PacketT4NonECMData:
		if g.onNonECMData != nil {
			g.onNonECMData(p.Data)
		}
	case PacketT4NonECMSigEnd:
		if g.onNonECMEnd != nil {
			g.onNonECMEnd()
		}
	}
	return nil
}

// withinWindow reports whether got is within the trailing repeatCount
// sequence numbers of seen (i.e. a duplicate resend, not a new packet
// that happens to have wrapped).
func withinWindow(seen, got uint16, repeatCount int) bool {
	if repeatCount < 1 {
		repeatCount = 1
	}
	diff := int(seen) - int(got)
	return diff >= 0 && diff < repeatCount
}

// NegotiateVersion applies the version-fallback rule with the peer
// version the caller reports: on the first call it lowers the version
// in effect to peerVersion if that is lower, for the rest of the call;
// later calls change nothing. RxPacket does not detect a peer's version
// on its own (SPEC_FULL.md §6 supplement from original_source/).
func (g *Gateway) NegotiateVersion(peerVersion int) {
	if g.versionLocked {
		return
	}
	g.versionLocked = true
	if peerVersion < g.negotiatedVersion {
		g.negotiatedVersion = peerVersion
	}
}
