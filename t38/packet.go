// Package t38 implements the T.38 IFP gateway bridge (spec.md §4.4): a
// bidirectional translator between PSTN audio (via modem.Orchestrator
// and hdlc.Frame, the same seam t30 drives) and discrete IFP packets
// carried over an unreliable IP transport.
//
// Grounded on src/kissnet.go / src/kissserial.go's shape: a framed,
// sequenced transport wrapper around a byte-stream protocol. The
// translator generalizes that to a lossy, reordering transport with
// explicit sequence-number bookkeeping instead of a reliable stream.
package t38

import (
	"fmt"

	"github.com/xrg/gofax30/modem"
)

// PacketType is the IFP packet taxonomy of spec.md §4.4.
type PacketType int

const (
	PacketIndicator PacketType = iota
	PacketHDLCData
	PacketHDLCSigEnd
	PacketT4NonECMData
	PacketT4NonECMSigEnd
)

func (t PacketType) String() string {
	switch t {
	case PacketIndicator:
		return "indicator"
	case PacketHDLCData:
		return "hdlc-data"
	case PacketHDLCSigEnd:
		return "hdlc-sig-end"
	case PacketT4NonECMData:
		return "t4-non-ecm-data"
	case PacketT4NonECMSigEnd:
		return "t4-non-ecm-sig-end"
	default:
		return fmt.Sprintf("PacketType(%d)", int(t))
	}
}

// repeated reports whether this packet class is sent redundantly
// (indicator and sig-end classes) or sent once (data classes), per
// spec.md §4.4's reliability rule.
func (t PacketType) repeated() bool {
	switch t {
	case PacketIndicator, PacketHDLCSigEnd, PacketT4NonECMSigEnd:
		return true
	default:
		return false
	}
}

// IndicatorKind distinguishes the no-signal/tone/preamble/training
// indicators spec.md §4.4 lists; Family/Rate are only meaningful for
// IndicatorTraining.
type IndicatorKind int

const (
	IndicatorNoSignal IndicatorKind = iota
	IndicatorCNG
	IndicatorCED
	IndicatorV21Preamble
	IndicatorTraining
)

func (k IndicatorKind) String() string {
	switch k {
	case IndicatorNoSignal:
		return "no-signal"
	case IndicatorCNG:
		return "CNG"
	case IndicatorCED:
		return "CED"
	case IndicatorV21Preamble:
		return "V.21-preamble"
	case IndicatorTraining:
		return "training"
	default:
		return fmt.Sprintf("IndicatorKind(%d)", int(k))
	}
}

// Indicator is the payload of a PacketIndicator packet.
type Indicator struct {
	Kind   IndicatorKind
	Family modem.Family
	Rate   modem.Rate
}

// Packet is one IFP record. Data is only meaningful for the HDLC-data
// and T4-non-ECM-data types; Indicator is only meaningful for
// PacketIndicator.
type Packet struct {
	Type      PacketType
	Seq       uint16
	Indicator Indicator
	Data      []byte
}
