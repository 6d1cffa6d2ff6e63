package t38

import (
	"github.com/xrg/gofax30/dwlog"
	"github.com/xrg/gofax30/modem"
)

// SendFunc is invoked once per outbound wire frame, repeatCount times
// for repeated (indicator/sig-end) classes; the caller is expected to
// actually put bytes on the transport (spec.md §6's
// set_tx_packet_handler). repeatCount is advisory, matching the
// spec's "suggests how many times to send for loss robustness".
type SendFunc func(data []byte, repeatCount int)

// IndicatorHandler, DataHandler and SigEndHandler are the IFP -> audio
// direction's delivery points (spec.md §4.4's bidirectional
// semantics). The gateway itself holds no audio generator; the caller
// wires these into whatever drives the PSTN-side modem.Orchestrator
// (in this repository a Bridge, which NewBridge installs as all five).
type IndicatorHandler func(Indicator)
type DataHandler func(data []byte)
type SigEndHandler func()

// Config is the T.38 port configuration enumerated in spec.md §6.
type Config struct {
	Version               int // 0 or 1
	TransmitOnIdle        bool
	ECMCapable            bool
	SupportedFamilies     map[modem.Family]bool
	IndicatorRepeatCount int // 0 suppresses repeats (reliable transport); default 3
	DataEndRepeatCount   int // default 3
	MsPerTxChunk         int // default 30
}

// DefaultConfig returns spec.md §6's documented defaults.
func DefaultConfig() Config {
	return Config{
		Version:              1,
		IndicatorRepeatCount: 3,
		DataEndRepeatCount:   3,
		MsPerTxChunk:         30,
		SupportedFamilies: map[modem.Family]bool{
			modem.FamilyV27ter: true,
			modem.FamilyV29:    true,
			modem.FamilyV17:    true,
		},
	}
}

// Gateway is one PSTN<->IFP bridge (spec.md §4.4). It is driven on the
// audio side by feeding Emit* calls from whatever observes the PSTN
// modem/HDLC events, and on the IP side by RxPacket deliveries; it
// never touches audio samples or HDLC bits itself, only the typed IFP
// record and its framing/ordering/redundancy rules.
type Gateway struct {
	log   dwlog.Logger
	cfg   Config
	codec Codec
	send  SendFunc

	txSeq uint16

	pacer nonECMPacer

	negotiatedVersion int
	versionLocked     bool

	rx rxState

	onIndicator   IndicatorHandler
	onHDLCData    DataHandler
	onHDLCEnd     SigEndHandler
	onNonECMData  DataHandler
	onNonECMEnd   SigEndHandler
	onMissingData MissingDataHandler

	stats Stats
}

// New returns a Gateway using codec for wire serialization (pass
// DefaultCodec{} absent a real ASN.1 PER implementation) and send as
// the outbound transport hook.
func New(cfg Config, codec Codec, send SendFunc) *Gateway {
	return &Gateway{
		log:               dwlog.For("t38"),
		cfg:               cfg,
		codec:             codec,
		send:              send,
		negotiatedVersion: cfg.Version,
		pacer:             newNonECMPacer(samplesPerChunk(cfg.MsPerTxChunk)),
		rx:                newRxState(),
	}
}

func samplesPerChunk(ms int) int {
	if ms <= 0 {
		ms = 30
	}
	return ms * 8 // 8 kHz PCM, spec.md §4.4 pacing.
}

// NegotiatedVersion reports the version currently in effect, which may
// have fallen back from Config.Version per the original_source-derived
// supplement in SPEC_FULL.md §6.
func (g *Gateway) NegotiatedVersion() int { return g.negotiatedVersion }

func (g *Gateway) SetIndicatorHandler(fn IndicatorHandler) { g.onIndicator = fn }
func (g *Gateway) SetHDLCDataHandler(fn DataHandler)       { g.onHDLCData = fn }
func (g *Gateway) SetHDLCSigEndHandler(fn SigEndHandler)   { g.onHDLCEnd = fn }
func (g *Gateway) SetNonECMDataHandler(fn DataHandler)     { g.onNonECMData = fn }
func (g *Gateway) SetNonECMSigEndHandler(fn SigEndHandler) { g.onNonECMEnd = fn }

// Stats returns the redundancy-window accounting SPEC_FULL.md §6 adds
// from original_source/'s internal counters.
func (g *Gateway) Stats() Stats { return g.stats }
