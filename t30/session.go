package t30

import (
	"github.com/xrg/gofax30/dwlog"
	"github.com/xrg/gofax30/hdlc"
	"github.com/xrg/gofax30/modem"
)

// PhaseBFunc reports arrival of the first capability frame (DIS, DTC,
// or DCS) in a phase.
type PhaseBFunc func(fcf FCF)

// PhaseDFunc reports an image-related signal (MPS/EOM/EOP/MCF/RTP/RTN).
type PhaseDFunc func(signal DSignal)

// PhaseEFunc reports the session's single terminal outcome.
type PhaseEFunc func(code CompletionCode, stats Stats)

// FlushFunc requests the audio collaborator flush n samples of
// advisory lookahead before the engine starts a new phase's generator.
type FlushFunc func(advisoryCount int)

// NonStandardFrameFunc relays an opaque NSF/NSC/NSS payload to the
// caller without the engine itself interpreting it.
type NonStandardFrameFunc func(fcf FCF, payload []byte)

// Config holds the session-wide options spec.md §6 lists as
// "configuration (enumerated)", plus the polling gate SPEC_FULL adds
// from original_source/.
type Config struct {
	SupportedFamilies map[modem.Family]bool
	ECMCapable        bool
	TransmitOnIdle    bool
	UseTEP            bool
	PollingEnabled    bool
}

// DefaultConfig returns the spec's documented defaults: all modem
// families, ECM off, transmit-on-idle off, TEP off, polling off.
func DefaultConfig() Config {
	return Config{
		SupportedFamilies: map[modem.Family]bool{
			modem.FamilyV27ter: true,
			modem.FamilyV29:    true,
			modem.FamilyV17:    true,
		},
	}
}

// maxDTCFRetries bounds the DIS-while-StateDTCF renegotiation loop
// (Open Question #1, resolved in DESIGN.md): a 4th unresolved arrival
// is a protocol violation, not another retry.
const maxDTCFRetries = 3

// tcfNominalSeconds is how long a TCF sender fills the line with zero
// bits: the ITU-T T.30 nominal training check duration.
const tcfNominalSeconds = 1.5

// tcfMinSeconds is the minimum contiguous all-zero run accepted as a
// successful TCF training (Open Question #2, resolved in DESIGN.md):
// 1.5s nominal minus 10% jitter tolerance.
const tcfMinSeconds = tcfNominalSeconds * 0.9

// carrierBlipDeferral is how long V.21 must report no carrier before
// Phase C-Tx is allowed to start (Open Question #3, resolved in
// DESIGN.md): one full T4 interval.
var carrierBlipDeferral = SecondsToSamples(3)

// Session is one active fax call. Only the engine mutates its fields;
// external code observes state through the registered callbacks and
// the read-only accessors (spec.md §3 lifecycle rule).
type Session struct {
	log dwlog.Logger
	cfg Config

	Role  Role
	Phase Phase
	State State

	LocalIdent string
	SubAddress string
	HeaderInfo string
	VendorID   string
	ModelID    string

	RemoteIdent      string
	RemoteSubAddress string

	local  Capabilities
	remote Capabilities
	chosen Capabilities

	fallbackIndex int
	dtcfRetries   int

	timers Timers

	orch    *modem.Orchestrator
	rxAccum hdlc.BitAccumulator
	txQueue []txItem // pending frame-group octet streams awaiting transmission

	ecm          bool
	currentBlock *ECMBlock

	// ECM transmit-side bookkeeping (startECMSend/sendECMBlockFrames/onPPR).
	ecmTxFrames         map[int][]byte
	ecmFrameCount       int
	ecmSourceExhausted  bool
	ecmBlockNumber      int
	ecmAwaitingBlockMCF bool

	pageSource PageSource
	pageSink   PageSink

	pagesTransferred int
	completion       *CompletionCode

	phaseB PhaseBFunc
	phaseD PhaseDFunc
	phaseE PhaseEFunc
	flush  FlushFunc
	nsf    NonStandardFrameFunc

	pollRequested bool
	pollOffered   bool

	carrierAbsentSamples Samples

	// Phase C-Tx deferral (Open Question #3): a page queued while the
	// V.21 carrier is still up waits until the line has been
	// carrier-less for carrierBlipDeferral in total; carrier blips do
	// not reset the accumulated absence.
	pendingPage    *pendingPage
	deferralAbsent Samples

	phaseBFired bool

	currentBitSource func() (int, bool)
	sourceDrained    bool
	currentAfter     func()
	lastCommand      []txItem

	tcfZeroRunBits  int
	tcfRequiredBits int

	pendingSignal DSignal
}

// txItem is one queued octet stream awaiting transmission, tagged with
// the modem family/rate it must go out on and an optional continuation
// to run once it has fully drained (e.g. arming the next phase's
// generator only after the preceding frame group's bytes are actually
// on the line, per REDESIGN FLAGS item 3's single-active-generator
// invariant).
type txItem struct {
	data   []byte
	family modem.Family
	rate   modem.Rate
	after  func()
}

// pendingPage is a SendPage request held back by the Phase C-Tx
// carrier deferral rule.
type pendingPage struct {
	source PageSource
	signal DSignal
}

// NewSession creates a session for role, with cfg applied. The caller
// must still register an Orchestrator (SetOrchestrator) and the
// phase/flush callbacks before driving audio.
func NewSession(role Role, cfg Config) *Session {
	s := &Session{
		log:  dwlog.For("t30"),
		cfg:  cfg,
		Role: role,
		ecm:  cfg.ECMCapable,
	}
	if role == RoleCaller {
		s.Phase = PhaseACNG
		s.State = StateT
		s.timers.Arm(T1)
	} else {
		s.Phase = PhaseACED
		s.State = StateR
	}
	s.local = Capabilities{
		CanReceive:  true,
		CanTransmit: true,
		ECMCapable:  cfg.ECMCapable,
	}
	// DIS/DTC advertise the best fast modem this side is configured
	// for; the 4-bit selector field cannot encode "none".
	if step, _, ok := modem.FirstCapable(0, cfg.SupportedFamilies); ok {
		s.local.Family = step.Family
		s.local.Rate = step.Rate
	}
	return s
}

// SetOrchestrator wires the modem orchestrator this session drives.
// Per REDESIGN FLAGS item 3, the engine owns its orchestrator directly
// rather than the two holding cyclic back-references to each other.
func (s *Session) SetOrchestrator(o *modem.Orchestrator) {
	s.orch = o
	o.SetTransmitOnIdle(s.cfg.TransmitOnIdle)
	o.SetTEP(s.cfg.UseTEP)
}

// SetHeaderInfo records the page-header string handed to the T.4
// collaborator; the engine itself never renders it.
func (s *Session) SetHeaderInfo(info string) { s.HeaderInfo = info }

// SignalLineIdle tells the session that the line has gone carrier-less,
// for an audio collaborator whose Variant (e.g. modem.LoopbackVariant)
// never raises modem.EventCarrierDown on its own. It is a no-op unless
// the orchestrator is currently armed.
func (s *Session) SignalLineIdle() {
	family, _, armed := s.orch.Active()
	if !armed {
		return
	}
	s.onCarrierDown(family)
}

func (s *Session) SetPageSource(p PageSource) { s.pageSource = p }
func (s *Session) SetPageSink(p PageSink)     { s.pageSink = p }

func (s *Session) SetPhaseBHandler(fn PhaseBFunc) { s.phaseB = fn }
func (s *Session) SetPhaseDHandler(fn PhaseDFunc) { s.phaseD = fn }
func (s *Session) SetPhaseEHandler(fn PhaseEFunc) { s.phaseE = fn }
func (s *Session) SetFlushHandler(fn FlushFunc)   { s.flush = fn }
func (s *Session) SetNonStandardFrameHandler(fn NonStandardFrameFunc) {
	s.nsf = fn
}

// RequestPoll marks this (caller-side) session as requesting the
// remote party's queued document via DTC instead of sending one, per
// the polling exchange SPEC_FULL adds from original_source/. A no-op
// unless Config.PollingEnabled.
func (s *Session) RequestPoll() {
	if s.cfg.PollingEnabled {
		s.pollRequested = true
	}
}

// OfferPoll marks this (answerer-side) session as willing to act as
// the polled party if the caller issues DTC. A no-op unless
// Config.PollingEnabled.
func (s *Session) OfferPoll() {
	if s.cfg.PollingEnabled {
		s.pollOffered = true
	}
}

// Stats returns the statistics accumulated so far.
func (s *Session) Stats() Stats {
	completion := CompletionOK
	if s.completion != nil {
		completion = *s.completion
	}
	familyStr := ""
	if s.chosen.Rate != 0 {
		familyStr = s.chosen.Family.String()
	}
	return Stats{
		Role:             s.Role,
		LocalIdent:       s.LocalIdent,
		RemoteIdent:      s.RemoteIdent,
		Rate:             int(s.chosen.Rate),
		ModemFamily:      familyStr,
		Compression:      compressionFromCapabilities(s.chosen),
		Resolution:       resolutionFromCapabilities(s.chosen),
		ECM:              s.ecm,
		PagesTransferred: s.pagesTransferred,
		Completion:       completion,
	}
}

func compressionFromCapabilities(c Capabilities) Compression {
	if c.TwoDCapable {
		return CompressionT4_2D
	}
	return CompressionT4_1D
}

func resolutionFromCapabilities(c Capabilities) ResolutionClass {
	if c.ResolutionFine {
		return ResolutionFine
	}
	return ResolutionStandard
}

// Release transitions the session to Phase E with a cancelled
// completion code and fires the phase-E callback, per spec.md §5's
// explicit-cancellation contract.
func (s *Session) Release() {
	if s.Phase == PhaseFinished {
		return
	}
	s.finish(CompletionCancelled)
}

// changePhase applies the phase-change contract of spec.md §4.1 in
// order: mark any active receive-signal absent, flush the downstream
// audio collaborator, schedule the mandatory inter-phase silence, then
// record the new phase. Generator/detector setup (step 2) stays with
// the callers, which know which modem the new phase needs.
func (s *Session) changePhase(p Phase) {
	if p == s.Phase {
		return
	}
	if s.carrierAbsentSamples == 0 {
		s.carrierAbsentSamples = 1
	}
	if s.flush != nil {
		s.flush(0)
	}
	if s.orch != nil {
		switch p {
		case PhaseCTx:
			s.orch.ArmSilence(int(SecondsToSamples(0.075)))
		case PhaseE:
			s.orch.ArmSilence(int(SecondsToSamples(0.2)))
		}
	}
	s.log.Debug("phase change", "from", s.Phase, "to", p, "state", s.State)
	s.Phase = p
	s.phaseBFired = false
}

func (s *Session) finish(code CompletionCode) {
	if s.Phase == PhaseFinished {
		return
	}
	s.completion = &code
	s.changePhase(PhaseE)
	if s.orch != nil {
		s.orch.Disarm()
	}
	s.Phase = PhaseFinished
	if s.phaseE != nil {
		s.phaseE(code, s.Stats())
	}
}
