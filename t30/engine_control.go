package t30

import (
	"github.com/xrg/gofax30/hdlc"
	"github.com/xrg/gofax30/modem"
)

// Start begins the session's own half of call setup: the answerer
// sends CSI+DIS after its CED tone (the tone itself is the audio
// collaborator's job); the caller arms V.21 receive and waits on T1
// for the answerer's DIS, since CNG tone generation is likewise
// external.
func (s *Session) Start() error {
	if s.Role != RoleAnswerer {
		return s.orch.Prepare(modem.FamilyV21, 0, modem.DirectionReceive, false)
	}
	s.changePhase(PhaseBDETx)
	s.State = StateR
	caps := s.local
	caps.CanReceive = true
	if err := s.sendIdentifierAndCapability(FCFCSI, FCFDIS, caps); err != nil {
		return err
	}
	s.timers.Arm(T2)
	return nil
}

// SendPage queues source for transmission over the currently negotiated
// fast modem, to be followed by signal (MPS/EOM/EOP) once source is
// exhausted. Call after a CFR (first page) or MCF (subsequent page).
//
// If the V.21 receiver still reports carrier, the page is held back
// until the line has been carrier-less for one full T4 interval in
// total (Open Question #3's deferral rule); ReceiveAudio releases it.
func (s *Session) SendPage(source PageSource, signal DSignal) {
	family, dir, armed := s.orch.Active()
	if armed && dir == modem.DirectionReceive && family == modem.FamilyV21 && s.carrierPresent() {
		s.pendingPage = &pendingPage{source: source, signal: signal}
		s.deferralAbsent = 0
		return
	}
	s.startPage(source, signal)
}

func (s *Session) startPendingPage() {
	p := s.pendingPage
	s.pendingPage = nil
	s.deferralAbsent = 0
	s.startPage(p.source, p.signal)
}

func (s *Session) startPage(source PageSource, signal DSignal) {
	s.pageSource = source
	s.pendingSignal = signal
	s.State = StateI
	s.changePhase(PhaseCTx)
	_ = s.orch.Prepare(s.chosen.Family, s.chosen.Rate, modem.DirectionTransmit, false)
	if s.ecm {
		s.startECMSend()
		return
	}
	s.wireBitSource(s.pageSource.NextBit, s.sendPageEndSignal)
}

// wireBitSource makes source the active transmit generator; after (if
// non-nil) runs once source reports exhausted, before the next queued
// item (if any) is considered.
func (s *Session) wireBitSource(source func() (int, bool), after func()) {
	s.currentBitSource = source
	s.sourceDrained = false
	s.currentAfter = after
}

// enqueueTx appends data to the transmit queue, tagged with the family
// and rate it must go out on. after (if non-nil) runs once data has
// fully drained.
func (s *Session) enqueueTx(data []byte, family modem.Family, rate modem.Rate, after func()) {
	s.txQueue = append(s.txQueue, txItem{data: data, family: family, rate: rate, after: after})
}

// advanceTransmit is called by TransmitAudio whenever the active
// generator is absent or has drained: it runs the pending continuation
// (if any set by wireBitSource), then pops the next queued item,
// arming the orchestrator for its family/rate only now — never eagerly
// at enqueue time — so a transmit gap can never stomp a generator that
// hasn't transmitted yet.
func (s *Session) advanceTransmit() {
	for {
		if s.currentAfter != nil {
			after := s.currentAfter
			s.currentAfter = nil
			s.currentBitSource = nil
			s.sourceDrained = false
			after()
			if s.currentBitSource != nil && !s.sourceDrained {
				return
			}
			continue
		}
		if len(s.txQueue) > 0 {
			next := s.txQueue[0]
			s.txQueue = s.txQueue[1:]
			_ = s.orch.Prepare(next.family, next.rate, modem.DirectionTransmit, false)
			s.wireBitSource(hdlc.BitSource(next.data), next.after)
			return
		}
		s.currentBitSource = nil
		s.sourceDrained = false
		return
	}
}

func (s *Session) sendIdentifierAndCapability(identFCF, capFCF FCF, caps Capabilities) error {
	idFrame := hdlc.Frame{Type: byte(identFCF), Payload: mustIdentifier(s.LocalIdent)}
	payload, err := caps.Encode()
	if err != nil {
		return err
	}
	capFrame := hdlc.Frame{Final: true, Type: byte(capFCF), Payload: payload}
	return s.sendFrameGroupAfter([]hdlc.Frame{idFrame, capFrame}, modem.FamilyV21, 0, func() {
		_ = s.orch.Prepare(modem.FamilyV21, 0, modem.DirectionReceive, false)
	})
}

func mustIdentifier(id string) []byte {
	wire := hdlc.EncodeIdentifier(id)
	return wire[:]
}

// sendFrameGroup queues frames for transmission over family/rate. The
// orchestrator is not armed here: advanceTransmit arms it only once
// this item is actually popped off the queue, avoiding the premature-
// arm race where a later Prepare call (e.g. for the next phase)
// disarms this one before a single byte goes out.
func (s *Session) sendFrameGroup(frames []hdlc.Frame, family modem.Family, rate modem.Rate) error {
	return s.sendFrameGroupAfter(frames, family, rate, nil)
}

// sendFrameGroupAfter is sendFrameGroup with a continuation that runs
// once the frame group has fully drained.
func (s *Session) sendFrameGroupAfter(frames []hdlc.Frame, family modem.Family, rate modem.Rate, after func()) error {
	raw, err := hdlc.Group(frames)
	if err != nil {
		return err
	}
	s.lastCommand = []txItem{{data: raw, family: family, rate: rate, after: after}}
	s.enqueueTx(raw, family, rate, after)
	return nil
}

func (s *Session) sendDCN() {
	_ = s.sendFrameGroup([]hdlc.Frame{{Final: true, Type: byte(FCFDCN)}}, modem.FamilyV21, 0)
}

// sendDCNThen queues DCN and defers finish(code) until it has actually
// drained — calling finish immediately after enqueueing would set
// Phase to finished before TransmitAudio ever pulls the just-queued
// bytes, so the peer would never see the disconnect.
func (s *Session) sendDCNThen(code CompletionCode) {
	_ = s.sendFrameGroupAfter([]hdlc.Frame{{Final: true, Type: byte(FCFDCN)}}, modem.FamilyV21, 0, func() {
		s.finish(code)
	})
}

func (s *Session) reissueIdentifierAndCapability() {
	switch {
	case s.Role == RoleAnswerer:
		_ = s.sendIdentifierAndCapability(FCFCSI, FCFDIS, s.local)
		s.timers.Arm(T2)
	case s.pollRequested:
		caps := s.local
		caps.CanReceive = true
		_ = s.sendIdentifierAndCapability(FCFCIG, FCFDTC, caps)
		s.timers.Arm(T2)
	}
}

func (s *Session) resendLastCommand() {
	for _, item := range s.lastCommand {
		s.enqueueTx(item.data, item.family, item.rate, item.after)
	}
	s.timers.Arm(T4)
}

// onTCFBit accumulates the contiguous all-zero run during D_TCF/F_TCF
// training verification (Open Question #2's fixed threshold).
func (s *Session) onTCFBit(bit int) {
	if bit == 0 {
		s.tcfZeroRunBits++
	} else {
		s.tcfZeroRunBits = 0
	}
}

func (s *Session) onTrainingResult(ok bool) {
	if s.State != StateDTCF && s.State != StateFTCF {
		return
	}
	if s.Role == RoleAnswerer {
		s.tcfRequiredBits = int(tcfMinSeconds * float64(s.chosen.Rate))
		return // verdict is decided on carrier-down, see onCarrierDown/onTCFVerified.
	}
	if ok {
		s.State = StateI
		return
	}
	s.onTrainingFailed()
}

func (s *Session) onTrainingFailed() {
	s.timers.Disarm(T4)
	step, idx, ok := modem.FirstCapable(s.fallbackIndex+1, s.supportedFamiliesMask())
	if !ok {
		s.sendDCNThen(CompletionTrainingFailed)
		return
	}
	s.fallbackIndex = idx
	s.chosen.Family = step.Family
	s.chosen.Rate = step.Rate
	s.sendDCSAndStartTCF()
}

// sendDCSAndStartTCF (re)sends DCS at s.chosen's family/rate and, once
// it drains, begins the TCF zero-fill burst — shared by the initial
// negotiation (onRemoteCapability) and every training-fallback retry.
// A configured sub-address rides along in the same frame group.
func (s *Session) sendDCSAndStartTCF() {
	s.changePhase(PhaseBDETx)
	s.State = StateD
	payloadOut, _ := s.chosen.Encode()
	frames := []hdlc.Frame{{Type: byte(FCFTSI), Payload: mustIdentifier(s.LocalIdent)}}
	if s.SubAddress != "" {
		frames = append(frames, hdlc.Frame{Type: byte(FCFSUB), Payload: mustIdentifier(s.SubAddress)})
	}
	frames = append(frames, hdlc.Frame{Final: true, Type: byte(FCFDCS), Payload: payloadOut})
	_ = s.sendFrameGroupAfter(frames, modem.FamilyV21, 0, func() {
		s.State = StateDTCF
		s.startTCFBurst()
	})
}

// tcfFillBitSource returns a BitSource yielding n zero bits: the TCF
// training-check burst's all-zero fill (spec.md §4.2).
func tcfFillBitSource(n int) func() (int, bool) {
	remaining := n
	return func() (int, bool) {
		if remaining <= 0 {
			return 0, false
		}
		remaining--
		return 0, true
	}
}

// startTCFBurst arms the fast modem for transmit and wires the nominal
// 1.5s zero-fill burst; once it drains, afterTCFBurst switches the
// caller back to V.21 receive to await CFR/FTT.
func (s *Session) startTCFBurst() {
	n := int(tcfNominalSeconds * float64(s.chosen.Rate))
	s.changePhase(PhaseCTx)
	_ = s.orch.Prepare(s.chosen.Family, s.chosen.Rate, modem.DirectionTransmit, false)
	s.wireBitSource(tcfFillBitSource(n), s.afterTCFBurst)
}

// afterTCFBurst turns the line around to await CFR/FTT, with T4
// bounding how long the far end may take to answer the training block.
func (s *Session) afterTCFBurst() {
	s.changePhase(PhaseBDERx)
	_ = s.orch.Prepare(modem.FamilyV21, 0, modem.DirectionReceive, false)
	s.timers.Arm(T4)
}

// supportedFamiliesMask intersects the locally configured modem
// families with the single family the far end's DIS/DTC/DCS named. An
// empty intersection is a capability mismatch (spec.md §8 scenario 6
// treats the advertised families as disjoint, not as implying lower
// schemes).
func (s *Session) supportedFamiliesMask() map[modem.Family]bool {
	out := map[modem.Family]bool{}
	for f, ok := range s.cfg.SupportedFamilies {
		if ok && f == s.remote.Family {
			out[f] = true
		}
	}
	return out
}

func (s *Session) onImageBit(bit int) {
	if s.pageSink != nil {
		s.pageSink.PutBit(bit)
	}
}

// sendPageEndSignal transmits the pending MPS/EOM/EOP over V.21 once
// the page source (non-ECM) or the last acked ECM block (ECM) has been
// fully delivered, then arms T4 awaiting the peer's MCF.
func (s *Session) sendPageEndSignal() {
	s.changePhase(PhaseBDETx)
	var fcf FCF
	switch s.pendingSignal {
	case DSignalMPS:
		fcf = FCFMPS
	case DSignalEOM:
		fcf = FCFEOM
	default:
		fcf = FCFEOP
	}
	frame := hdlc.Frame{Final: true, Type: byte(fcf)}
	_ = s.sendFrameGroupAfter([]hdlc.Frame{frame}, modem.FamilyV21, 0, func() {
		_ = s.orch.Prepare(modem.FamilyV21, 0, modem.DirectionReceive, false)
	})
	s.timers.Arm(T4)
}

// handleControlFrame dispatches one decoded HDLC control frame
// according to the current state (spec.md §4.1's transition table).
func (s *Session) handleControlFrame(f hdlc.Frame) {
	fcf := FCF(f.Type)

	if fcf.IsIdentifierFrame() {
		decoded := hdlc.DecodeIdentifier([20]byte(padTo20(f.Payload)))
		if fcf == FCFSUB {
			s.RemoteSubAddress = decoded
		} else {
			s.RemoteIdent = decoded
		}
		return
	}
	switch fcf {
	case FCFNSF, FCFNSC, FCFNSS:
		if s.nsf != nil {
			s.nsf(fcf, f.Payload)
		}
		return
	}

	switch fcf {
	case FCFDIS, FCFDTC:
		s.onRemoteCapability(fcf, f.Payload)
	case FCFDCS:
		s.onRemoteCommand(f.Payload)
	case FCFCFR:
		s.onCFR()
	case FCFFTT:
		s.onTrainingFailed()
	case FCFMCF:
		s.onMCF()
	case FCFRTN, FCFRTP:
		s.onRetrain(fcf == FCFRTP)
	case FCFMPS, FCFEOM, FCFEOP:
		s.onPostPageSignal(fcf)
	case FCFFCD:
		s.onECMFrame(f.Payload)
	case FCFPPR:
		s.onPPR(f.Payload)
	case FCFPPS:
		s.onPPS(f.Payload)
	case FCFDCN:
		s.finish(CompletionOK)
	case FCFXCN:
		s.finish(CompletionProtocolViolation)
	default:
		s.log.Warn("unexpected frame ignored", "fcf", fcf, "state", s.State)
	}

	if s.phaseB != nil && !s.phaseBFired && (fcf == FCFDIS || fcf == FCFDTC || fcf == FCFDCS) {
		s.phaseBFired = true
		s.phaseB(fcf)
	}
}

func padTo20(b []byte) []byte {
	out := make([]byte, 20)
	copy(out, b)
	return out
}

func (s *Session) onRemoteCapability(fcf FCF, payload []byte) {
	caps, err := DecodeCapabilities(payload)
	if err != nil {
		s.log.Warn("malformed capability frame", "err", err)
		return
	}
	// Bounded renegotiation while a TCF exchange is already underway
	// (Open Question #1): one more DIS/DTC arrival past the retry cap
	// is a protocol violation, not another loop iteration.
	if s.State == StateDTCF {
		s.dtcfRetries++
		if s.dtcfRetries > maxDTCFRetries {
			s.sendDCNThen(CompletionProtocolViolation)
			return
		}
	}
	s.remote = caps

	if fcf == FCFDTC {
		s.onPolled(caps)
		return
	}
	if s.Role != RoleCaller {
		return
	}
	s.changePhase(PhaseBDERx)
	s.timers.Disarm(T1)

	if s.pollRequested {
		if !caps.CanTransmit {
			s.sendDCNThen(CompletionRemoteCannotSend)
			return
		}
		myCaps := s.local
		myCaps.CanReceive = true
		_ = s.sendIdentifierAndCapability(FCFCIG, FCFDTC, myCaps)
		s.timers.Arm(T2)
		s.State = StateR
		return
	}

	if !caps.CanReceive {
		s.sendDCNThen(CompletionRemoteCannotReceive)
		return
	}
	step, idx, ok := modem.FirstCapable(0, s.supportedFamiliesMask())
	if !ok {
		s.sendDCNThen(CompletionCapabilityMismatch)
		return
	}
	s.fallbackIndex = idx
	s.ecm = s.cfg.ECMCapable && caps.ECMCapable
	s.chosen = Capabilities{
		CanTransmit:         true,
		Family:              step.Family,
		Rate:                step.Rate,
		TwoDCapable:         caps.TwoDCapable,
		ResolutionFine:      caps.ResolutionFine,
		ScanLineWidthCode:   caps.ScanLineWidthCode,
		MinScanLineTimeCode: caps.MinScanLineTimeCode,
		ECMCapable:          s.ecm,
	}
	s.tcfZeroRunBits = 0
	s.sendDCSAndStartTCF()
}

// onPolled handles an incoming DTC: the far end asked this session to
// transmit the document it offered for polling. The roles flip — the
// polled party negotiates rate and trains exactly as a caller would on
// DIS receipt.
func (s *Session) onPolled(caps Capabilities) {
	if !s.pollOffered {
		s.sendDCNThen(CompletionRemoteCannotSend)
		return
	}
	s.timers.Disarm(T2)
	step, idx, ok := modem.FirstCapable(0, s.supportedFamiliesMask())
	if !ok {
		s.sendDCNThen(CompletionCapabilityMismatch)
		return
	}
	s.fallbackIndex = idx
	s.ecm = s.cfg.ECMCapable && caps.ECMCapable
	s.chosen = Capabilities{
		CanTransmit:         true,
		Family:              step.Family,
		Rate:                step.Rate,
		TwoDCapable:         caps.TwoDCapable,
		ResolutionFine:      caps.ResolutionFine,
		ScanLineWidthCode:   caps.ScanLineWidthCode,
		MinScanLineTimeCode: caps.MinScanLineTimeCode,
		ECMCapable:          s.ecm,
	}
	s.tcfZeroRunBits = 0
	s.sendDCSAndStartTCF()
}

func (s *Session) onRemoteCommand(payload []byte) {
	caps, err := DecodeCapabilities(payload)
	if err != nil {
		s.log.Warn("malformed DCS", "err", err)
		return
	}
	if s.dtcfRetries > maxDTCFRetries {
		s.sendDCNThen(CompletionProtocolViolation)
		return
	}
	s.chosen = caps
	s.ecm = s.cfg.ECMCapable && caps.ECMCapable
	s.State = StateFTCF
	s.timers.Disarm(T2)
	s.changePhase(PhaseCRx)
	s.tcfRequiredBits = int(tcfMinSeconds * float64(caps.Rate))
	_ = s.orch.Prepare(caps.Family, caps.Rate, modem.DirectionReceive, false)
}

func (s *Session) onCFR() {
	s.State = StateI
	s.timers.Disarm(T4)
}

func (s *Session) onMCF() {
	s.timers.Disarm(T4)
	if s.ecm && s.ecmAwaitingBlockMCF {
		// A per-block ECM acknowledgement, not a page-level one; it
		// advances the block loop without reaching the phase-D handler.
		s.onECMBlockAcked()
		return
	}
	s.pagesTransferred++
	if s.phaseD != nil {
		s.phaseD(DSignalMCF)
	}
	if s.pendingSignal == DSignalEOP {
		s.sendDCNThen(CompletionOK)
	}
}

func (s *Session) onRetrain(positive bool) {
	if positive {
		s.State = StateI
		return
	}
	s.onTrainingFailed()
}

func (s *Session) onPostPageSignal(fcf FCF) {
	s.changePhase(PhaseBDETx)
	var signal DSignal
	switch fcf {
	case FCFMPS:
		signal = DSignalMPS
	case FCFEOM:
		signal = DSignalEOM
	case FCFEOP:
		signal = DSignalEOP
	}
	if s.phaseD != nil {
		s.phaseD(signal)
	}
	// In ECM mode the page closes here rather than at fast carrier
	// drop: the post-page signal is the first moment the last block is
	// known to be complete.
	if s.ecm && s.pageSink != nil {
		s.pageSink.EndPage()
	}
	ack := hdlc.Frame{Final: true, Type: byte(FCFMCF)}
	_ = s.sendFrameGroupAfter([]hdlc.Frame{ack}, modem.FamilyV21, 0, func() {
		_ = s.orch.Prepare(modem.FamilyV21, 0, modem.DirectionReceive, false)
	})
	s.pagesTransferred++
	if signal == DSignalEOP {
		s.State = StateR
	}
}

// --- ECM transmit ---------------------------------------------------

// startECMSend begins the ECM page transfer: pulls the first block of
// up to 256 frames from the page source and sends it.
func (s *Session) startECMSend() {
	s.ecmBlockNumber = 0
	s.ecmSourceExhausted = false
	s.buildNextECMBlock()
}

// buildNextECMBlock pulls up to ECMBlockFrames frames from the page
// source for the current block and transmits them, or — if the source
// is already exhausted — moves straight to the page-end signal.
func (s *Session) buildNextECMBlock() {
	s.ecmTxFrames = make(map[int][]byte)
	s.ecmFrameCount = 0
	for i := 0; i < ECMBlockFrames; i++ {
		data, ok := s.pageSource.NextECMFrame()
		if !ok {
			s.ecmSourceExhausted = true
			break
		}
		s.ecmTxFrames[i] = data
		s.ecmFrameCount = i + 1
	}
	if s.ecmFrameCount == 0 {
		s.sendPageEndSignal()
		return
	}
	s.sendECMBlockFrames(allFrameNumbers(s.ecmFrameCount))
}

func allFrameNumbers(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func (s *Session) ecmDataFrame(frameNumber int) hdlc.Frame {
	return hdlc.Frame{Type: byte(FCFFCD), Payload: append([]byte{byte(frameNumber)}, s.ecmTxFrames[frameNumber]...)}
}

// sendECMBlockFrames transmits frameNumbers (either a fresh block or a
// PPR-named resend set) followed by a PPS naming the block's total
// frame count, then turns the fast modem around to listen for the
// peer's PPR/MCF response.
func (s *Session) sendECMBlockFrames(frameNumbers []int) {
	frames := make([]hdlc.Frame, 0, len(frameNumbers)+1)
	for _, fn := range frameNumbers {
		frames = append(frames, s.ecmDataFrame(fn))
	}
	frames = append(frames, hdlc.Frame{
		Final:   true,
		Type:    byte(FCFPPS),
		Payload: []byte{byte(s.ecmBlockNumber), byte(s.ecmFrameCount - 1)},
	})
	raw, err := hdlc.Group(frames)
	if err != nil {
		s.log.Warn("failed to group ECM block", "err", err)
		return
	}
	s.lastCommand = []txItem{{data: raw, family: s.chosen.Family, rate: s.chosen.Rate}}
	s.ecmAwaitingBlockMCF = true
	_ = s.orch.Prepare(s.chosen.Family, s.chosen.Rate, modem.DirectionTransmit, false)
	s.wireBitSource(hdlc.BitSource(raw), s.afterECMBlockSent)
	s.timers.Arm(T4)
}

func (s *Session) afterECMBlockSent() {
	_ = s.orch.Prepare(s.chosen.Family, s.chosen.Rate, modem.DirectionReceive, false)
}

// onPPR resends exactly the frames the peer's bitmask names missing,
// per session invariant 6 — it never resends the whole block.
func (s *Session) onPPR(payload []byte) {
	if !s.ecmAwaitingBlockMCF {
		return
	}
	missing := missingFrameNumbers(payload)
	if len(missing) == 0 {
		return
	}
	s.sendECMBlockFrames(missing)
}

func missingFrameNumbers(mask []byte) []int {
	var out []int
	for i := 0; i < ECMBlockFrames && i/8 < len(mask); i++ {
		if mask[i/8]&(1<<uint(i%8)) != 0 {
			out = append(out, i)
		}
	}
	return out
}

// onECMBlockAcked advances to the next block once the peer's MCF
// confirms the current one is complete, or sends the page-end signal
// once the source has nothing left to give.
func (s *Session) onECMBlockAcked() {
	s.ecmAwaitingBlockMCF = false
	s.ecmBlockNumber++
	if s.ecmSourceExhausted {
		s.sendPageEndSignal()
		return
	}
	s.buildNextECMBlock()
}

// --- ECM receive ------------------------------------------------------

// onECMFrame records one CRC-valid ECM image frame (the HDLC decode
// that produced f already rejected anything that failed CRC) into the
// current block and arms T5, the ECM recovery timer, as a backstop
// against a peer that never follows up with PPS.
func (s *Session) onECMFrame(payload []byte) {
	if len(payload) == 0 {
		return
	}
	frameNumber := int(payload[0])
	data := payload[1:]
	if s.currentBlock == nil {
		s.currentBlock = NewECMBlock(s.ecmBlockNumber)
	}
	if err := s.currentBlock.Put(frameNumber, data); err != nil {
		s.log.Warn("dropping ECM frame", "err", err)
		return
	}
	s.timers.Arm(T5)
}

// onPPS checks whether the just-announced block is complete: if so it
// delivers the block and MCFs it; otherwise it names the missing
// frames in a PPR.
func (s *Session) onPPS(payload []byte) {
	if s.currentBlock == nil {
		s.currentBlock = NewECMBlock(s.ecmBlockNumber)
	}
	total := 1
	if len(payload) >= 2 {
		total = int(payload[1]) + 1
	}
	if s.currentBlock.Complete(total) {
		s.finishECMBlock(total)
		return
	}
	s.sendPPRForBlock(total)
}

func (s *Session) sendPPRForBlock(total int) {
	mask := s.currentBlock.PPRBitmask(total)
	frame := hdlc.Frame{Final: true, Type: byte(FCFPPR), Payload: mask}
	_ = s.sendFrameGroupAfter([]hdlc.Frame{frame}, s.chosen.Family, s.chosen.Rate, func() {
		_ = s.orch.Prepare(s.chosen.Family, s.chosen.Rate, modem.DirectionReceive, false)
	})
}

func (s *Session) finishECMBlock(total int) {
	s.timers.Disarm(T5)
	if s.pageSink != nil {
		for i := 0; i < total; i++ {
			if data := s.currentBlock.Frame(i); data != nil {
				s.pageSink.PutECMFrame(i, data)
			}
		}
	}
	s.currentBlock = nil
	s.ecmBlockNumber++
	ack := hdlc.Frame{Final: true, Type: byte(FCFMCF)}
	_ = s.sendFrameGroupAfter([]hdlc.Frame{ack}, s.chosen.Family, s.chosen.Rate, func() {
		_ = s.orch.Prepare(s.chosen.Family, s.chosen.Rate, modem.DirectionReceive, false)
	})
}
