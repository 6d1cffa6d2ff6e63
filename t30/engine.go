package t30

import (
	"github.com/xrg/gofax30/hdlc"
	"github.com/xrg/gofax30/modem"
)

// ReceiveAudio delivers n PCM samples from the PSTN (or, in gateway
// mode, the translated-from-IFP) side. It advances every timer by
// len(samples), runs any expired timer's action, and if the
// orchestrator is armed to receive, feeds the samples through and
// dispatches whatever frames complete.
func (s *Session) ReceiveAudio(samples []int16) error {
	for _, id := range s.timers.Tick(Samples(len(samples))) {
		s.onTimerExpired(id)
	}
	if s.Phase == PhaseFinished {
		return nil
	}

	// Phase C-Tx deferral: a queued page starts only once the line has
	// been carrier-less for the full deferral window in total. A
	// carrier blip pauses the accumulation but does not reset it.
	if s.pendingPage != nil {
		if !s.carrierPresent() {
			s.deferralAbsent += Samples(len(samples))
		}
		if s.deferralAbsent >= carrierBlipDeferral {
			s.startPendingPage()
		}
	}

	family, dir, armed := s.orch.Active()
	if !armed || dir != modem.DirectionReceive {
		if !s.carrierPresent() {
			s.carrierAbsentSamples += Samples(len(samples))
		}
		return nil
	}

	events, err := s.orch.FeedAudio(samples, s.rxAccum.PutBit)
	if err != nil {
		return err
	}
	for _, ev := range events {
		s.handleModemEvent(family, ev)
	}
	return nil
}

// TransmitAudio fills buf with up to len(buf) samples and returns how
// many were produced; 0 means no audio right now (spec.md §6).
func (s *Session) TransmitAudio(buf []int16) (int, error) {
	if s.Phase == PhaseFinished {
		// Drain the scheduled pre-release silence so the line closes
		// cleanly; after that there is nothing left to produce.
		if s.orch == nil {
			return 0, nil
		}
		n, _, err := s.orch.PullAudio(buf, func() (int, bool) { return 0, false })
		return n, err
	}
	if s.currentBitSource == nil || s.sourceDrained {
		s.advanceTransmit()
	}
	source := s.currentBitSource
	if source == nil {
		source = func() (int, bool) { return 0, false }
	}
	n, events, err := s.orch.PullAudio(buf, func() (int, bool) {
		bit, ok := source()
		if !ok {
			s.sourceDrained = true
		}
		return bit, ok
	})
	if err != nil {
		return 0, err
	}
	family, _, _ := s.orch.Active()
	for _, ev := range events {
		s.handleModemEvent(family, ev)
	}
	return n, nil
}

func (s *Session) carrierPresent() bool {
	return s.carrierAbsentSamples == 0
}

func (s *Session) handleModemEvent(family modem.Family, ev modem.Event) {
	switch ev.Kind {
	case modem.EventCarrierUp:
		s.carrierAbsentSamples = 0
		s.rxAccum.Reset()
	case modem.EventCarrierDown:
		s.onCarrierDown(family)
	case modem.EventTrainingSucceeded:
		s.onTrainingResult(true)
	case modem.EventTrainingFailed:
		s.onTrainingResult(false)
	case modem.EventFramingOK:
		s.onFrameComplete()
	case modem.EventAbort:
		s.finish(CompletionProtocolViolation)
	case modem.EventPayloadBit:
		if family == modem.FamilyV21 {
			break
		}
		switch {
		case s.State == StateFTCF:
			s.onTCFBit(ev.Bit)
		case s.ecm:
			// ECM payload bits are reassembled into whole HDLC frames by
			// rxAccum (fed directly from ReceiveAudio's sink) and
			// dispatched to onFrameComplete/onECMFrame on EventFramingOK;
			// there is nothing to do with a raw bit here.
		case s.State == StateI || s.State == StateII:
			s.onImageBit(ev.Bit)
		}
	}
}

func (s *Session) onCarrierDown(family modem.Family) {
	s.carrierAbsentSamples = 1
	if family == modem.FamilyV21 {
		return
	}
	switch {
	case s.State == StateFTCF:
		s.onTCFVerified()
	case s.pageSink != nil && !s.ecm && (s.State == StateI || s.State == StateII):
		s.pageSink.EndPage()
		_ = s.orch.Prepare(modem.FamilyV21, 0, modem.DirectionReceive, false)
	}
}

// onTCFVerified is the answerer-side TCF verdict: carrier-down after
// the caller's training burst means it is time to compare the
// contiguous all-zero run against the fixed threshold (Open Question
// #2) and answer CFR or FTT.
func (s *Session) onTCFVerified() {
	ok := s.tcfZeroRunBits >= s.tcfRequiredBits
	s.tcfZeroRunBits = 0
	s.changePhase(PhaseBDETx)
	if ok {
		s.State = StateF
		frame := hdlc.Frame{Final: true, Type: byte(FCFCFR)}
		_ = s.sendFrameGroupAfter([]hdlc.Frame{frame}, modem.FamilyV21, 0, s.afterCFRSent)
		return
	}
	s.dtcfRetries++
	frame := hdlc.Frame{Final: true, Type: byte(FCFFTT)}
	_ = s.sendFrameGroupAfter([]hdlc.Frame{frame}, modem.FamilyV21, 0, func() {
		_ = s.orch.Prepare(modem.FamilyV21, 0, modem.DirectionReceive, false)
	})
	s.State = StateR
}

// afterCFRSent arms the fast modem to receive the incoming page once
// the CFR frame has actually left the line.
func (s *Session) afterCFRSent() {
	s.changePhase(PhaseCRx)
	_ = s.orch.Prepare(s.chosen.Family, s.chosen.Rate, modem.DirectionReceive, false)
	s.State = StateII
}

func (s *Session) onFrameComplete() {
	raw := append([]byte(nil), s.rxAccum.Bytes()...)
	s.rxAccum.Reset()
	f, err := hdlc.Decode(raw)
	if err != nil {
		s.log.Warn("discarding corrupt HDLC frame", "err", err)
		return
	}
	s.handleControlFrame(f)
}

// onTimerExpired applies the expiry action table in spec.md §4.1.
func (s *Session) onTimerExpired(id TimerID) {
	switch id {
	case T0, T1:
		if s.Role == RoleAnswerer {
			s.sendDCNThen(CompletionTimerExpired)
		} else {
			s.finish(CompletionTimerExpired)
		}
	case T2:
		s.reissueIdentifierAndCapability()
	case T3:
		s.log.Warn("T3 operator-alert timer expired")
	case T4:
		s.resendLastCommand()
	case T5:
		s.finish(CompletionTimerExpired)
	}
}
