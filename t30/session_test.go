package t30_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xrg/gofax30/modem"
	"github.com/xrg/gofax30/t30"
)

// fakePageSource hands out a fixed, known-length bit stream, standing
// in for a real T.4-encoded scanline reader.
type fakePageSource struct {
	bits []int
	pos  int
}

func newFakePageSource(n int) *fakePageSource {
	bits := make([]int, n)
	for i := range bits {
		bits[i] = (i*7 + 3) % 2
	}
	return &fakePageSource{bits: bits}
}

func (f *fakePageSource) NextBit() (int, bool) {
	if f.pos >= len(f.bits) {
		return 0, false
	}
	b := f.bits[f.pos]
	f.pos++
	return b, true
}

func (f *fakePageSource) NextECMFrame() ([]byte, bool) { return nil, false }

// fakeECMSource hands out a fixed set of ECM frames.
type fakeECMSource struct {
	frames [][]byte
	pos    int
}

func (f *fakeECMSource) NextBit() (int, bool) { return 0, false }

func (f *fakeECMSource) NextECMFrame() ([]byte, bool) {
	if f.pos >= len(f.frames) {
		return nil, false
	}
	data := f.frames[f.pos]
	f.pos++
	return data, true
}

// fakePageSink records everything it is handed, standing in for a TIFF
// writer.
type fakePageSink struct {
	bits      []int
	ecmFrames map[int][]byte
	ended     bool
}

func (f *fakePageSink) PutBit(bit int) { f.bits = append(f.bits, bit) }
func (f *fakePageSink) PutECMFrame(frameNumber int, data []byte) {
	if f.ecmFrames == nil {
		f.ecmFrames = make(map[int][]byte)
	}
	f.ecmFrames[frameNumber] = data
}
func (f *fakePageSink) EndPage() { f.ended = true }

// pumpUntilIdle drains tx one sample at a time into rx until tx
// reports nothing to send for idleTicks consecutive samples. One
// sample per tick guarantees every phase transition (a Prepare call
// switching family/direction mid-stream) lands on its own
// TransmitAudio/ReceiveAudio call, so nothing from the old phase and
// the new phase is ever mixed into the same call.
func pumpUntilIdle(t *testing.T, tx, rx *t30.Session, idleTicks int) {
	t.Helper()
	buf := make([]int16, 1)
	idle := 0
	for idle < idleTicks {
		n, err := tx.TransmitAudio(buf)
		require.NoError(t, err)
		if n == 0 {
			idle++
			continue
		}
		idle = 0
		require.NoError(t, rx.ReceiveAudio(buf[:n]))
	}
}

// pumpExact drains exactly ticks samples from tx into rx, one at a
// time, asserting every one is actually produced (live carrier or
// scheduled silence). It does not run tx's post-exhaustion
// continuation; the caller decides when the far end should be told the
// line went idle.
func pumpExact(t *testing.T, tx, rx *t30.Session, ticks int) {
	t.Helper()
	buf := make([]int16, 1)
	for i := 0; i < ticks; i++ {
		n, err := tx.TransmitAudio(buf)
		require.NoError(t, err)
		require.Equal(t, 1, n, "tick %d: expected a live generator", i)
		require.NoError(t, rx.ReceiveAudio(buf[:n]))
	}
}

// phaseCSilenceSamples is the 75 ms inter-phase silence the engine
// schedules ahead of every Phase C carrier.
const phaseCSilenceSamples = 600

// deferralSilenceSamples is one full T4 interval of carrier-less line,
// the deferral a queued page waits out before Phase C-Tx may start.
const deferralSilenceSamples = 24000

// newLoopbackSession builds a session over loopback variants: V.21
// with flag framing, plus one fast modem. The fast variant is returned
// so tests can adjust its training behavior between rounds.
func newLoopbackSession(t *testing.T, role t30.Role, ident string, cfg t30.Config, fastFamily modem.Family, fastDelay int, fastFraming bool) (*t30.Session, *modem.LoopbackVariant) {
	t.Helper()
	orch := modem.NewOrchestrator()
	v21 := modem.NewLoopbackVariant(modem.FamilyV21, 0)
	v21.FlagFraming = true
	orch.Register(v21)
	fast := modem.NewLoopbackVariant(fastFamily, fastDelay)
	fast.FlagFraming = fastFraming
	orch.Register(fast)

	s := t30.NewSession(role, cfg)
	s.LocalIdent = ident
	s.SetOrchestrator(orch)
	return s, fast
}

func v29Only() t30.Config {
	return t30.Config{SupportedFamilies: map[modem.Family]bool{modem.FamilyV29: true}}
}

// deferAndStartPage performs the carrier-deferral dance a page sender
// goes through after the V.21 acknowledgement: the line drops carrier,
// then stays quiet for a full deferral window before the fast carrier
// may come up.
func deferAndStartPage(t *testing.T, sender *t30.Session) {
	t.Helper()
	sender.SignalLineIdle()
	require.NoError(t, sender.ReceiveAudio(make([]int16, deferralSilenceSamples)))
}

// TestSessionEndToEnd_HappyPathSinglePage drives two live Sessions
// through a complete, ECM-off, single-page call over
// modem.LoopbackVariant: capability exchange, TCF training, one page,
// and clean disconnect. Scenario 1 of spec.md §8.
func TestSessionEndToEnd_HappyPathSinglePage(t *testing.T) {
	sink := &fakePageSink{}
	source := newFakePageSource(173)

	caller, _ := newLoopbackSession(t, t30.RoleCaller, "CALLERFAX", v29Only(), modem.FamilyV29, 50, false)
	answerer, _ := newLoopbackSession(t, t30.RoleAnswerer, "ANSWERERFAX", v29Only(), modem.FamilyV29, 50, false)
	answerer.SetPageSink(sink)

	var callerDone, answererDone bool
	var callerCode, answererCode t30.CompletionCode
	var callerStats, answererStats t30.Stats
	caller.SetPhaseEHandler(func(code t30.CompletionCode, stats t30.Stats) {
		callerDone = true
		callerCode = code
		callerStats = stats
	})
	answerer.SetPhaseEHandler(func(code t30.CompletionCode, stats t30.Stats) {
		answererDone = true
		answererCode = code
		answererStats = stats
	})

	var callerPhaseB []t30.FCF
	caller.SetPhaseBHandler(func(fcf t30.FCF) { callerPhaseB = append(callerPhaseB, fcf) })
	flushes := 0
	caller.SetFlushHandler(func(int) { flushes++ })

	require.NoError(t, answerer.Start())
	require.NoError(t, caller.Start())

	// Answerer's CSI+DIS -> caller.
	pumpUntilIdle(t, answerer, caller, 3)

	// Caller replies with TSI+DCS, then (its own continuation, with no
	// gap a pump would stop at) its 75ms pre-carrier silence and the
	// 1.5s TCF zero-fill burst at the negotiated 9600 bps — one
	// idle-to-idle leg covers all of it.
	pumpUntilIdle(t, caller, answerer, 3)

	// modem.LoopbackVariant never raises modem.EventCarrierDown on its
	// own; tell the answerer the caller's burst just ended so it
	// evaluates the TCF verdict and answers CFR.
	answerer.SignalLineIdle()
	pumpUntilIdle(t, answerer, caller, 3)

	// The CFR carrier is still "up" from the caller's point of view,
	// so the page is deferred until the line has been quiet for a full
	// deferral window.
	caller.SendPage(source, t30.DSignalEOP)
	deferAndStartPage(t, caller)
	pumpExact(t, caller, answerer, phaseCSilenceSamples+len(source.bits))

	// Same carrier-down gap on the receive side of the image itself.
	answerer.SignalLineIdle()

	// Caller's page source exhaustion already queued its EOP; drive it
	// out, the answerer's MCF ack, and the caller's closing DCN.
	pumpUntilIdle(t, caller, answerer, 3)
	pumpUntilIdle(t, answerer, caller, 3)
	pumpUntilIdle(t, caller, answerer, 3)

	require.True(t, callerDone, "caller never reached phase E")
	require.True(t, answererDone, "answerer never reached phase E")
	assert.Equal(t, t30.CompletionOK, callerCode)
	assert.Equal(t, t30.CompletionOK, answererCode)
	assert.Equal(t, 1, callerStats.PagesTransferred)
	assert.Equal(t, 1, answererStats.PagesTransferred)
	assert.Equal(t, "ANSWERERFAX", callerStats.RemoteIdent)
	assert.Equal(t, "CALLERFAX", answererStats.RemoteIdent)
	assert.Equal(t, 9600, callerStats.Rate)

	assert.Equal(t, []t30.FCF{t30.FCFDIS}, callerPhaseB)
	assert.Positive(t, flushes, "phase changes must flush the audio collaborator")

	// The receiver's fast modem consumes the pre-carrier silence as
	// training plus leading zero fill; the page bits follow intact.
	require.True(t, sink.ended)
	require.GreaterOrEqual(t, len(sink.bits), len(source.bits))
	lead := sink.bits[:len(sink.bits)-len(source.bits)]
	for _, b := range lead {
		require.Zero(t, b, "leading fill before the page must be zero bits")
	}
	assert.Equal(t, source.bits, sink.bits[len(sink.bits)-len(source.bits):])
}

// TestSessionEndToEnd_TrainingFallback forces one FTT and checks the
// caller retrains one step down the fallback sequence and completes at
// 7200 bps. Scenario 2 of spec.md §8 (one fallback step instead of
// two; the walk is the same code path each round).
func TestSessionEndToEnd_TrainingFallback(t *testing.T) {
	sink := &fakePageSink{}
	source := newFakePageSource(121)

	caller, _ := newLoopbackSession(t, t30.RoleCaller, "CALLERFAX", v29Only(), modem.FamilyV29, 50, false)
	// A 3000-sample training eater leaves fewer contiguous zero bits
	// than the TCF threshold requires at 9600 bps, so the first round
	// fails to train.
	answerer, answererFast := newLoopbackSession(t, t30.RoleAnswerer, "ANSWERERFAX", v29Only(), modem.FamilyV29, 3000, false)
	answerer.SetPageSink(sink)

	var callerCode, answererCode t30.CompletionCode
	var callerStats t30.Stats
	caller.SetPhaseEHandler(func(code t30.CompletionCode, stats t30.Stats) {
		callerCode = code
		callerStats = stats
	})
	answerer.SetPhaseEHandler(func(code t30.CompletionCode, _ t30.Stats) { answererCode = code })

	require.NoError(t, answerer.Start())
	require.NoError(t, caller.Start())

	pumpUntilIdle(t, answerer, caller, 3) // CSI+DIS
	pumpUntilIdle(t, caller, answerer, 3) // TSI+DCS + TCF at 9600

	answerer.SignalLineIdle() // TCF verdict: too few zeros -> FTT
	pumpUntilIdle(t, answerer, caller, 3)

	// Second round trains cleanly at the fallback rate.
	answererFast.TrainingDelay = 0
	pumpUntilIdle(t, caller, answerer, 3) // TSI+DCS + TCF at 7200
	answerer.SignalLineIdle()
	pumpUntilIdle(t, answerer, caller, 3) // CFR

	caller.SendPage(source, t30.DSignalEOP)
	deferAndStartPage(t, caller)
	pumpExact(t, caller, answerer, phaseCSilenceSamples+len(source.bits))
	answerer.SignalLineIdle()

	pumpUntilIdle(t, caller, answerer, 3) // EOP
	pumpUntilIdle(t, answerer, caller, 3) // MCF
	pumpUntilIdle(t, caller, answerer, 3) // DCN

	assert.Equal(t, t30.CompletionOK, callerCode)
	assert.Equal(t, t30.CompletionOK, answererCode)
	assert.Equal(t, 7200, callerStats.Rate, "second training attempt must land one fallback step down")
	assert.Equal(t, 1, callerStats.PagesTransferred)
	assert.Equal(t, source.bits, sink.bits[len(sink.bits)-len(source.bits):])
}

// TestSession_T1ExpiryDisconnects covers scenario 3 of spec.md §8: a
// caller that never hears a valid frame gives up when T1 runs out,
// with zero pages transferred.
func TestSession_T1ExpiryDisconnects(t *testing.T) {
	caller, _ := newLoopbackSession(t, t30.RoleCaller, "CALLERFAX", v29Only(), modem.FamilyV29, 0, false)

	var code t30.CompletionCode
	var stats t30.Stats
	done := false
	caller.SetPhaseEHandler(func(c t30.CompletionCode, s t30.Stats) {
		done = true
		code = c
		stats = s
	})

	require.NoError(t, caller.Start())
	require.NoError(t, caller.ReceiveAudio(make([]int16, int(t30.SecondsToSamples(35))+1)))

	require.True(t, done)
	assert.Equal(t, t30.CompletionTimerExpired, code)
	assert.Equal(t, t30.PhaseFinished, caller.Phase)
	assert.Zero(t, stats.PagesTransferred)
}

// TestSessionEndToEnd_CapabilityMismatch is scenario 6 of spec.md §8:
// the answerer only does V.17, the caller only V.27ter, so the caller
// must DCN straight after DIS.
func TestSessionEndToEnd_CapabilityMismatch(t *testing.T) {
	callerCfg := t30.Config{SupportedFamilies: map[modem.Family]bool{modem.FamilyV27ter: true}}
	answererCfg := t30.Config{SupportedFamilies: map[modem.Family]bool{modem.FamilyV17: true}}
	caller, _ := newLoopbackSession(t, t30.RoleCaller, "CALLERFAX", callerCfg, modem.FamilyV27ter, 0, false)
	answerer, _ := newLoopbackSession(t, t30.RoleAnswerer, "ANSWERERFAX", answererCfg, modem.FamilyV17, 0, false)

	var callerCode t30.CompletionCode
	callerDone := false
	caller.SetPhaseEHandler(func(code t30.CompletionCode, _ t30.Stats) {
		callerDone = true
		callerCode = code
	})

	require.NoError(t, answerer.Start())
	require.NoError(t, caller.Start())

	pumpUntilIdle(t, answerer, caller, 3) // CSI+DIS (V.17 only)
	pumpUntilIdle(t, caller, answerer, 3) // DCN

	require.True(t, callerDone)
	assert.Equal(t, t30.CompletionCapabilityMismatch, callerCode)
}

// TestSessionEndToEnd_ECMSinglePage sends one page as a single ECM
// block of three frames, acknowledged per block, then EOP/MCF/DCN.
func TestSessionEndToEnd_ECMSinglePage(t *testing.T) {
	frames := [][]byte{
		{0x10, 0x11, 0x12, 0x13},
		{0x20, 0x21, 0x22, 0x23},
		{0x30, 0x31, 0x32, 0x33},
	}
	source := &fakeECMSource{frames: frames}
	sink := &fakePageSink{}

	cfg := v29Only()
	cfg.ECMCapable = true
	caller, _ := newLoopbackSession(t, t30.RoleCaller, "CALLERFAX", cfg, modem.FamilyV29, 0, true)
	answerer, _ := newLoopbackSession(t, t30.RoleAnswerer, "ANSWERERFAX", cfg, modem.FamilyV29, 0, true)
	answerer.SetPageSink(sink)

	var callerCode, answererCode t30.CompletionCode
	var callerStats t30.Stats
	caller.SetPhaseEHandler(func(code t30.CompletionCode, stats t30.Stats) {
		callerCode = code
		callerStats = stats
	})
	answerer.SetPhaseEHandler(func(code t30.CompletionCode, _ t30.Stats) { answererCode = code })

	require.NoError(t, answerer.Start())
	require.NoError(t, caller.Start())

	pumpUntilIdle(t, answerer, caller, 3) // CSI+DIS
	pumpUntilIdle(t, caller, answerer, 3) // TSI+DCS + TCF
	answerer.SignalLineIdle()
	pumpUntilIdle(t, answerer, caller, 3) // CFR

	caller.SendPage(source, t30.DSignalEOP)
	deferAndStartPage(t, caller)
	pumpUntilIdle(t, caller, answerer, 3) // FCD x3 + PPS over the fast carrier
	pumpUntilIdle(t, answerer, caller, 3) // block-level MCF
	pumpUntilIdle(t, caller, answerer, 3) // EOP
	pumpUntilIdle(t, answerer, caller, 3) // page-level MCF
	pumpUntilIdle(t, caller, answerer, 3) // DCN

	assert.Equal(t, t30.CompletionOK, callerCode)
	assert.Equal(t, t30.CompletionOK, answererCode)
	assert.Equal(t, 1, callerStats.PagesTransferred)
	assert.True(t, callerStats.ECM)

	require.Len(t, sink.ecmFrames, len(frames))
	for i, want := range frames {
		assert.Equal(t, want, sink.ecmFrames[i], "ECM frame %d", i)
	}
}

// TestSessionEndToEnd_Polling flips the transfer direction: the caller
// requests the answerer's queued document via DTC, the answerer
// negotiates and trains as the transmitter, and the page lands on the
// caller's sink.
func TestSessionEndToEnd_Polling(t *testing.T) {
	sink := &fakePageSink{}
	source := newFakePageSource(97)

	cfg := v29Only()
	cfg.PollingEnabled = true
	caller, _ := newLoopbackSession(t, t30.RoleCaller, "CALLERFAX", cfg, modem.FamilyV29, 50, false)
	answerer, _ := newLoopbackSession(t, t30.RoleAnswerer, "ANSWERERFAX", cfg, modem.FamilyV29, 50, false)
	caller.SetPageSink(sink)
	caller.RequestPoll()
	answerer.OfferPoll()

	var callerCode, answererCode t30.CompletionCode
	var callerStats, answererStats t30.Stats
	caller.SetPhaseEHandler(func(code t30.CompletionCode, stats t30.Stats) {
		callerCode = code
		callerStats = stats
	})
	answerer.SetPhaseEHandler(func(code t30.CompletionCode, stats t30.Stats) {
		answererCode = code
		answererStats = stats
	})

	require.NoError(t, answerer.Start())
	require.NoError(t, caller.Start())

	pumpUntilIdle(t, answerer, caller, 3) // CSI+DIS
	pumpUntilIdle(t, caller, answerer, 3) // CIG+DTC
	pumpUntilIdle(t, answerer, caller, 3) // TSI+DCS + TCF (answerer transmits now)
	caller.SignalLineIdle()
	pumpUntilIdle(t, caller, answerer, 3) // CFR

	answerer.SendPage(source, t30.DSignalEOP)
	deferAndStartPage(t, answerer)
	pumpExact(t, answerer, caller, phaseCSilenceSamples+len(source.bits))
	caller.SignalLineIdle()

	pumpUntilIdle(t, answerer, caller, 3) // EOP
	pumpUntilIdle(t, caller, answerer, 3) // MCF
	pumpUntilIdle(t, answerer, caller, 3) // DCN

	assert.Equal(t, t30.CompletionOK, callerCode)
	assert.Equal(t, t30.CompletionOK, answererCode)
	assert.Equal(t, 1, callerStats.PagesTransferred)
	assert.Equal(t, 1, answererStats.PagesTransferred)
	require.True(t, sink.ended)
	assert.Equal(t, source.bits, sink.bits[len(sink.bits)-len(source.bits):])
}

// TestSession_ReleaseCancels checks the explicit-cancellation contract
// of spec.md §5: Release reaches phase E exactly once with the
// cancelled completion code.
func TestSession_ReleaseCancels(t *testing.T) {
	s, _ := newLoopbackSession(t, t30.RoleCaller, "CALLERFAX", v29Only(), modem.FamilyV29, 0, false)

	var codes []t30.CompletionCode
	s.SetPhaseEHandler(func(code t30.CompletionCode, _ t30.Stats) { codes = append(codes, code) })

	require.NoError(t, s.Start())
	s.Release()
	s.Release() // second release is a no-op

	require.Len(t, codes, 1)
	assert.Equal(t, t30.CompletionCancelled, codes[0])
	assert.Equal(t, t30.PhaseFinished, s.Phase)
}
