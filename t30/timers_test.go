package t30_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xrg/gofax30/t30"
)

func TestTimers_ArmAndExpire(t *testing.T) {
	var timers t30.Timers
	timers.ArmFor(t30.T2, 100)
	assert.True(t, timers.Armed(t30.T2))

	expired := timers.Tick(60)
	assert.Empty(t, expired)
	assert.Equal(t, t30.Samples(40), timers.Remaining(t30.T2))

	expired = timers.Tick(40)
	assert.Equal(t, []t30.TimerID{t30.T2}, expired)
	assert.False(t, timers.Armed(t30.T2))
}

func TestTimers_DisarmPreventsExpiry(t *testing.T) {
	var timers t30.Timers
	timers.ArmFor(t30.T1, 10)
	timers.Disarm(t30.T1)
	expired := timers.Tick(100)
	assert.Empty(t, expired)
}

func TestTimers_MultipleExpireSameTick(t *testing.T) {
	var timers t30.Timers
	timers.ArmFor(t30.T2, 10)
	timers.ArmFor(t30.T4, 5)
	expired := timers.Tick(20)
	assert.Equal(t, []t30.TimerID{t30.T2, t30.T4}, expired)
}

func TestSecondsToSamples(t *testing.T) {
	assert.Equal(t, t30.Samples(48000), t30.SecondsToSamples(6))
}
