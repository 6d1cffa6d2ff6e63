package t30_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xrg/gofax30/t30"
)

func TestECMBlock_PutAndComplete(t *testing.T) {
	b := t30.NewECMBlock(0)
	for i := 0; i < 4; i++ {
		require.NoError(t, b.Put(i, []byte{byte(i)}))
	}
	assert.True(t, b.Complete(4))
	assert.False(t, b.Complete(5))
	assert.Equal(t, 4, b.ReceivedCount())
}

func TestECMBlock_Missing(t *testing.T) {
	b := t30.NewECMBlock(0)
	require.NoError(t, b.Put(0, []byte{0}))
	require.NoError(t, b.Put(2, []byte{2}))
	assert.Equal(t, []int{1, 3}, b.Missing(4))
}

func TestECMBlock_PPRBitmask(t *testing.T) {
	b := t30.NewECMBlock(0)
	require.NoError(t, b.Put(0, []byte{0}))
	mask := b.PPRBitmask(9)
	// frame 1..8 missing; bits 1-7 of byte 0 (0xFE, frames 1-7) and bit 0 (0x01) of byte 1 (frame 8) set.
	assert.Equal(t, byte(0xFE), mask[0])
	assert.Equal(t, byte(0x01), mask[1])
}

func TestECMBlock_RejectsOutOfRangeFrame(t *testing.T) {
	b := t30.NewECMBlock(0)
	assert.Error(t, b.Put(-1, nil))
	assert.Error(t, b.Put(256, nil))
}

func TestECMBlock_NeverExceedsBlockFrames(t *testing.T) {
	b := t30.NewECMBlock(0)
	for i := 0; i < t30.ECMBlockFrames; i++ {
		require.NoError(t, b.Put(i, []byte{byte(i)}))
	}
	assert.LessOrEqual(t, b.ReceivedCount(), t30.ECMBlockFrames)
	assert.True(t, b.Complete(t30.ECMBlockFrames))
}
