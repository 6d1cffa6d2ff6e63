package t30

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPPRBitmaskNamesExactlyTheMissingFrames ties the receive side's
// PPR encoding to the transmit side's decoder: whatever a partial
// block reports missing is exactly the set the sender would re-send,
// and nothing else (session invariant 6).
func TestPPRBitmaskNamesExactlyTheMissingFrames(t *testing.T) {
	b := NewECMBlock(0)
	received := []int{0, 1, 3, 4, 7, 120, 255}
	for _, fn := range received {
		require.NoError(t, b.Put(fn, []byte{byte(fn)}))
	}

	mask := b.PPRBitmask(ECMBlockFrames)
	resend := missingFrameNumbers(mask)
	assert.Equal(t, b.Missing(ECMBlockFrames), resend)

	for _, fn := range received {
		assert.NotContains(t, resend, fn)
	}
	assert.Len(t, resend, ECMBlockFrames-len(received))
}

func TestMissingFrameNumbersEmptyMask(t *testing.T) {
	assert.Empty(t, missingFrameNumbers(make([]byte, ECMBlockFrames/8)))
	assert.Empty(t, missingFrameNumbers(nil))
}
