package hdlc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/xrg/gofax30/hdlc"
)

func TestCRC16_AppendValidateRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 4096).Draw(t, "n")
		msg := rapid.SliceOfN(rapid.Byte(), n, n).Draw(t, "msg")

		framed := hdlc.AppendCRC(append([]byte{}, msg...))
		require.Len(t, framed, n+2)
		assert.True(t, hdlc.ValidateCRC(framed))
	})
}

func TestCRC16_DetectsSingleBitCorruption(t *testing.T) {
	msg := []byte("CSI identification frame payload")
	framed := hdlc.AppendCRC(append([]byte{}, msg...))
	framed[0] ^= 0x01
	assert.False(t, hdlc.ValidateCRC(framed))
}

func TestCRC16_TooShortIsInvalid(t *testing.T) {
	assert.False(t, hdlc.ValidateCRC(nil))
	assert.False(t, hdlc.ValidateCRC([]byte{0x01}))
}
