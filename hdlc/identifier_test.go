package hdlc_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/xrg/gofax30/hdlc"
)

func TestIdentifier_RoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, hdlc.IdentifierLength).Draw(t, "n")
		runes := rapid.SliceOfN(rapid.RuneFrom([]rune("0123456789+ ABCDEFGHIJ")), n, n).Draw(t, "runes")
		id := strings.TrimRight(string(runes), " ")

		wire := hdlc.EncodeIdentifier(id)
		got := hdlc.DecodeIdentifier(wire)
		assert.Equal(t, id, got)
	})
}

func TestIdentifier_KnownVector(t *testing.T) {
	wire := hdlc.EncodeIdentifier("2125551212")
	assert.Equal(t, "2125551212", hdlc.DecodeIdentifier(wire))
	// the padded field is sent reversed, so its last octet (a padding space) is transmitted first.
	assert.Equal(t, byte(' '), wire[0])
}

func TestIdentifier_TruncatesOverlong(t *testing.T) {
	long := strings.Repeat("9", hdlc.IdentifierLength+5)
	wire := hdlc.EncodeIdentifier(long)
	assert.Equal(t, long[:hdlc.IdentifierLength], hdlc.DecodeIdentifier(wire))
}
