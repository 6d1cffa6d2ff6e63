package t30_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/xrg/gofax30/modem"
	"github.com/xrg/gofax30/t30"
)

func validFamilyRate(t *rapid.T) (modem.Family, modem.Rate) {
	idx := rapid.IntRange(0, len(modem.FallbackSequence)-1).Draw(t, "idx")
	step := modem.FallbackSequence[idx]
	return step.Family, step.Rate
}

func TestCapabilities_RoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		family, rate := validFamilyRate(t)
		c := t30.Capabilities{
			T38Capable:          rapid.Bool().Draw(t, "t38"),
			T37Capable:          rapid.Bool().Draw(t, "t37"),
			V8Capable:           rapid.Bool().Draw(t, "v8"),
			PreferFrameSize:     rapid.Bool().Draw(t, "pfs"),
			CanReceive:          rapid.Bool().Draw(t, "rx"),
			CanTransmit:         rapid.Bool().Draw(t, "tx"),
			Family:              family,
			Rate:                rate,
			TwoDCapable:         rapid.Bool().Draw(t, "2d"),
			ResolutionFine:      rapid.Bool().Draw(t, "fine"),
			ScanLineWidthCode:   byte(rapid.IntRange(0, 5).Draw(t, "width")),
			RecordingUnlimited:  rapid.Bool().Draw(t, "rec"),
			MinScanLineTimeCode: byte(rapid.IntRange(0, 7).Draw(t, "minscan")),
			ECMCapable:          rapid.Bool().Draw(t, "ecm"),
		}

		payload, err := c.Encode()
		require.NoError(t, err)
		require.Len(t, payload, 4)

		got, err := t30.DecodeCapabilities(payload)
		require.NoError(t, err)
		assert.Equal(t, c, got)
	})
}

func TestCapabilities_RejectsInvalidFamilyRate(t *testing.T) {
	c := t30.Capabilities{Family: modem.FamilyV29, Rate: modem.Rate2400}
	_, err := c.Encode()
	assert.Error(t, err)
}

func TestCapabilities_ScanLineWidth(t *testing.T) {
	c := t30.Capabilities{ScanLineWidthCode: 2}
	assert.Equal(t, 2432, c.ScanLineWidth())
}

func TestCapabilities_DecodeRejectsShortPayload(t *testing.T) {
	_, err := t30.DecodeCapabilities([]byte{0x00, 0x00})
	assert.Error(t, err)
}

func TestMinScanLineBits_BoundaryValues(t *testing.T) {
	// Top bit-rate class (14400/12000/9600 share a row).
	assert.Equal(t, 144, t30.MinScanLineBits(0, modem.Rate14400))
	assert.Equal(t, 36, t30.MinScanLineBits(1, modem.Rate14400))
	assert.Equal(t, 72, t30.MinScanLineBits(2, modem.Rate14400))
	assert.Equal(t, 288, t30.MinScanLineBits(4, modem.Rate12000))
	assert.Equal(t, 0, t30.MinScanLineBits(7, modem.Rate9600))

	// One value per lower bit-rate row.
	assert.Equal(t, 384, t30.MinScanLineBits(4, modem.Rate7200))
	assert.Equal(t, 96, t30.MinScanLineBits(2, modem.Rate7200))
	assert.Equal(t, 288, t30.MinScanLineBits(0, modem.Rate4800))
	assert.Equal(t, 1152, t30.MinScanLineBits(4, modem.Rate2400))
	assert.Equal(t, 576, t30.MinScanLineBits(0, modem.Rate2400))

	// Reserved codes report -1 at every rate.
	assert.Equal(t, -1, t30.MinScanLineBits(3, modem.Rate14400))
	assert.Equal(t, -1, t30.MinScanLineBits(6, modem.Rate4800))
}
