package t30

import "github.com/xrg/gofax30/modem"

// scanBitsTab is the minimum bits a scan line must occupy, per T.30:
// one row per negotiated bit-rate class, one column per value of the
// remote's 3-bit min-scan-line-time field. -1 marks reserved codes.
// spec.md §8's boundary-behavior property quotes values straight from
// this table.
var scanBitsTab = [4][8]int{
	{144, 36, 72, -1, 288, -1, -1, 0},    // 14400, 12000, 9600
	{192, 48, 96, -1, 384, -1, -1, 0},    // 7200
	{288, 72, 144, -1, 576, -1, -1, 0},   // 4800
	{576, 144, 288, -1, 1152, -1, -1, 0}, // 2400
}

func scanBitsRow(rate modem.Rate) int {
	switch rate {
	case modem.Rate14400, modem.Rate12000, modem.Rate9600:
		return 0
	case modem.Rate7200:
		return 1
	case modem.Rate4800:
		return 2
	default:
		return 3
	}
}

// MinScanLineBits returns the minimum number of bits a scan line must
// occupy at rate so the receiver's page memory keeps up, for the given
// MinScanLineTimeCode. Reserved codes return -1.
func MinScanLineBits(code byte, rate modem.Rate) int {
	if code > 7 {
		return -1
	}
	return scanBitsTab[scanBitsRow(rate)][code]
}
