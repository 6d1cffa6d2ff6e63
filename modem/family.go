// Package modem orchestrates the V.21 low-speed control modem and the
// three fast-modem families (V.27ter, V.29, V.17) on behalf of the t30
// procedure engine. The actual DSP — FSK/QAM modulation, trellis coding,
// equalization — is explicitly out of scope (spec.md §1 lists it as an
// external collaborator); this package selects, arms, and drains
// whichever Variant implements that DSP for the current phase, and
// turns its output into the tagged events the procedure engine expects.
//
// Grounded on src/multi_modem.go's per-channel modem dispatch, but
// narrowed from "pick the best of several simultaneous candidate
// decodes" down to "exactly one modem is ever armed at a time" per
// session invariant 1 in spec.md §3.
package modem

import "fmt"

// Family identifies a modem scheme. FamilyV21 is the always-available
// low-speed control modem; the other three are fast-modem families
// used during Phase C.
type Family int

const (
	FamilyV21 Family = iota
	FamilyV27ter
	FamilyV29
	FamilyV17
)

func (f Family) String() string {
	switch f {
	case FamilyV21:
		return "V.21"
	case FamilyV27ter:
		return "V.27ter"
	case FamilyV29:
		return "V.29"
	case FamilyV17:
		return "V.17"
	default:
		return fmt.Sprintf("Family(%d)", int(f))
	}
}

// Rate is a negotiated bit rate in bits per second.
type Rate int

const (
	Rate2400  Rate = 2400
	Rate4800  Rate = 4800
	Rate7200  Rate = 7200
	Rate9600  Rate = 9600
	Rate12000 Rate = 12000
	Rate14400 Rate = 14400
)

// familyCode is the 4-bit modem-family selector used in DIS/DTC/DCS
// octet 3 (spec.md §4.1). Kept here, rather than in the t30 package,
// because it is a property of the modem scheme itself.
type familyCode struct {
	Family Family
	Rate   Rate
	Bits   byte
}

var familyCodes = []familyCode{
	{FamilyV27ter, Rate2400, 0b0000},
	{FamilyV27ter, Rate4800, 0b0100},
	{FamilyV29, Rate9600, 0b1000},
	{FamilyV29, Rate7200, 0b1100},
	{FamilyV17, Rate14400, 0b0010},
	{FamilyV17, Rate12000, 0b1010},
	{FamilyV17, Rate9600, 0b0110},
	{FamilyV17, Rate7200, 0b1110},
}

// EncodeFamilyBits returns the 4-bit DIS/DCS modem-selector field for
// (family, rate), and false if the combination is not a valid T.30
// fast-modem selection.
func EncodeFamilyBits(family Family, rate Rate) (byte, bool) {
	for _, c := range familyCodes {
		if c.Family == family && c.Rate == rate {
			return c.Bits, true
		}
	}
	return 0, false
}

// DecodeFamilyBits reverses EncodeFamilyBits.
func DecodeFamilyBits(bits byte) (Family, Rate, bool) {
	for _, c := range familyCodes {
		if c.Bits == bits&0x0F {
			return c.Family, c.Rate, true
		}
	}
	return 0, 0, false
}
