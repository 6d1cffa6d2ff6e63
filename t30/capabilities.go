package t30

import "github.com/xrg/gofax30/modem"

// Capabilities is the decoded form of a DIS, DTC, or DCS frame payload
// (the octets following the FCF). The three frame types share this
// layout; DCS additionally requires CanReceive/CanTransmit to already
// reflect a firm choice rather than a menu of options (spec.md §4.1).
//
// Bit positions below follow spec.md's octet numbering (octet 2, 3, 4,
// 5) with bit 1 as the LSB on the wire, gated by each octet's bit-8
// "another octet follows" convention.
type Capabilities struct {
	T38Capable      bool
	T37Capable      bool
	V8Capable       bool
	PreferFrameSize bool

	CanReceive  bool
	CanTransmit bool
	Family      modem.Family
	Rate        modem.Rate
	TwoDCapable bool

	ResolutionFine      bool
	ScanLineWidthCode   byte // 0..5, see ScanLineWidths
	RecordingUnlimited  bool
	MinScanLineTimeCode byte // 0..7, see MinScanLineBits
	ECMCapable          bool
}

// ScanLineWidths maps ScanLineWidthCode to the negotiated image width in
// pixels (spec.md §3's enumerated widths).
var ScanLineWidths = [6]int{1728, 2048, 2432, 3456, 4096, 4864}

// Encode serializes c into the 4-octet DIS/DTC/DCS payload that follows
// the FCF octet.
func (c Capabilities) Encode() ([]byte, error) {
	familyBits, ok := modem.EncodeFamilyBits(c.Family, c.Rate)
	if !ok {
		return nil, errInvalidFamilyRate(c.Family, c.Rate)
	}
	if c.ScanLineWidthCode > 5 {
		return nil, errScanLineWidthCode(c.ScanLineWidthCode)
	}
	if c.MinScanLineTimeCode > 7 {
		return nil, errMinScanLineTimeCode(c.MinScanLineTimeCode)
	}

	var octet2, octet3, octet4, octet5 byte
	octet2 = setBit(octet2, 1, c.T38Capable)
	octet2 = setBit(octet2, 2, c.T37Capable)
	octet2 = setBit(octet2, 3, c.V8Capable)
	octet2 = setBit(octet2, 4, c.PreferFrameSize)
	octet2 = setBit(octet2, 8, true) // extension: octet 3 follows

	octet3 = setBit(octet3, 1, c.CanReceive)
	octet3 = setBit(octet3, 2, c.CanTransmit)
	octet3 |= (familyBits & 0x0F) << 2
	octet3 = setBit(octet3, 7, c.TwoDCapable)
	octet3 = setBit(octet3, 8, true) // extension: octet 4 follows

	octet4 = setBit(octet4, 1, c.ResolutionFine)
	octet4 |= (c.ScanLineWidthCode & 0x07) << 1
	octet4 = setBit(octet4, 5, c.RecordingUnlimited)
	octet4 = setBit(octet4, 8, true) // extension: octet 5 follows

	octet5 |= c.MinScanLineTimeCode & 0x07
	octet5 = setBit(octet5, 4, c.ECMCapable)
	// bit 8 left clear: no further octets in this model.

	return []byte{octet2, octet3, octet4, octet5}, nil
}

// DecodeCapabilities parses a DIS/DTC/DCS payload produced by Encode.
func DecodeCapabilities(payload []byte) (Capabilities, error) {
	if len(payload) < 4 {
		return Capabilities{}, errShortCapabilities(len(payload))
	}
	octet2, octet3, octet4, octet5 := payload[0], payload[1], payload[2], payload[3]

	familyBits := (octet3 >> 2) & 0x0F
	family, rate, ok := modem.DecodeFamilyBits(familyBits)
	if !ok {
		return Capabilities{}, errUnknownFamilyBits(familyBits)
	}

	return Capabilities{
		T38Capable:      bit(octet2, 1),
		T37Capable:      bit(octet2, 2),
		V8Capable:       bit(octet2, 3),
		PreferFrameSize: bit(octet2, 4),

		CanReceive:  bit(octet3, 1),
		CanTransmit: bit(octet3, 2),
		Family:      family,
		Rate:        rate,
		TwoDCapable: bit(octet3, 7),

		ResolutionFine:      bit(octet4, 1),
		ScanLineWidthCode:   (octet4 >> 1) & 0x07,
		RecordingUnlimited:  bit(octet4, 5),
		MinScanLineTimeCode: octet5 & 0x07,
		ECMCapable:          bit(octet5, 4),
	}, nil
}

// ScanLineWidth returns the negotiated image width in pixels.
func (c Capabilities) ScanLineWidth() int {
	if int(c.ScanLineWidthCode) >= len(ScanLineWidths) {
		return ScanLineWidths[0]
	}
	return ScanLineWidths[c.ScanLineWidthCode]
}

func setBit(b byte, pos int, v bool) byte {
	mask := byte(1) << (pos - 1)
	if v {
		return b | mask
	}
	return b &^ mask
}

func bit(b byte, pos int) bool {
	return b&(1<<(pos-1)) != 0
}
