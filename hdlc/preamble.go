package hdlc

// FlagOctet is the HDLC flag pattern (0x7E) used for preamble, inter-frame
// idle, and end-of-group idle on the V.21 control channel.
const FlagOctet byte = 0x7E

// BitsPerFlag is the width of one flag octet once bit-stuffed: 0x7E never
// triggers stuffing against an adjacent flag, so it is always exactly 8
// bits on the wire.
const BitsPerFlag = 8

// BaudRate300 is the V.21 control-channel signaling rate.
const BaudRate300 = 300

// MinPreambleOctets is the fewest flag octets that satisfy T.30's
// one-second preamble requirement at 300 baud: 300 bits / 8 bits per
// flag = 37.5, rounded up to 38 (spec.md §8 boundary behavior).
const MinPreambleOctets = 38

// MinInterFrameFlags is the minimum flag idle required between two
// frames of the same group.
const MinInterFrameFlags = 2

// MinTrailingFlags is the minimum flag idle required after the last
// frame of a group, before carrier-down.
const MinTrailingFlags = 1

// Preamble returns n flag octets, clamped to at least MinPreambleOctets.
func Preamble(n int) []byte {
	if n < MinPreambleOctets {
		n = MinPreambleOctets
	}
	return flags(n)
}

// InterFrameIdle returns n flag octets, clamped to at least
// MinInterFrameFlags.
func InterFrameIdle(n int) []byte {
	if n < MinInterFrameFlags {
		n = MinInterFrameFlags
	}
	return flags(n)
}

// TrailingIdle returns n flag octets, clamped to at least
// MinTrailingFlags.
func TrailingIdle(n int) []byte {
	if n < MinTrailingFlags {
		n = MinTrailingFlags
	}
	return flags(n)
}

func flags(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = FlagOctet
	}
	return out
}

// Group sequences a set of frames the way a V.21 transmitter must put
// them on the wire: preamble, first frame, inter-frame idle between
// subsequent frames, then trailing idle — the preamble/flag-idle
// sequencing spec.md §4.3 assigns to this component, with the actual
// bit-stuffing and FSK modulation left to the modem package.
func Group(frames []Frame) ([]byte, error) {
	var out []byte
	out = append(out, Preamble(MinPreambleOctets)...)
	for i, f := range frames {
		enc, err := f.Encode()
		if err != nil {
			return nil, err
		}
		if i > 0 {
			out = append(out, InterFrameIdle(MinInterFrameFlags)...)
		}
		out = append(out, enc...)
	}
	out = append(out, TrailingIdle(MinTrailingFlags)...)
	return out, nil
}
