package t38

import (
	"encoding/binary"
	"fmt"

	"github.com/xrg/gofax30/modem"
)

// Codec turns a Packet into wire bytes and back. spec.md §6 explicitly
// places the real T.38 wire encoding (ASN.1 PER, ITU-T T.38 Annex A)
// out of the core's scope: "the translator manipulates the typed
// record, and a collaborator serializes it." DefaultCodec is that
// collaborator's minimal stand-in — a flat binary.BigEndian layout
// good enough to exercise the translator end to end (including its own
// tests) without an ASN.1 PER implementation in the pack.
type Codec interface {
	Encode(Packet) ([]byte, error)
	Decode([]byte) (Packet, error)
}

// DefaultCodec is the binary.BigEndian stand-in described above.
type DefaultCodec struct{}

// wire layout: seq(2) type(1) indicatorKind(1) family(1) rate(2) datalen(2) data(n)
func (DefaultCodec) Encode(p Packet) ([]byte, error) {
	out := make([]byte, 9+len(p.Data))
	binary.BigEndian.PutUint16(out[0:2], p.Seq)
	out[2] = byte(p.Type)
	out[3] = byte(p.Indicator.Kind)
	out[4] = byte(p.Indicator.Family)
	binary.BigEndian.PutUint16(out[5:7], uint16(p.Indicator.Rate))
	binary.BigEndian.PutUint16(out[7:9], uint16(len(p.Data)))
	copy(out[9:], p.Data)
	return out, nil
}

func (DefaultCodec) Decode(raw []byte) (Packet, error) {
	if len(raw) < 9 {
		return Packet{}, fmt.Errorf("t38: packet too short (%d bytes)", len(raw))
	}
	n := int(binary.BigEndian.Uint16(raw[7:9]))
	if len(raw) != 9+n {
		return Packet{}, fmt.Errorf("t38: packet length mismatch: header says %d, have %d", n, len(raw)-9)
	}
	data := make([]byte, n)
	copy(data, raw[9:])
	return Packet{
		Seq:  binary.BigEndian.Uint16(raw[0:2]),
		Type: PacketType(raw[2]),
		Indicator: Indicator{
			Kind:   IndicatorKind(raw[3]),
			Family: modem.Family(raw[4]),
			Rate:   modem.Rate(binary.BigEndian.Uint16(raw[5:7])),
		},
		Data: data,
	}, nil
}
