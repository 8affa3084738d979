package fastpath

import (
	"bytes"
	"encoding/binary"
	"io"
)

// InputEventPDU represents TS_FP_INPUT_PDU (MS-RDPBCGR 2.2.8.1.2).
// The header byte packs action (2 bits), numEvents (4 bits) and
// encryption flags (2 bits).
type InputEventPDU struct {
	action    uint8
	numEvents uint8
	flags     uint8
	eventData []byte
}

// NewInputEventPDU wraps already-encoded input event data into a
// single-event Fast-Path input PDU.
func NewInputEventPDU(eventData []byte) *InputEventPDU {
	return &InputEventPDU{
		action:    0,
		numEvents: 1,
		flags:     0,
		eventData: eventData,
	}
}

// Serialize renders the PDU: header byte, 1-or-2-byte length, event data.
func (p *InputEventPDU) Serialize() []byte {
	buf := &bytes.Buffer{}

	header := p.action&0x3 | (p.numEvents&0xf)<<2 | (p.flags&0x3)<<6
	buf.WriteByte(header)

	// length counts the header byte plus the event data; the length
	// field's own size is folded in by SerializeLength.
	_ = p.SerializeLength(1+len(p.eventData), buf)

	buf.Write(p.eventData)

	return buf.Bytes()
}

// SerializeLength writes the Fast-Path per-encoded length field: one
// byte for values up to 0x7f, otherwise two bytes big-endian with the
// high bit set. value excludes the length field itself, which is why
// the short form adds 1 and the long form adds 2.
func (p *InputEventPDU) SerializeLength(value int, w io.Writer) error {
	if value > 0x7f {
		return binary.Write(w, binary.BigEndian, uint16(value+2)|0x8000)
	}

	_, err := w.Write([]byte{uint8(value + 1)})

	return err
}

// Send serializes and writes one Fast-Path input PDU.
func (p *Protocol) Send(pdu *InputEventPDU) error {
	_, err := p.conn.Write(pdu.Serialize())

	return err
}
