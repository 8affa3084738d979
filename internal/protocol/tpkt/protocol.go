// Package tpkt implements the TPKT transport protocol (RFC 1006) used as
// the base transport layer for RDP connections.
package tpkt

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	"github.com/go-rdp/rdpcore/internal/cursor"
)

const (
	headerLen = 4
	version   = 0x03
)

// ErrShortPacket is returned when a TPKT header declares a total length
// shorter than the header itself.
var ErrShortPacket = errors.New("tpkt: length shorter than header")

type Protocol struct {
	conn io.ReadWriteCloser
}

func New(conn io.ReadWriteCloser) *Protocol {
	return &Protocol{
		conn: conn,
	}
}

// Send wraps pduData in a TPKT header and writes it to the connection.
func (p *Protocol) Send(pduData []byte) error {
	buf := make([]byte, headerLen+len(pduData))
	buf[0] = version
	buf[1] = 0x00
	binary.BigEndian.PutUint16(buf[2:4], uint16(headerLen+len(pduData))) // #nosec G115
	copy(buf[headerLen:], pduData)

	_, err := p.conn.Write(buf)
	return err
}

// Receive reads one TPKT packet and returns a reader positioned over its
// payload.
func (p *Protocol) Receive() (io.Reader, error) {
	header := make([]byte, headerLen)
	if _, err := io.ReadFull(p.conn, header); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint16(header[2:4])
	if int(length) < headerLen {
		return nil, ErrShortPacket
	}

	payload := make([]byte, int(length)-headerLen)
	if len(payload) > 0 {
		if _, err := io.ReadFull(p.conn, payload); err != nil {
			return nil, err
		}
	}

	return bytes.NewReader(payload), nil
}

// Header is the 4-byte TPKT header, encodable/decodable through a
// bounds-checked cursor.
type Header struct {
	Version  uint8
	Reserved uint8
	Length   uint16
}

// Size returns the wire size of a TPKT header.
func (Header) Size() int { return headerLen }

// Encode writes the header through a bounds-checked cursor.
func (h Header) Encode(w *cursor.Writer) error {
	if err := w.WriteU8(h.Version); err != nil {
		return err
	}
	if err := w.WriteU8(h.Reserved); err != nil {
		return err
	}
	return w.WriteU16BE(h.Length)
}

// Decode reads the header through a bounds-checked cursor.
func (h *Header) Decode(r *cursor.Reader) error {
	v, err := r.ReadU8()
	if err != nil {
		return err
	}
	rsv, err := r.ReadU8()
	if err != nil {
		return err
	}
	length, err := r.ReadU16BE()
	if err != nil {
		return err
	}
	h.Version, h.Reserved, h.Length = v, rsv, length
	return nil
}
