// Package pdu implements RDP Protocol Data Units as defined in MS-RDPBCGR.
package pdu

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/go-rdp/rdpcore/internal/codec"
	"github.com/go-rdp/rdpcore/internal/cursor"
)

// LicensingBinaryBlob represents a LICENSE_BINARY_BLOB structure (MS-RDPELE 2.2.2.4).
type LicensingBinaryBlob struct {
	BlobType uint16
	BlobLen  uint16
	BlobData []byte
}

// Deserialize reads a LICENSE_BINARY_BLOB from wire.
func (b *LicensingBinaryBlob) Deserialize(wire io.Reader) error {
	if err := binary.Read(wire, binary.LittleEndian, &b.BlobType); err != nil {
		return err
	}
	if err := binary.Read(wire, binary.LittleEndian, &b.BlobLen); err != nil {
		return err
	}

	if b.BlobLen == 0 {
		return nil
	}

	b.BlobData = make([]byte, b.BlobLen)

	if _, err := io.ReadFull(wire, b.BlobData); err != nil {
		return err
	}

	return nil
}

// Decode reads a LICENSE_BINARY_BLOB through a bounds-checked cursor.
func (b *LicensingBinaryBlob) Decode(r *cursor.Reader) error {
	return cursor.WrapDecode("LicensingBinaryBlob", b.Deserialize(r))
}

// LicensingErrorMessage represents a LICENSE_ERROR_MESSAGE structure (MS-RDPELE 2.2.1.12).
type LicensingErrorMessage struct {
	ErrorCode       uint32
	StateTransition uint32
	ErrorInfo       LicensingBinaryBlob
}

// Deserialize reads a LICENSE_ERROR_MESSAGE from wire.
func (m *LicensingErrorMessage) Deserialize(wire io.Reader) error {
	if err := binary.Read(wire, binary.LittleEndian, &m.ErrorCode); err != nil {
		return err
	}
	if err := binary.Read(wire, binary.LittleEndian, &m.StateTransition); err != nil {
		return err
	}

	return m.ErrorInfo.Deserialize(wire)
}

// Decode reads a LICENSE_ERROR_MESSAGE through a bounds-checked cursor.
func (m *LicensingErrorMessage) Decode(r *cursor.Reader) error {
	return cursor.WrapDecode("LicensingErrorMessage", m.Deserialize(r))
}

// LicensingPreamble represents a LICENSE_PREAMBLE structure (MS-RDPELE 2.2.2.1).
type LicensingPreamble struct {
	MsgType uint8
	Flags   uint8
	MsgSize uint16
}

// Deserialize reads a LICENSE_PREAMBLE from wire.
func (p *LicensingPreamble) Deserialize(wire io.Reader) error {
	if err := binary.Read(wire, binary.LittleEndian, &p.MsgType); err != nil {
		return err
	}
	if err := binary.Read(wire, binary.LittleEndian, &p.Flags); err != nil {
		return err
	}
	return binary.Read(wire, binary.LittleEndian, &p.MsgSize)
}

// Decode reads a LICENSE_PREAMBLE through a bounds-checked cursor.
func (p *LicensingPreamble) Decode(r *cursor.Reader) error {
	return cursor.WrapDecode("LicensingPreamble", p.Deserialize(r))
}

// ServerLicenseError represents a Server License Error PDU (MS-RDPBCGR 2.2.1.12).
type ServerLicenseError struct {
	Preamble           LicensingPreamble
	ValidClientMessage LicensingErrorMessage
}

// Deserialize parses the server license response.
// Note: XRDP sends security header even with TLS, so we always expect it.
func (pdu *ServerLicenseError) Deserialize(wire io.Reader, useEnhancedSecurity bool) error {
	// Always expect security header for XRDP compatibility.
	// XRDP sends SEC_LICENSE_PKT | SEC_LICENSE_ENCRYPT_CS (0x0280) even with TLS.
	securityFlag, err := codec.UnwrapSecurityFlag(wire)
	if err != nil {
		return err
	}

	// SEC_LICENSE_PKT = 0x0080, may be combined with SEC_LICENSE_ENCRYPT_CS = 0x0200
	if securityFlag&0x0080 == 0 { // SEC_LICENSE_PKT
		return cursor.NewDecodeError("ServerLicenseError", cursor.KindUnexpectedMessageType,
			fmt.Errorf("security flags 0x%04X carry no SEC_LICENSE_PKT bit", securityFlag))
	}

	err = pdu.Preamble.Deserialize(wire)
	if err != nil {
		return cursor.WrapDecode("ServerLicenseError", err)
	}

	err = pdu.ValidClientMessage.Deserialize(wire)
	if err != nil {
		return cursor.WrapDecode("ServerLicenseError", err)
	}

	return nil
}

// Decode parses the server license response through a bounds-checked cursor.
func (pdu *ServerLicenseError) Decode(r *cursor.Reader, useEnhancedSecurity bool) error {
	return pdu.Deserialize(r, useEnhancedSecurity)
}
