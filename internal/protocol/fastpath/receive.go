package fastpath

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// UpdatePDUAction is the 2-bit action field of the TS_FP_UPDATE_PDU
// header byte (MS-RDPBCGR 2.2.9.1.2).
type UpdatePDUAction uint8

const (
	// UpdatePDUActionFastPath marks a Fast-Path update stream.
	UpdatePDUActionFastPath UpdatePDUAction = 0x0
	// UpdatePDUActionX224 marks a slow-path TPKT/X.224 PDU; the first
	// byte would have been 0x03 and should never reach this decoder.
	UpdatePDUActionX224 UpdatePDUAction = 0x3
)

// UpdatePDUFlag is the 2-bit encryption flags field of the header byte.
type UpdatePDUFlag uint8

const (
	UpdatePDUFlagSecureChecksum UpdatePDUFlag = 0x1
	UpdatePDUFlagEncrypted      UpdatePDUFlag = 0x2
)

// ErrUnexpectedX224 reports a slow-path PDU handed to the Fast-Path
// decoder.
var ErrUnexpectedX224 = errors.New("fastpath: unexpected X.224 PDU")

// UpdatePDU represents TS_FP_UPDATE_PDU: the outer Fast-Path output
// envelope. Data is the raw update stream; a preallocated Data slice is
// reused when large enough.
type UpdatePDU struct {
	Action UpdatePDUAction
	Flags  UpdatePDUFlag

	Data []byte
}

// Deserialize reads the header byte, the 1-or-2-byte length and the
// payload. Legacy encryption is rejected: post-TLS sessions never set
// the encryption flags.
func (p *UpdatePDU) Deserialize(wire io.Reader) error {
	var header uint8
	if err := binary.Read(wire, binary.LittleEndian, &header); err != nil {
		return err
	}

	p.Action = UpdatePDUAction(header & 0x3)
	p.Flags = UpdatePDUFlag(header >> 6 & 0x3)

	if p.Action != UpdatePDUActionFastPath {
		if p.Action == UpdatePDUActionX224 {
			return ErrUnexpectedX224
		}

		return fmt.Errorf("fastpath: unknown action: 0x%x", uint8(p.Action))
	}

	if p.Flags&UpdatePDUFlagEncrypted != 0 {
		return errors.New("fastpath: legacy encryption is not supported")
	}

	if p.Flags&UpdatePDUFlagSecureChecksum != 0 {
		return errors.New("fastpath: secure checksum is not supported")
	}

	var (
		length1, length2 uint8
		length           uint16
	)

	if err := binary.Read(wire, binary.LittleEndian, &length1); err != nil {
		return err
	}

	if length1&0x80 != 0 {
		if err := binary.Read(wire, binary.LittleEndian, &length2); err != nil {
			return err
		}

		length = uint16(length1&0x7f)<<8 | uint16(length2)
	} else {
		length = uint16(length1)
	}

	if length > 0x4000 {
		return fmt.Errorf("fastpath: too big packet: %d bytes", length)
	}

	if cap(p.Data) >= int(length) {
		p.Data = p.Data[:length]
	} else {
		p.Data = make([]byte, length)
	}

	if _, err := io.ReadFull(wire, p.Data); err != nil {
		return err
	}

	return nil
}

// Receive reads one Fast-Path update PDU, reusing the protocol's
// preallocated payload buffer.
func (p *Protocol) Receive() (*UpdatePDU, error) {
	pdu := &UpdatePDU{Data: p.updatePDUData}

	if err := pdu.Deserialize(p.conn); err != nil {
		return nil, err
	}

	return pdu, nil
}

// UpdateCode is the 4-bit updateCode field of TS_FP_UPDATE
// (MS-RDPBCGR 2.2.9.1.2.1).
type UpdateCode uint8

const (
	UpdateCodeOrders       UpdateCode = 0x0
	UpdateCodeBitmap       UpdateCode = 0x1
	UpdateCodePalette      UpdateCode = 0x2
	UpdateCodeSynchronize  UpdateCode = 0x3
	UpdateCodeSurfCMDs     UpdateCode = 0x4
	UpdateCodePTRNull      UpdateCode = 0x5
	UpdateCodePTRDefault   UpdateCode = 0x6
	UpdateCodePTRPosition  UpdateCode = 0x8
	UpdateCodeColor        UpdateCode = 0x9
	UpdateCodeCached       UpdateCode = 0xa
	UpdateCodePointer      UpdateCode = 0xb
	UpdateCodeLargePointer UpdateCode = 0xc
)

// Fragment is the 2-bit fragmentation field of TS_FP_UPDATE.
type Fragment uint8

const (
	FragmentSingle Fragment = 0x0
	FragmentLast   Fragment = 0x1
	FragmentFirst  Fragment = 0x2
	FragmentNext   Fragment = 0x3
)

// Compression is the 2-bit compression field of TS_FP_UPDATE.
type Compression uint8

// CompressionUsed means a compressionFlags byte follows the header.
const CompressionUsed Compression = 0x2

// Update represents TS_FP_UPDATE: one update inside an UpdatePDU's
// payload stream.
type Update struct {
	UpdateCode UpdateCode

	fragmentation    Fragment
	compression      Compression
	compressionFlags uint8
	size             uint16

	Data []byte
}

// Deserialize reads the update header byte, the optional
// compressionFlags byte, the 16-bit size and the payload.
func (u *Update) Deserialize(wire io.Reader) error {
	var header uint8
	if err := binary.Read(wire, binary.LittleEndian, &header); err != nil {
		return err
	}

	u.UpdateCode = UpdateCode(header & 0xf)
	u.fragmentation = Fragment(header >> 4 & 0x3)
	u.compression = Compression(header >> 6 & 0x3)

	if u.compression&CompressionUsed != 0 {
		if err := binary.Read(wire, binary.LittleEndian, &u.compressionFlags); err != nil {
			return err
		}
	}

	if err := binary.Read(wire, binary.LittleEndian, &u.size); err != nil {
		return err
	}

	if cap(u.Data) >= int(u.size) {
		u.Data = u.Data[:u.size]
	} else {
		u.Data = make([]byte, u.size)
	}

	if _, err := io.ReadFull(wire, u.Data); err != nil {
		return err
	}

	return nil
}

// Fragmentation reports how this update is split across PDUs.
func (u *Update) Fragmentation() Fragment { return u.fragmentation }

// Compressed reports whether the payload carries a compression header.
func (u *Update) Compressed() bool { return u.compression&CompressionUsed != 0 }
