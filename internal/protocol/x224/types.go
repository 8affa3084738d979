package x224

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	"github.com/go-rdp/rdpcore/internal/cursor"
)

// X.224 Class-0 TPDU codes (MS-RDPBCGR 2.2.1.1/2.2.1.2).
const (
	CRCDTConnectionRequest uint8 = 0xE0
	CCCDTConnectionConfirm uint8 = 0xD0
	DTROAData              uint8 = 0xF0
	DRRequestDisconnect    uint8 = 0x80

	dataLI  = 0x02
	eotFlag = 0x80
)

var (
	ErrSmallConnectionConfirmLength = errors.New("small connection confirm length")
	ErrWrongDataLength              = errors.New("wrong data length")
	ErrWrongConnectionConfirmCode   = errors.New("wrong connection confirm code")
)

// connectionConfirmLength is the fixed payload length (header + RDP
// Negotiation Response/Failure) this implementation accepts.
const connectionConfirmLength = 14

// ConnectionRequest is the Client X.224 Connection Request TPDU.
type ConnectionRequest struct {
	CRCDT        uint8
	DSTREF       uint16
	SRCREF       uint16
	ClassOption  uint8
	VariablePart []byte
	UserData     []byte
}

// Serialize encodes the connection request to wire format.
func (req ConnectionRequest) Serialize() []byte {
	buf := new(bytes.Buffer)

	li := uint8(6 + len(req.VariablePart) + len(req.UserData)) // #nosec G115
	buf.WriteByte(li)
	buf.WriteByte(req.CRCDT)
	_ = binary.Write(buf, binary.BigEndian, req.DSTREF)
	_ = binary.Write(buf, binary.BigEndian, req.SRCREF)
	buf.WriteByte(req.ClassOption)
	buf.Write(req.VariablePart)
	buf.Write(req.UserData)

	return buf.Bytes()
}

// Size returns the number of bytes Serialize produces.
func (req ConnectionRequest) Size() int {
	return len(req.Serialize())
}

// Encode writes the connection request through a bounds-checked cursor.
func (req ConnectionRequest) Encode(w *cursor.Writer) error {
	return w.WriteSlice(req.Serialize())
}

// ConnectionConfirm is the Server X.224 Connection Confirm TPDU.
type ConnectionConfirm struct {
	LI          uint8
	CCCDT       uint8
	DSTREF      uint16
	SRCREF      uint16
	ClassOption uint8
}

// Deserialize decodes the connection confirm from wire format.
func (cc *ConnectionConfirm) Deserialize(wire io.Reader) error {
	if err := binary.Read(wire, binary.BigEndian, &cc.LI); err != nil {
		return err
	}

	if err := binary.Read(wire, binary.BigEndian, &cc.CCCDT); err != nil {
		return err
	}

	if cc.CCCDT&0xF0 != CCCDTConnectionConfirm {
		return ErrWrongConnectionConfirmCode
	}

	if cc.LI != connectionConfirmLength {
		return ErrSmallConnectionConfirmLength
	}

	if err := binary.Read(wire, binary.BigEndian, &cc.DSTREF); err != nil {
		return err
	}

	if err := binary.Read(wire, binary.BigEndian, &cc.SRCREF); err != nil {
		return err
	}

	return binary.Read(wire, binary.BigEndian, &cc.ClassOption)
}

// Decode decodes the connection confirm through a bounds-checked cursor.
func (cc *ConnectionConfirm) Decode(r *cursor.Reader) error {
	return cc.Deserialize(r)
}

// Data is the X.224 Data TPDU used to carry MCS traffic after connection.
type Data struct {
	LI       uint8
	DTROA    uint8
	NREOT    uint8
	UserData []byte
}

// NewData wraps payload in a single-segment Data TPDU (end-of-transmission
// set, ROA/EOT byte 0x80), the only framing a client ever sends once
// connected.
func NewData(payload []byte) Data {
	return Data{
		LI:       dataLI,
		DTROA:    DTROAData,
		NREOT:    eotFlag,
		UserData: payload,
	}
}

// Serialize encodes the data TPDU to wire format.
func (d Data) Serialize() []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(d.LI)
	buf.WriteByte(d.DTROA)
	buf.WriteByte(d.NREOT)
	buf.Write(d.UserData)
	return buf.Bytes()
}

// Size returns the number of bytes Serialize produces.
func (d Data) Size() int {
	return len(d.Serialize())
}

// Encode writes the data TPDU through a bounds-checked cursor.
func (d Data) Encode(w *cursor.Writer) error {
	return w.WriteSlice(d.Serialize())
}

// Deserialize decodes the data TPDU header from wire format. UserData is
// left for the caller to read off the remainder of wire.
func (d *Data) Deserialize(wire io.Reader) error {
	if err := binary.Read(wire, binary.BigEndian, &d.LI); err != nil {
		return err
	}

	if d.LI != dataLI {
		return ErrWrongDataLength
	}

	if err := binary.Read(wire, binary.BigEndian, &d.DTROA); err != nil {
		return err
	}

	return binary.Read(wire, binary.BigEndian, &d.NREOT)
}

// Decode decodes the data TPDU header through a bounds-checked cursor.
func (d *Data) Decode(r *cursor.Reader) error {
	return d.Deserialize(r)
}
