// Package rdpemt implements the multitransport extension PDUs
// (MS-RDPEMT): the Initiate Multitransport Request/Response pair that
// travels over the message channel, and the tunnel PDUs that run inside
// the UDP sideband once it is secured.
package rdpemt

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Tunnel PDU action values (MS-RDPEMT 2.2.1.1).
const (
	ActionCreateRequest  uint8 = 0x00
	ActionCreateResponse uint8 = 0x01
	ActionData           uint8 = 0x02
)

// Requested transport protocol flags (MS-RDPBCGR 2.2.15.1).
const (
	ProtocolUDPFECReliable uint16 = 0x0001
	ProtocolUDPFECLossy    uint16 = 0x0002
)

// HRESULT values carried in responses (MS-RDPBCGR 2.2.15.2).
const (
	HResultSuccess  uint32 = 0x00000000
	HResultNoMem    uint32 = 0x80000002
	HResultNotFound uint32 = 0x80000006
	HResultAbort    uint32 = 0x80004004
)

// CookieLength is the size of the tunnel-binding security cookie.
const CookieLength = 16

const tunnelHeaderSize = 4

var (
	ErrInvalidLength = errors.New("rdpemt: invalid PDU length")
	ErrUnknownAction = errors.New("rdpemt: unknown action type")
)

// MultitransportRequest represents the Server Initiate Multitransport
// Request PDU (MS-RDPBCGR 2.2.15.1). The security cookie binds the
// later tunnel-create handshake to this request.
type MultitransportRequest struct {
	RequestID         uint32
	RequestedProtocol uint16
	Reserved          uint16
	SecurityCookie    [CookieLength]byte
}

func (r *MultitransportRequest) Serialize() []byte {
	buf := new(bytes.Buffer)

	binary.Write(buf, binary.LittleEndian, r.RequestID)
	binary.Write(buf, binary.LittleEndian, r.RequestedProtocol)
	binary.Write(buf, binary.LittleEndian, r.Reserved)
	buf.Write(r.SecurityCookie[:])

	return buf.Bytes()
}

func (r *MultitransportRequest) Deserialize(wire io.Reader) error {
	if err := binary.Read(wire, binary.LittleEndian, &r.RequestID); err != nil {
		return err
	}

	if err := binary.Read(wire, binary.LittleEndian, &r.RequestedProtocol); err != nil {
		return err
	}

	if err := binary.Read(wire, binary.LittleEndian, &r.Reserved); err != nil {
		return err
	}

	if _, err := io.ReadFull(wire, r.SecurityCookie[:]); err != nil {
		return err
	}

	return nil
}

// Reliable reports whether the server asked for RDP-UDP-R.
func (r *MultitransportRequest) Reliable() bool {
	return r.RequestedProtocol&ProtocolUDPFECReliable != 0
}

// Lossy reports whether the server asked for RDP-UDP-L.
func (r *MultitransportRequest) Lossy() bool {
	return r.RequestedProtocol&ProtocolUDPFECLossy != 0
}

// MultitransportResponse represents the Client Initiate Multitransport
// Response PDU (MS-RDPBCGR 2.2.15.2).
type MultitransportResponse struct {
	RequestID uint32
	HResult   uint32
}

func (r *MultitransportResponse) Serialize() []byte {
	buf := new(bytes.Buffer)

	binary.Write(buf, binary.LittleEndian, r.RequestID)
	binary.Write(buf, binary.LittleEndian, r.HResult)

	return buf.Bytes()
}

func (r *MultitransportResponse) Deserialize(wire io.Reader) error {
	if err := binary.Read(wire, binary.LittleEndian, &r.RequestID); err != nil {
		return err
	}

	return binary.Read(wire, binary.LittleEndian, &r.HResult)
}

// Success reports whether the peer accepted the transport.
func (r *MultitransportResponse) Success() bool {
	return r.HResult == HResultSuccess
}

// NewDeclineResponse builds the E_ABORT response a client sends when it
// will not bootstrap the offered transport.
func NewDeclineResponse(requestID uint32) *MultitransportResponse {
	return &MultitransportResponse{RequestID: requestID, HResult: HResultAbort}
}

// NewSuccessResponse builds the S_OK response.
func NewSuccessResponse(requestID uint32) *MultitransportResponse {
	return &MultitransportResponse{RequestID: requestID, HResult: HResultSuccess}
}

// TunnelHeader represents RDP_TUNNEL_HEADER (MS-RDPEMT 2.2.1.1).
type TunnelHeader struct {
	Action        uint8
	Flags         uint8
	PayloadLength uint16
}

func (h *TunnelHeader) Serialize() []byte {
	buf := make([]byte, tunnelHeaderSize)

	buf[0] = h.Action
	buf[1] = h.Flags
	binary.LittleEndian.PutUint16(buf[2:4], h.PayloadLength)

	return buf
}

func (h *TunnelHeader) Deserialize(wire io.Reader) error {
	if err := binary.Read(wire, binary.LittleEndian, &h.Action); err != nil {
		return err
	}

	if err := binary.Read(wire, binary.LittleEndian, &h.Flags); err != nil {
		return err
	}

	return binary.Read(wire, binary.LittleEndian, &h.PayloadLength)
}

// TunnelCreateRequest represents RDP_TUNNEL_CREATEREQUEST
// (MS-RDPEMT 2.2.2.1): the first PDU the client sends inside the
// secured sideband, echoing the request ID and cookie from the
// Initiate Multitransport Request.
type TunnelCreateRequest struct {
	RequestID      uint32
	Reserved       uint32
	SecurityCookie [CookieLength]byte
}

func (r *TunnelCreateRequest) Serialize() []byte {
	buf := new(bytes.Buffer)

	header := TunnelHeader{Action: ActionCreateRequest, PayloadLength: uint16(4 + 4 + CookieLength)}
	buf.Write(header.Serialize())

	binary.Write(buf, binary.LittleEndian, r.RequestID)
	binary.Write(buf, binary.LittleEndian, r.Reserved)
	buf.Write(r.SecurityCookie[:])

	return buf.Bytes()
}

func (r *TunnelCreateRequest) Deserialize(wire io.Reader) error {
	if err := binary.Read(wire, binary.LittleEndian, &r.RequestID); err != nil {
		return err
	}

	if err := binary.Read(wire, binary.LittleEndian, &r.Reserved); err != nil {
		return err
	}

	if _, err := io.ReadFull(wire, r.SecurityCookie[:]); err != nil {
		return err
	}

	return nil
}

// TunnelCreateResponse represents RDP_TUNNEL_CREATERESPONSE
// (MS-RDPEMT 2.2.2.2).
type TunnelCreateResponse struct {
	HResult uint32
}

func (r *TunnelCreateResponse) Serialize() []byte {
	buf := new(bytes.Buffer)

	header := TunnelHeader{Action: ActionCreateResponse, PayloadLength: 4}
	buf.Write(header.Serialize())

	binary.Write(buf, binary.LittleEndian, r.HResult)

	return buf.Bytes()
}

func (r *TunnelCreateResponse) Deserialize(wire io.Reader) error {
	return binary.Read(wire, binary.LittleEndian, &r.HResult)
}

// Success reports whether the server accepted the tunnel.
func (r *TunnelCreateResponse) Success() bool {
	return r.HResult == HResultSuccess
}

// TunnelData wraps session bytes for transit over the tunnel
// (MS-RDPEMT 2.2.2.3).
type TunnelData struct {
	Data []byte
}

func (d *TunnelData) Serialize() []byte {
	buf := new(bytes.Buffer)

	header := TunnelHeader{Action: ActionData, PayloadLength: uint16(len(d.Data))}
	buf.Write(header.Serialize())
	buf.Write(d.Data)

	return buf.Bytes()
}

// ReadTunnelPDU reads one tunnel PDU off wire and returns its action
// and payload bytes.
func ReadTunnelPDU(wire io.Reader) (action uint8, payload []byte, err error) {
	var header TunnelHeader
	if err = header.Deserialize(wire); err != nil {
		return 0, nil, err
	}

	switch header.Action {
	case ActionCreateRequest, ActionCreateResponse, ActionData:
	default:
		return 0, nil, fmt.Errorf("%w: 0x%02x", ErrUnknownAction, header.Action)
	}

	payload = make([]byte, header.PayloadLength)
	if _, err = io.ReadFull(wire, payload); err != nil {
		return 0, nil, err
	}

	return header.Action, payload, nil
}

// HResultString names an HRESULT for log lines.
func HResultString(hr uint32) string {
	switch hr {
	case HResultSuccess:
		return "S_OK"
	case HResultNoMem:
		return "E_OUTOFMEMORY"
	case HResultNotFound:
		return "E_NOTFOUND"
	case HResultAbort:
		return "E_ABORT"
	default:
		return fmt.Sprintf("0x%08X", hr)
	}
}
