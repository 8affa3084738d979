// Package x224 implements the X.224 connection-oriented transport protocol
// used in the RDP connection sequence for initial negotiation.
package x224

import (
	"io"

	"github.com/go-rdp/rdpcore/internal/protocol/tpkt"
)

// tpktConnection is the interface that wraps tpkt protocol operations
type tpktConnection interface {
	Receive() (io.Reader, error)
	Send(pduData []byte) error
}

// Protocol handles X.224 protocol operations
type Protocol struct {
	tpktConn tpktConnection
}

// New creates a new X.224 protocol handler
func New(tpktConn *tpkt.Protocol) *Protocol {
	return &Protocol{
		tpktConn: tpktConn,
	}
}

// NewWithConn creates a new X.224 protocol handler with an interface (for testing)
func NewWithConn(conn tpktConnection) *Protocol {
	return &Protocol{
		tpktConn: conn,
	}
}

// Connect sends a Connection Request TPDU carrying userData (the RDP
// Negotiation Request and optional correlation info) and waits for the
// Connection Confirm TPDU, returning a reader positioned at its payload
// (the RDP Negotiation Response/Failure).
func (p *Protocol) Connect(userData []byte) (io.Reader, error) {
	req := ConnectionRequest{
		CRCDT:    CRCDTConnectionRequest,
		UserData: userData,
	}

	if err := p.tpktConn.Send(req.Serialize()); err != nil {
		return nil, &connectError{"client connection request", err}
	}

	wire, err := p.tpktConn.Receive()
	if err != nil {
		return nil, &connectError{"recieve connection response", err}
	}

	var confirm ConnectionConfirm
	if err := confirm.Deserialize(wire); err != nil {
		return nil, &connectError{"server connection confirm", err}
	}

	return wire, nil
}

// Send wraps data in an X.224 Data TPDU and hands it to the TPKT layer.
func (p *Protocol) Send(data []byte) error {
	pdu := Data{
		LI:    dataLI,
		DTROA: DTROAData,
		NREOT: eotFlag,

		UserData: data,
	}

	return p.tpktConn.Send(pdu.Serialize())
}

// Receive reads one X.224 Data TPDU and returns a reader over its payload.
func (p *Protocol) Receive() (io.Reader, error) {
	wire, err := p.tpktConn.Receive()
	if err != nil {
		return nil, err
	}

	var pdu Data
	if err := pdu.Deserialize(wire); err != nil {
		return nil, err
	}

	return wire, nil
}

type connectError struct {
	context string
	err     error
}

func (e *connectError) Error() string { return e.context + ": " + e.err.Error() }
func (e *connectError) Unwrap() error { return e.err }
