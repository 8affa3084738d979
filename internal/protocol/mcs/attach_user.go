package mcs

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/go-rdp/rdpcore/internal/protocol/encoding"
)

// ClientAttachUserRequest carries no body; the choice tag is the entire
// wire representation.
type ClientAttachUserRequest struct{}

func (r *ClientAttachUserRequest) Serialize() []byte {
	return nil
}

// ServerAttachUserConfirm is the server's response granting a user ID.
type ServerAttachUserConfirm struct {
	Result    uint8
	Initiator uint16
}

func (c *ServerAttachUserConfirm) Deserialize(wire io.Reader) error {
	if err := binary.Read(wire, binary.BigEndian, &c.Result); err != nil {
		return err
	}

	initiator, err := encoding.PerReadInteger16(1001, wire)
	if err != nil {
		return err
	}
	c.Initiator = initiator

	return nil
}

// NewAttachUserRequestPDU builds the Attach User Request DomainPDU, for
// callers that drive the MCS handshake PDU-by-PDU instead of through
// (*Protocol).AttachUser.
func NewAttachUserRequestPDU() DomainPDU {
	return DomainPDU{
		Application:             attachUserRequest,
		ClientAttachUserRequest: &ClientAttachUserRequest{},
	}
}

// AttachUser sends an Attach User Request and returns the granted user ID.
func (p *Protocol) AttachUser() (uint16, error) {
	req := DomainPDU{
		Application:             attachUserRequest,
		ClientAttachUserRequest: &ClientAttachUserRequest{},
	}

	if err := p.x224Conn.Send(req.Serialize()); err != nil {
		return 0, fmt.Errorf("client MCS attach user request: %w", err)
	}

	wire, err := p.x224Conn.Receive()
	if err != nil {
		return 0, fmt.Errorf("server MCS attach user confirm: %w", err)
	}

	var resp DomainPDU
	if err := resp.Deserialize(wire); err != nil {
		return 0, fmt.Errorf("server MCS attach user confirm: %w", err)
	}

	if resp.Application != attachUserConfirm || resp.ServerAttachUserConfirm == nil {
		return 0, ErrUnknownDomainApplication
	}

	if resp.ServerAttachUserConfirm.Result != RTSuccessful {
		return 0, errors.Join(ErrAttachUserRejected, fmt.Errorf("result code %d", resp.ServerAttachUserConfirm.Result))
	}

	return resp.ServerAttachUserConfirm.Initiator, nil
}
