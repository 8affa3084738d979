package mcs

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/go-rdp/rdpcore/internal/protocol/encoding"
)

// ClientChannelJoinRequest asks the server to join initiator to channelID.
type ClientChannelJoinRequest struct {
	Initiator uint16
	ChannelId uint16
}

func (r *ClientChannelJoinRequest) Serialize() []byte {
	buf := new(bytes.Buffer)
	encoding.PerWriteInteger16(r.Initiator, 1001, buf)
	encoding.PerWriteInteger16(r.ChannelId, 0, buf)
	return buf.Bytes()
}

// ServerChannelJoinConfirm is the server's response to a channel join
// request. ChannelId is optional on the wire: when absent it is left 0.
type ServerChannelJoinConfirm struct {
	Result    uint8
	Initiator uint16
	Requested uint16
	ChannelId uint16
}

func (c *ServerChannelJoinConfirm) Deserialize(wire io.Reader) error {
	if err := binary.Read(wire, binary.BigEndian, &c.Result); err != nil {
		return err
	}

	initiator, err := encoding.PerReadInteger16(1001, wire)
	if err != nil {
		return err
	}
	c.Initiator = initiator

	requested, err := encoding.PerReadInteger16(0, wire)
	if err != nil {
		return err
	}
	c.Requested = requested

	channelID, err := encoding.PerReadInteger16(0, wire)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	c.ChannelId = channelID

	return nil
}

// NewChannelJoinRequestPDU builds a Channel Join Request DomainPDU, for
// callers that drive the MCS handshake PDU-by-PDU (in a specific,
// deterministic order) instead of through (*Protocol).JoinChannels, which
// iterates a map in unspecified order.
func NewChannelJoinRequestPDU(initiator, channelID uint16) DomainPDU {
	return DomainPDU{
		Application: channelJoinRequest,
		ClientChannelJoinRequest: &ClientChannelJoinRequest{
			Initiator: initiator,
			ChannelId: channelID,
		},
	}
}

// JoinChannels joins userID to every channel in channelIDMap, one MCS
// Channel Join Request/Confirm round trip per channel.
func (p *Protocol) JoinChannels(userID uint16, channelIDMap map[string]uint16) error {
	for name, channelID := range channelIDMap {
		req := DomainPDU{
			Application: channelJoinRequest,
			ClientChannelJoinRequest: &ClientChannelJoinRequest{
				Initiator: userID,
				ChannelId: channelID,
			},
		}

		if err := p.x224Conn.Send(req.Serialize()); err != nil {
			return fmt.Errorf("client MCS channel join request (%s): %w", name, err)
		}

		wire, err := p.x224Conn.Receive()
		if err != nil {
			return fmt.Errorf("server MCS channel join confirm (%s): %w", name, err)
		}

		var resp DomainPDU
		if err := resp.Deserialize(wire); err != nil {
			return fmt.Errorf("server MCS channel join confirm (%s): %w", name, err)
		}

		if resp.Application != channelJoinConfirm || resp.ServerChannelJoinConfirm == nil {
			return ErrUnknownDomainApplication
		}

		if resp.ServerChannelJoinConfirm.Result != RTSuccessful {
			return errors.Join(ErrChannelJoinRejected, fmt.Errorf("channel %s: result code %d", name, resp.ServerChannelJoinConfirm.Result))
		}
	}

	return nil
}
