package connector

import (
	"fmt"

	"github.com/go-rdp/rdpcore/internal/protocol/pdu"
	"github.com/go-rdp/rdpcore/internal/protocol/x224"
)

// stepSendNegotiationRequest builds the X.224 Connection Request TPDU
// carrying the RDP Negotiation Request. It only sends, then waits for
// the next Step call to supply the Connection Confirm frame.
func (c *Connector) stepSendNegotiationRequest() ([]byte, Event, error) {
	protocols := c.cfg.SecurityProtocols
	if protocols == 0 {
		protocols = pdu.NegotiationProtocolSSL | pdu.NegotiationProtocolHybrid
	}

	var flags pdu.NegotiationRequestFlag
	if c.cfg.RestrictedAdmin {
		flags |= pdu.NegReqFlagRestrictedAdminModeRequired
	}

	req := pdu.ClientConnectionRequest{
		NegotiationRequest: pdu.NegotiationRequest{
			Flags:              flags,
			RequestedProtocols: protocols,
		},
	}

	tpdu := x224.ConnectionRequest{
		CRCDT:    x224.CRCDTConnectionRequest,
		UserData: req.Serialize(),
	}

	c.state = StateConnectionInitiationWaitConfirm
	return wrapTPKT(tpdu.Serialize()), Event{Kind: EventSendPending}, nil
}

// stepWaitNegotiationConfirm parses the Connection Confirm TPDU and its
// embedded RDP Negotiation Response/Failure. A nil frame means the
// caller has nothing yet and must read more (AwaitMore).
func (c *Connector) stepWaitNegotiationConfirm(frame []byte) ([]byte, Event, error) {
	if frame == nil {
		return nil, Event{Kind: EventAwaitMore}, nil
	}

	r, err := unwrapTPKT(frame)
	if err != nil {
		return c.fail(FailureNegotiation, c.state.String(), err)
	}

	var confirm x224.ConnectionConfirm
	if err := confirm.Decode(r); err != nil {
		return c.fail(FailureNegotiation, c.state.String(), err)
	}

	var resp pdu.ServerConnectionConfirm
	if err := resp.Deserialize(r); err != nil {
		return c.fail(FailureNegotiation, c.state.String(), err)
	}

	if resp.Type.IsFailure() {
		code := resp.FailureCode()
		return c.fail(FailureNegotiation, c.state.String(),
			fmt.Errorf("negotiation failure: %s (code=%d)", code.String(), uint32(code)))
	}

	c.serverNegFlags = resp.Flags
	c.selectedProtocol = resp.SelectedProtocol()

	c.state = StateSecurityUpgrade
	return nil, Event{Kind: EventSecurityUpgrade, Protocol: c.selectedProtocol}, nil
}
