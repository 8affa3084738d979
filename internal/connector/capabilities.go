package connector

import (
	"github.com/go-rdp/rdpcore/internal/protocol/pdu"
)

// stepWaitDemandActive parses the server's Demand Active PDU and
// intersects the client's baseline capability maxima against it via
// internal/capset.Store.Intersect, whose per-category merge is
// deterministic: identical inputs always produce an identical Confirm
// Active.
func (c *Connector) stepWaitDemandActive(frame []byte) ([]byte, Event, error) {
	if frame == nil {
		return nil, Event{Kind: EventAwaitMore}, nil
	}

	_, r, err := unwrapMCSSendData(frame)
	if err != nil {
		return c.fail(FailureCapabilities, c.state.String(), err)
	}

	var demand pdu.ServerDemandActive
	if err := demand.Deserialize(r); err != nil {
		return c.fail(FailureCapabilities, c.state.String(), err)
	}

	c.shareID = demand.ShareID
	c.serverCapsets = demand.CapabilitySets

	clientMax := pdu.NewClientConfirmActive(c.shareID, c.userID, c.cfg.DesktopWidth, c.cfg.DesktopHeight, c.cfg.RemoteApp)
	if err := c.store.Intersect(clientMax.CapabilitySets, c.serverCapsets); err != nil {
		return c.fail(FailureCapabilities, c.state.String(), err)
	}

	c.state = StateCapabilitiesExchangeSendConfirm
	return c.stepSendConfirmActive()
}

// stepSendConfirmActive sends the Confirm Active PDU carrying the
// negotiated capability sets back to the server.
func (c *Connector) stepSendConfirmActive() ([]byte, Event, error) {
	confirm := pdu.NewClientConfirmActive(c.shareID, c.userID, c.cfg.DesktopWidth, c.cfg.DesktopHeight, c.cfg.RemoteApp)
	confirm.CapabilitySets = c.store.NegotiatedSets()

	c.state = StateFinalizationSendSync
	return wrapMCSSendData(c.userID, c.ioChannelID, confirm.Serialize()), Event{Kind: EventSendPending}, nil
}
