package connector

import "fmt"

// Multitransport GCC block bit flags (MS-RDPBCGR 2.2.1.4.6
// TS_UD_SC_MULTITRANSPORT), grounded on internal/protocol/rdpemt's
// requested-protocol constants (ProtocolUDPFECReliable/Lossy): the server
// advertises which UDP transport classes it is willing to bootstrap once
// the connection sequence finishes.
const (
	multitransportFlagUDPFECR uint32 = 0x00000001
	multitransportFlagUDPFECL uint32 = 0x00000002
)

// MultitransportOffer reports what the server's GCC server-multitransport
// block (MS-RDPBCGR 2.2.1.4.6) advertised. The
// actual Initiate Multitransport Request PDU — which carries the request
// ID and security cookie a sideband UDP channel must present — arrives
// later, after Connected, over the I/O channel; bootstrapping that
// sideband channel against internal/transport/udp is the session-stage
// runtime's job, so this offer only carries what the connector itself
// observed in the GCC block.
type MultitransportOffer struct {
	Reliable bool
	Lossy    bool
}

// stepMultitransportBootstrapping is the optional phase between
// Licensing and Capabilities Exchange. It never waits on a frame:
// the decision is made entirely from the server-multitransport GCC block
// basicsettings.go already parsed into ServerMultitransportChannelData. A
// server that never advertised the block (the common case) falls straight
// through to Capabilities Exchange.
func (c *Connector) stepMultitransportBootstrapping() ([]byte, Event, error) {
	if !c.multitransportOffered || c.multitransportConsumed {
		c.state = StateCapabilitiesExchangeWaitDemand
		return nil, Event{Kind: EventAwaitMore}, nil
	}

	c.multitransportConsumed = true
	return nil, Event{
		Kind: EventNeedMultitransport,
		Multitransport: &MultitransportOffer{
			Reliable: c.multitransportFlags&multitransportFlagUDPFECR != 0,
			Lossy:    c.multitransportFlags&multitransportFlagUDPFECL != 0,
		},
	}, nil
}

// ContinueMultitransport resumes the sequence after the caller has
// bootstrapped (or declined) the UDP sideband transport
// EventNeedMultitransport asked for.
func (c *Connector) ContinueMultitransport() ([]byte, Event, error) {
	if c.state != StateMultitransportBootstrapping {
		return nil, Event{}, fmt.Errorf("connector: ContinueMultitransport called outside MultitransportBootstrapping (in %s)", c.state)
	}
	c.state = StateCapabilitiesExchangeWaitDemand
	return nil, Event{Kind: EventAwaitMore}, nil
}
