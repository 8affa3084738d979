package connector

import (
	"encoding/binary"

	"github.com/go-rdp/rdpcore/internal/codec"
	"github.com/go-rdp/rdpcore/internal/protocol/pdu"
)

// secFlagLicensePkt and secFlagAutoDetectRsp are the two security-header
// bits (MS-RDPBCGR 2.2.8.1.1.2.1) the Connect-Time Auto-Detection phase
// cares about: the first to recognize a Licensing PDU arriving instead of
// (or interleaved with) an auto-detect round, the second to tag the
// client's own reply.
const (
	secFlagLicensePkt    uint16 = 0x0080
	secFlagAutoDetectReq uint16 = 0x1000
	secFlagAutoDetectRsp uint16 = 0x2000
)

// stepConnectTimeAutoDetection handles the optional phase between
// Secure Settings Exchange and Licensing (MS-RDPBCGR 2.2.14). Real servers either skip
// it entirely (straight to Licensing) or send one or more RTT/bandwidth
// probes on the I/O channel. Every probe gets an RDP_NETCHAR_RESULT-shaped reply
// reporting no measurement, which MS-RDPBCGR accepts from a client that
// chose not to measure.
func (c *Connector) stepConnectTimeAutoDetection(frame []byte) ([]byte, Event, error) {
	if frame == nil {
		return nil, Event{Kind: EventAwaitMore}, nil
	}

	_, r, err := unwrapMCSSendData(frame)
	if err != nil {
		return c.fail(FailureGeneral, c.state.String(), err)
	}

	flagBytes, err := r.Peek(2)
	if err != nil {
		return c.fail(FailureGeneral, c.state.String(), err)
	}
	if binary.LittleEndian.Uint16(flagBytes)&secFlagLicensePkt != 0 {
		c.state = StateLicensingWaitResponse
		return c.stepLicensing(frame)
	}

	if _, err := r.ReadArray(4); err != nil { // security header: flags + flagsHi
		return c.fail(FailureGeneral, c.state.String(), err)
	}

	var req pdu.AutoDetectRequest
	if err := req.Decode(r); err != nil {
		return c.fail(FailureGeneral, c.state.String(), err)
	}

	resp := pdu.NewAutoDetectResponse(&req)
	payload := codec.WrapSecurityFlag(secFlagAutoDetectRsp, resp.Serialize())
	return wrapMCSSendData(c.userID, c.ioChannelID, payload), Event{Kind: EventSendPending}, nil
}
