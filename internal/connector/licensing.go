package connector

import (
	"fmt"

	"github.com/go-rdp/rdpcore/internal/protocol/pdu"
)

const (
	licenseMsgTypeNewLicense = 0x03
	licenseMsgTypeErrorAlert = 0xFF

	licenseErrorStatusValidClient = 0x00000007
	licenseStateNoTransition      = 0x00000002
)

// stepLicensing parses the server's Licensing PDU (MS-RDPELE). A
// well-behaved RDP server either
// issues a real license (NEW_LICENSE) or short-circuits with
// STATUS_VALID_CLIENT/ST_NO_TRANSITION when no license exchange is
// needed; anything else is a licensing failure.
func (c *Connector) stepLicensing(frame []byte) ([]byte, Event, error) {
	if frame == nil {
		return nil, Event{Kind: EventAwaitMore}, nil
	}

	_, r, err := unwrapMCSSendData(frame)
	if err != nil {
		return c.fail(FailureLicensing, c.state.String(), err)
	}

	var resp pdu.ServerLicenseError
	if err := resp.Decode(r, c.usesEnhancedSecurity()); err != nil {
		return c.fail(FailureLicensing, c.state.String(), err)
	}

	switch resp.Preamble.MsgType {
	case licenseMsgTypeNewLicense:
		c.state = StateMultitransportBootstrapping
		return c.stepMultitransportBootstrapping()
	case licenseMsgTypeErrorAlert:
		if resp.ValidClientMessage.ErrorCode != licenseErrorStatusValidClient {
			return c.fail(FailureLicensing, c.state.String(),
				fmt.Errorf("license error code 0x%08X", resp.ValidClientMessage.ErrorCode))
		}
		if resp.ValidClientMessage.StateTransition != licenseStateNoTransition {
			return c.fail(FailureLicensing, c.state.String(),
				fmt.Errorf("license state transition 0x%08X", resp.ValidClientMessage.StateTransition))
		}
		c.state = StateMultitransportBootstrapping
		return c.stepMultitransportBootstrapping()
	default:
		return c.fail(FailureLicensing, c.state.String(),
			fmt.Errorf("unknown license message type 0x%02X", resp.Preamble.MsgType))
	}
}
