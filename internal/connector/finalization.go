package connector

import (
	"fmt"

	"github.com/go-rdp/rdpcore/internal/protocol/pdu"
)

// stepSendSync sends the Client Synchronize PDU, the first of the four
// Finalization PDUs MS-RDPBCGR 2.2.1.14-2.2.1.18 defines. Each of the
// four is sent and confirmed in turn before the connector declares
// itself Connected.
func (c *Connector) stepSendSync() ([]byte, Event, error) {
	data := pdu.NewSynchronize(c.shareID, c.userID)
	c.state = StateFinalizationWaitSync
	return wrapMCSSendData(c.userID, c.ioChannelID, data.Serialize()), Event{Kind: EventSendPending}, nil
}

func (c *Connector) stepSendControlCooperate() ([]byte, Event, error) {
	data := pdu.NewControl(c.shareID, c.userID, pdu.ControlActionCooperate)
	c.state = StateFinalizationWaitControlCooperate
	return wrapMCSSendData(c.userID, c.ioChannelID, data.Serialize()), Event{Kind: EventSendPending}, nil
}

func (c *Connector) stepSendControlRequest() ([]byte, Event, error) {
	data := pdu.NewControl(c.shareID, c.userID, pdu.ControlActionRequestControl)
	c.state = StateFinalizationWaitControlGranted
	return wrapMCSSendData(c.userID, c.ioChannelID, data.Serialize()), Event{Kind: EventSendPending}, nil
}

func (c *Connector) stepSendFontList() ([]byte, Event, error) {
	data := pdu.NewFontList(c.shareID, c.userID)
	c.state = StateFinalizationWaitFontMap
	return wrapMCSSendData(c.userID, c.ioChannelID, data.Serialize()), Event{Kind: EventSendPending}, nil
}

// stepWaitFinalization consumes one server reply in the Finalization
// round trip and advances to the next send/wait pair, or — once the
// Font Map confirming the sequence completes — emits EventConnected with
// every negotiated setting populated.
func (c *Connector) stepWaitFinalization(frame []byte) ([]byte, Event, error) {
	if frame == nil {
		return nil, Event{Kind: EventAwaitMore}, nil
	}

	_, r, err := unwrapMCSSendData(frame)
	if err != nil {
		return c.fail(FailureGeneral, c.state.String(), err)
	}

	var data pdu.Data
	if err := data.Deserialize(r); err != nil {
		return c.fail(FailureGeneral, c.state.String(), err)
	}

	switch c.state {
	case StateFinalizationWaitSync:
		if data.SynchronizePDUData == nil {
			return c.fail(FailureGeneral, c.state.String(), fmt.Errorf("connector: expected Synchronize PDU"))
		}
		return c.stepSendControlCooperate()

	case StateFinalizationWaitControlCooperate:
		if data.ControlPDUData == nil || data.ControlPDUData.Action != pdu.ControlActionCooperate {
			return c.fail(FailureGeneral, c.state.String(), fmt.Errorf("connector: expected Control Cooperate PDU"))
		}
		return c.stepSendControlRequest()

	case StateFinalizationWaitControlGranted:
		if data.ControlPDUData == nil || data.ControlPDUData.Action != pdu.ControlActionGrantedControl {
			return c.fail(FailureGeneral, c.state.String(), fmt.Errorf("connector: expected Control Granted PDU"))
		}
		return c.stepSendFontList()

	case StateFinalizationWaitFontMap:
		if data.FontMapPDUData == nil {
			return c.fail(FailureGeneral, c.state.String(), fmt.Errorf("connector: expected Font Map PDU"))
		}
		return c.complete()

	default:
		return c.fail(FailureGeneral, c.state.String(), fmt.Errorf("connector: unexpected finalization state"))
	}
}

// complete builds the Settings handed to a session-stage runtime and
// transitions to the terminal Connected state.
func (c *Connector) complete() ([]byte, Event, error) {
	c.state = StateConnected
	settings := &Settings{
		SecurityProtocol: c.selectedProtocol,
		UserChannelID:    c.userID,
		IOChannelID:      c.ioChannelID,
		MessageChannelID: c.messageChannelID,
		HasMessageChan:   c.hasMessageChan,
		DesktopWidth:     c.cfg.DesktopWidth,
		DesktopHeight:    c.cfg.DesktopHeight,
		ShareID:          c.shareID,
		Channels:         c.store.Channels(),
		Capabilities:     c.store,
	}
	return nil, Event{Kind: EventConnected, Settings: settings}, nil
}
