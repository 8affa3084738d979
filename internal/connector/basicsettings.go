package connector

import (
	"fmt"

	"github.com/go-rdp/rdpcore/internal/protocol/gcc"
	"github.com/go-rdp/rdpcore/internal/protocol/mcs"
	"github.com/go-rdp/rdpcore/internal/protocol/pdu"
)

// stepSendBasicSettings builds the MCS Connect Initial PDU carrying the
// GCC Conference Create Request. The client user data blocks do not ride
// bare inside Connect Initial: this wires
// internal/protocol/gcc — a real wire-compatibility bug fix: a reference
// server's GCC parser expects the T.124 envelope, not bare TS_UD_CS_*
// blocks.
func (c *Connector) stepSendBasicSettings() ([]byte, Event, error) {
	userDataSet := pdu.NewClientUserDataSet(
		uint32(c.selectedProtocol),
		c.cfg.DesktopWidth,
		c.cfg.DesktopHeight,
		c.cfg.ColorDepth,
		c.cfg.StaticChannels,
	)

	gccReq := gcc.NewConferenceCreateRequest(userDataSet.Serialize())
	connectInitial := mcs.NewClientConnectInitialPDU(gccReq.Serialize())

	c.state = StateBasicSettingsExchangeWaitResponse
	return wrapX224Data(connectInitial.Serialize()), Event{Kind: EventSendPending}, nil
}

// stepWaitBasicSettings parses the MCS Connect Response / GCC Conference
// Create Response and records the server-assigned channel IDs, building
// the ordered join queue ChannelConnection will drain: user channel
// (filled in once AttachUserConfirm grants it), I/O channel, optional
// message channel, then each static channel in advertised order, per
// the order MS-RDPBCGR 3.2.5.3.8 prescribes for the joins.
func (c *Connector) stepWaitBasicSettings(frame []byte) ([]byte, Event, error) {
	if frame == nil {
		return nil, Event{Kind: EventAwaitMore}, nil
	}

	r, err := unwrapX224Data(frame)
	if err != nil {
		return c.fail(FailureGeneral, c.state.String(), err)
	}
	// the MCS decoder reads the trailing GCC bytes with io.ReadAll, which
	// needs io.EOF at the end of input rather than cursor's NotEnoughBytes
	payload, err := r.ReadSlice(r.Remaining())
	if err != nil {
		return c.fail(FailureGeneral, c.state.String(), err)
	}

	var resp mcs.ConnectPDU
	if err := resp.Deserialize(bytesReader(payload)); err != nil {
		return c.fail(FailureGeneral, c.state.String(), err)
	}
	if resp.ServerConnectResponse == nil {
		return c.fail(FailureGeneral, c.state.String(), fmt.Errorf("connector: expected MCS Connect Response"))
	}
	if resp.ServerConnectResponse.Result != mcs.RTSuccessful {
		return c.fail(FailureGeneral, c.state.String(),
			fmt.Errorf("mcs connect response: result code %d", resp.ServerConnectResponse.Result))
	}

	var ccResp gcc.ConferenceCreateResponse
	if err := ccResp.Deserialize(bytesReader(resp.ServerConnectResponse.UserData())); err != nil {
		return c.fail(FailureGeneral, c.state.String(), err)
	}

	var serverUserData pdu.ServerUserData
	if err := serverUserData.Deserialize(bytesReader(ccResp.UserData)); err != nil {
		return c.fail(FailureGeneral, c.state.String(), err)
	}

	if serverUserData.ServerNetworkData == nil {
		return c.fail(FailureGeneral, c.state.String(), fmt.Errorf("connector: server omitted network data"))
	}

	c.ioChannelID = serverUserData.ServerNetworkData.MCSChannelId
	c.store.SetIOChannelID(c.ioChannelID)

	if serverUserData.ServerMessageChannelData != nil {
		c.messageChannelID = serverUserData.ServerMessageChannelData.MCSChannelID
		c.hasMessageChan = true
		c.store.SetMessageChannelID(c.messageChannelID)
	}

	if serverUserData.ServerMultitransportChannelData != nil && serverUserData.ServerMultitransportChannelData.Flags != 0 {
		c.multitransportOffered = true
		c.multitransportFlags = serverUserData.ServerMultitransportChannelData.Flags
	}

	// queue only; the channel table is filled during ChannelConnection so
	// its insertion order matches the join order
	c.joinQueue = nil
	for i, name := range c.cfg.StaticChannels {
		var id uint16
		if i < len(serverUserData.ServerNetworkData.ChannelIdArray) {
			id = serverUserData.ServerNetworkData.ChannelIdArray[i]
		}
		c.joinQueue = append(c.joinQueue, channelJoin{name: name, channelID: id, mandatory: false})
	}

	c.state = StateChannelConnectionErectDomain
	return c.stepErectDomain()
}
