package connector

import (
	"fmt"

	"github.com/go-rdp/rdpcore/internal/protocol/mcs"
)

const (
	userChannelName    = "user"
	ioChannelName      = "io"
	messageChannelName = "message"
)

// stepErectDomain sends the MCS Erect Domain Request followed immediately
// by the Attach User Request. Erect Domain has no confirm (ITU-T T.125
// §8.1), so both PDUs go out before the connector waits on anything.
func (c *Connector) stepErectDomain() ([]byte, Event, error) {
	erect := mcs.NewErectDomainRequestPDU()
	attach := mcs.NewAttachUserRequestPDU()

	out := append(wrapX224Data(erect.Serialize()), wrapX224Data(attach.Serialize())...)

	c.state = StateChannelConnectionAttachUser
	return out, Event{Kind: EventSendPending}, nil
}

// stepAttachUser parses the Attach User Confirm, records the
// server-granted user channel ID, and assembles the full deterministic
// join queue: the user's own channel, the I/O channel, the optional
// message channel, then every static virtual channel in the order GCC
// advertised it (MS-RDPBCGR 3.2.5.3.8).
func (c *Connector) stepAttachUser(frame []byte) ([]byte, Event, error) {
	if frame == nil {
		return nil, Event{Kind: EventAwaitMore}, nil
	}

	r, err := unwrapX224Data(frame)
	if err != nil {
		return c.fail(FailureGeneral, c.state.String(), err)
	}

	var resp mcs.DomainPDU
	if err := resp.Deserialize(r); err != nil {
		return c.fail(FailureGeneral, c.state.String(), err)
	}
	if resp.ServerAttachUserConfirm == nil {
		return c.fail(FailureGeneral, c.state.String(), fmt.Errorf("connector: expected Attach User Confirm"))
	}
	if resp.ServerAttachUserConfirm.Result != mcs.RTSuccessful {
		return c.fail(FailureGeneral, c.state.String(),
			fmt.Errorf("attach user rejected: result code %d", resp.ServerAttachUserConfirm.Result))
	}

	c.userID = resp.ServerAttachUserConfirm.Initiator
	c.store.SetUserChannelID(c.userID)
	c.store.AddChannel(userChannelName, c.userID, true)
	c.store.AddChannel(ioChannelName, c.ioChannelID, true)

	head := []channelJoin{
		{name: userChannelName, channelID: c.userID, mandatory: true},
		{name: ioChannelName, channelID: c.ioChannelID, mandatory: true},
	}
	if c.hasMessageChan {
		c.store.AddChannel(messageChannelName, c.messageChannelID, true)
		head = append(head, channelJoin{name: messageChannelName, channelID: c.messageChannelID, mandatory: true})
	}

	// static channels enter the table here, after the head entries, so
	// the table's insertion order is the join order
	for _, j := range c.joinQueue {
		c.store.AddChannel(j.name, j.channelID, false)
	}

	c.joinQueue = append(head, c.joinQueue...)
	c.joinIdx = 0
	c.store.Freeze()

	c.state = StateChannelConnectionJoin
	first := mcs.NewChannelJoinRequestPDU(c.userID, c.joinQueue[0].channelID)
	return wrapX224Data(first.Serialize()), Event{Kind: EventSendPending}, nil
}

// stepChannelJoin drains the join queue one request/confirm pair at a
// time. stepAttachUser sends the first request; each later call consumes
// the confirm for the pending channel and sends the next request, and a
// nil frame means the confirm has not arrived yet (AwaitMore). Once every
// channel in the queue has joined it falls through to Secure Settings
// Exchange without waiting for another Step call, since nothing further
// needs to arrive from the wire first.
func (c *Connector) stepChannelJoin(frame []byte) ([]byte, Event, error) {
	if frame != nil {
		r, err := unwrapX224Data(frame)
		if err != nil {
			return c.fail(FailureGeneral, c.state.String(), err)
		}

		var resp mcs.DomainPDU
		if err := resp.Deserialize(r); err != nil {
			return c.fail(FailureGeneral, c.state.String(), err)
		}
		if resp.ServerChannelJoinConfirm == nil {
			return c.fail(FailureGeneral, c.state.String(), fmt.Errorf("connector: expected Channel Join Confirm"))
		}
		if c.joinIdx >= len(c.joinQueue) {
			return c.fail(FailureGeneral, c.state.String(), fmt.Errorf("connector: unexpected channel join confirm"))
		}
		pending := c.joinQueue[c.joinIdx]
		if resp.ServerChannelJoinConfirm.Result != mcs.RTSuccessful {
			if pending.mandatory {
				return c.fail(FailureGeneral, c.state.String(),
					fmt.Errorf("channel join rejected for %q: result code %d", pending.name, resp.ServerChannelJoinConfirm.Result))
			}
			c.store.DropChannel(pending.name)
		} else {
			c.store.MarkJoined(pending.name)
		}
		c.joinIdx++
	} else {
		return nil, Event{Kind: EventAwaitMore}, nil
	}

	if c.joinIdx >= len(c.joinQueue) {
		c.state = StateSecureSettingsExchange
		return c.stepSecureSettingsExchange()
	}

	next := c.joinQueue[c.joinIdx]
	req := mcs.NewChannelJoinRequestPDU(c.userID, next.channelID)
	return wrapX224Data(req.Serialize()), Event{Kind: EventSendPending}, nil
}
