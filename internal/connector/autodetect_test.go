package connector

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-rdp/rdpcore/internal/codec"
)

func newAutoDetectConnector() *Connector {
	c := New(testConfig())
	c.state = StateConnectTimeAutoDetectionWait
	c.userID = 1001
	c.ioChannelID = 1003
	return c
}

func TestStepConnectTimeAutoDetection_NilFrameAwaitsMore(t *testing.T) {
	c := newAutoDetectConnector()
	out, ev, err := c.Step(nil)
	require.NoError(t, err)
	require.Nil(t, out)
	require.Equal(t, EventAwaitMore, ev.Kind)
	require.Equal(t, StateConnectTimeAutoDetectionWait, c.State())
}

func TestStepConnectTimeAutoDetection_SkipsStraightToLicensing(t *testing.T) {
	c := newAutoDetectConnector()

	license := codec.WrapSecurityFlag(secFlagLicensePkt, []byte{
		licenseMsgTypeErrorAlert, 0x03, 0x10, 0x00, // preamble: msgType, flags, size
		0x07, 0x00, 0x00, 0x00, // ErrorCode = STATUS_VALID_CLIENT
		0x02, 0x00, 0x00, 0x00, // StateTransition = ST_NO_TRANSITION
		0x00, 0x00, 0x00, 0x00, // error info blob
	})
	frame := buildSendDataIndicationFrame(t, c.ioChannelID, license)

	out, ev, err := c.Step(frame)
	require.NoError(t, err)
	require.Nil(t, out)
	require.Equal(t, EventAwaitMore, ev.Kind)
	require.Equal(t, StateCapabilitiesExchangeWaitDemand, c.State())
}

func TestStepConnectTimeAutoDetection_RespondsToRTTRequest(t *testing.T) {
	c := newAutoDetectConnector()

	req := []byte{
		6, 0x14, 0x01, 0x00, // header: length=6, typeID=RTT request, seq=1
	}
	payload := codec.WrapSecurityFlag(secFlagAutoDetectReq, req)
	frame := buildSendDataIndicationFrame(t, c.ioChannelID, payload)

	out, ev, err := c.Step(frame)
	require.NoError(t, err)
	require.Equal(t, EventSendPending, ev.Kind)
	require.NotEmpty(t, out)
	require.Equal(t, StateConnectTimeAutoDetectionWait, c.State())
}
