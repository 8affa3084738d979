package connector

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-rdp/rdpcore/internal/protocol/pdu"
)

// buildNegotiationConfirmFrame hand-encodes the TPKT/X.224/RDP Negotiation
// Response byte layout internal/protocol/x224 and internal/protocol/pdu's
// own Deserialize tests already assert, so the connector's parsing side
// gets exercised against the same wire shape a live server produces.
func buildNegotiationConfirmFrame(selectedProtocol uint32, flags byte) []byte {
	tpdu := []byte{
		0x0e, 0xd0, 0x00, 0x00, // LI, CCCDT, DSTREF
		0x12, 0x34, 0x00, // SRCREF, ClassOption
		0x02,       // TYPE_RDP_NEG_RSP
		flags,      // flags
		0x08, 0x00, // length = 8
		byte(selectedProtocol), byte(selectedProtocol >> 8), byte(selectedProtocol >> 16), byte(selectedProtocol >> 24),
	}
	return wrapTPKT(tpdu)
}

func buildNegotiationFailureFrame(failureCode uint32) []byte {
	tpdu := []byte{
		0x0e, 0xd0, 0x00, 0x00,
		0x12, 0x34, 0x00,
		0x03,       // TYPE_RDP_NEG_FAILURE
		0x00,       // flags
		0x08, 0x00, // length = 8
		byte(failureCode), byte(failureCode >> 8), byte(failureCode >> 16), byte(failureCode >> 24),
	}
	return wrapTPKT(tpdu)
}

func TestStepSendNegotiationRequestDefaultsToSSLAndHybrid(t *testing.T) {
	c := New(testConfig())
	out, ev, err := c.Step(nil)
	require.NoError(t, err)
	require.Equal(t, EventSendPending, ev.Kind)
	require.Equal(t, StateConnectionInitiationWaitConfirm, c.State())

	// TPKT header then X.224 Connection Request TPDU (CRCDT = 0xE0).
	require.Equal(t, byte(0x03), out[0])
	require.Equal(t, byte(0xE0), out[5])
}

func TestStepSendNegotiationRequestHonorsRestrictedAdmin(t *testing.T) {
	cfg := testConfig()
	cfg.RestrictedAdmin = true
	c := New(cfg)
	out, _, err := c.Step(nil)
	require.NoError(t, err)
	require.True(t, bytes.Contains(out, []byte{0x01, 0x01, 0x08, 0x00}))
}

func TestStepWaitNegotiationConfirmAwaitsFirstCall(t *testing.T) {
	c := New(testConfig())
	_, _, _ = c.Step(nil)

	out, ev, err := c.Step(nil)
	require.NoError(t, err)
	require.Nil(t, out)
	require.Equal(t, EventAwaitMore, ev.Kind)
}

func TestStepWaitNegotiationConfirmSelectsHybrid(t *testing.T) {
	c := New(testConfig())
	_, _, _ = c.Step(nil)

	frame := buildNegotiationConfirmFrame(uint32(pdu.NegotiationProtocolHybrid), 0x00)
	out, ev, err := c.Step(frame)
	require.NoError(t, err)
	require.Nil(t, out)
	require.Equal(t, EventSecurityUpgrade, ev.Kind)
	require.Equal(t, pdu.NegotiationProtocolHybrid, ev.Protocol)
	require.Equal(t, StateSecurityUpgrade, c.State())
}

func TestStepWaitNegotiationConfirmFailureTerminates(t *testing.T) {
	c := New(testConfig())
	_, _, _ = c.Step(nil)

	frame := buildNegotiationFailureFrame(2) // SSL_NOT_ALLOWED_BY_SERVER
	out, ev, err := c.Step(frame)
	require.Error(t, err)
	require.Nil(t, out)
	require.Equal(t, EventFailed, ev.Kind)
	require.Equal(t, FailureNegotiation, ev.Err.Kind())
	require.Equal(t, StateFailed, c.State())
}

func TestStepWaitNegotiationConfirmRejectsUnparsableFrame(t *testing.T) {
	c := New(testConfig())
	_, _, _ = c.Step(nil)

	_, ev, err := c.Step([]byte{0x03, 0x00})
	require.Error(t, err)
	require.Equal(t, EventFailed, ev.Kind)
}
