package connector

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-rdp/rdpcore/internal/protocol/encoding"
	"github.com/go-rdp/rdpcore/internal/protocol/mcs"
)

// buildSendDataIndicationFrame hand-encodes a Server Send Data Indication
// the same way a real server would, since internal/protocol/mcs only
// implements Deserialize for that PDU. The byte layout mirrors
// mcs.DomainPDU.Deserialize's SendDataIndication arm:
// a one-byte application choice, two PER INTEGER16 fields, a one-byte
// enumerate, and a BER length before the carried payload.
func buildSendDataIndicationFrame(t *testing.T, channelID uint16, payload []byte) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	buf.WriteByte(uint8(mcs.SendDataIndication) << 2)
	encoding.PerWriteInteger16(1001, 1001, buf) // Initiator, value irrelevant to the caller
	encoding.PerWriteInteger16(channelID, 0, buf)
	buf.WriteByte(0x70) // dataPriority/segmentation enumerate, unchecked by the reader
	encoding.BerWriteLength(len(payload), buf)
	buf.Write(payload)
	return wrapX224Data(buf.Bytes())
}

// buildAttachUserConfirmFrame hand-encodes a Server Attach User Confirm.
func buildAttachUserConfirmFrame(result uint8, initiator uint16) []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(uint8(11) << 2) // attachUserConfirm
	buf.WriteByte(result)
	encoding.PerWriteInteger16(initiator, 1001, buf)
	return wrapX224Data(buf.Bytes())
}

// buildChannelJoinConfirmFrame hand-encodes a Server Channel Join Confirm.
func buildChannelJoinConfirmFrame(result uint8, initiator, requested, channelID uint16) []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(uint8(15) << 2) // channelJoinConfirm
	buf.WriteByte(result)
	encoding.PerWriteInteger16(initiator, 1001, buf)
	encoding.PerWriteInteger16(requested, 0, buf)
	encoding.PerWriteInteger16(channelID, 0, buf)
	return wrapX224Data(buf.Bytes())
}

func requireSendPending(t *testing.T, ev Event, err error) {
	t.Helper()
	require.NoError(t, err)
	require.Equal(t, EventSendPending, ev.Kind)
}
