package rdpeudp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFECHeader_RoundTrip(t *testing.T) {
	h := &FECHeader{
		SnSourceAck:   0xCAFEBABE,
		ReceiveWindow: 64,
		Flags:         FlagSYN | FlagACK,
	}

	data := h.Serialize()
	require.Len(t, data, 8)

	decoded := &FECHeader{}
	require.NoError(t, decoded.Deserialize(data))
	assert.Equal(t, h, decoded)
	assert.True(t, decoded.HasFlag(FlagSYN))
	assert.True(t, decoded.HasFlag(FlagACK))
	assert.False(t, decoded.HasFlag(FlagDAT))
}

func TestFECHeader_Deserialize_TooShort(t *testing.T) {
	decoded := &FECHeader{}
	err := decoded.Deserialize([]byte{0x01, 0x02, 0x03})
	assert.ErrorIs(t, err, ErrInvalidPacket)
}

func TestSYNPacket_RoundTrip(t *testing.T) {
	p := NewSYNPacket(1000, DefaultMTU, DefaultMTU)

	data := p.Serialize()
	require.Len(t, data, 8+8)

	decoded := &Packet{}
	require.NoError(t, decoded.Deserialize(data))
	assert.Equal(t, InitialSnSourceAck, decoded.Header.SnSourceAck)
	assert.True(t, decoded.Header.HasFlag(FlagSYN))
	require.NotNil(t, decoded.SynData)
	assert.Equal(t, uint32(1000), decoded.SynData.InitialSequenceNumber)
	assert.Equal(t, DefaultMTU, decoded.SynData.UpstreamMTU)
}

func TestSYNPacket_TruncatedPayload(t *testing.T) {
	data := NewSYNPacket(1, DefaultMTU, DefaultMTU).Serialize()

	decoded := &Packet{}
	err := decoded.Deserialize(data[:10])
	assert.ErrorIs(t, err, ErrInvalidPacket)
}

func TestDataPacket_RoundTrip(t *testing.T) {
	payload := []byte{0xde, 0xad, 0xbe, 0xef}
	p := NewDataPacket(2000, 1999, payload, 32)

	decoded := &Packet{}
	require.NoError(t, decoded.Deserialize(p.Serialize()))
	assert.True(t, decoded.Header.HasFlag(FlagDAT))
	assert.True(t, decoded.Header.HasFlag(FlagACK))
	require.NotNil(t, decoded.DataHeader)
	assert.Equal(t, uint32(2000), decoded.DataHeader.SnSourceStart)
	assert.Equal(t, uint32(1999), decoded.Header.SnSourceAck)
	assert.Equal(t, payload, decoded.Payload)
}

func TestDataPacket_WithFEC(t *testing.T) {
	p := NewDataPacket(5, 4, []byte{0x01}, 16)
	p.Header.Flags |= FlagFEC
	p.DataHeader.SnCoded = 6
	p.DataHeader.FECMode = 1

	decoded := &Packet{}
	require.NoError(t, decoded.Deserialize(p.Serialize()))
	require.NotNil(t, decoded.DataHeader)
	assert.Equal(t, uint32(6), decoded.DataHeader.SnCoded)
	assert.Equal(t, uint8(1), decoded.DataHeader.FECMode)
	assert.Equal(t, []byte{0x01}, decoded.Payload)
}

func TestACKPacket_WithVector(t *testing.T) {
	p := NewACKPacket(77, 64)
	p.Header.Flags |= FlagACKV
	p.AckVector = &AckVector{Elements: []uint8{0x80, 0x41}}

	decoded := &Packet{}
	require.NoError(t, decoded.Deserialize(p.Serialize()))
	require.NotNil(t, decoded.AckVector)
	assert.Equal(t, []uint8{0x80, 0x41}, decoded.AckVector.Elements)
}

func TestAckVector_Truncated(t *testing.T) {
	a := &AckVector{}
	// header promises 4 elements, only 1 present
	err := a.Deserialize([]byte{0x04, 0x00, 0xff})
	assert.ErrorIs(t, err, ErrInvalidPacket)
}

func TestFINPacket(t *testing.T) {
	decoded := &Packet{}
	require.NoError(t, decoded.Deserialize(NewFINPacket(123).Serialize()))
	assert.True(t, decoded.Header.HasFlag(FlagFIN))
	assert.Equal(t, uint32(123), decoded.Header.SnSourceAck)
	assert.Nil(t, decoded.SynData)
	assert.Nil(t, decoded.DataHeader)
}

func TestFlagsString(t *testing.T) {
	assert.Equal(t, "NONE", FlagsString(0))
	assert.Equal(t, "SYN", FlagsString(FlagSYN))
	assert.Equal(t, "SYN|ACK", FlagsString(FlagSYN|FlagACK))
	assert.Equal(t, "DAT|ACKV", FlagsString(FlagDAT|FlagACKV))
}
