package cursor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-rdp/rdpcore/internal/cursor"
)

func TestWrapDecodePreservesNotEnoughBytes(t *testing.T) {
	r := cursor.NewReader([]byte{0x01})
	_, err := r.ReadU32LE()
	require.Error(t, err)

	wrapped := cursor.WrapDecode("TestPDU", err)
	var de *cursor.DecodeError
	require.ErrorAs(t, wrapped, &de)
	assert.Equal(t, cursor.KindNotEnoughBytes, de.Kind)
	assert.Equal(t, "TestPDU", de.PDU)

	var nb *cursor.NotEnoughBytesError
	assert.ErrorAs(t, wrapped, &nb)
}

func TestWrapDecodeDoesNotDoubleWrap(t *testing.T) {
	inner := cursor.InvalidFieldError("Inner", "flags", assert.AnError)
	wrapped := cursor.WrapDecode("Outer", inner)

	var de *cursor.DecodeError
	require.ErrorAs(t, wrapped, &de)
	assert.Equal(t, cursor.KindInvalidField, de.Kind)
	assert.Equal(t, "Inner", de.PDU, "wrapping an already-classified DecodeError keeps its original PDU context")
}

func TestInvalidFieldError(t *testing.T) {
	err := cursor.InvalidFieldError("ServerNegotiationResponse", "selectedProtocol", assert.AnError)
	assert.Contains(t, err.Error(), "ServerNegotiationResponse")
	assert.Contains(t, err.Error(), "selectedProtocol")
}

func TestWrapEncode(t *testing.T) {
	buf := make([]byte, 1)
	w := cursor.NewWriter(buf)
	err := w.WriteU32LE(1)
	require.Error(t, err)

	wrapped := cursor.WrapEncode("TestPDU", err)
	var ee *cursor.EncodeError
	require.ErrorAs(t, wrapped, &ee)
	assert.Equal(t, "TestPDU", ee.PDU)
}
