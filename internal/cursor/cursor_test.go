package cursor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-rdp/rdpcore/internal/cursor"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	buf := make([]byte, 32)
	w := cursor.NewWriter(buf)

	require.NoError(t, w.WriteU8(0x03))
	require.NoError(t, w.WriteU16BE(0x1234))
	require.NoError(t, w.WriteU32LE(0xdeadbeef))
	require.NoError(t, w.WritePadding(3))
	require.NoError(t, w.WriteSlice([]byte("hi")))

	out := w.Bytes()
	assert.Equal(t, 1+2+4+3+2, len(out))

	r := cursor.NewReader(out)
	b, err := r.ReadU8()
	require.NoError(t, err)
	assert.Equal(t, uint8(0x03), b)

	u16, err := r.ReadU16BE()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), u16)

	u32, err := r.ReadU32LE()
	require.NoError(t, err)
	assert.Equal(t, uint32(0xdeadbeef), u32)

	require.NoError(t, r.Advance(3))

	tail, err := r.ReadSlice(2)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(tail))
	assert.True(t, r.IsEmpty())
}

func TestReaderNotEnoughBytes(t *testing.T) {
	r := cursor.NewReader([]byte{0x01, 0x02})

	_, err := r.ReadU32LE()
	require.Error(t, err)

	var nb *cursor.NotEnoughBytesError
	require.ErrorAs(t, err, &nb)
	assert.Equal(t, 2, nb.Received)
	assert.Equal(t, 4, nb.Expected)
}

func TestWriterNotEnoughBytes(t *testing.T) {
	w := cursor.NewWriter(make([]byte, 1))
	err := w.WriteU16LE(1)
	require.Error(t, err)
}

func TestUTF16LEFixedStopsAtNUL(t *testing.T) {
	buf := make([]byte, 16)
	w := cursor.NewWriter(buf)
	require.NoError(t, w.WriteUTF16LEFixed("rdp", 16))

	r := cursor.NewReader(w.Bytes())
	s, err := r.ReadUTF16LEFixed(16)
	require.NoError(t, err)
	assert.Equal(t, "rdp", s)
}

func TestUTF16LELengthPrefixed(t *testing.T) {
	n := cursor.UTF16LEEncodedLen("abc")
	assert.Equal(t, len("abc")*2+2, n)

	buf := make([]byte, 2+n)
	w := cursor.NewWriter(buf)
	require.NoError(t, w.WriteU16LE(uint16(n)))
	require.NoError(t, w.WriteUTF16LE("abc"))

	r := cursor.NewReader(w.Bytes())
	s, err := r.ReadUTF16LE()
	require.NoError(t, err)
	assert.Equal(t, "abc", s)
}
