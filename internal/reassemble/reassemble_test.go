package reassemble

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

// byteAtATimeSource hands back one byte per Read call, then io.EOF.
type byteAtATimeSource struct {
	data []byte
	off  int
}

func (s *byteAtATimeSource) Read(p []byte) (int, error) {
	if s.off >= len(s.data) {
		return 0, io.EOF
	}
	n := copy(p, s.data[s.off:s.off+1])
	s.off += n
	return n, nil
}

func tpktFrame(payload []byte) []byte {
	total := 4 + len(payload)
	buf := make([]byte, total)
	buf[0] = 0x03
	buf[1] = 0x00
	buf[2] = byte(total >> 8)
	buf[3] = byte(total)
	copy(buf[4:], payload)
	return buf
}

func fastPathFrame(payload []byte) []byte {
	total := 2 + len(payload)
	buf := make([]byte, total)
	buf[0] = 0x00
	buf[1] = byte(total)
	copy(buf[2:], payload)
	return buf
}

func TestReassemblerByteAtATimeTPKT(t *testing.T) {
	want := tpktFrame([]byte("hello world"))

	src := &byteAtATimeSource{data: want}
	r := New(src)

	frame, ok, err := r.NextFrame()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, want, frame)

	_, ok, err = r.NextFrame()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestReassemblerConcatenatedFramesProperty(t *testing.T) {
	var all []byte
	var frames [][]byte
	for i := 0; i < 5; i++ {
		f := tpktFrame(bytes.Repeat([]byte{byte(i)}, i+1))
		frames = append(frames, f)
		all = append(all, f...)
	}

	src := &byteAtATimeSource{data: all}
	r := New(src)

	for i, want := range frames {
		got, ok, err := r.NextFrame()
		require.NoError(t, err, "frame %d", i)
		require.True(t, ok, "frame %d", i)
		require.Equal(t, want, got, "frame %d", i)
	}

	_, ok, err := r.NextFrame()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestReassemblerFastPathTwoByteLength(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, 200)
	total := 3 + len(payload)
	buf := make([]byte, total)
	buf[0] = 0x00
	buf[1] = 0x80 | byte(total>>8)
	buf[2] = byte(total)
	copy(buf[3:], payload)

	src := &byteAtATimeSource{data: buf}
	r := New(src)

	frame, ok, err := r.NextFrame()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, buf, frame)
}

func TestReassemblerTruncatedTailIsUnexpectedEOF(t *testing.T) {
	full := tpktFrame([]byte("partial"))
	truncated := full[:len(full)-3]

	src := &byteAtATimeSource{data: truncated}
	r := New(src)

	_, ok, err := r.NextFrame()
	require.False(t, ok)
	require.ErrorIs(t, err, ErrUnexpectedEndOfInput)
}

func TestClassifyHintFastPathSingleByteLength(t *testing.T) {
	c := ClassifyHint([]byte{0x00, 0x05, 0x01, 0x02, 0x03})
	require.True(t, c.Ready)
	require.Equal(t, 5, c.Length)
}

func TestClassifyHintNeedsMore(t *testing.T) {
	c := ClassifyHint([]byte{0x03, 0x00})
	require.False(t, c.Ready)
	require.Equal(t, 2, c.Need)
}
