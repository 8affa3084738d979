package cursor

import "encoding/binary"

// Reader is a read cursor over a borrowed byte slice. It never copies the
// backing array; slices and arrays it returns are views into the original
// buffer, so callers that need to retain data past the cursor's lifetime
// must copy it themselves (see the Decode layer's IntoOwned helpers).
type Reader struct {
	buf []byte
	off int
}

// NewReader creates a read cursor over buf starting at offset 0.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.off
}

// IsEmpty reports whether the cursor has no more bytes to read.
func (r *Reader) IsEmpty() bool {
	return r.Remaining() == 0
}

// Offset returns the current read offset.
func (r *Reader) Offset() int {
	return r.off
}

func (r *Reader) need(n int) error {
	if r.Remaining() < n {
		return newNotEnoughBytes(r.Remaining(), n)
	}
	return nil
}

// Advance skips n bytes without returning them.
func (r *Reader) Advance(n int) error {
	if err := r.need(n); err != nil {
		return err
	}
	r.off += n
	return nil
}

// Peek returns the next n bytes without consuming them.
func (r *Reader) Peek(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	return r.buf[r.off : r.off+n], nil
}

// ReadSlice borrows the next n bytes and advances past them. The returned
// slice aliases the cursor's backing array.
func (r *Reader) ReadSlice(n int) ([]byte, error) {
	b, err := r.Peek(n)
	if err != nil {
		return nil, err
	}
	r.off += n
	return b, nil
}

// ReadArray reads exactly n bytes into a freshly allocated, owned array.
func (r *Reader) ReadArray(n int) ([]byte, error) {
	b, err := r.ReadSlice(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

// ReadU8 reads a single byte.
func (r *Reader) ReadU8() (uint8, error) {
	b, err := r.ReadSlice(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadU16LE reads a little-endian uint16.
func (r *Reader) ReadU16LE() (uint16, error) {
	b, err := r.ReadSlice(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// ReadU16BE reads a big-endian uint16.
func (r *Reader) ReadU16BE() (uint16, error) {
	b, err := r.ReadSlice(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// ReadU32LE reads a little-endian uint32.
func (r *Reader) ReadU32LE() (uint32, error) {
	b, err := r.ReadSlice(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadU32BE reads a big-endian uint32.
func (r *Reader) ReadU32BE() (uint32, error) {
	b, err := r.ReadSlice(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// ReadU64LE reads a little-endian uint64.
func (r *Reader) ReadU64LE() (uint64, error) {
	b, err := r.ReadSlice(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// ReadI16LE reads a little-endian int16.
func (r *Reader) ReadI16LE() (int16, error) {
	v, err := r.ReadU16LE()
	return int16(v), err
}

// ReadI32LE reads a little-endian int32.
func (r *Reader) ReadI32LE() (int32, error) {
	v, err := r.ReadU32LE()
	return int32(v), err
}

// Read implements io.Reader so cursor.Reader can be handed to the BER/PER
// helpers in internal/protocol/encoding, which are written against
// io.Reader.
func (r *Reader) Read(p []byte) (int, error) {
	n := copy(p, r.buf[r.off:])
	r.off += n
	if n < len(p) {
		return n, newNotEnoughBytes(n, len(p))
	}
	return n, nil
}
