package cursor

import "encoding/binary"

// Writer is a write cursor over a borrowed, mutable byte slice. Callers
// size the destination buffer (usually via a PDU's Size()) before
// handing it to a Writer.
type Writer struct {
	buf []byte
	off int
}

// NewWriter creates a write cursor over buf starting at offset 0.
func NewWriter(buf []byte) *Writer {
	return &Writer{buf: buf}
}

// Offset returns the number of bytes written so far.
func (w *Writer) Offset() int {
	return w.off
}

// Remaining returns the number of bytes left in the destination buffer.
func (w *Writer) Remaining() int {
	return len(w.buf) - w.off
}

func (w *Writer) need(n int) error {
	if w.Remaining() < n {
		return newNotEnoughBytes(w.Remaining(), n)
	}
	return nil
}

// WriteSlice copies b into the buffer and advances past it.
func (w *Writer) WriteSlice(b []byte) error {
	if err := w.need(len(b)); err != nil {
		return err
	}
	copy(w.buf[w.off:], b)
	w.off += len(b)
	return nil
}

// WritePadding emits n zero bytes using the fewest chunked writes
// possible (a single slice-clear plus one bounds-checked copy, rather
// than n individual byte writes).
func (w *Writer) WritePadding(n int) error {
	if n <= 0 {
		return nil
	}
	if err := w.need(n); err != nil {
		return err
	}
	clear(w.buf[w.off : w.off+n])
	w.off += n
	return nil
}

// WriteU8 writes a single byte.
func (w *Writer) WriteU8(v uint8) error {
	return w.WriteSlice([]byte{v})
}

// WriteU16LE writes a little-endian uint16.
func (w *Writer) WriteU16LE(v uint16) error {
	if err := w.need(2); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(w.buf[w.off:], v)
	w.off += 2
	return nil
}

// WriteU16BE writes a big-endian uint16.
func (w *Writer) WriteU16BE(v uint16) error {
	if err := w.need(2); err != nil {
		return err
	}
	binary.BigEndian.PutUint16(w.buf[w.off:], v)
	w.off += 2
	return nil
}

// WriteU32LE writes a little-endian uint32.
func (w *Writer) WriteU32LE(v uint32) error {
	if err := w.need(4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(w.buf[w.off:], v)
	w.off += 4
	return nil
}

// WriteU32BE writes a big-endian uint32.
func (w *Writer) WriteU32BE(v uint32) error {
	if err := w.need(4); err != nil {
		return err
	}
	binary.BigEndian.PutUint32(w.buf[w.off:], v)
	w.off += 4
	return nil
}

// WriteU64LE writes a little-endian uint64.
func (w *Writer) WriteU64LE(v uint64) error {
	if err := w.need(8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(w.buf[w.off:], v)
	w.off += 8
	return nil
}

// WriteI16LE writes a little-endian int16.
func (w *Writer) WriteI16LE(v int16) error {
	return w.WriteU16LE(uint16(v))
}

// WriteI32LE writes a little-endian int32.
func (w *Writer) WriteI32LE(v int32) error {
	return w.WriteU32LE(uint32(v))
}

// Bytes returns the portion of the buffer written so far.
func (w *Writer) Bytes() []byte {
	return w.buf[:w.off]
}

// Write implements io.Writer so cursor.Writer can be handed to the
// BER/PER helpers in internal/protocol/encoding.
func (w *Writer) Write(p []byte) (int, error) {
	if err := w.WriteSlice(p); err != nil {
		return 0, err
	}
	return len(p), nil
}
