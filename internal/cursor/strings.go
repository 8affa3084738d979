package cursor

import "unicode/utf16"

// ReadUTF16LEFixed reads a fixed-length UTF-16LE string field of n bytes,
// stopping at the first U+0000 (or the fixed length, whichever comes
// first), per the wire-strings rule in the PDU codec layer.
func (r *Reader) ReadUTF16LEFixed(n int) (string, error) {
	b, err := r.ReadSlice(n)
	if err != nil {
		return "", err
	}

	units := make([]uint16, 0, n/2)
	for i := 0; i+1 < len(b); i += 2 {
		u := uint16(b[i]) | uint16(b[i+1])<<8
		if u == 0 {
			break
		}
		units = append(units, u)
	}
	return string(utf16.Decode(units)), nil
}

// WriteUTF16LEFixed zero-pads value into a fixed n-byte UTF-16LE field on
// encode, truncating if the encoded string does not fit.
func (w *Writer) WriteUTF16LEFixed(value string, n int) error {
	if err := w.need(n); err != nil {
		return err
	}

	units := utf16.Encode([]rune(value))
	start := w.off
	clear(w.buf[start : start+n])

	off := 0
	for _, u := range units {
		if off+2 > n {
			break
		}
		w.buf[start+off] = byte(u)
		w.buf[start+off+1] = byte(u >> 8)
		off += 2
	}
	w.off += n
	return nil
}

// ReadUTF16LE reads a 16-bit-length-prefixed UTF-16LE string: the length
// field counts bytes including the NUL terminator.
func (r *Reader) ReadUTF16LE() (string, error) {
	n, err := r.ReadU16LE()
	if err != nil {
		return "", err
	}
	return r.ReadUTF16LEFixed(int(n))
}

// UTF16LEEncodedLen returns the "null-terminated encoded length" of value:
// encode_utf16(value).len() * 2 + 2.
func UTF16LEEncodedLen(value string) int {
	return len(utf16.Encode([]rune(value)))*2 + 2
}

// WriteUTF16LE writes value as a NUL-terminated UTF-16LE string, not
// itself prefixing a length (callers that need the 16-bit length prefix
// write it separately via UTF16LEEncodedLen).
func (w *Writer) WriteUTF16LE(value string) error {
	n := UTF16LEEncodedLen(value)
	return w.WriteUTF16LEFixed(value, n)
}
