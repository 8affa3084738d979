// Package codec holds the small wire helpers shared by every PDU
// package: UTF-16LE string conversion and the basic RDP security
// header.
package codec

import (
	"bytes"
	"encoding/binary"
	"unicode/utf16"
)

// Encode converts a string to UTF-16LE encoded bytes.
func Encode(s string) []byte {
	buf := new(bytes.Buffer)

	for _, ch := range utf16.Encode([]rune(s)) {
		_ = binary.Write(buf, binary.LittleEndian, ch)
	}

	return buf.Bytes()
}
