// Package fastpath implements the RDP Fast-Path envelope
// (MS-RDPBCGR 2.2.8.1.2, 2.2.9.1.2): the alternate framing that
// bypasses TPKT/X.224/MCS once the connection sequence has finished.
// Input events travel out through InputEventPDU, display updates come
// back in through UpdatePDU.
package fastpath

import (
	"io"
)

// Protocol reads update PDUs from and writes input PDUs to one
// established session stream.
type Protocol struct {
	conn io.ReadWriter

	updatePDUData []byte
}

// New wraps conn. The receive buffer is 64 KiB, larger than the 0x4000-byte
// payload limit Deserialize enforces.
func New(conn io.ReadWriter) *Protocol {
	return &Protocol{
		conn: conn,

		updatePDUData: make([]byte, 64*1024),
	}
}
