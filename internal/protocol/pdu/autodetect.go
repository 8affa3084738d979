package pdu

import (
	"github.com/go-rdp/rdpcore/internal/cursor"
)

// AutoDetectHeader is the common header shared by every Connect-Time
// Auto-Detect PDU the server sends on the I/O channel before Licensing
// (MS-RDPBCGR 2.2.14). It is framed directly after the security header,
// with no Share Control/Share Data envelope.
type AutoDetectHeader struct {
	HeaderLength   uint8
	HeaderTypeID   uint8
	SequenceNumber uint16
}

// Header type IDs the client must recognize to keep the auto-detect
// round going; anything else is an unsupported probe the client
// acknowledges without measurement (MS-RDPBCGR 2.2.14.1/2.2.14.2).
const (
	AutoDetectTypeIDRTTRequest  uint8 = 0x14
	AutoDetectTypeIDRTTResponse uint8 = 0x22
)

// Size returns the fixed wire size of an AutoDetectHeader.
func (h AutoDetectHeader) Size() int { return 4 }

// Decode reads the header through a bounds-checked cursor.
func (h *AutoDetectHeader) Decode(r *cursor.Reader) error {
	var err error
	if h.HeaderLength, err = r.ReadU8(); err != nil {
		return cursor.WrapDecode("AutoDetectHeader", err)
	}
	if h.HeaderTypeID, err = r.ReadU8(); err != nil {
		return cursor.WrapDecode("AutoDetectHeader", err)
	}
	if h.SequenceNumber, err = r.ReadU16LE(); err != nil {
		return cursor.WrapDecode("AutoDetectHeader", err)
	}
	return nil
}

// Encode writes the header through a bounds-checked cursor.
func (h AutoDetectHeader) Encode(w *cursor.Writer) error {
	if err := w.WriteU8(h.HeaderLength); err != nil {
		return cursor.WrapEncode("AutoDetectHeader", err)
	}
	if err := w.WriteU8(h.HeaderTypeID); err != nil {
		return cursor.WrapEncode("AutoDetectHeader", err)
	}
	if err := w.WriteU16LE(h.SequenceNumber); err != nil {
		return cursor.WrapEncode("AutoDetectHeader", err)
	}
	return nil
}

// AutoDetectRequest models a Server Auto-Detect Request PDU. The client
// only needs the header to build a matching response; any request-type
// payload is preserved verbatim so a future bandwidth measurement can be
// layered on without re-parsing the frame.
type AutoDetectRequest struct {
	Header  AutoDetectHeader
	Payload []byte
}

// Decode reads the header and the remainder of the security-header
// payload as an opaque request body. The payload length isn't carried
// anywhere in the header: the only way to find it is to ask the cursor
// how many bytes are left in the frame.
func (req *AutoDetectRequest) Decode(r *cursor.Reader) error {
	if err := req.Header.Decode(r); err != nil {
		return err
	}
	payload, err := r.ReadSlice(r.Remaining())
	if err != nil {
		return cursor.WrapDecode("AutoDetectRequest", err)
	}
	req.Payload = append([]byte(nil), payload...)
	return nil
}

// AutoDetectResponse is the client's RDP_NETCHAR_RESULT-shaped reply. The
// client reports no measurement (baseRTT/bandwidth left at zero), which
// MS-RDPBCGR explicitly allows a client that skipped bandwidth probing to
// send.
type AutoDetectResponse struct {
	Header  AutoDetectHeader
	BaseRTT uint32
}

// Size returns the fixed wire size of an AutoDetectResponse.
func (r AutoDetectResponse) Size() int { return r.Header.Size() + 4 }

// Encode writes the response: the same header shape as AutoDetectRequest,
// followed by the one uint32 field every RTT-class response carries.
func (r AutoDetectResponse) Encode(w *cursor.Writer) error {
	if err := r.Header.Encode(w); err != nil {
		return err
	}
	if err := w.WriteU32LE(r.BaseRTT); err != nil {
		return cursor.WrapEncode("AutoDetectResponse", err)
	}
	return nil
}

// Serialize returns the encoded response, sized via Size(). Kept as a
// convenience wrapper around Encode for callers that just want bytes.
func (r AutoDetectResponse) Serialize() []byte {
	buf := make([]byte, r.Size())
	w := cursor.NewWriter(buf)
	_ = r.Encode(w)
	return w.Bytes()
}

// NewAutoDetectResponse builds the client reply to a given request,
// echoing its sequence number as MS-RDPBCGR 2.2.14.2 requires.
func NewAutoDetectResponse(req *AutoDetectRequest) *AutoDetectResponse {
	return &AutoDetectResponse{
		Header: AutoDetectHeader{
			HeaderLength:   6,
			HeaderTypeID:   AutoDetectTypeIDRTTResponse,
			SequenceNumber: req.Header.SequenceNumber,
		},
	}
}
