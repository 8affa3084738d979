package connector

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/go-rdp/rdpcore/internal/cursor"
	"github.com/go-rdp/rdpcore/internal/protocol/mcs"
	"github.com/go-rdp/rdpcore/internal/protocol/x224"
)

// wrapTPKT prepends the 4-byte TPKT header (RFC 1006) a bare X.224 TPDU
// needs, grounded on internal/protocol/tpkt.Protocol.Send but built
// directly into a byte slice instead of writing to an io.Writer, since
// the connector only ever hands finished frames to its caller.
func wrapTPKT(tpdu []byte) []byte {
	buf := make([]byte, 4+len(tpdu))
	buf[0] = 0x03
	buf[1] = 0x00
	binary.BigEndian.PutUint16(buf[2:4], uint16(len(buf))) // #nosec G115
	copy(buf[4:], tpdu)
	return buf
}

// wrapX224Data wraps payload in a single-segment X.224 Data TPDU and a
// TPKT header: the framing every MCS/domain PDU travels in once past
// Connection Initiation.
func wrapX224Data(payload []byte) []byte {
	return wrapTPKT(x224.NewData(payload).Serialize())
}

// unwrapTPKT strips the 4-byte TPKT header from a complete frame (the
// reassembler guarantees the length field already equals len(frame))
// and returns a cursor over the remainder.
func unwrapTPKT(frame []byte) (*cursor.Reader, error) {
	r := cursor.NewReader(frame)
	if _, err := r.ReadArray(4); err != nil {
		return nil, err
	}
	return r, nil
}

// unwrapX224Data strips the TPKT header and the 3-byte X.224 Data TPDU
// header, returning a cursor positioned at the MCS-layer payload.
func unwrapX224Data(frame []byte) (*cursor.Reader, error) {
	r, err := unwrapTPKT(frame)
	if err != nil {
		return nil, err
	}
	var hdr x224.Data
	if err := hdr.Decode(r); err != nil {
		return nil, err
	}
	return r, nil
}

// bytesReader is a tiny convenience so callers that already hold a
// []byte payload (e.g. the GCC user-data blob extracted by an earlier
// decode step) can feed it back into another Deserialize(io.Reader).
func bytesReader(b []byte) *bytes.Reader { return bytes.NewReader(b) }

// wrapMCSSendData wraps payload in an MCS Send Data Request and the
// surrounding X.224/TPKT framing, grounded on mcs.Protocol.Send. Every
// PDU from Secure Settings Exchange onward travels this way.
func wrapMCSSendData(userID, channelID uint16, payload []byte) []byte {
	req := mcs.DomainPDU{
		Application: mcs.SendDataRequest,
		ClientSendDataRequest: &mcs.ClientSendDataRequest{
			Initiator: userID,
			ChannelId: channelID,
			Data:      payload,
		},
	}
	return wrapX224Data(req.Serialize())
}

// unwrapMCSSendData strips TPKT, X.224 Data, and MCS Send Data Indication
// framing, returning the indicated channel and a cursor positioned at the
// carried PDU bytes, grounded on mcs.Protocol.Receive.
func unwrapMCSSendData(frame []byte) (uint16, *cursor.Reader, error) {
	r, err := unwrapX224Data(frame)
	if err != nil {
		return 0, nil, err
	}

	var resp mcs.DomainPDU
	if err := resp.Deserialize(r); err != nil {
		return 0, nil, err
	}
	if resp.ServerSendDataIndication == nil {
		return 0, nil, fmt.Errorf("connector: expected MCS Send Data Indication")
	}
	return resp.ServerSendDataIndication.ChannelId, r, nil
}
