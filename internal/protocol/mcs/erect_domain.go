package mcs

import (
	"bytes"
	"fmt"

	"github.com/go-rdp/rdpcore/internal/protocol/encoding"
)

type ClientErectDomainRequest struct{}

func (pdu *ClientErectDomainRequest) Serialize() []byte {
	buf := new(bytes.Buffer)

	encoding.PerWriteInteger(0, buf)
	encoding.PerWriteInteger(0, buf)

	return buf.Bytes()
}

// NewErectDomainRequestPDU builds the Erect Domain Request DomainPDU, for
// callers that drive the MCS handshake PDU-by-PDU instead of through
// (*Protocol).ErectDomain.
func NewErectDomainRequestPDU() DomainPDU {
	return DomainPDU{
		Application:              erectDomainRequest,
		ClientErectDomainRequest: &ClientErectDomainRequest{},
	}
}

func (p *Protocol) ErectDomain() error {
	req := DomainPDU{
		Application:              erectDomainRequest,
		ClientErectDomainRequest: &ClientErectDomainRequest{},
	}

	if err := p.x224Conn.Send(req.Serialize()); err != nil {
		return fmt.Errorf("client MCS erect domain request: %w", err)
	}

	return nil
}
