package mcs

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/go-rdp/rdpcore/internal/protocol/encoding"
)

// ConnectPDUApplication is the MCS ConnectMCSPDU choice tag (ITU-T T.125
// section 7, Table 2), BER-encoded as an APPLICATION tag.
type ConnectPDUApplication uint8

const (
	connectInitial    ConnectPDUApplication = 101
	connectResponse   ConnectPDUApplication = 102
	connectAdditional ConnectPDUApplication = 103
	connectResult     ConnectPDUApplication = 104
)

// ConnectPDU wraps one ConnectMCSPDU choice.
type ConnectPDU struct {
	Application ConnectPDUApplication

	ClientConnectInitial  *ClientMCSConnectInitial
	ServerConnectResponse *ServerConnectResponse
}

// Serialize encodes the ConnectPDU under a BER APPLICATION tag.
func (p ConnectPDU) Serialize() []byte {
	var body []byte
	switch p.Application {
	case connectInitial:
		if p.ClientConnectInitial != nil {
			body = p.ClientConnectInitial.Serialize()
		}
	}

	buf := new(bytes.Buffer)
	encoding.BerWriteApplicationTag(uint8(p.Application), len(body), buf)
	buf.Write(body)
	return buf.Bytes()
}

// Deserialize decodes the ConnectPDU, dispatching on the application
// choice. Only connectResponse is understood by a client.
func (p *ConnectPDU) Deserialize(wire io.Reader) error {
	tag, err := encoding.BerReadApplicationTag(wire)
	if err != nil {
		return err
	}

	if _, err := encoding.BerReadLength(wire); err != nil {
		return err
	}

	p.Application = ConnectPDUApplication(tag)

	switch p.Application {
	case connectResponse:
		p.ServerConnectResponse = &ServerConnectResponse{}
		return p.ServerConnectResponse.Deserialize(wire)
	default:
		return ErrUnknownConnectApplication
	}
}

// ClientMCSConnectInitial is the client's MCS Connect Initial PDU
// (ITU-T T.125 section 7, ConnectMCSPDU::connect-initial), carrying the
// GCC Conference Create Request as userData.
type ClientMCSConnectInitial struct {
	calledDomainSelector  []byte
	callingDomainSelector []byte
	upwardFlag            bool

	targetParameters  domainParameters
	minimumParameters domainParameters
	maximumParameters domainParameters

	userData []byte
}

// NewClientMCSConnectInitial builds a Connect Initial PDU carrying
// userData with the fixed domain parameter triad every RDP client offers
// (MS-RDPBCGR 2.2.1.3).
func NewClientMCSConnectInitial(userData []byte) *ClientMCSConnectInitial {
	return &ClientMCSConnectInitial{
		calledDomainSelector:  []byte{0x01},
		callingDomainSelector: []byte{0x01},
		upwardFlag:            true,

		targetParameters: domainParameters{
			maxChannelIds:   34,
			maxUserIds:      2,
			maxTokenIds:     0,
			numPriorities:   1,
			minThroughput:   0,
			maxHeight:       1,
			maxMCSPDUsize:   65535,
			protocolVersion: 2,
		},
		minimumParameters: domainParameters{
			maxChannelIds:   1,
			maxUserIds:      1,
			maxTokenIds:     1,
			numPriorities:   1,
			minThroughput:   0,
			maxHeight:       1,
			maxMCSPDUsize:   1056,
			protocolVersion: 2,
		},
		maximumParameters: domainParameters{
			maxChannelIds:   65535,
			maxUserIds:      65535,
			maxTokenIds:     65535,
			numPriorities:   1,
			minThroughput:   0,
			maxHeight:       1,
			maxMCSPDUsize:   65535,
			protocolVersion: 2,
		},

		userData: userData,
	}
}

// Serialize encodes the Connect Initial fields in order. The caller
// (ConnectPDU) supplies the enclosing APPLICATION tag, so this does not
// add its own SEQUENCE wrapper (implicit tagging).
func (c *ClientMCSConnectInitial) Serialize() []byte {
	buf := new(bytes.Buffer)

	encoding.BerWriteOctetString(c.calledDomainSelector, buf)
	encoding.BerWriteOctetString(c.callingDomainSelector, buf)
	encoding.BerWriteBoolean(c.upwardFlag, buf)
	encoding.BerWriteSequence(c.targetParameters.Serialize(), buf)
	encoding.BerWriteSequence(c.minimumParameters.Serialize(), buf)
	encoding.BerWriteSequence(c.maximumParameters.Serialize(), buf)
	encoding.BerWriteOctetString(c.userData, buf)

	return buf.Bytes()
}

// ServerConnectResponse is the server's MCS Connect Response PDU.
type ServerConnectResponse struct {
	Result           uint8
	CalledConnectId  int
	DomainParameters domainParameters
	userData         []byte
}

var errBadSequenceTag = errors.New("mcs: expected BER sequence tag")

// UserData returns the GCC Conference Create Response payload carried by
// this Connect Response, for callers that deserialize a ConnectPDU
// directly instead of going through (*Protocol).Connect.
func (s *ServerConnectResponse) UserData() []byte {
	return s.userData
}

func (s *ServerConnectResponse) Deserialize(wire io.Reader) error {
	result, err := encoding.BerReadEnumerated(wire)
	if err != nil {
		return err
	}
	s.Result = result

	calledConnectId, err := encoding.BerReadInteger(wire)
	if err != nil {
		return err
	}
	s.CalledConnectId = calledConnectId

	ok, err := encoding.BerReadUniversalTag(encoding.TagSequence, true, wire)
	if err != nil {
		return err
	}
	if !ok {
		return errBadSequenceTag
	}

	if _, err := encoding.BerReadLength(wire); err != nil {
		return err
	}

	if err := s.DomainParameters.Deserialize(wire); err != nil {
		return err
	}

	userData, err := io.ReadAll(wire)
	if err != nil {
		return err
	}
	s.userData = userData

	return nil
}

// NewClientConnectInitialPDU builds the Connect Initial ConnectPDU, for
// callers that drive the MCS connect handshake directly instead of
// through (*Protocol).Connect.
func NewClientConnectInitialPDU(userData []byte) ConnectPDU {
	return ConnectPDU{
		Application:          connectInitial,
		ClientConnectInitial: NewClientMCSConnectInitial(userData),
	}
}

// Connect sends an MCS Connect Initial carrying userData (the GCC
// Conference Create Request) and waits for the Connect Response,
// returning a reader positioned at its GCC Conference Create Response
// userData.
func (p *Protocol) Connect(userData []byte) (io.Reader, error) {
	req := ConnectPDU{
		Application:          connectInitial,
		ClientConnectInitial: NewClientMCSConnectInitial(userData),
	}

	if err := p.x224Conn.Send(req.Serialize()); err != nil {
		return nil, fmt.Errorf("client MCS connect initial: %w", err)
	}

	wire, err := p.x224Conn.Receive()
	if err != nil {
		return nil, fmt.Errorf("server MCS connect response: %w", err)
	}

	var resp ConnectPDU
	if err := resp.Deserialize(wire); err != nil {
		return nil, fmt.Errorf("server MCS connect response: %w", err)
	}

	if resp.ServerConnectResponse.Result != RTSuccessful {
		return nil, fmt.Errorf("server MCS connect response: result code %d", resp.ServerConnectResponse.Result)
	}

	return bytes.NewReader(resp.ServerConnectResponse.userData), nil
}
