package mcs

import (
	"bytes"
	"encoding/binary"
	"io"
)

// DomainPDUApplication is the MCS DomainMCSPDU choice tag (ITU-T T.125
// section 7, Table 3).
type DomainPDUApplication uint8

const (
	plumbDomainIndication DomainPDUApplication = iota
	erectDomainRequest
	mergeChannelsRequest
	mergeChannelsConfirm
	purgeChannelsIndication
	mergeTokensRequest
	mergeTokensConfirm
	purgeTokensIndication
	disconnectProviderUltimatum
	rejectMCSPDUUltimatum
	attachUserRequest
	attachUserConfirm
	detachUserRequest
	detachUserIndication
	channelJoinRequest
	channelJoinConfirm
	channelLeaveRequest
	channelConveneRequest
	channelConveneConfirm
	channelDisbandRequest
	channelDisbandIndication
	channelAdmitRequest
	channelAdmitIndication
	channelExpelRequest
	channelExpelIndication
	SendDataRequest
	SendDataIndication
	uniformSendDataRequest
	uniformSendDataIndication
)

// DomainPDU wraps one DomainMCSPDU choice. Only the arm matching
// Application is populated.
type DomainPDU struct {
	Application DomainPDUApplication

	ClientErectDomainRequest *ClientErectDomainRequest
	ClientAttachUserRequest  *ClientAttachUserRequest
	ServerAttachUserConfirm  *ServerAttachUserConfirm
	ClientChannelJoinRequest *ClientChannelJoinRequest
	ServerChannelJoinConfirm *ServerChannelJoinConfirm
	ClientSendDataRequest    *ClientSendDataRequest
	ServerSendDataIndication *ServerSendDataIndication
}

// Serialize encodes the DomainPDU to wire format. The application choice
// occupies the top 6 bits of the leading byte.
func (p DomainPDU) Serialize() []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(uint8(p.Application) << 2)

	switch p.Application {
	case erectDomainRequest:
		if p.ClientErectDomainRequest != nil {
			buf.Write(p.ClientErectDomainRequest.Serialize())
		}
	case attachUserRequest:
		if p.ClientAttachUserRequest != nil {
			buf.Write(p.ClientAttachUserRequest.Serialize())
		}
	case channelJoinRequest:
		if p.ClientChannelJoinRequest != nil {
			buf.Write(p.ClientChannelJoinRequest.Serialize())
		}
	case SendDataRequest:
		if p.ClientSendDataRequest != nil {
			buf.Write(p.ClientSendDataRequest.Serialize())
		}
	}

	return buf.Bytes()
}

// Deserialize decodes the DomainPDU from wire format, dispatching on the
// application choice.
func (p *DomainPDU) Deserialize(wire io.Reader) error {
	var raw uint8
	if err := binary.Read(wire, binary.BigEndian, &raw); err != nil {
		return err
	}
	p.Application = DomainPDUApplication(raw >> 2)

	switch p.Application {
	case attachUserConfirm:
		p.ServerAttachUserConfirm = &ServerAttachUserConfirm{}
		return p.ServerAttachUserConfirm.Deserialize(wire)
	case channelJoinConfirm:
		p.ServerChannelJoinConfirm = &ServerChannelJoinConfirm{}
		return p.ServerChannelJoinConfirm.Deserialize(wire)
	case SendDataRequest:
		p.ClientSendDataRequest = &ClientSendDataRequest{}
		return p.ClientSendDataRequest.Deserialize(wire)
	case SendDataIndication:
		p.ServerSendDataIndication = &ServerSendDataIndication{}
		return p.ServerSendDataIndication.Deserialize(wire)
	case disconnectProviderUltimatum:
		return ErrDisconnectUltimatum
	default:
		return ErrUnknownDomainApplication
	}
}
