// Package rdpeudp implements the RDP UDP transport datagram formats
// (MS-RDPEUDP): SYN/ACK/DATA packets with the optional FEC and ACK
// vector parts. The connection state machine that exchanges these
// datagrams lives in internal/transport/udp.
package rdpeudp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// Packet flags (MS-RDPEUDP 2.2.1.1).
const (
	FlagSYN  uint16 = 0x0001
	FlagFIN  uint16 = 0x0002
	FlagACK  uint16 = 0x0004
	FlagDAT  uint16 = 0x0008
	FlagFEC  uint16 = 0x0010
	FlagCN   uint16 = 0x0020
	FlagCWR  uint16 = 0x0040
	FlagAOA  uint16 = 0x0100
	FlagSYN2 uint16 = 0x0200
	FlagACKV uint16 = 0x0400
)

// Handshake and retransmit defaults.
const (
	InitialSnSourceAck   uint32 = 0xFFFFFFFF
	DefaultReceiveWindow uint16 = 0x0040
	DefaultMTU           uint16 = 1232
)

const (
	fecHeaderSize = 8
	synDataSize   = 8
)

var ErrInvalidPacket = errors.New("rdpeudp: invalid packet")

// FECHeader represents RDPUDP_FEC_HEADER (MS-RDPEUDP 2.2.1.1): the
// fixed prefix of every datagram.
type FECHeader struct {
	SnSourceAck   uint32
	ReceiveWindow uint16
	Flags         uint16
}

func (h *FECHeader) Serialize() []byte {
	buf := make([]byte, fecHeaderSize)

	binary.LittleEndian.PutUint32(buf[0:4], h.SnSourceAck)
	binary.LittleEndian.PutUint16(buf[4:6], h.ReceiveWindow)
	binary.LittleEndian.PutUint16(buf[6:8], h.Flags)

	return buf
}

func (h *FECHeader) Deserialize(data []byte) error {
	if len(data) < fecHeaderSize {
		return fmt.Errorf("%w: FEC header too short", ErrInvalidPacket)
	}

	h.SnSourceAck = binary.LittleEndian.Uint32(data[0:4])
	h.ReceiveWindow = binary.LittleEndian.Uint16(data[4:6])
	h.Flags = binary.LittleEndian.Uint16(data[6:8])

	return nil
}

// HasFlag reports whether flag is set.
func (h *FECHeader) HasFlag(flag uint16) bool { return h.Flags&flag != 0 }

// SynData represents RDPUDP_SYNDATA_PAYLOAD (MS-RDPEUDP 2.2.2.1).
type SynData struct {
	InitialSequenceNumber uint32
	UpstreamMTU           uint16
	DownstreamMTU         uint16
}

func (s *SynData) Serialize() []byte {
	buf := make([]byte, synDataSize)

	binary.LittleEndian.PutUint32(buf[0:4], s.InitialSequenceNumber)
	binary.LittleEndian.PutUint16(buf[4:6], s.UpstreamMTU)
	binary.LittleEndian.PutUint16(buf[6:8], s.DownstreamMTU)

	return buf
}

func (s *SynData) Deserialize(data []byte) error {
	if len(data) < synDataSize {
		return fmt.Errorf("%w: SYN payload too short", ErrInvalidPacket)
	}

	s.InitialSequenceNumber = binary.LittleEndian.Uint32(data[0:4])
	s.UpstreamMTU = binary.LittleEndian.Uint16(data[4:6])
	s.DownstreamMTU = binary.LittleEndian.Uint16(data[6:8])

	return nil
}

// AckVector represents RDPUDP_ACK_VECTOR_HEADER (MS-RDPEUDP 2.2.1.2).
// Each element run-length-encodes the receive state of consecutive
// sequence numbers.
type AckVector struct {
	Elements []uint8
}

func (a *AckVector) size() int { return 2 + len(a.Elements) }

func (a *AckVector) Serialize() []byte {
	buf := make([]byte, a.size())

	buf[0] = uint8(len(a.Elements))
	copy(buf[2:], a.Elements)

	return buf
}

func (a *AckVector) Deserialize(data []byte) error {
	if len(data) < 2 {
		return fmt.Errorf("%w: ACK vector header too short", ErrInvalidPacket)
	}

	n := int(data[0])
	if n > len(data)-2 {
		return fmt.Errorf("%w: ACK vector elements truncated", ErrInvalidPacket)
	}

	a.Elements = make([]uint8, n)
	copy(a.Elements, data[2:2+n])

	return nil
}

// SourcePayloadHeader represents RDPUDP_SOURCE_PAYLOAD_HEADER
// (MS-RDPEUDP 2.2.3.1). The coded fields are only on the wire when the
// FEC flag is set.
type SourcePayloadHeader struct {
	SnSourceStart uint32
	SnCoded       uint32
	FECMode       uint8
}

func (h *SourcePayloadHeader) size(hasFEC bool) int {
	if hasFEC {
		return 9
	}

	return 4
}

func (h *SourcePayloadHeader) Serialize(hasFEC bool) []byte {
	buf := make([]byte, h.size(hasFEC))

	binary.LittleEndian.PutUint32(buf[0:4], h.SnSourceStart)
	if hasFEC {
		binary.LittleEndian.PutUint32(buf[4:8], h.SnCoded)
		buf[8] = h.FECMode
	}

	return buf
}

func (h *SourcePayloadHeader) Deserialize(data []byte, hasFEC bool) error {
	if len(data) < h.size(hasFEC) {
		return fmt.Errorf("%w: source payload header too short", ErrInvalidPacket)
	}

	h.SnSourceStart = binary.LittleEndian.Uint32(data[0:4])
	if hasFEC {
		h.SnCoded = binary.LittleEndian.Uint32(data[4:8])
		h.FECMode = data[8]
	}

	return nil
}

// Packet is one complete RDPEUDP datagram: the FEC header followed by
// whichever optional parts its flags announce.
type Packet struct {
	Header     FECHeader
	SynData    *SynData
	AckVector  *AckVector
	DataHeader *SourcePayloadHeader
	Payload    []byte
}

func (p *Packet) Serialize() []byte {
	buf := new(bytes.Buffer)

	buf.Write(p.Header.Serialize())

	if p.SynData != nil && p.Header.HasFlag(FlagSYN) {
		buf.Write(p.SynData.Serialize())
	}

	if p.AckVector != nil && p.Header.HasFlag(FlagACK) && p.Header.HasFlag(FlagACKV) {
		buf.Write(p.AckVector.Serialize())
	}

	if p.DataHeader != nil && p.Header.HasFlag(FlagDAT) {
		buf.Write(p.DataHeader.Serialize(p.Header.HasFlag(FlagFEC)))
		buf.Write(p.Payload)
	}

	return buf.Bytes()
}

func (p *Packet) Deserialize(data []byte) error {
	if err := p.Header.Deserialize(data); err != nil {
		return err
	}

	offset := fecHeaderSize

	if p.Header.HasFlag(FlagSYN) {
		p.SynData = &SynData{}
		if err := p.SynData.Deserialize(data[offset:]); err != nil {
			return err
		}

		offset += synDataSize
	}

	if p.Header.HasFlag(FlagACK) && p.Header.HasFlag(FlagACKV) {
		p.AckVector = &AckVector{}
		if err := p.AckVector.Deserialize(data[offset:]); err != nil {
			return err
		}

		offset += p.AckVector.size()
	}

	if p.Header.HasFlag(FlagDAT) {
		p.DataHeader = &SourcePayloadHeader{}
		hasFEC := p.Header.HasFlag(FlagFEC)
		if err := p.DataHeader.Deserialize(data[offset:], hasFEC); err != nil {
			return err
		}

		offset += p.DataHeader.size(hasFEC)

		p.Payload = make([]byte, len(data)-offset)
		copy(p.Payload, data[offset:])
	}

	return nil
}

// NewSYNPacket builds the client's connection-initiation datagram.
func NewSYNPacket(initialSeq uint32, upstreamMTU, downstreamMTU uint16) *Packet {
	return &Packet{
		Header: FECHeader{
			SnSourceAck:   InitialSnSourceAck,
			ReceiveWindow: DefaultReceiveWindow,
			Flags:         FlagSYN,
		},
		SynData: &SynData{
			InitialSequenceNumber: initialSeq,
			UpstreamMTU:           upstreamMTU,
			DownstreamMTU:         downstreamMTU,
		},
	}
}

// NewACKPacket builds an acknowledgment-only datagram.
func NewACKPacket(ackSeq uint32, receiveWindow uint16) *Packet {
	return &Packet{
		Header: FECHeader{
			SnSourceAck:   ackSeq,
			ReceiveWindow: receiveWindow,
			Flags:         FlagACK,
		},
	}
}

// NewDataPacket builds a datagram carrying payload with a piggybacked
// acknowledgment.
func NewDataPacket(seq, ackSeq uint32, payload []byte, receiveWindow uint16) *Packet {
	return &Packet{
		Header: FECHeader{
			SnSourceAck:   ackSeq,
			ReceiveWindow: receiveWindow,
			Flags:         FlagDAT | FlagACK,
		},
		DataHeader: &SourcePayloadHeader{SnSourceStart: seq},
		Payload:    payload,
	}
}

// NewFINPacket builds the connection-termination datagram.
func NewFINPacket(ackSeq uint32) *Packet {
	return &Packet{
		Header: FECHeader{
			SnSourceAck: ackSeq,
			Flags:       FlagFIN | FlagACK,
		},
	}
}

// FlagsString names the set flags for log lines.
func FlagsString(flags uint16) string {
	names := []struct {
		flag uint16
		name string
	}{
		{FlagSYN, "SYN"}, {FlagFIN, "FIN"}, {FlagACK, "ACK"}, {FlagDAT, "DAT"},
		{FlagFEC, "FEC"}, {FlagCN, "CN"}, {FlagCWR, "CWR"}, {FlagAOA, "AOA"},
		{FlagSYN2, "SYN2"}, {FlagACKV, "ACKV"},
	}

	var parts []string
	for _, n := range names {
		if flags&n.flag != 0 {
			parts = append(parts, n.name)
		}
	}

	if len(parts) == 0 {
		return "NONE"
	}

	return strings.Join(parts, "|")
}
