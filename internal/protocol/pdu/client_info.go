package pdu

import (
	"bytes"
	"encoding/binary"
	"unicode/utf16"

	"github.com/go-rdp/rdpcore/internal/codec"
)

// Client Info PDU flags (MS-RDPBCGR 2.2.1.11.1.1).
const (
	InfoFlagMouse             uint32 = 0x00000001
	InfoFlagDisableCtrlAltDel uint32 = 0x00000002
	InfoFlagAutologon         uint32 = 0x00000008
	InfoFlagUnicode           uint32 = 0x00000010
	InfoFlagMaximizeShell     uint32 = 0x00000020
	InfoFlagLogonNotify       uint32 = 0x00000040
	InfoFlagCompression       uint32 = 0x00000080
	InfoFlagEnableWindowsKey  uint32 = 0x00000100
	InfoFlagLogonErrors       uint32 = 0x00000400
	InfoFlagMouseHasWheel     uint32 = 0x00020000
	InfoFlagPasswordIsScPin   uint32 = 0x00040000
	InfoFlagNoAudioPlayback   uint32 = 0x00080000
	InfoFlagRail              uint32 = 0x00008000
)

// secInfoPkt is the SEC_INFO_PKT security header flag (MS-RDPBCGR 2.2.8.1.1.2.1).
const secInfoPkt uint16 = 0x0040

// ExtendedInfoPacket carries the client address and session tuning fields
// appended to a TS_INFO_PACKET (MS-RDPBCGR 2.2.1.11.1.1.1).
type ExtendedInfoPacket struct {
	ClientAddressFamily uint16
	ClientAddress       string
	ClientDir           string
	ClientSessionID     uint32
	PerformanceFlags    uint32
}

// InfoPacket represents a TS_INFO_PACKET (MS-RDPBCGR 2.2.1.11.1.1).
type InfoPacket struct {
	CodePage       uint32
	Flags          uint32
	Domain         string
	UserName       string
	Password       string
	AlternateShell string
	WorkingDir     string
	Extended       ExtendedInfoPacket
}

// ClientInfoPDU represents the Client Info PDU (MS-RDPBCGR 2.2.1.11).
type ClientInfoPDU struct {
	InfoPacket InfoPacket
}

// NewClientInfo builds a Client Info PDU advertising Unicode-encoded
// credentials and a default extended info block. Callers that need RAIL
// session behavior OR InfoFlagRail into InfoPacket.Flags before serializing.
func NewClientInfo(domain, userName, password string) ClientInfoPDU {
	return ClientInfoPDU{
		InfoPacket: InfoPacket{
			Flags:      InfoFlagMouse | InfoFlagUnicode | InfoFlagLogonNotify | InfoFlagMaximizeShell | InfoFlagEnableWindowsKey,
			Domain:     domain,
			UserName:   userName,
			Password:   password,
			WorkingDir: "",
			Extended: ExtendedInfoPacket{
				ClientAddressFamily: 0x0002, // AF_INET
				PerformanceFlags:    0x00000001,
			},
		},
	}
}

func utf16LEBytes(s string) []byte {
	buf := new(bytes.Buffer)
	for _, r := range utf16.Encode([]rune(s)) {
		_ = binary.Write(buf, binary.LittleEndian, r)
	}
	return buf.Bytes()
}

// Serialize encodes the Client Info PDU, wrapping it in a security header
// unless Enhanced RDP Security (TLS/CredSSP) is already protecting the
// channel, in which case MS-RDPBCGR 2.2.1.11 says the header is omitted.
func (c *ClientInfoPDU) Serialize(useEnhancedSecurity bool) []byte {
	domain := utf16LEBytes(c.InfoPacket.Domain)
	userName := utf16LEBytes(c.InfoPacket.UserName)
	password := utf16LEBytes(c.InfoPacket.Password)
	shell := utf16LEBytes(c.InfoPacket.AlternateShell)
	workingDir := utf16LEBytes(c.InfoPacket.WorkingDir)

	body := new(bytes.Buffer)
	_ = binary.Write(body, binary.LittleEndian, c.InfoPacket.CodePage)
	_ = binary.Write(body, binary.LittleEndian, c.InfoPacket.Flags)
	_ = binary.Write(body, binary.LittleEndian, uint16(len(domain)))
	_ = binary.Write(body, binary.LittleEndian, uint16(len(userName)))
	_ = binary.Write(body, binary.LittleEndian, uint16(len(password)))
	_ = binary.Write(body, binary.LittleEndian, uint16(len(shell)))
	_ = binary.Write(body, binary.LittleEndian, uint16(len(workingDir)))
	body.Write(domain)
	body.Write([]byte{0x00, 0x00})
	body.Write(userName)
	body.Write([]byte{0x00, 0x00})
	body.Write(password)
	body.Write([]byte{0x00, 0x00})
	body.Write(shell)
	body.Write([]byte{0x00, 0x00})
	body.Write(workingDir)
	body.Write([]byte{0x00, 0x00})

	clientAddress := utf16LEBytes(c.InfoPacket.Extended.ClientAddress)
	clientDir := utf16LEBytes(c.InfoPacket.Extended.ClientDir)

	_ = binary.Write(body, binary.LittleEndian, c.InfoPacket.Extended.ClientAddressFamily)
	_ = binary.Write(body, binary.LittleEndian, uint16(len(clientAddress)+2))
	body.Write(clientAddress)
	body.Write([]byte{0x00, 0x00})
	_ = binary.Write(body, binary.LittleEndian, uint16(len(clientDir)+2))
	body.Write(clientDir)
	body.Write([]byte{0x00, 0x00})
	body.Write(make([]byte, 172)) // TS_TIME_ZONE_INFORMATION, UTC client
	_ = binary.Write(body, binary.LittleEndian, c.InfoPacket.Extended.ClientSessionID)
	_ = binary.Write(body, binary.LittleEndian, c.InfoPacket.Extended.PerformanceFlags)
	_ = binary.Write(body, binary.LittleEndian, uint16(0)) // cbAutoReconnectLen

	if useEnhancedSecurity {
		return body.Bytes()
	}

	return codec.WrapSecurityFlag(secInfoPkt, body.Bytes())
}
