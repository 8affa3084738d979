package connector

import "github.com/go-rdp/rdpcore/internal/protocol/pdu"

// usesEnhancedSecurity reports whether the selected protocol already
// secures the transport (TLS, optionally followed by CredSSP), in which
// case MS-RDPBCGR's legacy per-PDU security header is omitted.
func (c *Connector) usesEnhancedSecurity() bool {
	return c.selectedProtocol.IsSSL() || c.selectedProtocol.IsHybrid() || c.selectedProtocol.IsHybridEx()
}

// stepSecureSettingsExchange sends the Client Info PDU over the I/O
// channel. Nothing is awaited in return; the server's reply arrives
// later as a Licensing PDU.
func (c *Connector) stepSecureSettingsExchange() ([]byte, Event, error) {
	info := pdu.NewClientInfo(c.cfg.Credentials.Domain, c.cfg.Credentials.Username, c.cfg.Credentials.Password)
	if c.cfg.Autologon {
		info.InfoPacket.Flags |= pdu.InfoFlagAutologon
	}
	if c.cfg.RemoteApp {
		info.InfoPacket.Flags |= pdu.InfoFlagRail
	}
	info.InfoPacket.Extended.PerformanceFlags = c.cfg.PerformanceFlags

	payload := info.Serialize(c.usesEnhancedSecurity())

	c.state = StateConnectTimeAutoDetectionWait
	return wrapMCSSendData(c.userID, c.ioChannelID, payload), Event{Kind: EventSendPending}, nil
}
