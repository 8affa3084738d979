package mcs

import "fmt"

// disconnectProviderUltimatumUserRequested is the wire encoding of a
// DisconnectProviderUltimatum PDU with reason RNUserRequested: the 3-bit
// PER-encoded enumerated reason straddles the choice byte and the byte
// that follows it.
var disconnectProviderUltimatumUserRequested = []byte{0x21, 0x80}

// Disconnect sends a client-initiated Disconnect Provider Ultimatum.
func (p *Protocol) Disconnect() error {
	if err := p.x224Conn.Send(disconnectProviderUltimatumUserRequested); err != nil {
		return fmt.Errorf("client MCS disconnect provider ultimatum: %w", err)
	}
	return nil
}
