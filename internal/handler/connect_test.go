package handler

import (
	"bytes"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-rdp/rdpcore/internal/codec"
	"github.com/go-rdp/rdpcore/internal/connector"
	"github.com/go-rdp/rdpcore/internal/protocol/encoding"
	"github.com/go-rdp/rdpcore/internal/protocol/mcs"
	"github.com/go-rdp/rdpcore/internal/protocol/rdpemt"
)

func TestParseConnectionParams(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		wantErr bool
		want    connectionParams
	}{
		{
			name:  "valid params",
			query: "width=1920&height=1080",
			want:  connectionParams{width: 1920, height: 1080, colorDepth: 16},
		},
		{
			name:  "explicit color depth",
			query: "width=800&height=600&colorDepth=32",
			want:  connectionParams{width: 800, height: 600, colorDepth: 32},
		},
		{
			name:  "invalid color depth falls back to default",
			query: "width=800&height=600&colorDepth=13",
			want:  connectionParams{width: 800, height: 600, colorDepth: 16},
		},
		{
			name:  "disable NLA",
			query: "width=800&height=600&disableNLA=true",
			want:  connectionParams{width: 800, height: 600, colorDepth: 16, disableNLA: true},
		},
		{
			name:    "missing width",
			query:   "height=1080",
			wantErr: true,
		},
		{
			name:    "zero height",
			query:   "width=1920&height=0",
			wantErr: true,
		},
		{
			name:    "oversized width",
			query:   "width=9000&height=600",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/connect?"+tt.query, nil)

			params, err := parseConnectionParams(r)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, *params)
		})
	}
}

func TestValidateCredentials(t *testing.T) {
	valid := connectionRequest{Type: "credentials", Host: "server01", User: "alice", Password: "secret"}

	tests := []struct {
		name    string
		mutate  func(*connectionRequest)
		wantErr string
	}{
		{name: "valid", mutate: func(*connectionRequest) {}},
		{
			name:    "wrong type",
			mutate:  func(c *connectionRequest) { c.Type = "input" },
			wantErr: "expected credentials message",
		},
		{
			name:    "empty host",
			mutate:  func(c *connectionRequest) { c.Host = "" },
			wantErr: "invalid hostname",
		},
		{
			name:    "hostname too long",
			mutate:  func(c *connectionRequest) { c.Host = string(bytes.Repeat([]byte{'a'}, 254)) },
			wantErr: "invalid hostname",
		},
		{
			name:    "empty user",
			mutate:  func(c *connectionRequest) { c.User = "" },
			wantErr: "invalid username",
		},
		{
			name:    "password too long",
			mutate:  func(c *connectionRequest) { c.Password = string(bytes.Repeat([]byte{'x'}, 1025)) },
			wantErr: "password too long",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creds := valid
			tt.mutate(&creds)

			err := validateCredentials(&creds)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestIsOriginAllowed(t *testing.T) {
	tests := []struct {
		name    string
		origin  string
		allowed []string
		host    string
		want    bool
	}{
		{
			name:   "empty allowlist admits same host",
			origin: "http://gateway.example.com",
			host:   "gateway.example.com",
			want:   true,
		},
		{
			name:   "empty allowlist rejects other hosts",
			origin: "http://evil.example.com",
			host:   "gateway.example.com",
			want:   false,
		},
		{
			name:    "wildcard admits anyone",
			origin:  "http://anywhere.example.com",
			allowed: []string{"*"},
			host:    "gateway.example.com",
			want:    true,
		},
		{
			name:    "exact origin match",
			origin:  "https://app.example.com",
			allowed: []string{"https://app.example.com"},
			host:    "gateway.example.com",
			want:    true,
		},
		{
			name:    "host-only match",
			origin:  "https://app.example.com",
			allowed: []string{"app.example.com"},
			host:    "gateway.example.com",
			want:    true,
		},
		{
			name:    "no match",
			origin:  "https://other.example.com",
			allowed: []string{"app.example.com"},
			host:    "gateway.example.com",
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsOriginAllowed(tt.origin, tt.allowed, tt.host))
		})
	}
}

// buildMessageChannelFrame hand-encodes a Send Data Indication the way a
// server would, since internal/protocol/mcs only deserializes that PDU.
func buildMessageChannelFrame(t *testing.T, channelID uint16, payload []byte) []byte {
	t.Helper()

	buf := new(bytes.Buffer)
	buf.WriteByte(uint8(mcs.SendDataIndication) << 2)
	encoding.PerWriteInteger16(1001, 1001, buf)
	encoding.PerWriteInteger16(channelID, 0, buf)
	buf.WriteByte(0x70)
	encoding.BerWriteLength(len(payload), buf)
	buf.Write(payload)

	return wrapX224(buf.Bytes())
}

func testSession(messageChannel uint16) *rdpSession {
	return &rdpSession{
		settings: &connector.Settings{
			UserChannelID:    1007,
			IOChannelID:      1003,
			MessageChannelID: messageChannel,
			HasMessageChan:   messageChannel != 0,
		},
	}
}

func TestMatchTransportRequest(t *testing.T) {
	req := &rdpemt.MultitransportRequest{
		RequestID:         99,
		RequestedProtocol: rdpemt.ProtocolUDPFECReliable,
	}
	copy(req.SecurityCookie[:], bytes.Repeat([]byte{0x11}, rdpemt.CookieLength))

	payload := codec.WrapSecurityFlag(secTransportReq, req.Serialize())
	frame := buildMessageChannelFrame(t, 1005, payload)

	s := testSession(1005)
	got, chID, handled := s.matchTransportRequest(frame)
	require.True(t, handled)
	assert.Equal(t, uint16(1005), chID)
	assert.Equal(t, uint32(99), got.RequestID)
	assert.True(t, got.Reliable())
	assert.Equal(t, req.SecurityCookie, got.SecurityCookie)
}

func TestMatchTransportRequest_WrongChannel(t *testing.T) {
	req := &rdpemt.MultitransportRequest{RequestID: 1}
	payload := codec.WrapSecurityFlag(secTransportReq, req.Serialize())
	frame := buildMessageChannelFrame(t, 1004, payload)

	s := testSession(1005)
	_, _, handled := s.matchTransportRequest(frame)
	assert.False(t, handled)
}

func TestMatchTransportRequest_NoMessageChannel(t *testing.T) {
	req := &rdpemt.MultitransportRequest{RequestID: 1}
	payload := codec.WrapSecurityFlag(secTransportReq, req.Serialize())
	frame := buildMessageChannelFrame(t, 1005, payload)

	s := testSession(0)
	_, _, handled := s.matchTransportRequest(frame)
	assert.False(t, handled)
}

func TestMatchTransportRequest_OtherSecurityFlag(t *testing.T) {
	payload := codec.WrapSecurityFlag(0x0080, []byte{0x01, 0x02}) // license packet
	frame := buildMessageChannelFrame(t, 1005, payload)

	s := testSession(1005)
	_, _, handled := s.matchTransportRequest(frame)
	assert.False(t, handled)
}

func TestMatchTransportRequest_FastPathFrame(t *testing.T) {
	s := testSession(1005)
	_, _, handled := s.matchTransportRequest([]byte{0x00, 0x05, 0x01, 0x02, 0x03})
	assert.False(t, handled)
}

func TestWrapX224(t *testing.T) {
	payload := []byte{0xde, 0xad}
	frame := wrapX224(payload)

	// TPKT: version 3, reserved 0, big-endian total length
	assert.Equal(t, byte(0x03), frame[0])
	assert.Equal(t, byte(0x00), frame[1])
	assert.Equal(t, len(frame), int(frame[2])<<8|int(frame[3]))

	// X.224 Data TPDU: LI=2, code 0xF0, EOT
	assert.Equal(t, []byte{0x02, 0xf0, 0x80}, frame[4:7])
	assert.Equal(t, payload, frame[7:])
}
