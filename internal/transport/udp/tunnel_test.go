package udp

import (
	"bufio"
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-rdp/rdpcore/internal/protocol/rdpemt"
)

// pipeTunnel builds a Tunnel over an in-memory pipe, skipping the
// RDPEUDP and TLS layers so the data framing can be tested alone.
func pipeTunnel(t *testing.T) (*Tunnel, net.Conn) {
	t.Helper()

	client, server := net.Pipe()
	t.Cleanup(func() { client.Close(); server.Close() })

	udpConn, err := NewConnection(Config{RemoteAddr: &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1}})
	require.NoError(t, err)

	tunnel := &Tunnel{
		secure:    &SecureConnection{udpConn: udpConn, secureConn: client},
		reader:    bufio.NewReader(client),
		requestID: 11,
		reliable:  true,
	}

	return tunnel, server
}

func TestTunnel_WriteWrapsTunnelData(t *testing.T) {
	tunnel, server := pipeTunnel(t)

	payload := []byte{0xaa, 0xbb, 0xcc}
	go func() {
		n, err := tunnel.Write(payload)
		assert.NoError(t, err)
		assert.Equal(t, len(payload), n)
	}()

	buf := make([]byte, 64)
	server.SetReadDeadline(time.Now().Add(5 * time.Second))
	n, err := server.Read(buf)
	require.NoError(t, err)

	action, got, err := rdpemt.ReadTunnelPDU(bytes.NewReader(buf[:n]))
	require.NoError(t, err)
	assert.Equal(t, rdpemt.ActionData, action)
	assert.Equal(t, payload, got)
}

func TestTunnel_ReadUnwrapsTunnelData(t *testing.T) {
	tunnel, server := pipeTunnel(t)

	go func() {
		data := (&rdpemt.TunnelData{Data: []byte("sideband")}).Serialize()
		server.Write(data)
	}()

	buf := make([]byte, 64)
	n, err := tunnel.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "sideband", string(buf[:n]))
}

func TestTunnel_ReadSplitsAcrossCalls(t *testing.T) {
	tunnel, server := pipeTunnel(t)

	go func() {
		data := (&rdpemt.TunnelData{Data: []byte("abcdef")}).Serialize()
		server.Write(data)
	}()

	buf := make([]byte, 4)
	n, err := tunnel.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(buf[:n]))

	n, err = tunnel.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "ef", string(buf[:n]))
}

func TestTunnel_ReadSkipsNonDataPDUs(t *testing.T) {
	tunnel, server := pipeTunnel(t)

	go func() {
		// a stray create-response before the data must be skipped
		resp := &rdpemt.TunnelCreateResponse{HResult: rdpemt.HResultSuccess}
		server.Write(resp.Serialize())
		server.Write((&rdpemt.TunnelData{Data: []byte("ok")}).Serialize())
	}()

	buf := make([]byte, 16)
	n, err := tunnel.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(buf[:n]))
}

func TestTunnel_ClosedTunnelErrors(t *testing.T) {
	tunnel, _ := pipeTunnel(t)
	require.NoError(t, tunnel.Close())

	_, err := tunnel.Read(make([]byte, 4))
	assert.ErrorIs(t, err, errTunnelNotEstablished)

	_, err = tunnel.Write([]byte{0x01})
	assert.ErrorIs(t, err, errTunnelNotEstablished)

	assert.NoError(t, tunnel.Close())
}

func TestTunnel_Accessors(t *testing.T) {
	tunnel, _ := pipeTunnel(t)

	assert.Equal(t, uint32(11), tunnel.RequestID())
	assert.True(t, tunnel.Reliable())
}

func TestBootstrap_BadAddress(t *testing.T) {
	_, err := Bootstrap(context.Background(), "not a host:port", &rdpemt.MultitransportRequest{
		RequestedProtocol: rdpemt.ProtocolUDPFECReliable,
	})
	assert.Error(t, err)
}
