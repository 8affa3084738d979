package udp

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/go-rdp/rdpcore/internal/protocol/rdpemt"
)

// bootstrapTimeout bounds the whole RDPEUDP + TLS/DTLS + tunnel-create
// sequence when the caller's context carries no deadline.
const bootstrapTimeout = 10 * time.Second

// Tunnel is an established MS-RDPEMT sideband transport. Reads and
// writes carry RDP_TUNNEL_DATA PDUs; the payload bytes are the session
// stream the server chose to move off the TCP leg.
type Tunnel struct {
	mu sync.Mutex

	secure *SecureConnection
	reader *bufio.Reader

	requestID uint32
	reliable  bool
	leftover  []byte
}

// Bootstrap dials addr over UDP, establishes the RDPEUDP connection,
// secures it (TLS for a reliable request, DTLS for lossy) and performs
// the tunnel-create exchange with the request's ID and cookie. This is
// what a caller runs when the connection sequence hands it an Initiate
// Multitransport Request.
func Bootstrap(ctx context.Context, addr string, request *rdpemt.MultitransportRequest) (*Tunnel, error) {
	remote, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("udp: resolve %s: %w", addr, err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, bootstrapTimeout)
		defer cancel()
	}

	secure, err := NewSecureConnection(SecureConfig{
		UDPConfig: Config{RemoteAddr: remote},
		Reliable:  request.Reliable(),
	})
	if err != nil {
		return nil, err
	}

	if err := secure.Connect(ctx); err != nil {
		return nil, err
	}

	if err := secure.createTunnel(request.RequestID, request.SecurityCookie); err != nil {
		secure.Close()
		return nil, err
	}

	return &Tunnel{
		secure:    secure,
		reader:    bufio.NewReader(secure),
		requestID: request.RequestID,
		reliable:  request.Reliable(),
	}, nil
}

// RequestID echoes the server's Initiate Multitransport Request ID, for
// the Client Initiate Multitransport Response the caller still owes the
// server on the main channel.
func (t *Tunnel) RequestID() uint32 { return t.requestID }

// Reliable reports whether this tunnel runs RDP-UDP-R under TLS.
func (t *Tunnel) Reliable() bool { return t.reliable }

// Read returns payload bytes from tunnel data PDUs, splitting one PDU
// across calls when b is small.
func (t *Tunnel) Read(b []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.secure == nil {
		return 0, errTunnelNotEstablished
	}

	if len(t.leftover) > 0 {
		n := copy(b, t.leftover)
		t.leftover = t.leftover[n:]

		return n, nil
	}

	for {
		action, payload, err := rdpemt.ReadTunnelPDU(t.reader)
		if err != nil {
			return 0, err
		}

		if action != rdpemt.ActionData {
			continue // tunnel maintenance PDU, not session data
		}

		n := copy(b, payload)
		if n < len(payload) {
			t.leftover = payload[n:]
		}

		return n, nil
	}
}

// Write wraps b in one tunnel data PDU.
func (t *Tunnel) Write(b []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.secure == nil {
		return 0, errTunnelNotEstablished
	}

	data := (&rdpemt.TunnelData{Data: b}).Serialize()
	if _, err := t.secure.Write(data); err != nil {
		return 0, err
	}

	return len(b), nil
}

// Close tears down the security layer and the RDPEUDP connection.
func (t *Tunnel) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.secure == nil {
		return nil
	}

	err := t.secure.Close()
	t.secure = nil

	return err
}
