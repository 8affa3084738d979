package udp

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/pion/dtls/v2"

	"github.com/go-rdp/rdpcore/internal/protocol/rdpemt"
)

// SecureConnection layers TLS or DTLS over an RDPEUDP connection
// (MS-RDPEMT 1.3): TLS secures the reliable transport, DTLS the lossy
// one. The security handshake runs after the RDPEUDP handshake.
type SecureConnection struct {
	udpConn    *Connection
	secureConn net.Conn

	reliable   bool
	tlsConfig  *tls.Config
	dtlsConfig *dtls.Config
}

// SecureConfig holds everything needed to secure one UDP sideband.
type SecureConfig struct {
	UDPConfig Config

	// Reliable selects TLS (RDP-UDP-R); false selects DTLS (RDP-UDP-L).
	Reliable bool

	TLSConfig  *tls.Config
	DTLSConfig *dtls.Config
}

// NewSecureConnection prepares the RDPEUDP connection and the security
// configuration; Connect performs both handshakes.
func NewSecureConnection(config SecureConfig) (*SecureConnection, error) {
	udpConn, err := NewConnection(config.UDPConfig)
	if err != nil {
		return nil, err
	}

	sc := &SecureConnection{
		udpConn:    udpConn,
		reliable:   config.Reliable,
		tlsConfig:  config.TLSConfig,
		dtlsConfig: config.DTLSConfig,
	}

	// RDP servers habitually present self-signed certificates; the
	// main TCP leg already authenticated the server.
	if sc.reliable && sc.tlsConfig == nil {
		sc.tlsConfig = &tls.Config{
			InsecureSkipVerify: true,
			MinVersion:         tls.VersionTLS12,
		}
	}

	if !sc.reliable && sc.dtlsConfig == nil {
		sc.dtlsConfig = &dtls.Config{InsecureSkipVerify: true}
	}

	return sc, nil
}

// Connect establishes the RDPEUDP connection and secures it.
func (sc *SecureConnection) Connect(ctx context.Context) error {
	if err := sc.udpConn.Connect(ctx); err != nil {
		return fmt.Errorf("secure: RDPEUDP connect: %w", err)
	}

	var err error
	if sc.reliable {
		err = sc.handshakeTLS(ctx)
	} else {
		err = sc.handshakeDTLS(ctx)
	}

	if err != nil {
		sc.udpConn.Close()
		return fmt.Errorf("secure: handshake: %w", err)
	}

	return nil
}

func (sc *SecureConnection) handshakeTLS(ctx context.Context) error {
	tlsConn := tls.Client(sc.udpConn, sc.tlsConfig)

	if deadline, ok := ctx.Deadline(); ok {
		tlsConn.SetDeadline(deadline)
	}

	if err := tlsConn.Handshake(); err != nil {
		return err
	}

	tlsConn.SetDeadline(time.Time{})
	sc.secureConn = tlsConn

	return nil
}

func (sc *SecureConnection) handshakeDTLS(ctx context.Context) error {
	dtlsConn, err := dtls.ClientWithContext(ctx, sc.udpConn, sc.dtlsConfig)
	if err != nil {
		return err
	}

	sc.secureConn = dtlsConn

	return nil
}

func (sc *SecureConnection) Read(b []byte) (int, error) {
	if sc.secureConn == nil {
		return 0, ErrClosed
	}

	return sc.secureConn.Read(b)
}

func (sc *SecureConnection) Write(b []byte) (int, error) {
	if sc.secureConn == nil {
		return 0, ErrClosed
	}

	return sc.secureConn.Write(b)
}

func (sc *SecureConnection) Close() error {
	var errs []error

	if sc.secureConn != nil {
		if err := sc.secureConn.Close(); err != nil {
			errs = append(errs, err)
		}
		sc.secureConn = nil
	}

	if err := sc.udpConn.Close(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errs[0]
	}

	return nil
}

func (sc *SecureConnection) LocalAddr() net.Addr  { return sc.udpConn.LocalAddr() }
func (sc *SecureConnection) RemoteAddr() net.Addr { return sc.udpConn.RemoteAddr() }

// createTunnel runs the RDP_TUNNEL_CREATEREQUEST/-RESPONSE exchange
// (MS-RDPEMT 2.2.2) over the secured connection, presenting the request
// ID and cookie from the server's Initiate Multitransport Request.
func (sc *SecureConnection) createTunnel(requestID uint32, cookie [rdpemt.CookieLength]byte) error {
	if sc.secureConn == nil {
		return ErrClosed
	}

	req := &rdpemt.TunnelCreateRequest{
		RequestID:      requestID,
		SecurityCookie: cookie,
	}

	if _, err := sc.secureConn.Write(req.Serialize()); err != nil {
		return fmt.Errorf("secure: tunnel create request: %w", err)
	}

	buf := make([]byte, 256)
	n, err := sc.secureConn.Read(buf)
	if err != nil {
		return fmt.Errorf("secure: tunnel create response: %w", err)
	}

	action, payload, err := rdpemt.ReadTunnelPDU(bytes.NewReader(buf[:n]))
	if err != nil {
		return fmt.Errorf("secure: tunnel create response: %w", err)
	}

	if action != rdpemt.ActionCreateResponse {
		return fmt.Errorf("secure: unexpected tunnel action 0x%02x", action)
	}

	resp := &rdpemt.TunnelCreateResponse{}
	if err := resp.Deserialize(bytes.NewReader(payload)); err != nil {
		return fmt.Errorf("secure: tunnel create response: %w", err)
	}

	if !resp.Success() {
		return fmt.Errorf("secure: tunnel rejected: %s", rdpemt.HResultString(resp.HResult))
	}

	return nil
}

var errTunnelNotEstablished = errors.New("udp: tunnel not established")
