// Package security implements the connection sequence's Security Upgrade
// phase: the TLS handshake that promotes a bare TCP transport to
// Enhanced RDP Security, and the CredSSP/NTLMv2 exchange that performs
// Network Level Authentication on top of it. The CredSSP half runs as
// an explicit Step state machine instead of blocking reads on a
// net.Conn — only UpgradeTLS itself touches a transport directly,
// since a TLS handshake has no meaningful sans-I/O decomposition.
package security

import (
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/netip"
	"strings"
	"time"
)

// TLSConfig mirrors the subset of internal/config.SecurityConfig that
// governs the handshake, passed explicitly rather than pulled from a
// process-wide singleton, since internal/connector may drive several
// independent connections concurrently.
type TLSConfig struct {
	InsecureSkipVerify bool
	MinVersion         string // "1.0".."1.3"; default "1.2", or "1.0" with InsecureSkipVerify
	HandshakeTimeout   time.Duration
}

func (c TLSConfig) minVersion() uint16 {
	v := c.MinVersion
	if c.InsecureSkipVerify && v == "" {
		v = "1.0"
	}
	switch v {
	case "1.0":
		return tls.VersionTLS10
	case "1.1":
		return tls.VersionTLS11
	case "1.3":
		return tls.VersionTLS13
	default:
		return tls.VersionTLS12
	}
}

func (c TLSConfig) handshakeTimeout() time.Duration {
	if c.HandshakeTimeout <= 0 {
		return 30 * time.Second
	}
	return c.HandshakeTimeout
}

// deadlineConn is satisfied by net.Conn and lets UpgradeTLS bound the
// handshake without requiring a concrete *net.TCPConn.
type deadlineConn interface {
	SetDeadline(t time.Time) error
}

// rwcConn adapts an io.ReadWriteCloser to net.Conn so it can be passed to
// tls.Client, which requires net.Conn even though it never calls the
// address methods. Deadline calls are forwarded when the underlying
// transport supports them (see deadlineConn) and are a no-op otherwise.
type rwcConn struct {
	io.ReadWriteCloser
}

func (rwcConn) LocalAddr() net.Addr  { return nil }
func (rwcConn) RemoteAddr() net.Addr { return nil }

func (c rwcConn) SetDeadline(t time.Time) error {
	if dc, ok := c.ReadWriteCloser.(deadlineConn); ok {
		return dc.SetDeadline(t)
	}
	return nil
}

func (c rwcConn) SetReadDeadline(t time.Time) error {
	if dc, ok := c.ReadWriteCloser.(interface{ SetReadDeadline(time.Time) error }); ok {
		return dc.SetReadDeadline(t)
	}
	return nil
}

func (c rwcConn) SetWriteDeadline(t time.Time) error {
	if dc, ok := c.ReadWriteCloser.(interface{ SetWriteDeadline(time.Time) error }); ok {
		return dc.SetWriteDeadline(t)
	}
	return nil
}

// asNetConn returns rw as a net.Conn, wrapping it only if it does not
// already implement the interface.
func asNetConn(rw io.ReadWriteCloser) net.Conn {
	if c, ok := rw.(net.Conn); ok {
		return c
	}
	return rwcConn{rw}
}

// UpgradeTLS performs the Enhanced RDP Security TLS handshake over
// transport and returns the resulting connection plus the server's
// SubjectPublicKeyInfo, which CredSSP's public-key binding step needs.
// serverName is used for certificate verification and SNI. An empty
// serverName is accepted only with InsecureSkipVerify set (the handshake
// then sends "rdp-server" as SNI); without it the handshake fails.
func UpgradeTLS(transport io.ReadWriteCloser, serverName string, cfg TLSConfig) (io.ReadWriteCloser, []byte, error) {
	tlsConfig := &tls.Config{
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		MinVersion:         cfg.minVersion(),
		MaxVersion:         tls.VersionTLS13,
		ServerName:         serverName,
	}

	if tlsConfig.ServerName == "" && tlsConfig.InsecureSkipVerify {
		tlsConfig.ServerName = "rdp-server"
	}

	if !cfg.InsecureSkipVerify {
		tlsConfig.CipherSuites = []uint16{
			tls.TLS_AES_128_GCM_SHA256,
			tls.TLS_AES_256_GCM_SHA384,
			tls.TLS_CHACHA20_POLY1305_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
		}
	}

	tlsConn := tls.Client(asNetConn(transport), tlsConfig)

	if dc, ok := transport.(deadlineConn); ok {
		_ = dc.SetDeadline(time.Now().Add(cfg.handshakeTimeout()))
	}

	if err := tlsConn.Handshake(); err != nil {
		if strings.Contains(err.Error(), "certificate") || strings.Contains(err.Error(), "x509") {
			return nil, nil, fmt.Errorf("security: TLS certificate verification failed: %w", err)
		}
		if strings.Contains(err.Error(), "either ServerName or InsecureSkipVerify") {
			return nil, nil, fmt.Errorf("security: TLS requires a server name or InsecureSkipVerify: %w", err)
		}
		return nil, nil, fmt.Errorf("security: TLS handshake failed: %w", err)
	}

	if dc, ok := transport.(deadlineConn); ok {
		_ = dc.SetDeadline(time.Time{})
	}

	peerSPKI, err := peerSubjectPublicKeyInfo(tlsConn)
	if err != nil {
		return nil, nil, err
	}

	return tlsConn, peerSPKI, nil
}

func peerSubjectPublicKeyInfo(tlsConn *tls.Conn) ([]byte, error) {
	state := tlsConn.ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return nil, fmt.Errorf("security: server presented no certificate")
	}
	cert := state.PeerCertificates[0]
	if len(cert.RawSubjectPublicKeyInfo) == 0 {
		return nil, fmt.Errorf("security: certificate missing SubjectPublicKeyInfo")
	}
	return cert.RawSubjectPublicKeyInfo, nil
}

// SanitizeServerName strips the port suffix from a connect target:
// "host:port" becomes "host", "[ipv6]:port" becomes the bare (and
// canonicalized) IPv6 address, and anything without a port — a
// hostname, an IPv4 address, or a bare IPv6 address whose colons are
// not a port separator — passes through unchanged. The result feeds
// both TLS SNI and the Negotiation cookie.
func SanitizeServerName(name string) string {
	idx := strings.LastIndex(name, ":")
	if idx < 0 {
		// a hostname or IPv4 address without a port, already sane
		return name
	}

	if addrPort, err := netip.ParseAddrPort(name); err == nil {
		// a socket address, including a port
		return addrPort.Addr().String()
	}

	if ip := net.ParseIP(name); ip != nil && ip.To4() == nil {
		// an IPv6 address with no port, already sane
		return name
	}

	// a hostname or IPv4 address with a port after the ':'
	return name[:idx]
}
