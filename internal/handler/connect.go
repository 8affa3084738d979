// Package handler implements the WebSocket gateway endpoint: a browser
// posts credentials over a WebSocket, the handler dials the RDP server,
// drives internal/connector through the connection sequence, and then
// relays raw session frames in both directions.
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	"github.com/go-rdp/rdpcore/internal/codec"
	"github.com/go-rdp/rdpcore/internal/config"
	"github.com/go-rdp/rdpcore/internal/connector"
	"github.com/go-rdp/rdpcore/internal/logging"
	"github.com/go-rdp/rdpcore/internal/protocol/fastpath"
	"github.com/go-rdp/rdpcore/internal/protocol/mcs"
	"github.com/go-rdp/rdpcore/internal/protocol/pdu"
	"github.com/go-rdp/rdpcore/internal/protocol/rdpemt"
	"github.com/go-rdp/rdpcore/internal/protocol/x224"
	"github.com/go-rdp/rdpcore/internal/reassemble"
	"github.com/go-rdp/rdpcore/internal/security"
	"github.com/go-rdp/rdpcore/internal/transport/udp"
)

// Security header flags for PDUs the relay inspects
// (MS-RDPBCGR 2.2.8.1.1.2.1).
const (
	secTransportReq uint16 = 0x0002
	secTransportRsp uint16 = 0x0004
)

// connectionRequest is the credentials message a browser sends as its
// first WebSocket frame.
type connectionRequest struct {
	Type     string `json:"type"`
	Host     string `json:"host"`
	Domain   string `json:"domain"`
	User     string `json:"user"`
	Password string `json:"password"`
}

// Connect handles WebSocket connections for RDP sessions.
func Connect(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin != "" && !isAllowedOrigin(origin, r.Host) {
		http.Error(w, "Origin not allowed", http.StatusForbidden)
		return
	}

	server := websocket.Server{
		Handler: func(wsConn *websocket.Conn) {
			handleWebSocket(wsConn, r)
		},
		Handshake: func(cfg *websocket.Config, r *http.Request) error {
			cfg.Origin, _ = websocket.Origin(cfg, r)
			return nil
		},
	}
	server.ServeHTTP(w, r)
}

// connectionParams holds the validated query-string parameters.
type connectionParams struct {
	width      int
	height     int
	colorDepth int
	disableNLA bool
}

func parseConnectionParams(r *http.Request) (*connectionParams, error) {
	width, err := strconv.Atoi(r.URL.Query().Get("width"))
	if err != nil || width <= 0 || width > 8192 {
		return nil, errors.New("invalid width parameter (must be 1-8192)")
	}

	height, err := strconv.Atoi(r.URL.Query().Get("height"))
	if err != nil || height <= 0 || height > 8192 {
		return nil, errors.New("invalid height parameter (must be 1-8192)")
	}

	colorDepth := 16
	if cdStr := r.URL.Query().Get("colorDepth"); cdStr != "" {
		if cd, err := strconv.Atoi(cdStr); err == nil && (cd == 8 || cd == 15 || cd == 16 || cd == 24 || cd == 32) {
			colorDepth = cd
		}
	}

	return &connectionParams{
		width:      width,
		height:     height,
		colorDepth: colorDepth,
		disableNLA: r.URL.Query().Get("disableNLA") == "true",
	}, nil
}

// receiveCredentials waits for the first WebSocket message and validates
// it as a credentials request.
func receiveCredentials(wsConn *websocket.Conn) (*connectionRequest, error) {
	if err := wsConn.SetReadDeadline(time.Now().Add(30 * time.Second)); err != nil {
		return nil, errors.New("failed to set read deadline")
	}

	var credMsg []byte
	if err := websocket.Message.Receive(wsConn, &credMsg); err != nil {
		return nil, errors.New("failed to receive credentials")
	}

	if len(credMsg) > 1024*1024 {
		return nil, errors.New("credentials message too large")
	}

	if err := wsConn.SetReadDeadline(time.Time{}); err != nil {
		return nil, errors.New("failed to clear read deadline")
	}

	var creds connectionRequest
	if err := json.Unmarshal(credMsg, &creds); err != nil {
		return nil, errors.New("invalid credentials format")
	}

	if err := validateCredentials(&creds); err != nil {
		return nil, err
	}

	return &creds, nil
}

func validateCredentials(creds *connectionRequest) error {
	if creds.Type != "credentials" {
		return errors.New("expected credentials message")
	}

	// hostname cap per DNS, username cap per Windows
	if len(creds.Host) == 0 || len(creds.Host) > 253 {
		return errors.New("invalid hostname")
	}

	if len(creds.User) == 0 || len(creds.User) > 256 {
		return errors.New("invalid username")
	}

	if len(creds.Password) > 1024 {
		return errors.New("password too long")
	}

	return nil
}

func handleWebSocket(wsConn *websocket.Conn, r *http.Request) {
	defer func() { _ = wsConn.Close() }()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	params, err := parseConnectionParams(r)
	if err != nil {
		logging.Error("Invalid params: %v", err)
		sendError(wsConn, err.Error())
		return
	}

	creds, err := receiveCredentials(wsConn)
	if err != nil {
		logging.Error("Credentials error: %v", err)
		sendError(wsConn, err.Error())
		return
	}

	cfg := config.GetGlobalConfig()
	if cfg == nil {
		if cfg, err = config.Load(); err != nil {
			logging.Error("Config load: %v", err)
			sendError(wsConn, "Connection failed")
			return
		}
	}

	session, err := dialAndConnect(creds, params, cfg)
	if err != nil {
		var cerr *connector.Error
		if errors.As(err, &cerr) {
			logging.Error("RDP connect failed (%s): %v", cerr.Kind(), cerr)
		} else {
			logging.Error("RDP connect: %v", err)
		}
		sendError(wsConn, "Connection failed")
		return
	}
	defer session.close()

	logging.Info("RDP session to %s established (%dx%d)",
		security.SanitizeServerName(creds.Host), session.settings.DesktopWidth, session.settings.DesktopHeight)

	if err := sendConnected(wsConn, session.settings); err != nil {
		logging.Error("Send connected message: %v", err)
		return
	}

	session.relay(ctx, cancel, wsConn, cfg)
}

// rdpSession is one established connection: the (possibly TLS-wrapped)
// transport plus everything the connection sequence negotiated.
type rdpSession struct {
	conn      net.Conn
	transport transport
	reasm     *reassemble.Reassembler
	settings  *connector.Settings

	// sideband holds the UDP tunnel once the server requests one and
	// the gateway bootstraps it.
	sidebandMu sync.Mutex
	sideband   *udp.Tunnel
}

type transport interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
}

func (s *rdpSession) close() {
	s.sidebandMu.Lock()
	if s.sideband != nil {
		s.sideband.Close()
		s.sideband = nil
	}
	s.sidebandMu.Unlock()

	_ = s.conn.Close()
}

// dialAndConnect dials the server over TCP and pumps the sans-I/O
// connector to EventConnected, performing the TLS and CredSSP upgrades
// it asks for.
func dialAndConnect(creds *connectionRequest, params *connectionParams, cfg *config.Config) (*rdpSession, error) {
	host := security.SanitizeServerName(creds.Host)
	target := creds.Host
	if _, _, err := net.SplitHostPort(target); err != nil {
		target = net.JoinHostPort(host, "3389")
	}

	conn, err := net.DialTimeout("tcp", target, cfg.RDP.Timeout)
	if err != nil {
		return nil, fmt.Errorf("handler: dial %s: %w", target, err)
	}

	useNLA := cfg.Security.UseNLA && !params.disableNLA
	protocols := pdu.NegotiationProtocolSSL
	if useNLA {
		protocols |= pdu.NegotiationProtocolHybrid
	}

	connCfg := connector.Config{
		ServerName: host,
		Credentials: security.Credentials{
			Domain:   creds.Domain,
			Username: creds.User,
			Password: creds.Password,
		},
		DesktopWidth:      uint16(params.width),
		DesktopHeight:     uint16(params.height),
		ColorDepth:        params.colorDepth,
		SecurityProtocols: protocols,
		StaticChannels:    []string{"rdpdr", "cliprdr"},
		KeyboardLayout:    0x409,
		Autologon:         creds.Password != "",
		EnableRFX:         cfg.RDP.EnableRFX,
	}

	session := &rdpSession{conn: conn}
	if err := session.runSequence(connCfg, host, cfg); err != nil {
		conn.Close()
		return nil, err
	}

	return session, nil
}

func (s *rdpSession) runSequence(connCfg connector.Config, host string, cfg *config.Config) error {
	c := connector.New(connCfg)

	s.transport = s.conn
	s.reasm = reassemble.New(s.transport)

	var frame []byte
	for {
		out, ev, err := c.Step(frame)
		frame = nil
		if err != nil && ev.Kind != connector.EventFailed {
			return err
		}

		if len(out) > 0 {
			if _, werr := s.transport.Write(out); werr != nil {
				return fmt.Errorf("handler: writing to transport: %w", werr)
			}
		}

		switch ev.Kind {
		case connector.EventFailed:
			return ev.Err

		case connector.EventConnected:
			s.settings = ev.Settings
			return nil

		case connector.EventSecurityUpgrade:
			if uerr := s.upgradeSecurity(ev.Protocol, connCfg.Credentials, host, cfg); uerr != nil {
				fev := c.FailSecurityUpgrade(uerr)
				return fev.Err
			}

			out, ev, err = c.UpgradeSecurity()
			if err != nil {
				return err
			}
			if len(out) > 0 {
				if _, werr := s.transport.Write(out); werr != nil {
					return fmt.Errorf("handler: writing to transport: %w", werr)
				}
			}
			if ev.Kind == connector.EventFailed {
				return ev.Err
			}

		case connector.EventNeedMultitransport:
			// The GCC offer only announces the server's willingness;
			// the actual Initiate Multitransport Request arrives after
			// Connected and is handled by the relay. Continue.
			if _, ev, err = c.ContinueMultitransport(); err != nil {
				return err
			}
			if ev.Kind == connector.EventFailed {
				return ev.Err
			}

		case connector.EventAwaitMore:
			next, ok, rerr := s.reasm.NextFrame()
			if rerr != nil {
				return fmt.Errorf("handler: reading frame: %w", rerr)
			}
			if !ok {
				return errors.New("handler: connection closed during sequence")
			}
			frame = next
		}
	}
}

func (s *rdpSession) upgradeSecurity(protocol pdu.NegotiationProtocol, creds security.Credentials, host string, cfg *config.Config) error {
	serverName := cfg.Security.TLSServerName
	if serverName == "" || cfg.Security.AllowAnyTLSServer {
		serverName = host
	}

	tlsConn, peerSPKI, err := security.UpgradeTLS(s.conn, serverName, security.TLSConfig{
		InsecureSkipVerify: cfg.Security.SkipTLSValidation,
	})
	if err != nil {
		return fmt.Errorf("handler: TLS upgrade: %w", err)
	}

	s.transport = tlsConn
	s.reasm = reassemble.New(s.transport)

	if protocol.IsHybrid() || protocol.IsHybridEx() {
		if err := s.performCredSSP(creds, peerSPKI); err != nil {
			return fmt.Errorf("handler: CredSSP: %w", err)
		}
	}

	return nil
}

func (s *rdpSession) performCredSSP(creds security.Credentials, peerSPKI []byte) error {
	cs := security.NewCredSSP(creds.Domain, creds.Username, creds.Password, peerSPKI)

	var serverToken []byte
	buf := make([]byte, 16384)
	for {
		token, event, err := cs.Step(serverToken)
		if err != nil {
			return err
		}
		if len(token) > 0 {
			if _, werr := s.transport.Write(token); werr != nil {
				return werr
			}
		}
		if event == security.CredSSPDone {
			return nil
		}
		if event == security.CredSSPFailed {
			return errors.New("CredSSP exchange failed")
		}
		if event == security.CredSSPNeedNetwork {
			// only a Kerberos-backed provider asks for KDC round trips
			return errors.New("credential authority round trips are not supported")
		}

		n, rerr := s.transport.Read(buf)
		if rerr != nil {
			return rerr
		}
		serverToken = append([]byte(nil), buf[:n]...)
	}
}

// relay moves bytes until either side closes: server frames go to the
// browser as binary messages, browser binary messages are wrapped as
// Fast-Path input PDUs. When cfg.RDP.EnableUDP is set, multitransport
// requests from the server are intercepted and answered instead of being
// forwarded; otherwise they are relayed like any other frame.
func (s *rdpSession) relay(ctx context.Context, cancel context.CancelFunc, wsConn *websocket.Conn, cfg *config.Config) {
	var wsMu sync.Mutex
	var cancelOnce sync.Once
	safeCancel := func() { cancelOnce.Do(cancel) }

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.browserToServer(ctx, wsConn, safeCancel)
	}()

	s.serverToBrowser(ctx, wsConn, &wsMu, cfg)
	safeCancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		logging.Warn("Timeout waiting for input relay to exit")
	}
}

func (s *rdpSession) serverToBrowser(ctx context.Context, wsConn *websocket.Conn, wsMu *sync.Mutex, cfg *config.Config) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		frame, ok, err := s.reasm.NextFrame()
		if err != nil || !ok {
			if err != nil {
				logging.Debug("Session read: %v", err)
			}
			return
		}

		if cfg.RDP.EnableUDP {
			if req, chID, handled := s.matchTransportRequest(frame); handled {
				go s.bootstrapSideband(ctx, req, chID)
				continue
			}
		}

		wsMu.Lock()
		err = websocket.Message.Send(wsConn, frame)
		wsMu.Unlock()
		if err != nil {
			logging.Debug("WebSocket send: %v", err)
			return
		}
	}
}

func (s *rdpSession) browserToServer(ctx context.Context, wsConn *websocket.Conn, cancel func()) {
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		var data []byte
		if err := websocket.Message.Receive(wsConn, &data); err != nil {
			return
		}

		if len(data) == 0 {
			continue
		}

		// browser sends raw TS_FP_INPUT_EVENT bytes; wrap them in the
		// Fast-Path envelope before they hit the wire
		inputPDU := fastpath.NewInputEventPDU(data)
		if _, err := s.transport.Write(inputPDU.Serialize()); err != nil {
			logging.Debug("Session write: %v", err)
			return
		}
	}
}

// matchTransportRequest reports whether frame is an Initiate
// Multitransport Request on the message channel, returning the decoded
// request when it is.
func (s *rdpSession) matchTransportRequest(frame []byte) (*rdpemt.MultitransportRequest, uint16, bool) {
	if !s.settings.HasMessageChan || len(frame) == 0 || frame[0] != 0x03 {
		return nil, 0, false
	}

	r := bytes.NewReader(frame[4:]) // TPKT header already validated by the reassembler

	var dataHdr x224.Data
	if err := dataHdr.Deserialize(r); err != nil {
		return nil, 0, false
	}

	var domainPDU mcs.DomainPDU
	if err := domainPDU.Deserialize(r); err != nil || domainPDU.ServerSendDataIndication == nil {
		return nil, 0, false
	}

	if domainPDU.ServerSendDataIndication.ChannelId != s.settings.MessageChannelID {
		return nil, 0, false
	}

	flags, err := codec.UnwrapSecurityFlag(r)
	if err != nil || flags&secTransportReq == 0 {
		return nil, 0, false
	}

	req := &rdpemt.MultitransportRequest{}
	if err := req.Deserialize(r); err != nil {
		return nil, 0, false
	}

	return req, domainPDU.ServerSendDataIndication.ChannelId, true
}

// bootstrapSideband dials the UDP tunnel the server requested and sends
// back the Client Initiate Multitransport Response on the message
// channel.
func (s *rdpSession) bootstrapSideband(ctx context.Context, req *rdpemt.MultitransportRequest, channelID uint16) {
	hresult := rdpemt.HResultSuccess

	tunnel, err := udp.Bootstrap(ctx, net.JoinHostPort(s.conn.RemoteAddr().(*net.TCPAddr).IP.String(), "3389"), req)
	if err != nil {
		logging.Info("UDP sideband bootstrap failed: %v", err)
		hresult = rdpemt.HResultNotFound
	} else {
		s.sidebandMu.Lock()
		s.sideband = tunnel
		s.sidebandMu.Unlock()
		logging.Info("UDP sideband established (reliable=%t, request=%d)", tunnel.Reliable(), tunnel.RequestID())
	}

	resp := &rdpemt.MultitransportResponse{RequestID: req.RequestID, HResult: hresult}
	payload := codec.WrapSecurityFlag(secTransportRsp, resp.Serialize())

	mcsPDU := mcs.DomainPDU{
		Application: mcs.SendDataRequest,
		ClientSendDataRequest: &mcs.ClientSendDataRequest{
			Initiator: s.settings.UserChannelID,
			ChannelId: channelID,
			Data:      payload,
		},
	}

	out := wrapX224(mcsPDU.Serialize())
	if _, err := s.transport.Write(out); err != nil {
		logging.Debug("Multitransport response write: %v", err)
	}
}

// wrapX224 frames an MCS PDU in an X.224 Data TPDU and TPKT header.
func wrapX224(payload []byte) []byte {
	tpdu := x224.NewData(payload).Serialize()

	buf := make([]byte, 4+len(tpdu))
	buf[0] = 0x03
	buf[2] = byte(len(buf) >> 8)
	buf[3] = byte(len(buf))
	copy(buf[4:], tpdu)

	return buf
}

// connectedMessage tells the browser the sequence finished and what was
// negotiated.
type connectedMessage struct {
	Type          string   `json:"type"`
	Width         int      `json:"width"`
	Height        int      `json:"height"`
	IOChannel     int      `json:"ioChannel"`
	UserChannel   int      `json:"userChannel"`
	Channels      []string `json:"channels"`
	SecurityProto string   `json:"securityProtocol"`
}

func sendConnected(wsConn *websocket.Conn, settings *connector.Settings) error {
	msg := connectedMessage{
		Type:        "connected",
		Width:       int(settings.DesktopWidth),
		Height:      int(settings.DesktopHeight),
		IOChannel:   int(settings.IOChannelID),
		UserChannel: int(settings.UserChannelID),
	}

	for _, ch := range settings.Channels {
		if ch.Joined {
			msg.Channels = append(msg.Channels, ch.Name)
		}
	}

	switch {
	case settings.SecurityProtocol.IsHybridEx():
		msg.SecurityProto = "HYBRID_EX"
	case settings.SecurityProtocol.IsHybrid():
		msg.SecurityProto = "HYBRID"
	case settings.SecurityProtocol.IsSSL():
		msg.SecurityProto = "SSL"
	default:
		msg.SecurityProto = "RDP"
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return websocket.Message.Send(wsConn, string(data))
}

func sendError(wsConn *websocket.Conn, message string) {
	errMsg, err := json.Marshal(map[string]string{"type": "error", "message": message})
	if err != nil {
		return
	}

	if err := websocket.Message.Send(wsConn, string(errMsg)); err != nil {
		logging.Debug("Failed to send error message: %v", err)
	}
}

func isAllowedOrigin(origin, host string) bool {
	cfg := config.GetGlobalConfig()

	var allowed []string
	if cfg != nil {
		allowed = cfg.Security.AllowedOrigins
	}

	return IsOriginAllowed(origin, allowed, host)
}

// IsOriginAllowed checks origin against the configured allowlist. An
// empty allowlist admits same-host origins only.
func IsOriginAllowed(origin string, allowedOrigins []string, host string) bool {
	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}

	if len(allowedOrigins) == 0 {
		return strings.EqualFold(parsed.Host, host)
	}

	for _, allowed := range allowedOrigins {
		if allowed == "*" {
			return true
		}

		if strings.EqualFold(allowed, origin) || strings.EqualFold(allowed, parsed.Host) {
			return true
		}
	}

	return false
}
