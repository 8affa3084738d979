// Package main implements a command-line RDP connection probe: it dials a
// server, drives internal/connector through the full handshake sequence,
// and prints the settings the two sides negotiated.
package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"strings"
	"time"

	"github.com/go-rdp/rdpcore/internal/connector"
	"github.com/go-rdp/rdpcore/internal/logging"
	"github.com/go-rdp/rdpcore/internal/protocol/pdu"
	"github.com/go-rdp/rdpcore/internal/reassemble"
	"github.com/go-rdp/rdpcore/internal/security"
)

var (
	appName    = "rdpconnect"
	appVersion = "dev" // injected at build time via -ldflags
)

func main() {
	args, action := parseFlags()
	if action != "" {
		return
	}
	if err := run(args); err != nil {
		log.Fatalln(err)
	}
}

// parsedArgs holds the parsed command line arguments.
type parsedArgs struct {
	target         string
	domain         string
	username       string
	password       string
	width          int
	height         int
	colorDepth     int
	keyboardLayout uint32
	staticChannels string
	useNLA         bool
	restricted     bool
	remoteApp      bool
	enableRFX      bool
	skipTLSVerify  bool
	tlsServerName  string
	logLevel       string
	dialTimeout    time.Duration
}

// parseFlags parses os.Args and returns the parsed args. Returns a
// non-empty action string if help/version was shown (caller returns early).
//
//go:noinline
func parseFlags() (parsedArgs, string) {
	return parseFlagsWithArgs(os.Args[1:])
}

func parseFlagsWithArgs(args []string) (parsedArgs, string) {
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	target := fs.String("target", "", "RDP server address (host:port, default port 3389)")
	domain := fs.String("domain", "", "Windows domain for logon")
	username := fs.String("username", "", "logon username")
	password := fs.String("password", "", "logon password")
	width := fs.Int("width", 1024, "desktop width")
	height := fs.Int("height", 768, "desktop height")
	colorDepth := fs.Int("color-depth", 32, "desktop color depth in bits")
	keyboardLayout := fs.Uint("keyboard-layout", 0x409, "keyboard layout identifier (LCID)")
	staticChannels := fs.String("channels", "", "comma-separated static virtual channel names to request")
	useNLA := fs.Bool("nla", true, "require Network Level Authentication (CredSSP/TLS)")
	restricted := fs.Bool("restricted-admin", false, "request Restricted Admin Mode")
	remoteApp := fs.Bool("remoteapp", false, "request RemoteApp mode")
	noRFX := fs.Bool("no-rfx", false, "disable RemoteFX codec support")
	skipTLSVerify := fs.Bool("tls-skip-verify", false, "skip TLS certificate validation")
	tlsServerName := fs.String("tls-server-name", "", "override TLS server name")
	logLevel := fs.String("log-level", "info", "log level (debug, info, warn, error)")
	dialTimeout := fs.Duration("dial-timeout", 10*time.Second, "TCP dial timeout")
	helpFlag := fs.Bool("help", false, "show help")
	versionFlag := fs.Bool("version", false, "show version")

	_ = fs.Parse(args)

	if *helpFlag {
		showHelp()
		return parsedArgs{}, "help"
	}
	if *versionFlag {
		showVersion()
		return parsedArgs{}, "version"
	}

	return parsedArgs{
		target:         strings.TrimSpace(*target),
		domain:         *domain,
		username:       *username,
		password:       *password,
		width:          *width,
		height:         *height,
		colorDepth:     *colorDepth,
		keyboardLayout: uint32(*keyboardLayout),
		staticChannels: strings.TrimSpace(*staticChannels),
		useNLA:         *useNLA,
		restricted:     *restricted,
		remoteApp:      *remoteApp,
		enableRFX:      !*noRFX,
		skipTLSVerify:  *skipTLSVerify,
		tlsServerName:  strings.TrimSpace(*tlsServerName),
		logLevel:       strings.TrimSpace(*logLevel),
		dialTimeout:    *dialTimeout,
	}, ""
}

func run(args parsedArgs) error {
	logging.SetLevelFromString(args.logLevel)

	if args.target == "" {
		return fmt.Errorf("rdpconnect: -target is required")
	}
	host, port := splitTarget(args.target)

	cfg := connector.Config{
		ServerName: host,
		Credentials: security.Credentials{
			Domain:   args.domain,
			Username: args.username,
			Password: args.password,
		},
		DesktopWidth:      uint16(args.width),
		DesktopHeight:     uint16(args.height),
		ColorDepth:        args.colorDepth,
		SecurityProtocols: securityProtocols(args.useNLA),
		StaticChannels:    splitChannels(args.staticChannels),
		KeyboardLayout:    args.keyboardLayout,
		Autologon:         args.username != "" && args.password != "",
		RemoteApp:         args.remoteApp,
		EnableRFX:         args.enableRFX,
		RestrictedAdmin:   args.restricted,
	}

	logging.Info("dialing %s:%s", host, port)
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, port), args.dialTimeout)
	if err != nil {
		return fmt.Errorf("rdpconnect: dial %s: %w", args.target, err)
	}
	defer conn.Close()

	settings, err := driveConnection(conn, host, cfg, args.skipTLSVerify, args.tlsServerName)
	if err != nil {
		return err
	}

	printSettings(settings)
	return nil
}

// transport is the minimal interface driveConnection needs from the
// network layer, satisfied by both net.Conn and the *tls.Conn
// UpgradeTLS hands back.
type transport interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
}

// driveConnection pumps internal/connector.Step until it reaches
// EventConnected or EventFailed, performing the transport-level TLS and
// CredSSP handshakes connector.EventSecurityUpgrade asks for along the
// way. This is the one place in the repo that owns real I/O; everything
// it calls into is sans-I/O.
func driveConnection(conn net.Conn, serverName string, cfg connector.Config, skipTLSVerify bool, tlsServerName string) (*connector.Settings, error) {
	c := connector.New(cfg)

	var cur transport = conn
	reasm := reassemble.New(cur)

	var frame []byte
	for {
		out, ev, err := c.Step(frame)
		frame = nil
		if err != nil && ev.Kind != connector.EventFailed {
			return nil, err
		}

		if len(out) > 0 {
			if _, werr := cur.Write(out); werr != nil {
				return nil, fmt.Errorf("rdpconnect: writing to transport: %w", werr)
			}
		}

		switch ev.Kind {
		case connector.EventFailed:
			return nil, ev.Err

		case connector.EventConnected:
			return ev.Settings, nil

		case connector.EventSecurityUpgrade:
			name := tlsServerName
			if name == "" {
				name = security.SanitizeServerName(serverName)
			}
			tlsConn, peerSPKI, uerr := security.UpgradeTLS(conn, name, security.TLSConfig{
				InsecureSkipVerify: skipTLSVerify,
			})
			if uerr != nil {
				fev := c.FailSecurityUpgrade(uerr)
				return nil, fev.Err
			}
			cur = tlsConn
			reasm = reassemble.New(cur)

			if ev.Protocol.IsHybrid() || ev.Protocol.IsHybridEx() {
				if cerr := performCredSSP(cur, cfg.Credentials, peerSPKI); cerr != nil {
					fev := c.FailSecurityUpgrade(cerr)
					return nil, fev.Err
				}
			}

			out, ev, err = c.UpgradeSecurity()
			if err != nil {
				return nil, err
			}
			if len(out) > 0 {
				if _, werr := cur.Write(out); werr != nil {
					return nil, fmt.Errorf("rdpconnect: writing to transport: %w", werr)
				}
			}
			if ev.Kind == connector.EventFailed {
				return nil, ev.Err
			}

		case connector.EventNeedMultitransport:
			// This CLI never dials the UDP sideband channel
			// internal/transport/udp exposes; decline and continue
			// over the existing TCP/TLS transport.
			out, ev, err = c.ContinueMultitransport()
			if err != nil {
				return nil, err
			}
			if len(out) > 0 {
				if _, werr := cur.Write(out); werr != nil {
					return nil, fmt.Errorf("rdpconnect: writing to transport: %w", werr)
				}
			}

		case connector.EventAwaitMore:
			next, ok, rerr := reasm.NextFrame()
			if rerr != nil {
				return nil, fmt.Errorf("rdpconnect: reading frame: %w", rerr)
			}
			if !ok {
				return nil, fmt.Errorf("rdpconnect: connection closed before EventConnected")
			}
			frame = next
		}
	}
}

// performCredSSP drives security.CredSSP's own Step loop over the TLS
// transport before handing control back to internal/connector, which
// resumes at MCS Basic Settings Exchange once NLA has finished.
func performCredSSP(conn transport, creds security.Credentials, peerSPKI []byte) error {
	cs := security.NewCredSSP(creds.Domain, creds.Username, creds.Password, peerSPKI)

	var serverToken []byte
	buf := make([]byte, 16384)
	for {
		token, event, err := cs.Step(serverToken)
		if err != nil {
			return err
		}
		if len(token) > 0 {
			if _, werr := conn.Write(token); werr != nil {
				return werr
			}
		}
		if event == security.CredSSPDone {
			return nil
		}
		if event == security.CredSSPFailed {
			return fmt.Errorf("security: CredSSP exchange failed")
		}
		if event == security.CredSSPNeedNetwork {
			// only a Kerberos-backed provider asks for KDC round trips
			return fmt.Errorf("security: credential authority round trips are not supported")
		}

		n, rerr := conn.Read(buf)
		if rerr != nil {
			return rerr
		}
		serverToken = append([]byte(nil), buf[:n]...)
	}
}

func securityProtocols(useNLA bool) pdu.NegotiationProtocol {
	if useNLA {
		return pdu.NegotiationProtocolSSL | pdu.NegotiationProtocolHybrid
	}
	return pdu.NegotiationProtocolSSL
}

func splitTarget(target string) (host, port string) {
	if h, p, err := net.SplitHostPort(target); err == nil {
		return h, p
	}
	return target, "3389"
}

func splitChannels(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func printSettings(s *connector.Settings) {
	fmt.Println("connected")
	fmt.Printf("  security protocol:   %s\n", protocolName(s.SecurityProtocol))
	fmt.Printf("  user channel id:     %d\n", s.UserChannelID)
	fmt.Printf("  i/o channel id:      %d\n", s.IOChannelID)
	if s.HasMessageChan {
		fmt.Printf("  message channel id:  %d\n", s.MessageChannelID)
	}
	fmt.Printf("  desktop:             %dx%d\n", s.DesktopWidth, s.DesktopHeight)
	fmt.Printf("  share id:            0x%08X\n", s.ShareID)
	fmt.Printf("  channels joined:     %d\n", len(s.Channels))
	for _, ch := range s.Channels {
		status := "joined"
		if !ch.Joined {
			status = "not joined"
		}
		fmt.Printf("    - %-16s mcs=%-6d mandatory=%-5t %s\n", ch.Name, ch.MCSChannelID, ch.Mandatory, status)
	}
}

func protocolName(p pdu.NegotiationProtocol) string {
	switch {
	case p.IsHybridEx():
		return "HYBRID_EX"
	case p.IsHybrid():
		return "HYBRID"
	case p.IsRDSTLS():
		return "RDSTLS"
	case p.IsSSL():
		return "SSL"
	default:
		return "RDP"
	}
}

func showHelp() {
	fmt.Println(appName)
	fmt.Println("USAGE: rdpconnect -target host:port -username U -password P [options]")
	fmt.Println("OPTIONS:")
	fmt.Println("  -target            RDP server address (host:port, default port 3389)")
	fmt.Println("  -domain            Windows domain for logon")
	fmt.Println("  -username           logon username")
	fmt.Println("  -password           logon password")
	fmt.Println("  -width, -height     desktop dimensions (default 1024x768)")
	fmt.Println("  -color-depth        desktop color depth in bits (default 32)")
	fmt.Println("  -channels           comma-separated static virtual channel names")
	fmt.Println("  -nla                require Network Level Authentication (default true)")
	fmt.Println("  -restricted-admin   request Restricted Admin Mode")
	fmt.Println("  -remoteapp          request RemoteApp mode")
	fmt.Println("  -no-rfx             disable RemoteFX codec support")
	fmt.Println("  -tls-skip-verify    skip TLS certificate validation")
	fmt.Println("  -tls-server-name    override TLS server name (SNI)")
	fmt.Println("  -log-level          log level (debug, info, warn, error)")
	fmt.Println("  -dial-timeout       TCP dial timeout (default 10s)")
	fmt.Println("  -version            show version information")
	fmt.Println("  -help               show this help message")
	fmt.Println("EXAMPLES: rdpconnect -target 10.0.0.5:3389 -username alice -password hunter2")
}

func showVersion() {
	fmt.Printf("%s %s\n", appName, appVersion)
}
