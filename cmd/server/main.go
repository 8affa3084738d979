// Package main implements the RDP WebSocket gateway server: it exposes
// the /connect endpoint internal/handler serves and proxies established
// sessions between browsers and RDP servers.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-rdp/rdpcore/internal/config"
	"github.com/go-rdp/rdpcore/internal/handler"
	"github.com/go-rdp/rdpcore/internal/logging"
)

var (
	appName    = "rdp-gateway"
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
	host           string
	port           string
	logLevel       string
	configFile     string
	skipTLS        bool
	allowAnyTLS    bool
	tlsServerName  string
	useNLA         bool
	enableRFX      *bool // nil = use default, non-nil = override
	enableUDP      *bool
	preferPCMAudio *bool
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
	hostFlag := fs.String("host", "", "gateway listen host")
	portFlag := fs.String("port", "", "gateway listen port")
	logLevelFlag := fs.String("log-level", "", "log level (debug, info, warn, error)")
	configFile := fs.String("config", "", "path to a YAML configuration file")
	skipTLS := fs.Bool("tls-skip-verify", false, "skip TLS certificate validation")
	allowAnyTLS := fs.Bool("tls-allow-any-server-name", false, "let each session's target host serve as SNI instead of a pinned name")
	tlsServerName := fs.String("tls-server-name", "", "override TLS server name")
	useNLA := fs.Bool("nla", false, "require Network Level Authentication (CredSSP)")
	noRFX := fs.Bool("no-rfx", false, "disable RemoteFX codec support")
	enableUDP := fs.Bool("udp", false, "enable the UDP sideband transport (experimental)")
	preferPCMAudio := fs.Bool("prefer-pcm-audio", false, "prefer PCM audio over compressed formats")
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

	// tri-state overrides: only explicit flags override file/env values
	var enableRFXPtr *bool
	if *noRFX {
		rfxValue := false
		enableRFXPtr = &rfxValue
	}

	var enableUDPPtr *bool
	if *enableUDP {
		udpValue := true
		enableUDPPtr = &udpValue
	}

	var preferPCMAudioPtr *bool
	if *preferPCMAudio {
		pcmValue := true
		preferPCMAudioPtr = &pcmValue
	}

	return parsedArgs{
		host:           strings.TrimSpace(*hostFlag),
		port:           strings.TrimSpace(*portFlag),
		logLevel:       strings.TrimSpace(*logLevelFlag),
		configFile:     strings.TrimSpace(*configFile),
		skipTLS:        *skipTLS,
		allowAnyTLS:    *allowAnyTLS,
		tlsServerName:  strings.TrimSpace(*tlsServerName),
		useNLA:         *useNLA,
		enableRFX:      enableRFXPtr,
		enableUDP:      enableUDPPtr,
		preferPCMAudio: preferPCMAudioPtr,
	}, ""
}

func run(args parsedArgs) error {
	opts := config.LoadOptions{
		Host:              args.host,
		Port:              args.port,
		LogLevel:          args.logLevel,
		ConfigFile:        args.configFile,
		SkipTLSValidation: args.skipTLS,
		AllowAnyTLSServer: args.allowAnyTLS,
		TLSServerName:     args.tlsServerName,
		UseNLA:            args.useNLA,
		EnableRFX:         args.enableRFX,
		EnableUDP:         args.enableUDP,
		PreferPCMAudio:    args.preferPCMAudio,
	}

	cfg, err := config.LoadWithOverrides(opts)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	setupLogging(cfg.Logging)

	server := createServer(cfg)
	udpStatus := "disabled"
	if cfg.RDP.EnableUDP {
		udpStatus = "enabled"
	}
	logging.Info("Starting gateway on %s:%s (TLS=%t, UDP=%s)", cfg.Server.Host, cfg.Server.Port, cfg.Security.EnableTLS, udpStatus)

	if err := startServer(server, cfg); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func createServer(cfg *config.Config) *http.Server {
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", healthHandler)
	mux.HandleFunc("/connect", handler.Connect)

	h := applySecurityMiddleware(mux, cfg)
	h = requestLoggingMiddleware(h)

	return &http.Server{
		Addr:         addr,
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "%s %s ok\n", appName, appVersion)
}

func applySecurityMiddleware(next http.Handler, cfg *config.Config) http.Handler {
	if cfg == nil {
		return securityHeadersMiddleware(corsMiddleware(next, nil))
	}

	h := next
	if cfg.Security.EnableRateLimit {
		h = rateLimitMiddleware(h, cfg.Security.RateLimitPerMinute)
	}
	h = corsMiddleware(h, cfg.Security.AllowedOrigins)
	h = securityHeadersMiddleware(h)

	return h
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; connect-src 'self' ws: wss:")

		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(next http.Handler, allowedOrigins []string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if isOriginAllowed(origin, allowedOrigins, r.Host) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func isOriginAllowed(origin string, allowedOrigins []string, host string) bool {
	if origin == "" {
		return false
	}

	allowed := allowedOrigins
	if len(allowed) == 0 {
		allowed = []string{"*"}
	}
	return handler.IsOriginAllowed(origin, allowed, host)
}

type rateLimiter struct {
	mu       sync.Mutex
	capacity float64
	tokens   float64
	last     time.Time
}

func newRateLimiter(ratePerMinute int) *rateLimiter {
	capacity := float64(ratePerMinute)
	if capacity <= 0 {
		capacity = 1
	}
	return &rateLimiter{capacity: capacity, tokens: capacity, last: time.Now()}
}

func (rl *rateLimiter) allow(now time.Time, refillPerSecond float64) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	elapsed := now.Sub(rl.last).Seconds()
	if elapsed > 0 {
		rl.tokens += elapsed * refillPerSecond
		if rl.tokens > rl.capacity {
			rl.tokens = rl.capacity
		}
		rl.last = now
	}
	if rl.tokens >= 1 {
		rl.tokens -= 1
		return true
	}
	return false
}

func rateLimitMiddleware(next http.Handler, ratePerMinute int) http.Handler {
	refillPerSecond := float64(ratePerMinute) / 60.0
	var clients sync.Map

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ratePerMinute <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		key := r.RemoteAddr
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			key = host
		}

		value, _ := clients.LoadOrStore(key, newRateLimiter(ratePerMinute))
		limiter := value.(*rateLimiter)
		if !limiter.allow(time.Now(), refillPerSecond) {
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func setupLogging(cfg config.LoggingConfig) {
	log.SetFlags(log.LstdFlags | log.LUTC)

	level := cfg.Level
	if level == "" {
		level = "info"
	}
	logging.SetLevelFromString(level)
}

func requestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logging.Debug("%s %s %s %s", r.RemoteAddr, r.Method, r.URL.Path, time.Since(start))
	})
}

func startServer(server *http.Server, _ *config.Config) error {
	if server == nil {
		return fmt.Errorf("server is nil")
	}

	err := server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}

func showHelp() {
	fmt.Println(appName)
	fmt.Println("USAGE: rdp-gateway [options]")
	fmt.Println("OPTIONS:")
	fmt.Println("  -host                      gateway listen host (default 0.0.0.0)")
	fmt.Println("  -port                      gateway listen port (default 8080)")
	fmt.Println("  -config                    path to a YAML configuration file")
	fmt.Println("  -log-level                 log level (debug, info, warn, error)")
	fmt.Println("  -tls-skip-verify           skip TLS certificate validation")
	fmt.Println("  -tls-server-name           override TLS server name (SNI)")
	fmt.Println("  -tls-allow-any-server-name let each session's target host serve as SNI")
	fmt.Println("  -nla                       require Network Level Authentication")
	fmt.Println("  -no-rfx                    disable RemoteFX codec support")
	fmt.Println("  -udp                       enable the UDP sideband transport (experimental)")
	fmt.Println("  -prefer-pcm-audio          prefer PCM audio over compressed formats")
	fmt.Println("  -version                   show version information")
	fmt.Println("  -help                      show this help message")
	fmt.Println("ENVIRONMENT VARIABLES: SERVER_HOST, SERVER_PORT, LOG_LEVEL, SKIP_TLS_VALIDATION, TLS_SERVER_NAME, TLS_ALLOW_ANY_SERVER_NAME, USE_NLA, RDP_ENABLE_RFX, RDP_ENABLE_UDP, RDP_PREFER_PCM_AUDIO")
	fmt.Println("EXAMPLES: rdp-gateway -host 0.0.0.0 -port 8080")
}

func showVersion() {
	fmt.Printf("%s %s\n", appName, appVersion)
}
