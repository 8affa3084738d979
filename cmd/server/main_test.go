package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-rdp/rdpcore/internal/config"
)

func TestParseFlagsWithArgs(t *testing.T) {
	args, action := parseFlagsWithArgs([]string{
		"-host", "127.0.0.1",
		"-port", "9090",
		"-log-level", "debug",
		"-config", "gateway.yaml",
		"-tls-skip-verify",
		"-udp",
		"-no-rfx",
	})

	require.Empty(t, action)
	assert.Equal(t, "127.0.0.1", args.host)
	assert.Equal(t, "9090", args.port)
	assert.Equal(t, "debug", args.logLevel)
	assert.Equal(t, "gateway.yaml", args.configFile)
	assert.True(t, args.skipTLS)
	require.NotNil(t, args.enableUDP)
	assert.True(t, *args.enableUDP)
	require.NotNil(t, args.enableRFX)
	assert.False(t, *args.enableRFX)
	assert.Nil(t, args.preferPCMAudio)
}

func TestParseFlagsWithArgs_Defaults(t *testing.T) {
	args, action := parseFlagsWithArgs(nil)

	require.Empty(t, action)
	assert.Empty(t, args.host)
	assert.Nil(t, args.enableRFX)
	assert.Nil(t, args.enableUDP)
	assert.False(t, args.useNLA)
}

func TestParseFlagsWithArgs_Help(t *testing.T) {
	_, action := parseFlagsWithArgs([]string{"-help"})
	assert.Equal(t, "help", action)
}

func TestParseFlagsWithArgs_Version(t *testing.T) {
	_, action := parseFlagsWithArgs([]string{"-version"})
	assert.Equal(t, "version", action)
}

func TestHealthHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	healthHandler(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestHealthHandler_MethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	healthHandler(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	securityHeadersMiddleware(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
}

func TestCORSMiddleware_AllowsConfiguredOrigin(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Origin", "https://app.example.com")

	rec := httptest.NewRecorder()
	corsMiddleware(next, []string{"app.example.com"}).ServeHTTP(rec, r)

	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSMiddleware_OptionsShortCircuits(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })

	r := httptest.NewRequest(http.MethodOptions, "/", nil)
	rec := httptest.NewRecorder()
	corsMiddleware(next, nil).ServeHTTP(rec, r)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, called)
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter(2)
	now := time.Now()

	assert.True(t, rl.allow(now, 2.0/60.0))
	assert.True(t, rl.allow(now, 2.0/60.0))
	assert.False(t, rl.allow(now, 2.0/60.0))

	// tokens refill with elapsed time
	assert.True(t, rl.allow(now.Add(time.Minute), 2.0/60.0))
}

func TestRateLimitMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	h := rateLimitMiddleware(next, 1)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:55555"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestCreateServer(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	server := createServer(cfg)
	require.NotNil(t, server)
	assert.Equal(t, cfg.Server.Host+":"+cfg.Server.Port, server.Addr)
	assert.Equal(t, cfg.Server.ReadTimeout, server.ReadTimeout)
}

func TestStartServer_NilServer(t *testing.T) {
	assert.Error(t, startServer(nil, nil))
}
