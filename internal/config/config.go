package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// globalConfig stores the configuration loaded with command-line overrides
// This allows other packages to access the same configuration that was loaded by the server
var (
	globalConfig *Config
	configMutex  sync.Mutex
)

// Config holds the application configuration
type Config struct {
	Server   ServerConfig   `json:"server"`
	RDP      RDPConfig      `json:"rdp"`
	Security SecurityConfig `json:"security"`
	Logging  LoggingConfig  `json:"logging"`
}

// LoadOptions holds command-line override options
type LoadOptions struct {
	Host              string
	Port              string
	LogLevel          string
	ConfigFile        string
	SkipTLSValidation bool
	AllowAnyTLSServer bool
	TLSServerName     string
	UseNLA            bool
	EnableRFX         *bool
	EnableUDP         *bool
	PreferPCMAudio    *bool
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Host         string        `json:"host" yaml:"host" env:"SERVER_HOST" default:"0.0.0.0"`
	Port         string        `json:"port" yaml:"port" env:"SERVER_PORT" default:"8080"`
	ReadTimeout  time.Duration `json:"readTimeout" yaml:"readTimeout" env:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `json:"writeTimeout" yaml:"writeTimeout" env:"SERVER_WRITE_TIMEOUT" default:"30s"`
	IdleTimeout  time.Duration `json:"idleTimeout" yaml:"idleTimeout" env:"SERVER_IDLE_TIMEOUT" default:"120s"`
}

// RDPConfig holds RDP-specific configuration
type RDPConfig struct {
	DefaultWidth   int           `json:"defaultWidth" yaml:"defaultWidth" env:"RDP_DEFAULT_WIDTH" default:"1024"`
	DefaultHeight  int           `json:"defaultHeight" yaml:"defaultHeight" env:"RDP_DEFAULT_HEIGHT" default:"768"`
	MaxWidth       int           `json:"maxWidth" yaml:"maxWidth" env:"RDP_MAX_WIDTH" default:"3840"`
	MaxHeight      int           `json:"maxHeight" yaml:"maxHeight" env:"RDP_MAX_HEIGHT" default:"2160"`
	BufferSize     int           `json:"bufferSize" yaml:"bufferSize" env:"RDP_BUFFER_SIZE" default:"65536"`
	Timeout        time.Duration `json:"timeout" yaml:"timeout" env:"RDP_TIMEOUT" default:"10s"`
	EnableRFX      bool          `json:"enableRFX" yaml:"enableRFX" env:"RDP_ENABLE_RFX" default:"true"`
	EnableUDP      bool          `json:"enableUDP" yaml:"enableUDP" env:"RDP_ENABLE_UDP" default:"false"`
	PreferPCMAudio bool          `json:"preferPCMAudio" yaml:"preferPCMAudio" env:"RDP_PREFER_PCM_AUDIO" default:"false"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	AllowedOrigins     []string `json:"allowedOrigins" yaml:"allowedOrigins" env:"ALLOWED_ORIGINS" default:""`
	MaxConnections     int      `json:"maxConnections" yaml:"maxConnections" env:"MAX_CONNECTIONS" default:"100"`
	EnableRateLimit    bool     `json:"enableRateLimit" yaml:"enableRateLimit" env:"ENABLE_RATE_LIMIT" default:"true"`
	RateLimitPerMinute int      `json:"rateLimitPerMinute" yaml:"rateLimitPerMinute" env:"RATE_LIMIT_PER_MINUTE" default:"60"`
	EnableTLS          bool     `json:"enableTLS" yaml:"enableTLS" env:"ENABLE_TLS" default:"false"`
	TLSCertFile        string   `json:"tlsCertFile" yaml:"tlsCertFile" env:"TLS_CERT_FILE" default:""`
	TLSKeyFile         string   `json:"tlsKeyFile" yaml:"tlsKeyFile" env:"TLS_KEY_FILE" default:""`
	MinTLSVersion      string   `json:"minTLSVersion" yaml:"minTLSVersion" env:"MIN_TLS_VERSION" default:"1.2"`
	SkipTLSValidation  bool     `json:"skipTLSValidation" yaml:"skipTLSValidation" env:"SKIP_TLS_VALIDATION" default:"false"`
	AllowAnyTLSServer  bool     `json:"allowAnyTLSServer" yaml:"allowAnyTLSServer" env:"TLS_ALLOW_ANY_SERVER_NAME" default:"false"`
	TLSServerName      string   `json:"tlsServerName" yaml:"tlsServerName" env:"TLS_SERVER_NAME" default:""`
	UseNLA             bool     `json:"useNLA" yaml:"useNLA" env:"USE_NLA" default:"true"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `json:"level" yaml:"level" env:"LOG_LEVEL" default:"info"`
	Format       string `json:"format" yaml:"format" env:"LOG_FORMAT" default:"text"`
	EnableCaller bool   `json:"enableCaller" yaml:"enableCaller" env:"LOG_ENABLE_CALLER" default:"false"`
	File         string `json:"file" yaml:"file" env:"LOG_FILE" default:""`
}

// Load loads configuration from environment variables with defaults
func Load() (*Config, error) {
	return LoadWithOverrides(LoadOptions{})
}

// LoadWithOverrides loads configuration with command-line overrides. Precedence,
// lowest to highest: built-in defaults, an optional YAML config file, environment
// variables, then explicit command-line overrides.
func LoadWithOverrides(opts LoadOptions) (*Config, error) {
	d := defaultConfig()

	if opts.ConfigFile != "" {
		fileCfg, err := loadConfigFile(opts.ConfigFile)
		if err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
		d = mergeFileConfig(d, fileCfg)
	}

	config := &Config{}

	// Server config
	config.Server.Host = getOverrideOrEnv(opts.Host, "SERVER_HOST", d.Server.Host)
	config.Server.Port = getOverrideOrEnv(opts.Port, "SERVER_PORT", d.Server.Port)
	config.Server.ReadTimeout = getDurationWithDefault("SERVER_READ_TIMEOUT", d.Server.ReadTimeout)
	config.Server.WriteTimeout = getDurationWithDefault("SERVER_WRITE_TIMEOUT", d.Server.WriteTimeout)
	config.Server.IdleTimeout = getDurationWithDefault("SERVER_IDLE_TIMEOUT", d.Server.IdleTimeout)

	// RDP config
	config.RDP.DefaultWidth = getIntWithDefault("RDP_DEFAULT_WIDTH", d.RDP.DefaultWidth)
	config.RDP.DefaultHeight = getIntWithDefault("RDP_DEFAULT_HEIGHT", d.RDP.DefaultHeight)
	config.RDP.MaxWidth = getIntWithDefault("RDP_MAX_WIDTH", d.RDP.MaxWidth)
	config.RDP.MaxHeight = getIntWithDefault("RDP_MAX_HEIGHT", d.RDP.MaxHeight)
	config.RDP.BufferSize = getIntWithDefault("RDP_BUFFER_SIZE", d.RDP.BufferSize)
	config.RDP.Timeout = getDurationWithDefault("RDP_TIMEOUT", d.RDP.Timeout)
	config.RDP.EnableRFX = getBoolWithDefault("RDP_ENABLE_RFX", d.RDP.EnableRFX)
	if opts.EnableRFX != nil {
		config.RDP.EnableRFX = *opts.EnableRFX
	}
	config.RDP.EnableUDP = getBoolWithDefault("RDP_ENABLE_UDP", d.RDP.EnableUDP)
	if opts.EnableUDP != nil {
		config.RDP.EnableUDP = *opts.EnableUDP
	}
	config.RDP.PreferPCMAudio = getBoolWithDefault("RDP_PREFER_PCM_AUDIO", d.RDP.PreferPCMAudio)
	if opts.PreferPCMAudio != nil {
		config.RDP.PreferPCMAudio = *opts.PreferPCMAudio
	}

	// Security config
	config.Security.AllowedOrigins = getStringSliceWithDefault("ALLOWED_ORIGINS", d.Security.AllowedOrigins)
	config.Security.MaxConnections = getIntWithDefault("MAX_CONNECTIONS", d.Security.MaxConnections)
	config.Security.EnableRateLimit = getBoolWithDefault("ENABLE_RATE_LIMIT", d.Security.EnableRateLimit)
	config.Security.RateLimitPerMinute = getIntWithDefault("RATE_LIMIT_PER_MINUTE", d.Security.RateLimitPerMinute)
	config.Security.EnableTLS = getBoolWithDefault("ENABLE_TLS", d.Security.EnableTLS)
	config.Security.TLSCertFile = getEnvWithDefault("TLS_CERT_FILE", d.Security.TLSCertFile)
	config.Security.TLSKeyFile = getEnvWithDefault("TLS_KEY_FILE", d.Security.TLSKeyFile)
	config.Security.MinTLSVersion = getEnvWithDefault("MIN_TLS_VERSION", d.Security.MinTLSVersion)
	config.Security.SkipTLSValidation = getBoolWithDefault("SKIP_TLS_VALIDATION", d.Security.SkipTLSValidation) || opts.SkipTLSValidation
	config.Security.AllowAnyTLSServer = getBoolWithDefault("TLS_ALLOW_ANY_SERVER_NAME", d.Security.AllowAnyTLSServer) || opts.AllowAnyTLSServer
	config.Security.TLSServerName = getOverrideOrEnv(opts.TLSServerName, "TLS_SERVER_NAME", d.Security.TLSServerName)
	// NLA enabled by default for security; set USE_NLA=false to disable
	config.Security.UseNLA = getBoolWithDefault("USE_NLA", d.Security.UseNLA)
	if opts.UseNLA {
		config.Security.UseNLA = true
	}

	// Logging config
	config.Logging.Level = getOverrideOrEnv(opts.LogLevel, "LOG_LEVEL", d.Logging.Level)
	config.Logging.Format = getEnvWithDefault("LOG_FORMAT", d.Logging.Format)
	config.Logging.EnableCaller = getBoolWithDefault("LOG_ENABLE_CALLER", d.Logging.EnableCaller)
	config.Logging.File = getEnvWithDefault("LOG_FILE", d.Logging.File)

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Store the configuration globally so other packages can access it
	configMutex.Lock()
	globalConfig = config
	configMutex.Unlock()

	return config, nil
}

// defaultConfig returns the built-in configuration defaults.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         "8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		RDP: RDPConfig{
			DefaultWidth:  1024,
			DefaultHeight: 768,
			MaxWidth:      3840,
			MaxHeight:     2160,
			BufferSize:    65536,
			Timeout:       10 * time.Second,
			EnableRFX:     true,
		},
		Security: SecurityConfig{
			AllowedOrigins:     []string{},
			MaxConnections:     100,
			EnableRateLimit:    true,
			RateLimitPerMinute: 60,
			MinTLSVersion:      "1.2",
			UseNLA:             true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// loadConfigFile reads and parses a YAML configuration file. Fields absent from
// the file are left at their zero value so mergeFileConfig can fall back to the
// surrounding defaults.
func loadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return &fileCfg, nil
}

// mergeFileConfig overlays non-zero-value fields from a parsed config file onto
// the built-in defaults, producing the baseline that environment variables and
// command-line overrides apply on top of.
func mergeFileConfig(defaults, file *Config) *Config {
	merged := *defaults

	if file.Server.Host != "" {
		merged.Server.Host = file.Server.Host
	}
	if file.Server.Port != "" {
		merged.Server.Port = file.Server.Port
	}
	if file.Server.ReadTimeout != 0 {
		merged.Server.ReadTimeout = file.Server.ReadTimeout
	}
	if file.Server.WriteTimeout != 0 {
		merged.Server.WriteTimeout = file.Server.WriteTimeout
	}
	if file.Server.IdleTimeout != 0 {
		merged.Server.IdleTimeout = file.Server.IdleTimeout
	}

	if file.RDP.DefaultWidth != 0 {
		merged.RDP.DefaultWidth = file.RDP.DefaultWidth
	}
	if file.RDP.DefaultHeight != 0 {
		merged.RDP.DefaultHeight = file.RDP.DefaultHeight
	}
	if file.RDP.MaxWidth != 0 {
		merged.RDP.MaxWidth = file.RDP.MaxWidth
	}
	if file.RDP.MaxHeight != 0 {
		merged.RDP.MaxHeight = file.RDP.MaxHeight
	}
	if file.RDP.BufferSize != 0 {
		merged.RDP.BufferSize = file.RDP.BufferSize
	}
	if file.RDP.Timeout != 0 {
		merged.RDP.Timeout = file.RDP.Timeout
	}
	merged.RDP.EnableRFX = file.RDP.EnableRFX || merged.RDP.EnableRFX
	merged.RDP.EnableUDP = file.RDP.EnableUDP || merged.RDP.EnableUDP
	merged.RDP.PreferPCMAudio = file.RDP.PreferPCMAudio || merged.RDP.PreferPCMAudio

	if len(file.Security.AllowedOrigins) > 0 {
		merged.Security.AllowedOrigins = file.Security.AllowedOrigins
	}
	if file.Security.MaxConnections != 0 {
		merged.Security.MaxConnections = file.Security.MaxConnections
	}
	if file.Security.RateLimitPerMinute != 0 {
		merged.Security.RateLimitPerMinute = file.Security.RateLimitPerMinute
	}
	merged.Security.EnableRateLimit = file.Security.EnableRateLimit || merged.Security.EnableRateLimit
	merged.Security.EnableTLS = file.Security.EnableTLS || merged.Security.EnableTLS
	if file.Security.TLSCertFile != "" {
		merged.Security.TLSCertFile = file.Security.TLSCertFile
	}
	if file.Security.TLSKeyFile != "" {
		merged.Security.TLSKeyFile = file.Security.TLSKeyFile
	}
	if file.Security.MinTLSVersion != "" {
		merged.Security.MinTLSVersion = file.Security.MinTLSVersion
	}
	merged.Security.SkipTLSValidation = file.Security.SkipTLSValidation || merged.Security.SkipTLSValidation
	merged.Security.AllowAnyTLSServer = file.Security.AllowAnyTLSServer || merged.Security.AllowAnyTLSServer
	if file.Security.TLSServerName != "" {
		merged.Security.TLSServerName = file.Security.TLSServerName
	}
	merged.Security.UseNLA = file.Security.UseNLA || merged.Security.UseNLA

	if file.Logging.Level != "" {
		merged.Logging.Level = file.Logging.Level
	}
	if file.Logging.Format != "" {
		merged.Logging.Format = file.Logging.Format
	}
	merged.Logging.EnableCaller = file.Logging.EnableCaller || merged.Logging.EnableCaller
	if file.Logging.File != "" {
		merged.Logging.File = file.Logging.File
	}

	return &merged
}

// GetGlobalConfig returns the globally stored configuration
// This should be used by packages that need access to the configuration
// loaded by the server with command-line overrides
func GetGlobalConfig() *Config {
	configMutex.Lock()
	defer configMutex.Unlock()
	return globalConfig
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}

	if port, err := strconv.Atoi(c.Server.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid server port: %s", c.Server.Port)
	}

	// Validate RDP config
	if c.RDP.DefaultWidth <= 0 || c.RDP.DefaultHeight <= 0 {
		return fmt.Errorf("default dimensions must be positive")
	}

	if c.RDP.MaxWidth < c.RDP.DefaultWidth || c.RDP.MaxHeight < c.RDP.DefaultHeight {
		return fmt.Errorf("max dimensions must be >= default dimensions")
	}

	if c.RDP.BufferSize <= 0 {
		return fmt.Errorf("buffer size must be positive")
	}

	// Validate security config
	if c.Security.EnableTLS {
		if c.Security.TLSCertFile == "" || c.Security.TLSKeyFile == "" {
			return fmt.Errorf("TLS certificate and key files must be specified when TLS is enabled")
		}

		if _, err := os.Stat(c.Security.TLSCertFile); os.IsNotExist(err) {
			return fmt.Errorf("TLS certificate file does not exist: %s", c.Security.TLSCertFile)
		}

		if _, err := os.Stat(c.Security.TLSKeyFile); os.IsNotExist(err) {
			return fmt.Errorf("TLS key file does not exist: %s", c.Security.TLSKeyFile)
		}
	}

	if c.Security.MaxConnections <= 0 {
		return fmt.Errorf("max connections must be positive")
	}

	if c.Security.RateLimitPerMinute <= 0 {
		return fmt.Errorf("rate limit per minute must be positive")
	}

	// Validate logging config
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
	}

	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolWithDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getDurationWithDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getStringSliceWithDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return splitString(value, ",")
	}
	return defaultValue
}

// getOverrideOrEnv returns command-line override value, env value, or default
func getOverrideOrEnv(override, envKey, defaultValue string) string {
	if override != "" {
		return override
	}
	return getEnvWithDefault(envKey, defaultValue)
}

func splitString(s, sep string) []string {
	if s == "" {
		return []string{}
	}

	var result []string
	for _, part := range strings.Split(s, sep) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
