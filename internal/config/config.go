// Package config provides configuration management for the Elasticsearch MCP server.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	apperrors "github.com/tareqmamari/elasticsearch-mcp-server/internal/errors"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/security"
)

// Transport names accepted by MCP_TRANSPORT and --transport
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// DefaultMaxTokenCall is the per-call token budget when MAX_TOKEN_CALL is unset.
const DefaultMaxTokenCall = 20000

// Config holds all configuration for the MCP server
type Config struct {
	// Cluster connection
	ESURL         string `json:"es_url" yaml:"es_url"`
	APIKey        string `json:"api_key,omitempty" yaml:"api_key,omitempty"`   // env only in practice
	Username      string `json:"username,omitempty" yaml:"username,omitempty"` // pairs with Password
	Password      string `json:"password,omitempty" yaml:"password,omitempty"`
	CACert        string `json:"ca_cert,omitempty" yaml:"ca_cert,omitempty"`
	SkipTLSVerify bool   `json:"ssl_skip_verify" yaml:"ssl_skip_verify"`

	// Response shaping
	MaxTokenCall int `json:"max_token_call" yaml:"max_token_call"`

	// HTTP client
	Timeout         time.Duration `json:"timeout" yaml:"timeout"`
	SearchTimeout   time.Duration `json:"search_timeout" yaml:"search_timeout"`
	ProbeTimeout    time.Duration `json:"probe_timeout" yaml:"probe_timeout"`
	MaxRetries      int           `json:"max_retries" yaml:"max_retries"`
	RetryWaitMin    time.Duration `json:"retry_wait_min" yaml:"retry_wait_min"`
	RetryWaitMax    time.Duration `json:"retry_wait_max" yaml:"retry_wait_max"`
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns"`
	IdleConnTimeout time.Duration `json:"idle_conn_timeout" yaml:"idle_conn_timeout"`

	// Rate limiting
	RateLimit       int  `json:"rate_limit" yaml:"rate_limit"`             // requests per second
	RateLimitBurst  int  `json:"rate_limit_burst" yaml:"rate_limit_burst"` // burst size
	EnableRateLimit bool `json:"enable_rate_limit" yaml:"enable_rate_limit"`

	// MCP transport
	Transport string `json:"transport" yaml:"transport"`
	HTTPAddr  string `json:"http_addr" yaml:"http_addr"`

	// Health and observability
	HealthPort      int    `json:"health_port" yaml:"health_port"` // 0 disables the health server
	HealthBindAddr  string `json:"health_bind_addr" yaml:"health_bind_addr"`
	MetricsEndpoint bool   `json:"metrics_endpoint" yaml:"metrics_endpoint"`
	EnableTracing   bool   `json:"enable_tracing" yaml:"enable_tracing"`
	EnableAuditLog  bool   `json:"enable_audit_log" yaml:"enable_audit_log"`

	// Logging
	LogLevel    string `json:"log_level" yaml:"log_level"`
	Environment string `json:"environment" yaml:"environment"`

	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Default returns a Config populated with defaults only.
func Default() *Config {
	return &Config{
		MaxTokenCall:    DefaultMaxTokenCall,
		Timeout:         60 * time.Second,
		SearchTimeout:   30 * time.Second,
		ProbeTimeout:    10 * time.Second,
		MaxRetries:      3,
		RetryWaitMin:    500 * time.Millisecond,
		RetryWaitMax:    10 * time.Second,
		MaxIdleConns:    10,
		IdleConnTimeout: 90 * time.Second,
		RateLimit:       50,
		RateLimitBurst:  10,
		EnableRateLimit: true,
		Transport:       TransportStdio,
		HTTPAddr:        "127.0.0.1:8080",
		HealthBindAddr:  "127.0.0.1",
		EnableTracing:   false,
		EnableAuditLog:  true,
		LogLevel:        "info",
		Environment:     "development",
		ShutdownTimeout: 10 * time.Second,
	}
}

// Load builds the configuration from defaults, an optional config file and
// environment variables, in that order of precedence. An empty configFile
// falls back to CONFIG_FILE.
func Load(configFile string) (*Config, error) {
	cfg := Default()

	if configFile == "" {
		configFile = os.Getenv("CONFIG_FILE")
	}
	if configFile != "" {
		if err := loadFromFile(cfg, configFile); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	loadFromEnv(cfg)

	return cfg, nil
}

func loadFromFile(cfg *Config, path string) error {
	cleanPath := filepath.Clean(path)

	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("invalid file path: path traversal detected")
	}

	data, err := os.ReadFile(cleanPath) // #nosec G304 -- path is validated above
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	switch strings.ToLower(filepath.Ext(cleanPath)) {
	case ".yaml", ".yml":
		err = decodeYAML(data, &fc)
	default:
		err = decodeJSONC(data, &fc)
	}
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", cleanPath, err)
	}

	return fc.apply(cfg)
}

func loadFromEnv(cfg *Config) {
	if v := os.Getenv("ES_URL"); v != "" {
		cfg.ESURL = v
	}
	if v := os.Getenv("ES_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("ES_USERNAME"); v != "" {
		cfg.Username = v
	}
	if v := os.Getenv("ES_PASSWORD"); v != "" {
		cfg.Password = v
	}
	if v := os.Getenv("ES_CA_CERT"); v != "" {
		cfg.CACert = v
	}
	if v := os.Getenv("ES_SSL_SKIP_VERIFY"); v != "" {
		cfg.SkipTLSVerify = v == "true" || v == "1"
	}
	if v := os.Getenv("MAX_TOKEN_CALL"); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			cfg.MaxTokenCall = n
		}
	}
	if v := os.Getenv("ES_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Timeout = d
		}
	}
	if v := os.Getenv("ES_SEARCH_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.SearchTimeout = d
		}
	}
	if v := os.Getenv("ES_PROBE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ProbeTimeout = d
		}
	}
	if v := os.Getenv("ES_MAX_RETRIES"); v != "" {
		var retries int
		if _, err := fmt.Sscanf(v, "%d", &retries); err == nil {
			cfg.MaxRetries = retries
		}
	}
	if v := os.Getenv("ES_RATE_LIMIT"); v != "" {
		var limit int
		if _, err := fmt.Sscanf(v, "%d", &limit); err == nil {
			cfg.RateLimit = limit
		}
	}
	if v := os.Getenv("ES_RATE_LIMIT_BURST"); v != "" {
		var burst int
		if _, err := fmt.Sscanf(v, "%d", &burst); err == nil {
			cfg.RateLimitBurst = burst
		}
	}
	if v := os.Getenv("ES_ENABLE_RATE_LIMIT"); v != "" {
		cfg.EnableRateLimit = v == "true" || v == "1"
	}
	if v := os.Getenv("MCP_TRANSPORT"); v != "" {
		cfg.Transport = v
	}
	if v := os.Getenv("MCP_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("HEALTH_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			cfg.HealthPort = port
		}
	}
	if v := os.Getenv("HEALTH_BIND_ADDR"); v != "" {
		cfg.HealthBindAddr = v
	}
	if v := os.Getenv("METRICS_ENDPOINT"); v != "" {
		cfg.MetricsEndpoint = v == "true" || v == "1"
	}
	if v := os.Getenv("ENABLE_TRACING"); v != "" {
		cfg.EnableTracing = v == "true" || v == "1"
	}
	if v := os.Getenv("ENABLE_AUDIT_LOG"); v != "" {
		cfg.EnableAuditLog = v == "true" || v == "1"
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("ENVIRONMENT"); v != "" {
		cfg.Environment = v
	}
	if v := os.Getenv("SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ShutdownTimeout = d
		}
	}
}

// Validate checks if the configuration is valid. Every failure is a
// CONFIGURATION_ERROR and is fatal at startup.
func (c *Config) Validate() error {
	if c.ESURL == "" {
		return apperrors.NewConfiguration("ES_URL is required")
	}
	u, err := url.Parse(c.ESURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return apperrors.NewConfiguration(fmt.Sprintf("ES_URL must be an http(s) URL, got %q", c.ESURL))
	}

	hasBasic := c.Username != "" || c.Password != ""
	if c.APIKey != "" && hasBasic {
		return apperrors.NewConfiguration("ES_API_KEY cannot be combined with ES_USERNAME/ES_PASSWORD")
	}
	if (c.Username == "") != (c.Password == "") {
		return apperrors.NewConfiguration("ES_USERNAME and ES_PASSWORD must be set together")
	}

	if c.CACert != "" {
		if _, err := os.Stat(c.CACert); err != nil {
			return apperrors.NewConfiguration(fmt.Sprintf("ES_CA_CERT %q is not readable", c.CACert)).WithCause(err)
		}
	}

	if c.MaxTokenCall <= 0 {
		return apperrors.NewConfiguration("MAX_TOKEN_CALL must be positive")
	}
	if c.Timeout <= 0 || c.SearchTimeout <= 0 || c.ProbeTimeout <= 0 {
		return apperrors.NewConfiguration("timeouts must be positive")
	}
	if c.MaxRetries < 0 {
		return apperrors.NewConfiguration("max_retries must be non-negative")
	}
	if c.RateLimit <= 0 && c.EnableRateLimit {
		return apperrors.NewConfiguration("rate_limit must be positive when rate limiting is enabled")
	}
	if c.Transport != TransportStdio && c.Transport != TransportHTTP {
		return apperrors.NewConfiguration(fmt.Sprintf("invalid transport %q (want stdio or http)", c.Transport))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		return apperrors.NewConfiguration(fmt.Sprintf("invalid log level: %s", c.LogLevel))
	}

	return nil
}

// AuthMode names the credential form in use: "api_key", "basic" or "none".
func (c *Config) AuthMode() string {
	switch {
	case c.APIKey != "":
		return "api_key"
	case c.Username != "":
		return "basic"
	default:
		return "none"
	}
}

// Redact returns a copy of the config with sensitive data removed
func (c *Config) Redact() *Config {
	redacted := *c
	redacted.ESURL = security.MaskURL(redacted.ESURL)
	if redacted.APIKey != "" {
		redacted.APIKey = MaskAPIKey(redacted.APIKey)
	}
	if redacted.Password != "" {
		redacted.Password = security.Redacted
	}
	return &redacted
}

// MaskAPIKey returns a masked version of an API key for safe logging
func MaskAPIKey(apiKey string) string {
	return security.MaskAPIKey(apiKey)
}
