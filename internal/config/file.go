package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// fileConfig is the on-disk shape of a config file. Pointer fields let a file
// override only the keys it mentions; durations are written as "30s", "1m".
type fileConfig struct {
	ESURL         *string `json:"es_url" yaml:"es_url"`
	Username      *string `json:"username" yaml:"username"`
	CACert        *string `json:"ca_cert" yaml:"ca_cert"`
	SkipTLSVerify *bool   `json:"ssl_skip_verify" yaml:"ssl_skip_verify"`

	MaxTokenCall *int `json:"max_token_call" yaml:"max_token_call"`

	Timeout       *string `json:"timeout" yaml:"timeout"`
	SearchTimeout *string `json:"search_timeout" yaml:"search_timeout"`
	ProbeTimeout  *string `json:"probe_timeout" yaml:"probe_timeout"`
	MaxRetries    *int    `json:"max_retries" yaml:"max_retries"`

	RateLimit       *int  `json:"rate_limit" yaml:"rate_limit"`
	RateLimitBurst  *int  `json:"rate_limit_burst" yaml:"rate_limit_burst"`
	EnableRateLimit *bool `json:"enable_rate_limit" yaml:"enable_rate_limit"`

	Transport *string `json:"transport" yaml:"transport"`
	HTTPAddr  *string `json:"http_addr" yaml:"http_addr"`

	HealthPort      *int    `json:"health_port" yaml:"health_port"`
	HealthBindAddr  *string `json:"health_bind_addr" yaml:"health_bind_addr"`
	MetricsEndpoint *bool   `json:"metrics_endpoint" yaml:"metrics_endpoint"`
	EnableTracing   *bool   `json:"enable_tracing" yaml:"enable_tracing"`
	EnableAuditLog  *bool   `json:"enable_audit_log" yaml:"enable_audit_log"`

	LogLevel    *string `json:"log_level" yaml:"log_level"`
	Environment *string `json:"environment" yaml:"environment"`
}

// decodeJSONC accepts JSON with comments and trailing commas.
func decodeJSONC(data []byte, fc *fileConfig) error {
	return json.Unmarshal(jsonc.ToJSON(data), fc)
}

func decodeYAML(data []byte, fc *fileConfig) error {
	return yaml.Unmarshal(data, fc)
}

// apply copies every key present in the file onto cfg. Secrets (API key,
// password) are deliberately not read from files.
func (fc *fileConfig) apply(cfg *Config) error {
	setString(&cfg.ESURL, fc.ESURL)
	setString(&cfg.Username, fc.Username)
	setString(&cfg.CACert, fc.CACert)
	setBool(&cfg.SkipTLSVerify, fc.SkipTLSVerify)
	setInt(&cfg.MaxTokenCall, fc.MaxTokenCall)
	setInt(&cfg.MaxRetries, fc.MaxRetries)
	setInt(&cfg.RateLimit, fc.RateLimit)
	setInt(&cfg.RateLimitBurst, fc.RateLimitBurst)
	setBool(&cfg.EnableRateLimit, fc.EnableRateLimit)
	setString(&cfg.Transport, fc.Transport)
	setString(&cfg.HTTPAddr, fc.HTTPAddr)
	setInt(&cfg.HealthPort, fc.HealthPort)
	setString(&cfg.HealthBindAddr, fc.HealthBindAddr)
	setBool(&cfg.MetricsEndpoint, fc.MetricsEndpoint)
	setBool(&cfg.EnableTracing, fc.EnableTracing)
	setBool(&cfg.EnableAuditLog, fc.EnableAuditLog)
	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.Environment, fc.Environment)

	durations := []struct {
		name string
		src  *string
		dst  *time.Duration
	}{
		{"timeout", fc.Timeout, &cfg.Timeout},
		{"search_timeout", fc.SearchTimeout, &cfg.SearchTimeout},
		{"probe_timeout", fc.ProbeTimeout, &cfg.ProbeTimeout},
	}
	for _, d := range durations {
		if d.src == nil {
			continue
		}
		parsed, err := time.ParseDuration(*d.src)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", d.name, *d.src, err)
		}
		*d.dst = parsed
	}
	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}
