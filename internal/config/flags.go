package config

import (
	"github.com/spf13/pflag"
)

// Flags holds command-line overrides. Only flags the user actually set are
// applied, so environment values survive unset flags.
type Flags struct {
	ConfigFile   string
	ESURL        string
	Transport    string
	HTTPAddr     string
	MaxTokenCall int
	LogLevel     string
	ShowVersion  bool

	flagSet *pflag.FlagSet
}

// AddFlags registers the server's flags on flagSet.
func (f *Flags) AddFlags(flagSet *pflag.FlagSet) {
	f.flagSet = flagSet
	flagSet.StringVar(&f.ConfigFile, "config", "", "path to a JSON, JSONC or YAML config file (overrides CONFIG_FILE)")
	flagSet.StringVar(&f.ESURL, "es-url", "", "cluster URL (overrides ES_URL)")
	flagSet.StringVar(&f.Transport, "transport", "", "MCP transport: stdio or http (overrides MCP_TRANSPORT)")
	flagSet.StringVar(&f.HTTPAddr, "http-addr", "", "listen address for the http transport (overrides MCP_HTTP_ADDR)")
	flagSet.IntVar(&f.MaxTokenCall, "max-token-call", 0, "per-call token budget (overrides MAX_TOKEN_CALL)")
	flagSet.StringVar(&f.LogLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")
	flagSet.BoolVar(&f.ShowVersion, "version", false, "print version and exit")
}

// Apply copies the flags that were set onto cfg.
func (f *Flags) Apply(cfg *Config) {
	if f.flagSet == nil {
		return
	}
	if f.flagSet.Changed("es-url") {
		cfg.ESURL = f.ESURL
	}
	if f.flagSet.Changed("transport") {
		cfg.Transport = f.Transport
	}
	if f.flagSet.Changed("http-addr") {
		cfg.HTTPAddr = f.HTTPAddr
	}
	if f.flagSet.Changed("max-token-call") {
		cfg.MaxTokenCall = f.MaxTokenCall
	}
	if f.flagSet.Changed("log-level") {
		cfg.LogLevel = f.LogLevel
	}
}
