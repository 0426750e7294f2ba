// Package main implements the Elasticsearch MCP (Model Context Protocol) server.
//
// At startup the server probes the cluster for its version, resolves which
// features that version supports and builds the matching client. Tool
// responses are shaped to fit a per-call token budget.
//
// Configuration comes from an optional config file, environment variables and
// flags, in increasing order of precedence:
//   - ES_URL: cluster URL (required)
//   - ES_API_KEY or ES_USERNAME/ES_PASSWORD: credentials  // pragma: allowlist secret
//   - MAX_TOKEN_CALL: default token budget per tool call (default 20000)
//   - MCP_TRANSPORT: "stdio" (default) or "http"
//   - ENVIRONMENT: set to "production" for JSON logging
//
// Example usage:
//
//	export ES_URL="https://localhost:9200"
//	export ES_API_KEY="<your-api-key>"
//	./elasticsearch-mcp-server
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tareqmamari/elasticsearch-mcp-server/internal/config"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/server"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/tracing"
)

// Build information - set at build time via ldflags
var (
	version = "dev"
	commit  = "unknown"
	builtBy = "manual"
)

func main() {
	var flags config.Flags
	flagSet := pflag.NewFlagSet("elasticsearch-mcp-server", pflag.ContinueOnError)
	flags.AddFlags(flagSet)
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		os.Exit(2)
	}
	if flags.ShowVersion {
		fmt.Printf("elasticsearch-mcp-server %s (commit %s, built by %s)\n", version, commit, builtBy)
		return
	}

	// Load .env file if it exists (optional, for development)
	_ = godotenv.Load()

	cfg, err := config.Load(flags.ConfigFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	flags.Apply(cfg)

	logger, err := initLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	redacted := cfg.Redact()
	logger.Info("Starting Elasticsearch MCP Server",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("built_by", builtBy),
		zap.String("es_url", redacted.ESURL),
		zap.String("auth_mode", cfg.AuthMode()),
		zap.String("transport", cfg.Transport),
		zap.Int("max_token_call", cfg.MaxTokenCall),
	)

	shutdownTracing, err := tracing.InitOTel(tracing.OTelConfig{
		ServiceName:    server.ServerName,
		ServiceVersion: version,
		Environment:    cfg.Environment,
		Enabled:        cfg.EnableTracing,
	})
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("Failed to flush traces", zap.Error(err))
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mcpServer, err := server.New(ctx, cfg, logger, version)
	if err != nil {
		logger.Fatal("Failed to create MCP server", zap.Error(err))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- mcpServer.Start(ctx)
	}()

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-serverDone:
		if err != nil {
			logger.Error("Server error", zap.Error(err))
		}
		return
	}

	logger.Info("Initiating graceful shutdown", zap.Duration("timeout", cfg.ShutdownTimeout))
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	select {
	case <-serverDone:
		logger.Info("Server shutdown complete")
	case <-shutdownCtx.Done():
		logger.Warn("Shutdown timeout exceeded, forcing exit",
			zap.Duration("timeout", cfg.ShutdownTimeout))
	}
}

// initLogger builds a production logger when ENVIRONMENT=production and a
// development logger otherwise. Both write to stderr; stdout carries the
// stdio transport.
func initLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}

	var zcfg zap.Config
	if cfg.Environment == "production" {
		zcfg = zap.NewProductionConfig()
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	return zcfg.Build()
}
