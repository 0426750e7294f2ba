// Package server wires the MCP server: bootstrap, tool registration gated on
// cluster capabilities, prompts, resources and the stdio or HTTP transport.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/tareqmamari/elasticsearch-mcp-server/internal/audit"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/budget"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/config"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/health"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/metrics"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/prompts"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/resources"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/tools"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/tracing"
)

// ServerName is the MCP implementation name
const ServerName = "elasticsearch-mcp-server"

// Server represents the MCP server
type Server struct {
	mcpServer    *mcp.Server
	conn         *Connection
	config       *config.Config
	logger       *zap.Logger
	metrics      *metrics.Metrics
	audit        *audit.Logger
	version      string
	healthServer *health.Server
	toolNames    []string
}

// New bootstraps the cluster connection and creates the MCP server. It fails
// when the cluster cannot be reached or its version is unsupported.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, version string) (*Server, error) {
	metricsTracker := metrics.New(logger)

	conn, err := Bootstrap(ctx, cfg, metricsTracker, ServerName+"/"+version, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to cluster: %w", err)
	}

	shaper := budget.NewShaper(budget.NewEstimator(logger), cfg.MaxTokenCall, logger)
	return newServer(cfg, conn, shaper, metricsTracker, logger, version), nil
}

func newServer(cfg *config.Config, conn *Connection, shaper *budget.Shaper, m *metrics.Metrics, logger *zap.Logger, version string) *Server {
	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    ServerName,
		Version: version,
	}, &mcp.ServerOptions{
		HasTools:     true,
		HasPrompts:   true,
		HasResources: true,
	})

	s := &Server{
		mcpServer: mcpServer,
		conn:      conn,
		config:    cfg,
		logger:    logger,
		metrics:   m,
		audit:     audit.NewLogger(logger, cfg.EnableAuditLog),
		version:   version,
	}

	// Create health server if port is configured (port > 0)
	if cfg.HealthPort > 0 {
		var gatherer prometheus.Gatherer
		if cfg.MetricsEndpoint {
			gatherer = m.Registry()
		}
		s.healthServer = health.NewServer(health.New(conn.API, logger), logger, cfg.HealthPort, cfg.HealthBindAddr, gatherer)
		s.healthServer.SetCluster(conn.Info.Label())
	}

	all := tools.GetAllTools(conn.API, shaper, logger)
	for _, t := range tools.AvailableTools(all, conn.API.Capabilities(), logger) {
		s.registerTool(t)
	}
	s.logger.Info("Registered MCP tools",
		zap.Int("count", len(s.toolNames)),
		zap.Int("omitted", len(all)-len(s.toolNames)),
	)

	s.registerPrompts()
	s.registerResources()

	return s
}

// registerTool registers t with a handler that adds a timeout, a span, call
// stats, metrics and an audit entry around Execute.
func (s *Server) registerTool(t tools.Tool) {
	mcpTool := &mcp.Tool{
		Name:        t.Name(),
		Description: t.Description(),
		InputSchema: t.InputSchema(),
		Annotations: t.Annotations(),
	}
	s.mcpServer.AddTool(mcpTool, s.toolHandler(t))
	s.toolNames = append(s.toolNames, t.Name())
	s.logger.Debug("Registered tool", zap.String("tool", mcpTool.Name))
}

func (s *Server) toolHandler(t tools.Tool) mcp.ToolHandler {
	toolName := t.Name()
	return func(ctx context.Context, request *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()

		var args map[string]interface{}
		if len(request.Params.Arguments) > 0 {
			if err := json.Unmarshal(request.Params.Arguments, &args); err != nil {
				s.metrics.RecordToolExecution(toolName, false, time.Since(start))
				return nil, fmt.Errorf("failed to unmarshal arguments: %w", err)
			}
		}

		if timeout := t.DefaultTimeout(); timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		ctx, span := tracing.ToolSpan(ctx, toolName)
		defer span.End()
		ctx, stats := tools.WithCallStats(ctx)

		result, err := t.Execute(ctx, args)
		duration := time.Since(start)
		success := err == nil && (result == nil || !result.IsError)

		s.metrics.RecordToolExecution(toolName, success, duration)
		if stats.Shaped {
			s.metrics.RecordShaping(toolName, string(stats.Level), stats.Tokens.Original, stats.Tokens.Optimized, stats.Exceeded)
			tracing.SetShaping(span, string(stats.Level), stats.Tokens.Original, stats.Tokens.Optimized, stats.Tokens.Limit)
		}
		if err != nil {
			tracing.RecordError(span, err)
		} else if success {
			tracing.SetSuccess(span)
		}

		s.audit.Log(ctx, s.auditEntry(toolName, args, stats, result, err, success, duration))
		return result, err
	}
}

// errorCodePattern reads the code from a "[CODE] message" error result
var errorCodePattern = regexp.MustCompile(`^\[([A-Z_]+)\]`)

func (s *Server) auditEntry(toolName string, args map[string]interface{}, stats *tools.CallStats, result *mcp.CallToolResult, err error, success bool, duration time.Duration) audit.Entry {
	entry := audit.Entry{
		Tool:     toolName,
		Target:   auditTarget(args),
		Success:  success,
		Duration: duration,
	}
	if stats.Shaped {
		entry.Level = string(stats.Level)
		entry.TokensOriginal = stats.Tokens.Original
		entry.TokensOptimized = stats.Tokens.Optimized
		entry.TokenLimit = stats.Tokens.Limit
		entry.BudgetExceeded = stats.Exceeded
	}

	switch {
	case err != nil:
		entry.ErrorMsg = err.Error()
		entry.ErrorCode = "INTERNAL_ERROR"
		if errors.Is(err, context.DeadlineExceeded) {
			entry.ErrorCode = "TIMEOUT"
		}
	case result != nil && result.IsError && len(result.Content) > 0:
		if text, ok := result.Content[0].(*mcp.TextContent); ok {
			if m := errorCodePattern.FindStringSubmatch(text.Text); m != nil {
				entry.ErrorCode = m[1]
			}
			entry.ErrorMsg = firstLine(text.Text)
		}
	}
	return entry
}

// auditTarget names what the call operated on
func auditTarget(args map[string]interface{}) string {
	for _, key := range []string{"index", "index_pattern", "name_pattern", "path"} {
		if v, ok := args[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}

// registerPrompts registers all available MCP prompts
func (s *Server) registerPrompts() {
	registry := prompts.NewRegistry(s.logger)

	for _, p := range registry.GetPrompts() {
		s.mcpServer.AddPrompt(p.Prompt, p.Handler)
		s.logger.Debug("Registered prompt", zap.String("prompt", p.Prompt.Name))
	}

	s.logger.Info("Registered all MCP prompts", zap.Int("count", len(registry.GetPrompts())))
}

// registerResources registers all available MCP resources and resource templates
func (s *Server) registerResources() {
	registry := resources.NewRegistry(s.config, s.conn.API, s.metrics, s.audit, s.logger, s.version)

	for _, r := range registry.GetResources() {
		s.mcpServer.AddResource(r.Resource, r.Handler)
		s.logger.Debug("Registered resource", zap.String("uri", r.Resource.URI))
	}

	templateHandler := registry.GetTemplateHandler()
	for _, t := range registry.GetResourceTemplates() {
		s.mcpServer.AddResourceTemplate(&t, templateHandler)
		s.logger.Debug("Registered resource template", zap.String("uri_template", t.URITemplate))
	}

	s.logger.Info("Registered all MCP resources",
		zap.Int("static_count", len(registry.GetResources())),
		zap.Int("template_count", len(registry.GetResourceTemplates())),
	)
}

// ToolNames returns the registered tool names in registration order
func (s *Server) ToolNames() []string {
	return s.toolNames
}

// Start serves MCP on the configured transport until ctx is cancelled or the
// client disconnects.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting MCP server", zap.String("transport", s.config.Transport))

	if s.healthServer != nil {
		go func() {
			if err := s.healthServer.Start(); err != nil {
				s.logger.Error("Health server error", zap.Error(err))
			}
		}()
		s.healthServer.SetReady(true)
	}

	defer func() {
		s.metrics.LogStats()

		if s.healthServer != nil {
			s.healthServer.SetReady(false)
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.healthServer.Shutdown(shutdownCtx); err != nil {
				s.logger.Error("Failed to shutdown health server", zap.Error(err))
			}
		}

		if err := s.conn.Close(); err != nil {
			s.logger.Error("Failed to close cluster client", zap.Error(err))
		}
	}()

	if s.config.Transport == config.TransportHTTP {
		return s.serveHTTP(ctx)
	}
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}

// serveHTTP serves the streamable HTTP transport on /mcp
func (s *Server) serveHTTP(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.mcpServer
	}, nil))

	httpServer := &http.Server{
		Addr:              s.config.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("MCP HTTP endpoint listening", zap.String("addr", s.config.HTTPAddr), zap.String("path", "/mcp"))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}

// GetMetrics returns the server's metrics tracker for external access
func (s *Server) GetMetrics() *metrics.Metrics {
	return s.metrics
}

// GetAudit returns the audit logger
func (s *Server) GetAudit() *audit.Logger {
	return s.audit
}
