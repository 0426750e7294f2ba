// Package resources provides MCP resource handlers for the Elasticsearch MCP
// server. Resources expose read-only cluster and server state to clients.
package resources

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/tareqmamari/elasticsearch-mcp-server/internal/audit"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/cluster"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/config"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/metrics"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/tools"
)

// Resource URIs
const (
	ClusterInfoURI   = "cluster://info"
	ConfigURI        = "config://current"
	MetricsURI       = "metrics://server"
	AuditURI         = "audit://recent"
	auditToolPrefix  = "audit://tool/"
	recentAuditLimit = 50
)

// Registry holds all registered resources and their handlers
type Registry struct {
	config  *config.Config
	api     *cluster.API
	metrics *metrics.Metrics
	audit   *audit.Logger
	logger  *zap.Logger
	version string
}

// NewRegistry creates a new resource registry
func NewRegistry(cfg *config.Config, api *cluster.API, m *metrics.Metrics, auditLogger *audit.Logger, logger *zap.Logger, version string) *Registry {
	return &Registry{
		config:  cfg,
		api:     api,
		metrics: m,
		audit:   auditLogger,
		logger:  logger,
		version: version,
	}
}

// RegisteredResource represents a resource with its definition and handler
type RegisteredResource struct {
	Resource *mcp.Resource
	Handler  mcp.ResourceHandler
}

// GetResources returns all registered resources with their handlers
func (r *Registry) GetResources() []RegisteredResource {
	return []RegisteredResource{
		r.clusterResource(),
		r.configResource(),
		r.metricsResource(),
		r.auditResource(),
	}
}

func (r *Registry) jsonResult(uri string, v interface{}) (*mcp.ReadResourceResult, error) {
	content, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		r.logger.Error("Failed to marshal resource", zap.String("uri", uri), zap.Error(err))
		return nil, err
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      uri,
				MIMEType: "application/json",
				Text:     string(content),
			},
		},
	}, nil
}

// clusterResource returns the cluster://info resource: detected version,
// enabled capabilities and the client in use.
func (r *Registry) clusterResource() RegisteredResource {
	return RegisteredResource{
		Resource: &mcp.Resource{
			URI:         ClusterInfoURI,
			Name:        ClusterInfoURI,
			Title:       "Cluster Info",
			Description: "Detected cluster version, enabled capabilities, client implementation and adapter",
			MIMEType:    "application/json",
		},
		Handler: func(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			overview, err := tools.BuildClusterOverview(ctx, r.api, r.logger)
			if err != nil {
				return nil, err
			}
			return r.jsonResult(ClusterInfoURI, map[string]interface{}{
				"overview":       overview,
				"server_version": r.version,
			})
		},
	}
}

// configResource returns the config://current resource with credentials masked
func (r *Registry) configResource() RegisteredResource {
	return RegisteredResource{
		Resource: &mcp.Resource{
			URI:         ConfigURI,
			Name:        ConfigURI,
			Title:       "Current Configuration",
			Description: "Server configuration with credentials masked",
			MIMEType:    "application/json",
		},
		Handler: func(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			redacted := r.config.Redact()
			return r.jsonResult(ConfigURI, map[string]interface{}{
				"connection": map[string]interface{}{
					"es_url":          redacted.ESURL,
					"auth_mode":       redacted.AuthMode(),
					"api_key":         redacted.APIKey,
					"username":        redacted.Username,
					"password":        redacted.Password,
					"ssl_skip_verify": redacted.SkipTLSVerify,
				},
				"budget": map[string]interface{}{
					"max_token_call": redacted.MaxTokenCall,
				},
				"timeouts": map[string]interface{}{
					"request": redacted.Timeout.String(),
					"search":  redacted.SearchTimeout.String(),
					"probe":   redacted.ProbeTimeout.String(),
				},
				"retry": map[string]interface{}{
					"max_retries":    redacted.MaxRetries,
					"retry_wait_min": redacted.RetryWaitMin.String(),
					"retry_wait_max": redacted.RetryWaitMax.String(),
				},
				"rate_limiting": map[string]interface{}{
					"enabled": redacted.EnableRateLimit,
					"limit":   redacted.RateLimit,
					"burst":   redacted.RateLimitBurst,
				},
				"server": map[string]interface{}{
					"version":     r.version,
					"transport":   redacted.Transport,
					"log_level":   redacted.LogLevel,
					"environment": redacted.Environment,
					"tracing":     redacted.EnableTracing,
					"audit_log":   redacted.EnableAuditLog,
				},
			})
		},
	}
}

// metricsResource returns the metrics://server resource
func (r *Registry) metricsResource() RegisteredResource {
	return RegisteredResource{
		Resource: &mcp.Resource{
			URI:         MetricsURI,
			Name:        MetricsURI,
			Title:       "Server Metrics",
			Description: "Request counts, latency, tool usage and token savings from response shaping",
			MIMEType:    "application/json",
		},
		Handler: func(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			stats := r.metrics.GetStats()
			return r.jsonResult(MetricsURI, map[string]interface{}{
				"requests": map[string]interface{}{
					"total":      stats.TotalRequests,
					"successful": stats.SuccessfulRequests,
					"failed":     stats.FailedRequests,
				},
				"rate_limiting": map[string]interface{}{
					"hits": stats.RateLimitHits,
				},
				"latency": map[string]interface{}{
					"average_ms": stats.AverageLatency.Milliseconds(),
					"max_ms":     stats.MaxLatency.Milliseconds(),
					"min_ms":     stats.MinLatency.Milliseconds(),
				},
				"errors_by_status": stats.ErrorsByStatus,
				"tools": map[string]interface{}{
					"usage":   stats.ToolUsage,
					"errors":  stats.ToolErrors,
					"latency": formatToolLatency(stats.ToolLatency),
				},
				"tokens": map[string]interface{}{
					"original":        stats.TokensOriginal,
					"optimized":       stats.TokensOptimized,
					"saved_percent":   stats.SavedPercent(),
					"budget_exceeded": stats.BudgetExceeded,
					"detail_levels":   stats.DetailLevels,
				},
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
		},
	}
}

// auditResource returns the audit://recent resource
func (r *Registry) auditResource() RegisteredResource {
	return RegisteredResource{
		Resource: &mcp.Resource{
			URI:         AuditURI,
			Name:        AuditURI,
			Title:       "Recent Tool Calls",
			Description: "The most recent tool calls with detail level, token counts and outcome, newest first",
			MIMEType:    "application/json",
		},
		Handler: func(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			return r.jsonResult(AuditURI, map[string]interface{}{
				"enabled": r.audit.IsEnabled(),
				"stats":   r.audit.GetStats(),
				"entries": r.audit.GetRecentEntries(recentAuditLimit),
			})
		},
	}
}

// formatToolLatency converts time.Duration map to milliseconds for JSON
func formatToolLatency(latency map[string]time.Duration) map[string]int64 {
	result := make(map[string]int64, len(latency))
	for tool, duration := range latency {
		result[tool] = duration.Milliseconds()
	}
	return result
}

// GetResourceTemplates returns the parameterized resources
func (r *Registry) GetResourceTemplates() []mcp.ResourceTemplate {
	return []mcp.ResourceTemplate{
		{
			URITemplate: auditToolPrefix + "{name}",
			Name:        "Tool Call History",
			Description: "Recent audit entries for one tool, e.g. audit://tool/list_indices",
			MIMEType:    "application/json",
		},
	}
}

// GetTemplateHandler returns a handler for resource templates
func (r *Registry) GetTemplateHandler() mcp.ResourceHandler {
	return func(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		uri := req.Params.URI
		name, ok := strings.CutPrefix(uri, auditToolPrefix)
		if !ok || name == "" {
			return nil, mcp.ResourceNotFoundError(uri)
		}
		return r.jsonResult(uri, map[string]interface{}{
			"tool":    name,
			"entries": r.audit.GetEntriesByTool(name, recentAuditLimit),
		})
	}
}
