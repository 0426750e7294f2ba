package tools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/tareqmamari/elasticsearch-mcp-server/internal/analysis"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/budget"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/capability"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/cluster"
)

// GetClusterInfoTool reports version, health and capabilities
type GetClusterInfoTool struct{ *BaseTool }

// NewGetClusterInfoTool creates a new tool instance
func NewGetClusterInfoTool(api *cluster.API, shaper *budget.Shaper, logger *zap.Logger) *GetClusterInfoTool {
	return &GetClusterInfoTool{NewBaseTool(api, shaper, logger)}
}

// Name returns the tool name
func (t *GetClusterInfoTool) Name() string { return "get_cluster_info" }

// Description returns the tool description
func (t *GetClusterInfoTool) Description() string {
	return "Get the cluster's name, version, health and the features this server detected for it. Start here to learn what the other tools can do on this cluster."
}

// InputSchema returns the input schema
func (t *GetClusterInfoTool) InputSchema() interface{} {
	return objectSchema(map[string]interface{}{})
}

// Annotations returns tool hints
func (t *GetClusterInfoTool) Annotations() *mcp.ToolAnnotations {
	return ReadOnlyAnnotations("Get Cluster Info")
}

// Execute executes the tool
func (t *GetClusterInfoTool) Execute(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	opts, err := BudgetOptions(args)
	if err != nil {
		return HandleError(err), nil
	}

	overview, err := BuildClusterOverview(ctx, t.api, t.logger)
	if err != nil {
		return HandleError(err), nil
	}
	return t.Shape(ctx, overview, overview, opts), nil
}

// BuildClusterOverview gathers the cluster summary. A failed health call is
// logged and left out; the root document is required.
func BuildClusterOverview(ctx context.Context, api *cluster.API, logger *zap.Logger) (*analysis.ClusterOverview, error) {
	root, err := api.Root(ctx)
	if err != nil {
		return nil, err
	}
	health, err := api.Health(ctx)
	if err != nil {
		logger.Warn("Cluster health unavailable", zap.Error(err))
		health = nil
	}

	overview := &analysis.ClusterOverview{
		Version:        api.Version(),
		Root:           root,
		Health:         health,
		Implementation: api.Implementation(),
		Strategy:       api.Strategy().Name(),
	}
	caps := api.Capabilities()
	for _, f := range capability.Features() {
		if caps.Has(f) {
			overview.Enabled = append(overview.Enabled, string(f))
		} else {
			overview.Unavailable = append(overview.Unavailable, string(f))
		}
	}
	return overview, nil
}
