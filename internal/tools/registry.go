package tools

import (
	"go.uber.org/zap"

	"github.com/tareqmamari/elasticsearch-mcp-server/internal/budget"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/capability"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/cluster"
)

// GetAllTools returns every tool this server knows, whether or not the
// connected cluster supports it.
func GetAllTools(api *cluster.API, shaper *budget.Shaper, logger *zap.Logger) []Tool {
	return []Tool{
		// Cluster inventory
		NewGetClusterInfoTool(api, shaper, logger),
		NewListIndicesTool(api, shaper, logger),
		NewGetMappingsTool(api, shaper, logger),
		NewGetShardsTool(api, shaper, logger),
		NewGetDataStreamsTool(api, shaper, logger),

		// Queries
		NewSearchTool(api, shaper, logger),
		NewSQLQueryTool(api, shaper, logger),

		// Raw access
		NewExecuteRequestTool(api, shaper, logger),
	}
}

// AvailableTools drops the tools whose required feature caps lacks, logging
// each omission.
func AvailableTools(all []Tool, caps *capability.Set, logger *zap.Logger) []Tool {
	out := make([]Tool, 0, len(all))
	for _, tool := range all {
		if gated, ok := tool.(FeatureGated); ok {
			if f := gated.RequiredFeature(); f != "" && !caps.Has(f) {
				logger.Info("Tool not registered: cluster lacks required feature",
					zap.String("tool", tool.Name()),
					zap.String("feature", string(f)),
					zap.String("cluster_version", caps.Version().String()),
				)
				continue
			}
		}
		out = append(out, tool)
	}
	return out
}
