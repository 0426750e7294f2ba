package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/tareqmamari/elasticsearch-mcp-server/internal/analysis"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/budget"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/cluster"
	apperrors "github.com/tareqmamari/elasticsearch-mcp-server/internal/errors"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/model"
)

// ListIndicesTool lists indices grouped by time-series pattern
type ListIndicesTool struct{ *BaseTool }

// NewListIndicesTool creates a new tool instance
func NewListIndicesTool(api *cluster.API, shaper *budget.Shaper, logger *zap.Logger) *ListIndicesTool {
	return &ListIndicesTool{NewBaseTool(api, shaper, logger)}
}

// Name returns the tool name
func (t *ListIndicesTool) Name() string { return "list_indices" }

// Description returns the tool description
func (t *ListIndicesTool) Description() string {
	return "List indices with health, document counts and sizes. Time-series indices (logs-2024.01.01, metrics-000042) are grouped by pattern; large inventories are summarized instead of itemized."
}

// InputSchema returns the input schema
func (t *ListIndicesTool) InputSchema() interface{} {
	return objectSchema(map[string]interface{}{
		"index_pattern": map[string]interface{}{
			"type":        "string",
			"description": "Index name or wildcard pattern, e.g. logs-* (default: all indices)",
		},
		"health": map[string]interface{}{
			"type":        "string",
			"enum":        []string{"green", "yellow", "red"},
			"description": "Only return indices with this health",
		},
		"exclude_system": map[string]interface{}{
			"type":        "boolean",
			"description": "Leave out dot-prefixed system indices",
		},
	})
}

// Annotations returns tool hints
func (t *ListIndicesTool) Annotations() *mcp.ToolAnnotations {
	return ReadOnlyAnnotations("List Indices")
}

// Execute executes the tool
func (t *ListIndicesTool) Execute(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	opts, err := BudgetOptions(args)
	if err != nil {
		return HandleError(err), nil
	}
	pattern, err := GetStringParam(args, "index_pattern", false)
	if err != nil {
		return HandleError(err), nil
	}
	health, err := GetStringParam(args, "health", false)
	if err != nil {
		return HandleError(err), nil
	}
	health = strings.ToLower(strings.TrimSpace(health))
	switch health {
	case "", "green", "yellow", "red":
	default:
		return HandleError(apperrors.NewInvalidInput(fmt.Sprintf("invalid health %q (valid: green, yellow, red)", health))), nil
	}
	excludeSystem, err := GetBoolParam(args, "exclude_system", false)
	if err != nil {
		return HandleError(err), nil
	}

	indices, err := t.api.ListIndices(ctx, strings.TrimSpace(pattern))
	if err != nil {
		return HandleError(err), nil
	}
	indices = filterIndices(indices, health, excludeSystem)

	return t.Shape(ctx, indices, analysis.SummarizeIndices(indices), opts), nil
}

func filterIndices(indices []model.IndexRecord, health string, excludeSystem bool) []model.IndexRecord {
	if health == "" && !excludeSystem {
		return indices
	}
	out := make([]model.IndexRecord, 0, len(indices))
	for _, idx := range indices {
		if health != "" && idx.Health != health {
			continue
		}
		if excludeSystem && analysis.IsSystemIndex(idx.Name) {
			continue
		}
		out = append(out, idx)
	}
	return out
}

// GetMappingsTool returns flattened field mappings
type GetMappingsTool struct{ *BaseTool }

// NewGetMappingsTool creates a new tool instance
func NewGetMappingsTool(api *cluster.API, shaper *budget.Shaper, logger *zap.Logger) *GetMappingsTool {
	return &GetMappingsTool{NewBaseTool(api, shaper, logger)}
}

// Name returns the tool name
func (t *GetMappingsTool) Name() string { return "get_mappings" }

// Description returns the tool description
func (t *GetMappingsTool) Description() string {
	return "Get the field mappings of one or more indices, flattened to dotted paths with each field's type and whether it is searchable, aggregatable and sortable. Multiple indices are compared for type conflicts."
}

// InputSchema returns the input schema
func (t *GetMappingsTool) InputSchema() interface{} {
	return objectSchema(map[string]interface{}{
		"index": map[string]interface{}{
			"type":        "string",
			"description": "Index name, alias or wildcard pattern",
		},
		"field_pattern": map[string]interface{}{
			"type":        "string",
			"description": "Glob over dotted field paths, e.g. host.* or *.ip",
		},
		"field_types": map[string]interface{}{
			"type":        "array",
			"items":       map[string]interface{}{"type": "string"},
			"description": "Only fields of these types, e.g. [\"keyword\", \"date\"]",
		},
		"capability": map[string]interface{}{
			"type":        "string",
			"enum":        analysis.CapabilityClasses(),
			"description": "Only fields with this capability",
		},
	}, "index")
}

// Annotations returns tool hints
func (t *GetMappingsTool) Annotations() *mcp.ToolAnnotations {
	return ReadOnlyAnnotations("Get Mappings")
}

// Execute executes the tool
func (t *GetMappingsTool) Execute(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	opts, err := BudgetOptions(args)
	if err != nil {
		return HandleError(err), nil
	}
	index, err := GetStringParam(args, "index", true)
	if err != nil {
		return HandleError(err), nil
	}
	var filter analysis.FieldFilter
	if filter.Pattern, err = GetStringParam(args, "field_pattern", false); err != nil {
		return HandleError(err), nil
	}
	if filter.Types, err = GetStringArrayParam(args, "field_types", false); err != nil {
		return HandleError(err), nil
	}
	if filter.Class, err = GetStringParam(args, "capability", false); err != nil {
		return HandleError(err), nil
	}

	properties, err := t.api.GetMappings(ctx, strings.TrimSpace(index))
	if err != nil {
		return HandleError(err), nil
	}
	summary, err := analysis.SummarizeMappings(properties, filter)
	if err != nil {
		return HandleError(apperrors.NewInvalidInput(err.Error())), nil
	}
	return t.Shape(ctx, properties, summary, opts), nil
}

// GetShardsTool analyzes shard sizing and distribution
type GetShardsTool struct{ *BaseTool }

// NewGetShardsTool creates a new tool instance
func NewGetShardsTool(api *cluster.API, shaper *budget.Shaper, logger *zap.Logger) *GetShardsTool {
	return &GetShardsTool{NewBaseTool(api, shaper, logger)}
}

// Name returns the tool name
func (t *GetShardsTool) Name() string { return "get_shards" }

// Description returns the tool description
func (t *GetShardsTool) Description() string {
	return "Analyze shard health: size and document histograms, oversized and unassigned shards, hot shards and node balance."
}

// InputSchema returns the input schema
func (t *GetShardsTool) InputSchema() interface{} {
	return objectSchema(map[string]interface{}{
		"index_pattern": map[string]interface{}{
			"type":        "string",
			"description": "Index name or wildcard pattern (default: all indices)",
		},
		"size_threshold_gb": map[string]interface{}{
			"type":        "number",
			"description": fmt.Sprintf("Shard size considered too large, in GB (default %g)", analysis.DefaultSizeThresholdGB),
		},
		"docs_threshold_m": map[string]interface{}{
			"type":        "number",
			"description": fmt.Sprintf("Shard document count considered too large, in millions (default %g)", analysis.DefaultDocsThresholdM),
		},
	})
}

// Annotations returns tool hints
func (t *GetShardsTool) Annotations() *mcp.ToolAnnotations {
	return ReadOnlyAnnotations("Get Shards")
}

// Execute executes the tool
func (t *GetShardsTool) Execute(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	opts, err := BudgetOptions(args)
	if err != nil {
		return HandleError(err), nil
	}
	pattern, err := GetStringParam(args, "index_pattern", false)
	if err != nil {
		return HandleError(err), nil
	}
	var shardOpts analysis.ShardOptions
	if shardOpts.SizeThresholdGB, err = GetFloatParam(args, "size_threshold_gb", false); err != nil {
		return HandleError(err), nil
	}
	if shardOpts.DocsThresholdM, err = GetFloatParam(args, "docs_threshold_m", false); err != nil {
		return HandleError(err), nil
	}
	if shardOpts.SizeThresholdGB < 0 || shardOpts.DocsThresholdM < 0 {
		return HandleError(apperrors.NewInvalidInput("thresholds must be positive")), nil
	}

	shards, err := t.api.ListShards(ctx, strings.TrimSpace(pattern))
	if err != nil {
		return HandleError(err), nil
	}
	return t.Shape(ctx, shards, analysis.AnalyzeShards(shards, shardOpts), opts), nil
}
