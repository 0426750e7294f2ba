package tools

import (
	"context"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/tareqmamari/elasticsearch-mcp-server/internal/analysis"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/budget"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/capability"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/cluster"
)

// GetDataStreamsTool reports data stream health and rollover behavior
type GetDataStreamsTool struct{ *BaseTool }

// NewGetDataStreamsTool creates a new tool instance
func NewGetDataStreamsTool(api *cluster.API, shaper *budget.Shaper, logger *zap.Logger) *GetDataStreamsTool {
	return &GetDataStreamsTool{NewBaseTool(api, shaper, logger)}
}

// Name returns the tool name
func (t *GetDataStreamsTool) Name() string { return "get_data_streams" }

// Description returns the tool description
func (t *GetDataStreamsTool) Description() string {
	return "List data streams with their backing indices, sizes, ingestion rate and a health verdict (healthy, warning, critical) with the issues behind it."
}

// InputSchema returns the input schema
func (t *GetDataStreamsTool) InputSchema() interface{} {
	return objectSchema(map[string]interface{}{
		"name_pattern": map[string]interface{}{
			"type":        "string",
			"description": "Data stream name or wildcard pattern (default: all)",
		},
	})
}

// Annotations returns tool hints
func (t *GetDataStreamsTool) Annotations() *mcp.ToolAnnotations {
	return ReadOnlyAnnotations("Get Data Streams")
}

// RequiredFeature gates the tool on data stream support
func (t *GetDataStreamsTool) RequiredFeature() capability.Feature { return capability.DataStreams }

// Execute executes the tool
func (t *GetDataStreamsTool) Execute(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	opts, err := BudgetOptions(args)
	if err != nil {
		return HandleError(err), nil
	}
	pattern, err := GetStringParam(args, "name_pattern", false)
	if err != nil {
		return HandleError(err), nil
	}

	records, err := t.api.GetDataStreams(ctx, strings.TrimSpace(pattern))
	if err != nil {
		return HandleError(err), nil
	}

	caps := t.api.Capabilities()
	dsOpts := analysis.DataStreamOptions{
		SkipPolicyCheck: !caps.Has(capability.ILM) && !caps.Has(capability.DataStreamLifecycle),
	}
	return t.Shape(ctx, records, analysis.SummarizeDataStreams(records, dsOpts), opts), nil
}
