// Package tools provides the MCP tool implementations for Elasticsearch.
// Every tool renders its result through the response shaper so it fits the
// caller's token budget.
package tools

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/tareqmamari/elasticsearch-mcp-server/internal/capability"
)

// Tool defines the interface that all MCP tools must implement.
type Tool interface {
	// Name returns the unique identifier for this tool
	Name() string

	// Description returns a human-readable description of what this tool does
	Description() string

	// InputSchema returns the JSON Schema for the tool's input parameters
	InputSchema() interface{}

	// Execute runs the tool with the given arguments and returns the result.
	// Failures are reported as IsError results, not as errors.
	Execute(ctx context.Context, arguments map[string]interface{}) (*mcp.CallToolResult, error)

	// Annotations returns hints about tool behavior for LLMs
	Annotations() *mcp.ToolAnnotations

	// DefaultTimeout returns the recommended timeout for this tool.
	// Returns 0 to use the server default.
	DefaultTimeout() time.Duration
}

// FeatureGated is implemented by tools that only work when the cluster
// supports a feature. Such tools are not registered otherwise.
type FeatureGated interface {
	RequiredFeature() capability.Feature
}
