package tools

import "github.com/modelcontextprotocol/go-sdk/mcp"

func boolPtr(b bool) *bool {
	return &b
}

// ReadOnlyAnnotations returns annotations for inventory tools (cluster info,
// indices, mappings, shards, data streams). They never modify the cluster.
func ReadOnlyAnnotations(title string) *mcp.ToolAnnotations {
	return &mcp.ToolAnnotations{
		Title:          title,
		ReadOnlyHint:   true,
		IdempotentHint: true,
		OpenWorldHint:  boolPtr(false),
	}
}

// QueryAnnotations returns annotations for search and SQL tools
func QueryAnnotations(title string) *mcp.ToolAnnotations {
	return &mcp.ToolAnnotations{
		Title:          title,
		ReadOnlyHint:   true,
		IdempotentHint: true,
		OpenWorldHint:  boolPtr(false),
	}
}

// RawRequestAnnotations returns annotations for the pass-through request
// tool. Any method is allowed, so it may delete data.
func RawRequestAnnotations(title string) *mcp.ToolAnnotations {
	return &mcp.ToolAnnotations{
		Title:           title,
		ReadOnlyHint:    false,
		DestructiveHint: boolPtr(true),
		IdempotentHint:  false,
		OpenWorldHint:   boolPtr(false),
	}
}
