package tools

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/tareqmamari/elasticsearch-mcp-server/internal/analysis"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/budget"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/capability"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/cluster"
	apperrors "github.com/tareqmamari/elasticsearch-mcp-server/internal/errors"
)

// DefaultQueryTimeout applies to search and SQL; they run longer than
// inventory calls
const DefaultQueryTimeout = 90 * time.Second

// SearchTool runs a Query DSL search
type SearchTool struct{ *BaseTool }

// NewSearchTool creates a new tool instance
func NewSearchTool(api *cluster.API, shaper *budget.Shaper, logger *zap.Logger) *SearchTool {
	return &SearchTool{NewBaseTool(api, shaper, logger)}
}

// Name returns the tool name
func (t *SearchTool) Name() string { return "search" }

// Description returns the tool description
func (t *SearchTool) Description() string {
	return "Run an Elasticsearch Query DSL search. Returns hit counts, the matching documents and any aggregations, condensed to fit the token budget."
}

// InputSchema returns the input schema
func (t *SearchTool) InputSchema() interface{} {
	return objectSchema(map[string]interface{}{
		"index": map[string]interface{}{
			"type":        "string",
			"description": "Index name, alias or wildcard pattern",
		},
		"query_body": map[string]interface{}{
			"type":        "object",
			"description": "Search request body, e.g. {\"query\": {\"match\": {\"message\": \"error\"}}, \"aggs\": {...}}",
		},
		"size": map[string]interface{}{
			"type":        "integer",
			"minimum":     0,
			"description": "Number of hits to return; overrides size in query_body",
		},
	}, "index", "query_body")
}

// Annotations returns tool hints
func (t *SearchTool) Annotations() *mcp.ToolAnnotations {
	return QueryAnnotations("Search")
}

// DefaultTimeout returns the query timeout
func (t *SearchTool) DefaultTimeout() time.Duration { return DefaultQueryTimeout }

// Execute executes the tool
func (t *SearchTool) Execute(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	opts, err := BudgetOptions(args)
	if err != nil {
		return HandleError(err), nil
	}
	index, err := GetStringParam(args, "index", true)
	if err != nil {
		return HandleError(err), nil
	}
	body, err := jsonParam(args, "query_body", true)
	if err != nil {
		return HandleError(err), nil
	}
	var size *int
	if _, ok := args["size"]; ok {
		n, err := GetIntParam(args, "size", false)
		if err != nil {
			return HandleError(err), nil
		}
		if n < 0 {
			return HandleError(apperrors.NewInvalidInput("size must not be negative")), nil
		}
		size = &n
	}

	resp, err := t.api.Search(ctx, strings.TrimSpace(index), body, size)
	if err != nil {
		return HandleError(err), nil
	}
	summary, err := analysis.SummarizeSearch(resp)
	if err != nil {
		return HandleError(apperrors.NewProtocol("search response could not be decoded").WithCause(err)), nil
	}
	return t.Shape(ctx, json.RawMessage(resp), summary, opts), nil
}

// jsonParam accepts an object or a JSON-encoded string
func jsonParam(args map[string]interface{}, key string, required bool) (json.RawMessage, error) {
	val, ok := args[key]
	if !ok || val == nil {
		if required {
			return nil, apperrors.NewMissingParameter(key)
		}
		return nil, nil
	}
	if s, ok := val.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" {
			if required {
				return nil, apperrors.NewMissingParameter(key)
			}
			return nil, nil
		}
		if !json.Valid([]byte(s)) {
			return nil, apperrors.NewInvalidInput(key + " is not valid JSON")
		}
		return json.RawMessage(s), nil
	}
	data, err := json.Marshal(val)
	if err != nil {
		return nil, apperrors.NewInvalidInput(key + " could not be encoded as JSON").WithCause(err)
	}
	return data, nil
}

// SQLQueryTool runs an SQL query
type SQLQueryTool struct{ *BaseTool }

// NewSQLQueryTool creates a new tool instance
func NewSQLQueryTool(api *cluster.API, shaper *budget.Shaper, logger *zap.Logger) *SQLQueryTool {
	return &SQLQueryTool{NewBaseTool(api, shaper, logger)}
}

// Name returns the tool name
func (t *SQLQueryTool) Name() string { return "sql_query" }

// Description returns the tool description
func (t *SQLQueryTool) Description() string {
	return "Run an Elasticsearch SQL query, e.g. SELECT level, COUNT(*) FROM \"logs-*\" GROUP BY level. Returns the rows as a table."
}

// InputSchema returns the input schema
func (t *SQLQueryTool) InputSchema() interface{} {
	return objectSchema(map[string]interface{}{
		"query": map[string]interface{}{
			"type":        "string",
			"description": "SQL query; quote index patterns with double quotes",
		},
		"fetch_size": map[string]interface{}{
			"type":        "integer",
			"minimum":     1,
			"description": "Maximum rows to return",
		},
	}, "query")
}

// Annotations returns tool hints
func (t *SQLQueryTool) Annotations() *mcp.ToolAnnotations {
	return QueryAnnotations("SQL Query")
}

// DefaultTimeout returns the query timeout
func (t *SQLQueryTool) DefaultTimeout() time.Duration { return DefaultQueryTimeout }

// RequiredFeature gates the tool on SQL support
func (t *SQLQueryTool) RequiredFeature() capability.Feature { return capability.SQL }

// Execute executes the tool
func (t *SQLQueryTool) Execute(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	opts, err := BudgetOptions(args)
	if err != nil {
		return HandleError(err), nil
	}
	query, err := GetStringParam(args, "query", true)
	if err != nil {
		return HandleError(err), nil
	}
	fetchSize, err := GetIntParam(args, "fetch_size", false)
	if err != nil {
		return HandleError(err), nil
	}
	if fetchSize < 0 {
		return HandleError(apperrors.NewInvalidInput("fetch_size must be positive")), nil
	}

	resp, err := t.api.SQL(ctx, query, fetchSize)
	if err != nil {
		return HandleError(err), nil
	}
	summary, err := analysis.SummarizeSQL(resp)
	if err != nil {
		return HandleError(apperrors.NewProtocol("SQL response could not be decoded").WithCause(err)), nil
	}
	return t.Shape(ctx, json.RawMessage(resp), summary, opts), nil
}
