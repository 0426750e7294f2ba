package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/tareqmamari/elasticsearch-mcp-server/internal/analysis"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/budget"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/client"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/cluster"
	apperrors "github.com/tareqmamari/elasticsearch-mcp-server/internal/errors"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/security"
)

var allowedMethods = []string{
	http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodHead, http.MethodPatch,
}

// ExecuteRequestTool sends an arbitrary REST request to the cluster
type ExecuteRequestTool struct{ *BaseTool }

// NewExecuteRequestTool creates a new tool instance
func NewExecuteRequestTool(api *cluster.API, shaper *budget.Shaper, logger *zap.Logger) *ExecuteRequestTool {
	return &ExecuteRequestTool{NewBaseTool(api, shaper, logger)}
}

// Name returns the tool name
func (t *ExecuteRequestTool) Name() string { return "execute_es_request" }

// Description returns the tool description
func (t *ExecuteRequestTool) Description() string {
	return "Send any REST request to the cluster, e.g. GET /_cat/nodes or POST /my-index/_refresh. Use the dedicated tools when one fits; this one can modify or delete data."
}

// InputSchema returns the input schema
func (t *ExecuteRequestTool) InputSchema() interface{} {
	return objectSchema(map[string]interface{}{
		"method": map[string]interface{}{
			"type":        "string",
			"enum":        allowedMethods,
			"description": "HTTP method (default GET)",
		},
		"path": map[string]interface{}{
			"type":        "string",
			"description": "Request path with optional query string, e.g. /_cluster/settings?include_defaults=true",
		},
		"body": map[string]interface{}{
			"type":        []string{"object", "string"},
			"description": "Request body; a string is sent as-is (use for NDJSON)",
		},
		"headers": map[string]interface{}{
			"type":                 "object",
			"additionalProperties": map[string]interface{}{"type": "string"},
			"description":          "Extra request headers",
		},
	}, "path")
}

// Annotations returns tool hints
func (t *ExecuteRequestTool) Annotations() *mcp.ToolAnnotations {
	return RawRequestAnnotations("Execute Elasticsearch Request")
}

// Execute executes the tool
func (t *ExecuteRequestTool) Execute(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	opts, err := BudgetOptions(args)
	if err != nil {
		return HandleError(err), nil
	}
	req, err := buildRawRequest(args)
	if err != nil {
		return HandleError(err), nil
	}

	t.logger.Info("Executing raw cluster request",
		zap.String("method", req.Method),
		zap.String("path", security.MaskURL(req.Path)),
		zap.Any("headers", security.MaskHeaders(req.Headers)),
	)

	resp, err := t.api.Request(ctx, req)
	if err != nil {
		return HandleError(err), nil
	}

	var raw any = string(resp.Body)
	if json.Valid(resp.Body) {
		raw = json.RawMessage(resp.Body)
	}
	result := t.Shape(ctx, raw, analysis.SummarizeJSON(resp.Body), opts)
	prependText(result, fmt.Sprintf("HTTP %d %s\n\n", resp.StatusCode, http.StatusText(resp.StatusCode)))
	result.IsError = resp.IsError()
	return result, nil
}

func buildRawRequest(args map[string]interface{}) (*client.Request, error) {
	method, err := GetStringParam(args, "method", false)
	if err != nil {
		return nil, err
	}
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = http.MethodGet
	}
	valid := false
	for _, m := range allowedMethods {
		if m == method {
			valid = true
			break
		}
	}
	if !valid {
		return nil, apperrors.NewInvalidInput(fmt.Sprintf("unsupported method %q (valid: %s)", method, strings.Join(allowedMethods, ", ")))
	}

	rawPath, err := GetStringParam(args, "path", true)
	if err != nil {
		return nil, err
	}
	rawPath = strings.TrimSpace(rawPath)
	if !strings.HasPrefix(rawPath, "/") {
		rawPath = "/" + rawPath
	}
	req := &client.Request{Method: method, Path: rawPath}
	if path, rawQuery, ok := strings.Cut(rawPath, "?"); ok {
		values, err := url.ParseQuery(rawQuery)
		if err != nil {
			return nil, apperrors.NewInvalidInput("invalid query string in path").WithCause(err)
		}
		req.Path = path
		req.Query = make(map[string]string, len(values))
		for k := range values {
			req.Query[k] = values.Get(k)
		}
	}

	if s, ok := args["body"].(string); ok {
		if strings.TrimSpace(s) != "" {
			req.Body = s
		}
	} else if req.Body, err = jsonParam(args, "body", false); err != nil {
		return nil, err
	}

	headers, err := GetObjectParam(args, "headers", false)
	if err != nil {
		return nil, err
	}
	if len(headers) > 0 {
		req.Headers = make(map[string]string, len(headers))
		for k, v := range headers {
			s, ok := v.(string)
			if !ok {
				return nil, apperrors.NewInvalidInput(fmt.Sprintf("header %s must be a string", k))
			}
			req.Headers[k] = s
		}
	}
	return req, nil
}

func prependText(result *mcp.CallToolResult, prefix string) {
	if len(result.Content) == 0 {
		result.Content = []mcp.Content{&mcp.TextContent{Text: prefix}}
		return
	}
	if tc, ok := result.Content[0].(*mcp.TextContent); ok {
		tc.Text = prefix + tc.Text
	}
}
