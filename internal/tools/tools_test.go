package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tareqmamari/elasticsearch-mcp-server/internal/budget"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/capability"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/client"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/cluster"
	apperrors "github.com/tareqmamari/elasticsearch-mcp-server/internal/errors"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/version"
)

type fakeHandle struct {
	requests []*client.Request
	route    func(req *client.Request) *client.Response
}

func (f *fakeHandle) Implementation() string   { return "fake" }
func (f *fakeHandle) Ping(context.Context) error { return nil }
func (f *fakeHandle) Close() error             { return nil }

func (f *fakeHandle) Info(ctx context.Context) (*client.Response, error) {
	return f.Do(ctx, &client.Request{Method: http.MethodGet, Path: "/"})
}

func (f *fakeHandle) Do(_ context.Context, req *client.Request) (*client.Response, error) {
	f.requests = append(f.requests, req)
	return f.route(req), nil
}

func ok(body string) *client.Response {
	return &client.Response{StatusCode: http.StatusOK, Body: []byte(body)}
}

func newTestAPI(t *testing.T, major, minor int, route func(req *client.Request) *client.Response) (*cluster.API, *fakeHandle) {
	t.Helper()
	info := version.Info{Major: major, Minor: minor, Full: fmt.Sprintf("%d.%d.0", major, minor), Distribution: version.Elasticsearch}
	strategy, err := capability.SelectStrategy(info)
	require.NoError(t, err)
	h := &fakeHandle{route: route}
	return cluster.New(h, info, strategy, capability.Resolve(info), cluster.Options{}, zap.NewNop()), h
}

func newTestShaper() *budget.Shaper {
	return budget.NewShaper(budget.NewApproxEstimator(), 20000, zap.NewNop())
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestBudgetOptions(t *testing.T) {
	tests := []struct {
		name    string
		args    map[string]interface{}
		want    budget.Options
		wantErr apperrors.ErrorCode
	}{
		{name: "defaults", args: map[string]interface{}{}, want: budget.Options{Level: budget.LevelAuto}},
		{
			name: "all set",
			args: map[string]interface{}{"detail_level": "Compact", "max_tokens": float64(3000), "break_token_rule": true, "enforce_budget": "true"},
			want: budget.Options{Level: budget.LevelCompact, Budget: 3000, AllowOverride: true, Enforce: true},
		},
		{name: "unknown level", args: map[string]interface{}{"detail_level": "verbose"}, wantErr: apperrors.CodeInvalidInput},
		{name: "negative budget", args: map[string]interface{}{"max_tokens": float64(-1)}, wantErr: apperrors.CodeInvalidInput},
		{name: "budget wrong type", args: map[string]interface{}{"max_tokens": true}, wantErr: apperrors.CodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := BudgetOptions(tt.args)
			if tt.wantErr != "" {
				assert.True(t, apperrors.HasCode(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, opts)
		})
	}
}

func TestParams(t *testing.T) {
	args := map[string]interface{}{
		"name":   "  ",
		"size":   "25",
		"ratio":  float64(0.5),
		"flag":   "false",
		"fields": "a, b,,c",
		"list":   []interface{}{"x", "y"},
		"obj":    map[string]interface{}{"k": "v"},
	}

	_, err := GetStringParam(args, "name", true)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeMissingParameter))

	n, err := GetIntParam(args, "size", false)
	require.NoError(t, err)
	assert.Equal(t, 25, n)

	f, err := GetFloatParam(args, "ratio", false)
	require.NoError(t, err)
	assert.Equal(t, 0.5, f)

	b, err := GetBoolParam(args, "flag", false)
	require.NoError(t, err)
	assert.False(t, b)

	fields, err := GetStringArrayParam(args, "fields", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, fields)

	list, err := GetStringArrayParam(args, "list", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, list)

	obj, err := GetObjectParam(args, "obj", true)
	require.NoError(t, err)
	assert.Equal(t, "v", obj["k"])

	_, err = GetObjectParam(args, "size", false)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))
}

func TestHandleError(t *testing.T) {
	result := HandleError(apperrors.NewCapabilityGap("sql", "6.2.4"))
	assert.True(t, result.IsError)
	text := resultText(t, result)
	assert.True(t, strings.HasPrefix(text, "[CAPABILITY_GAP]"))
	assert.Contains(t, text, "get_cluster_info")

	result = HandleError(fmt.Errorf("plain failure"))
	assert.Equal(t, "plain failure", resultText(t, result))
}

func TestAvailableTools(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	api, _ := newTestAPI(t, 7, 4, func(*client.Request) *client.Response { return ok(`{}`) })
	all := GetAllTools(api, newTestShaper(), zap.NewNop())
	available := AvailableTools(all, api.Capabilities(), logger)

	var names []string
	for _, tool := range available {
		names = append(names, tool.Name())
	}
	assert.NotContains(t, names, "get_data_streams")
	assert.Contains(t, names, "sql_query")
	assert.Len(t, available, len(all)-1)

	omitted := logs.FilterMessage("Tool not registered: cluster lacks required feature").All()
	require.Len(t, omitted, 1)
	assert.Equal(t, "get_data_streams", omitted[0].ContextMap()["tool"])
	assert.Equal(t, "data_streams", omitted[0].ContextMap()["feature"])
}

func TestTools_SchemasAndAnnotations(t *testing.T) {
	api, _ := newTestAPI(t, 8, 12, func(*client.Request) *client.Response { return ok(`{}`) })
	for _, tool := range GetAllTools(api, newTestShaper(), zap.NewNop()) {
		t.Run(tool.Name(), func(t *testing.T) {
			schema, ok := tool.InputSchema().(map[string]interface{})
			require.True(t, ok)
			assert.Equal(t, "object", schema["type"])
			props := schema["properties"].(map[string]interface{})
			assert.Contains(t, props, ParamMaxTokens)
			assert.NotEmpty(t, tool.Description())
			require.NotNil(t, tool.Annotations())
		})
	}
}

// catRows returns n daily indices spread over n/5 services, plus one system
// index.
func catRows(n int) string {
	rows := make([]string, 0, n+1)
	for i := 0; i < n; i++ {
		rows = append(rows, fmt.Sprintf(`{"health":"green","status":"open","index":"logs-svc%02d-2024.03.%02d","pri":"1","rep":"1","docs.count":"5000","store.size":"1048576","pri.store.size":"524288","creation.date":"1709251200000"}`, i/5, i%5+1))
	}
	rows = append(rows, `{"health":"green","status":"open","index":".kibana_1","pri":"1","rep":"0","docs.count":"10","store.size":"1024","pri.store.size":"1024","creation.date":"1709251200000"}`)
	return "[" + strings.Join(rows, ",") + "]"
}

func TestListIndices_ShapesLargeInventory(t *testing.T) {
	api, h := newTestAPI(t, 8, 12, func(*client.Request) *client.Response { return ok(catRows(250)) })
	tool := NewListIndicesTool(api, newTestShaper(), zap.NewNop())

	ctx, stats := WithCallStats(context.Background())
	result, err := tool.Execute(ctx, map[string]interface{}{
		"index_pattern":  "logs-*",
		"exclude_system": true,
		"max_tokens":     float64(1500),
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	text := resultText(t, result)
	assert.NotContains(t, text, ".kibana_1")
	assert.Contains(t, text, "Indices: 250")
	assert.Contains(t, text, "logs-svc00-*")

	assert.Equal(t, "/_cat/indices/logs-*", h.requests[0].Path)
	assert.True(t, stats.Shaped)
	assert.NotEqual(t, budget.LevelFull, stats.Level)
	assert.Equal(t, 1500, stats.Tokens.Limit)
	assert.Greater(t, stats.Tokens.Original, stats.Tokens.Optimized)
}

func TestListIndices_InvalidHealth(t *testing.T) {
	api, h := newTestAPI(t, 8, 12, func(*client.Request) *client.Response { return ok(`[]`) })
	tool := NewListIndicesTool(api, newTestShaper(), zap.NewNop())

	result, err := tool.Execute(context.Background(), map[string]interface{}{"health": "purple"})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "[INVALID_INPUT]")
	assert.Empty(t, h.requests)
}

func TestSQLQuery_CapabilityGap(t *testing.T) {
	api, h := newTestAPI(t, 6, 2, func(*client.Request) *client.Response { return ok(`{}`) })
	tool := NewSQLQueryTool(api, newTestShaper(), zap.NewNop())
	assert.Equal(t, capability.SQL, tool.RequiredFeature())

	result, err := tool.Execute(context.Background(), map[string]interface{}{"query": "SELECT 1"})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "[CAPABILITY_GAP]")
	assert.Empty(t, h.requests)
}

func TestBuildRawRequest(t *testing.T) {
	req, err := buildRawRequest(map[string]interface{}{
		"method":  "post",
		"path":    "logs-*/_search?size=5&pretty",
		"body":    map[string]interface{}{"query": map[string]interface{}{"match_all": map[string]interface{}{}}},
		"headers": map[string]interface{}{"X-Opaque-Id": "abc"},
	})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/logs-*/_search", req.Path)
	assert.Equal(t, map[string]string{"size": "5", "pretty": ""}, req.Query)
	assert.JSONEq(t, `{"query":{"match_all":{}}}`, string(req.Body.(json.RawMessage)))
	assert.Equal(t, "abc", req.Headers["X-Opaque-Id"])

	req, err = buildRawRequest(map[string]interface{}{"path": "/_bulk", "body": "{\"index\":{}}\n{\"a\":1}\n"})
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "{\"index\":{}}\n{\"a\":1}\n", req.Body)

	_, err = buildRawRequest(map[string]interface{}{"method": "TRACE", "path": "/"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))

	_, err = buildRawRequest(map[string]interface{}{"path": "/", "headers": map[string]interface{}{"X-N": 1.0}})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))

	_, err = buildRawRequest(map[string]interface{}{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeMissingParameter))
}

func TestExecuteRequest_ReturnsClusterErrors(t *testing.T) {
	api, _ := newTestAPI(t, 8, 12, func(*client.Request) *client.Response {
		return &client.Response{StatusCode: http.StatusBadRequest, Body: []byte(`{"error":{"type":"parsing_exception","reason":"unknown query [matchh]"},"status":400}`)}
	})
	tool := NewExecuteRequestTool(api, newTestShaper(), zap.NewNop())

	result, err := tool.Execute(context.Background(), map[string]interface{}{"method": "POST", "path": "/x/_search", "body": `{"query":{"matchh":{}}}`})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	text := resultText(t, result)
	assert.True(t, strings.HasPrefix(text, "HTTP 400 Bad Request"))
	assert.Contains(t, text, "parsing_exception")
}
