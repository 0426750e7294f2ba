package cluster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tareqmamari/elasticsearch-mcp-server/internal/capability"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/client"
	apperrors "github.com/tareqmamari/elasticsearch-mcp-server/internal/errors"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/version"
)

// fakeHandle answers requests from a routing function and records them
type fakeHandle struct {
	mu       sync.Mutex
	requests []*client.Request
	route    func(req *client.Request) (*client.Response, error)
}

func (f *fakeHandle) Implementation() string { return "fake" }

func (f *fakeHandle) Do(ctx context.Context, req *client.Request) (*client.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.route(req)
}

func (f *fakeHandle) Ping(context.Context) error { return nil }

func (f *fakeHandle) Info(ctx context.Context) (*client.Response, error) {
	return f.Do(ctx, &client.Request{Method: http.MethodGet, Path: "/"})
}

func (f *fakeHandle) Close() error { return nil }

func jsonResponse(status int, body string) *client.Response {
	return &client.Response{StatusCode: status, Body: []byte(body)}
}

func newAPI(t *testing.T, major, minor int, route func(req *client.Request) (*client.Response, error)) (*API, *fakeHandle) {
	t.Helper()
	info := version.Info{Major: major, Minor: minor, Distribution: version.Elasticsearch}
	strategy, err := capability.SelectStrategy(info)
	require.NoError(t, err)
	h := &fakeHandle{route: route}
	return New(h, info, strategy, capability.Resolve(info), Options{}, zap.NewNop()), h
}

func TestListIndices(t *testing.T) {
	api, h := newAPI(t, 8, 12, func(req *client.Request) (*client.Response, error) {
		return jsonResponse(200, `[
			{"health":"green","status":"open","index":"logs-2024.01.01","pri":"1","rep":"1","docs.count":"100","store.size":"2048","pri.store.size":"1024","creation.date":"1704067200000"},
			{"health":null,"status":"close","index":"old","pri":"1","rep":"0","docs.count":null,"store.size":null,"pri.store.size":null,"creation.date":"1704067200000"}
		]`), nil
	})

	records, err := api.ListIndices(context.Background(), "logs-*,old")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "logs-2024.01.01", records[0].Name)
	assert.Equal(t, uint64(2048), records[0].StoreSizeBytes)
	assert.Equal(t, uint64(100), records[0].DocCount)
	assert.Equal(t, "close", records[1].Status)

	req := h.requests[0]
	assert.Equal(t, "/_cat/indices/logs-*,old", req.Path)
	assert.Equal(t, "json", req.Query["format"])
	assert.Equal(t, "b", req.Query["bytes"])
	assert.Equal(t, "all", req.Query["expand_wildcards"])
}

func TestListIndices_OldClusterOmitsExpandWildcards(t *testing.T) {
	for _, v := range []struct{ major, minor int }{{5, 6}, {6, 8}, {7, 4}, {7, 6}} {
		api, h := newAPI(t, v.major, v.minor, func(*client.Request) (*client.Response, error) {
			return jsonResponse(200, `[]`), nil
		})
		records, err := api.ListIndices(context.Background(), "")
		require.NoError(t, err)
		assert.Empty(t, records)
		assert.Equal(t, "/_cat/indices", h.requests[0].Path)
		assert.NotContains(t, h.requests[0].Query, "expand_wildcards", "%d.%d", v.major, v.minor)
		assert.Equal(t, "json", h.requests[0].Query["format"])
	}
}

func TestListIndices_Errors(t *testing.T) {
	api, _ := newAPI(t, 8, 12, func(*client.Request) (*client.Response, error) {
		return jsonResponse(404, `{"error":{"type":"index_not_found_exception","reason":"no such index [x]"},"status":404}`), nil
	})
	records, err := api.ListIndices(context.Background(), "x")
	require.NoError(t, err)
	assert.Empty(t, records)

	_, err = api.ListIndices(context.Background(), "logs/_delete")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))

	api, _ = newAPI(t, 8, 12, func(*client.Request) (*client.Response, error) {
		return nil, errors.New("connection refused")
	})
	_, err = api.ListIndices(context.Background(), "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConnection))

	api, _ = newAPI(t, 8, 12, func(*client.Request) (*client.Response, error) {
		return jsonResponse(500, `{"error":{"type":"exception","reason":"boom"}}`), nil
	})
	_, err = api.ListIndices(context.Background(), "")
	require.True(t, apperrors.HasCode(err, apperrors.CodeAPIError))
	assert.Contains(t, err.Error(), "exception: boom")
}

func TestRequest_Timeout(t *testing.T) {
	info := version.Info{Major: 8, Minor: 12}
	strategy, _ := capability.SelectStrategy(info)
	h := &fakeHandle{route: func(*client.Request) (*client.Response, error) {
		return nil, context.DeadlineExceeded
	}}
	api := New(h, info, strategy, capability.Resolve(info), Options{RequestTimeout: time.Millisecond}, zap.NewNop())

	_, err := api.Request(context.Background(), &client.Request{Method: http.MethodGet, Path: "/_nodes"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeTimeout))

	h.route = func(*client.Request) (*client.Response, error) { return jsonResponse(400, `{"error":"bad"}`), nil }
	resp, err := api.Request(context.Background(), &client.Request{Method: http.MethodGet, Path: "/_nodes"})
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestGetMappings_RemovesTypes(t *testing.T) {
	api, h := newAPI(t, 6, 8, func(*client.Request) (*client.Response, error) {
		return jsonResponse(200, `{"logs":{"mappings":{"doc":{"properties":{"msg":{"type":"text"}}}}}}`), nil
	})
	mappings, err := api.GetMappings(context.Background(), "logs")
	require.NoError(t, err)
	assert.Equal(t, "/logs/_mapping", h.requests[0].Path)
	require.Contains(t, mappings, "logs")
	assert.Contains(t, mappings["logs"], "msg")

	_, err = api.GetMappings(context.Background(), "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeMissingParameter))
}

func TestSearch(t *testing.T) {
	api, h := newAPI(t, 8, 12, func(*client.Request) (*client.Response, error) {
		return jsonResponse(200, `{"hits":{"hits":[]}}`), nil
	})
	size := 5
	query := json.RawMessage(`{"query":{"match_all":{}}}`)
	body, err := api.Search(context.Background(), "logs-*", query, &size)
	require.NoError(t, err)
	assert.JSONEq(t, `{"hits":{"hits":[]}}`, string(body))

	req := h.requests[0]
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/logs-*/_search", req.Path)
	assert.Equal(t, "5", req.Query["size"])
	assert.Equal(t, query, req.Body)
}

func TestSQL(t *testing.T) {
	api, h := newAPI(t, 6, 8, func(*client.Request) (*client.Response, error) {
		return jsonResponse(200, `{"columns":[],"rows":[]}`), nil
	})
	_, err := api.SQL(context.Background(), "SELECT 1", 10)
	require.NoError(t, err)
	assert.Equal(t, "/_xpack/sql", h.requests[0].Path)
	assert.Equal(t, map[string]interface{}{"query": "SELECT 1", "fetch_size": 10}, h.requests[0].Body)

	api, _ = newAPI(t, 6, 2, nil)
	_, err = api.SQL(context.Background(), "SELECT 1", 0)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeCapabilityGap))
}

func TestListShards(t *testing.T) {
	api, h := newAPI(t, 7, 17, func(*client.Request) (*client.Response, error) {
		return jsonResponse(200, `[
			{"index":"logs","shard":"0","prirep":"p","state":"STARTED","docs":"10","store":"1024","ip":"10.0.0.1","node":"n1"},
			{"index":"logs","shard":"0","prirep":"r","state":"UNASSIGNED","docs":null,"store":null,"ip":null,"node":null,"unassigned.reason":"NODE_LEFT"}
		]`), nil
	})
	shards, err := api.ListShards(context.Background(), "logs")
	require.NoError(t, err)
	require.Len(t, shards, 2)
	assert.True(t, shards[0].IsPrimary())
	assert.True(t, shards[0].IsStarted())
	assert.Equal(t, "unassigned", shards[1].State)
	assert.Equal(t, "NODE_LEFT", shards[1].UnassignedReason)
	assert.Equal(t, "/_cat/shards/logs", h.requests[0].Path)
}

func dataStreamRoute(failBatch string) func(*client.Request) (*client.Response, error) {
	return func(req *client.Request) (*client.Response, error) {
		if strings.HasPrefix(req.Path, "/_data_stream") {
			return jsonResponse(200, `{"data_streams":[
				{"name":"logs-app","timestamp_field":{"name":"@timestamp"},"generation":2,"status":"GREEN","ilm_policy":"logs",
				 "indices":[{"index_name":".ds-logs-app-000001"},{"index_name":".ds-logs-app-000002"}]},
				{"name":"metrics-app","timestamp_field":{"name":"@timestamp"},"generation":1,"status":"GREEN",
				 "lifecycle":{"enabled":true},"indices":[{"index_name":".ds-metrics-app-000001"}]}
			]}`), nil
		}
		names := strings.Split(strings.TrimPrefix(req.Path, "/_cat/indices/"), ",")
		if failBatch != "" && names[0] == failBatch {
			return jsonResponse(500, `{"error":"boom"}`), nil
		}
		rows := make([]string, len(names))
		for i, name := range names {
			// later generations get earlier dates to prove ordering uses creation date
			created := 1704067200000 - int64(i)*86400000
			rows[i] = fmt.Sprintf(`{"health":"green","status":"open","index":%q,"docs.count":"10","store.size":"100","pri.store.size":"50","creation.date":"%d"}`, name, created)
		}
		return jsonResponse(200, "["+strings.Join(rows, ",")+"]"), nil
	}
}

func TestGetDataStreams(t *testing.T) {
	api, h := newAPI(t, 8, 12, dataStreamRoute(""))

	streams, err := api.GetDataStreams(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, streams, 2)

	logs := streams[0]
	assert.Equal(t, "logs-app", logs.Name)
	assert.Equal(t, "green", logs.Status)
	require.Len(t, logs.BackingIndices, 2)
	assert.Equal(t, ".ds-logs-app-000002", logs.BackingIndices[0].Name)
	assert.True(t, logs.BackingIndices[0].Found)
	assert.False(t, logs.LifecycleManaged)
	assert.True(t, streams[1].LifecycleManaged)

	assert.Equal(t, "/_data_stream/*", h.requests[0].Path)
}

func TestGetDataStreams_NotSupported(t *testing.T) {
	api, _ := newAPI(t, 7, 8, nil)
	_, err := api.GetDataStreams(context.Background(), "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeCapabilityGap))
}

func TestListBackingIndexStats_Batches(t *testing.T) {
	var names []string
	for i := 0; i < 120; i++ {
		names = append(names, fmt.Sprintf(".ds-big-%06d", i))
	}
	api, h := newAPI(t, 8, 12, dataStreamRoute(names[50]))

	stats := api.ListBackingIndexStats(context.Background(), names)

	assert.Len(t, h.requests, 3)
	assert.Len(t, stats, 70)
	assert.Contains(t, stats, names[0])
	assert.NotContains(t, stats, names[50])
	assert.NotContains(t, stats, names[99])
	assert.Contains(t, stats, names[119])
}

func TestGetDataStreams_FailedBatchKeepsOthers(t *testing.T) {
	api, _ := newAPI(t, 8, 12, dataStreamRoute(".ds-logs-app-000001"))
	api.opts.BatchSize = 2

	streams, err := api.GetDataStreams(context.Background(), "*")
	require.NoError(t, err)
	require.Len(t, streams, 2)

	for _, b := range streams[0].BackingIndices {
		assert.False(t, b.Found, b.Name)
	}
	require.Len(t, streams[1].BackingIndices, 1)
	assert.True(t, streams[1].BackingIndices[0].Found)
}
