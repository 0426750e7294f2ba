// Package cluster implements the outbound cluster operations the tools need,
// on top of a client handle and the strategy selected at startup.
package cluster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tareqmamari/elasticsearch-mcp-server/internal/capability"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/client"
	apperrors "github.com/tareqmamari/elasticsearch-mcp-server/internal/errors"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/model"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/version"
)

// Default timeouts
const (
	DefaultRequestTimeout = 60 * time.Second
	DefaultSearchTimeout  = 30 * time.Second
)

// Options tune the API
type Options struct {
	RequestTimeout time.Duration
	SearchTimeout  time.Duration
	// BatchSize is the number of backing indices per stats request
	BatchSize int
	// BatchConcurrency bounds the stats requests in flight
	BatchConcurrency int
}

func (o Options) withDefaults() Options {
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = DefaultRequestTimeout
	}
	if o.SearchTimeout <= 0 {
		o.SearchTimeout = DefaultSearchTimeout
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.BatchConcurrency <= 0 {
		o.BatchConcurrency = DefaultBatchConcurrency
	}
	return o
}

// API is the set of cluster operations. It is built once at startup and is
// safe for concurrent use; nothing it returns is cached.
type API struct {
	handle   client.Handle
	info     version.Info
	strategy capability.Strategy
	caps     *capability.Set
	opts     Options
	logger   *zap.Logger
}

// New creates the API
func New(h client.Handle, info version.Info, strategy capability.Strategy, caps *capability.Set, opts Options, logger *zap.Logger) *API {
	return &API{
		handle:   h,
		info:     info,
		strategy: strategy,
		caps:     caps,
		opts:     opts.withDefaults(),
		logger:   logger,
	}
}

// Version returns the detected cluster version
func (a *API) Version() version.Info { return a.info }

// Capabilities returns the resolved feature set
func (a *API) Capabilities() *capability.Set { return a.caps }

// Strategy returns the normalization strategy in use
func (a *API) Strategy() capability.Strategy { return a.strategy }

// Implementation names the client library behind the handle
func (a *API) Implementation() string { return a.handle.Implementation() }

// Ping checks that the cluster answers
func (a *API) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, a.opts.RequestTimeout)
	defer cancel()
	return a.handle.Ping(ctx)
}

// Request executes a raw REST request. Non-2xx responses are returned as
// responses so callers can show the cluster's own error body.
func (a *API) Request(ctx context.Context, req *client.Request) (*client.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, a.opts.RequestTimeout)
	defer cancel()

	resp, err := a.handle.Do(ctx, req)
	if err != nil {
		return nil, transportError(ctx, req.Method+" "+req.Path, err)
	}
	return resp, nil
}

// do executes req and returns the body of a 2xx response. Everything else
// becomes a structured error.
func (a *API) do(ctx context.Context, timeout time.Duration, operation string, req *client.Request) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := a.handle.Do(ctx, req)
	if err != nil {
		return nil, transportError(ctx, operation, err)
	}
	if resp.IsError() {
		return nil, responseError(resp)
	}
	return resp.Body, nil
}

func transportError(ctx context.Context, operation string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewTimeout(operation).WithCause(err)
	}
	return apperrors.NewConnection(operation, err)
}

// esError is the error body Elasticsearch returns on failure
type esError struct {
	Error json.RawMessage `json:"error"`
}

func responseError(resp *client.Response) error {
	reason := strings.TrimSpace(string(resp.Body))
	var body esError
	if err := json.Unmarshal(resp.Body, &body); err == nil && len(body.Error) > 0 {
		var detail struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		}
		if json.Unmarshal(body.Error, &detail) == nil && detail.Reason != "" {
			reason = detail.Type + ": " + detail.Reason
		} else {
			var s string
			if json.Unmarshal(body.Error, &s) == nil {
				reason = s
			}
		}
	}
	if len(reason) > 500 {
		reason = reason[:500] + "..."
	}
	return apperrors.FromHTTPStatus(resp.StatusCode, reason)
}

// ValidateTarget rejects index expressions that would change the request path
func ValidateTarget(target string) error {
	if strings.ContainsAny(target, "/?# \t\n") {
		return apperrors.NewInvalidInput(fmt.Sprintf("invalid index expression %q", target))
	}
	return nil
}

func targetPath(prefix, target, suffix string) (string, error) {
	if target == "" {
		return prefix + suffix, nil
	}
	if err := ValidateTarget(target); err != nil {
		return "", err
	}
	return prefix + "/" + target + suffix, nil
}

// Root returns the cluster root document
func (a *API) Root(ctx context.Context) (model.RootInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, a.opts.RequestTimeout)
	defer cancel()

	resp, err := a.handle.Info(ctx)
	if err != nil {
		return model.RootInfo{}, transportError(ctx, "GET /", err)
	}
	if resp.IsError() {
		return model.RootInfo{}, responseError(resp)
	}
	var root model.RootInfo
	if err := json.Unmarshal(resp.Body, &root); err != nil {
		return model.RootInfo{}, apperrors.NewProtocol("cluster root did not return JSON").WithCause(err)
	}
	return root, nil
}

// Health returns cluster health
func (a *API) Health(ctx context.Context) (*model.ClusterHealth, error) {
	body, err := a.do(ctx, a.opts.RequestTimeout, "cluster health", &client.Request{Method: http.MethodGet, Path: "/_cluster/health"})
	if err != nil {
		return nil, err
	}
	var health model.ClusterHealth
	if err := json.Unmarshal(body, &health); err != nil {
		return nil, apperrors.NewProtocol("failed to decode cluster health").WithCause(err)
	}
	return &health, nil
}

func (a *API) catIndicesQuery() map[string]string {
	query := map[string]string{
		"format": "json",
		"bytes":  "b",
		"h":      model.CatIndicesColumns,
		"s":      "index",
	}
	for k, v := range a.strategy.CatIndicesParams(a.caps) {
		query[k] = v
	}
	return query
}

// ListIndices returns every index matching pattern (all when empty)
func (a *API) ListIndices(ctx context.Context, pattern string) ([]model.IndexRecord, error) {
	path, err := targetPath("/_cat/indices", pattern, "")
	if err != nil {
		return nil, err
	}
	body, err := a.do(ctx, a.opts.RequestTimeout, "list indices", &client.Request{Method: http.MethodGet, Path: path, Query: a.catIndicesQuery()})
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeResourceNotFound) {
			return []model.IndexRecord{}, nil
		}
		return nil, err
	}

	var rows []model.CatIndexRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, apperrors.NewProtocol("failed to decode _cat/indices").WithCause(err)
	}
	records := make([]model.IndexRecord, len(rows))
	for i, row := range rows {
		records[i] = row.Record()
	}
	return records, nil
}

// GetMappings returns index name -> root properties for target, with mapping
// types removed on clusters that still have them.
func (a *API) GetMappings(ctx context.Context, target string) (map[string]map[string]interface{}, error) {
	if target == "" {
		return nil, apperrors.NewMissingParameter("index")
	}
	path, err := targetPath("", target, "/_mapping")
	if err != nil {
		return nil, err
	}
	body, err := a.do(ctx, a.opts.RequestTimeout, "get mappings", &client.Request{Method: http.MethodGet, Path: path})
	if err != nil {
		return nil, err
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, apperrors.NewProtocol("failed to decode _mapping").WithCause(err)
	}
	return a.strategy.NormalizeMappings(raw), nil
}

// Search runs a search. The query body is passed through untouched.
func (a *API) Search(ctx context.Context, target string, query json.RawMessage, size *int) ([]byte, error) {
	if target == "" {
		return nil, apperrors.NewMissingParameter("index")
	}
	path, err := targetPath("", target, "/_search")
	if err != nil {
		return nil, err
	}
	req := &client.Request{Method: http.MethodPost, Path: path, Body: query}
	if size != nil {
		req.Query = map[string]string{"size": strconv.Itoa(*size)}
	}
	return a.do(ctx, a.opts.SearchTimeout, "search", req)
}

// SQL runs an SQL query on the strategy's SQL endpoint
func (a *API) SQL(ctx context.Context, query string, fetchSize int) ([]byte, error) {
	path := a.strategy.SQLPath()
	if path == "" || !a.caps.Has(capability.SQL) {
		return nil, apperrors.NewCapabilityGap(string(capability.SQL), a.info.String())
	}
	body := map[string]interface{}{"query": query}
	if fetchSize > 0 {
		body["fetch_size"] = fetchSize
	}
	return a.do(ctx, a.opts.SearchTimeout, "sql query", &client.Request{
		Method: http.MethodPost,
		Path:   path,
		Query:  map[string]string{"format": "json"},
		Body:   body,
	})
}

// ListShards returns every shard copy for indices matching pattern
func (a *API) ListShards(ctx context.Context, pattern string) ([]model.ShardRecord, error) {
	path, err := targetPath("/_cat/shards", pattern, "")
	if err != nil {
		return nil, err
	}
	body, err := a.do(ctx, a.opts.RequestTimeout, "list shards", &client.Request{
		Method: http.MethodGet,
		Path:   path,
		Query:  map[string]string{"format": "json", "bytes": "b", "h": model.CatShardsColumns},
	})
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeResourceNotFound) {
			return []model.ShardRecord{}, nil
		}
		return nil, err
	}

	var rows []model.CatShardRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, apperrors.NewProtocol("failed to decode _cat/shards").WithCause(err)
	}
	records := make([]model.ShardRecord, len(rows))
	for i, row := range rows {
		records[i] = row.Record()
	}
	return records, nil
}
