// Package client connects to the detected cluster. It owns the HTTP transport
// chain, the version-specific client implementations and the factory that
// picks one of them at startup.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Handle is a connected cluster client. Every implementation exposes the REST
// API through Do, so callers never branch on the library behind it.
type Handle interface {
	// Implementation names the client library, e.g. "go-elasticsearch/v8"
	Implementation() string
	// Do executes one REST request and returns the raw response. Non-2xx
	// statuses are returned as responses, not errors.
	Do(ctx context.Context, req *Request) (*Response, error)
	// Ping is the lightweight liveness call (HEAD /)
	Ping(ctx context.Context) error
	// Info fetches the cluster root document (GET /)
	Info(ctx context.Context) (*Response, error)
	Close() error
}

// Request represents a REST request against the cluster
type Request struct {
	Method  string
	Path    string
	Query   map[string]string
	Body    interface{} // []byte, json.RawMessage and string are sent as-is
	Headers map[string]string
}

// Response represents a REST response
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// IsError reports whether the status is outside 2xx
func (r *Response) IsError() bool {
	return r.StatusCode < 200 || r.StatusCode > 299
}

// Options are the connection options shared by every implementation
type Options struct {
	URL          string
	HTTPClient   *http.Client
	MaxRetries   int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	UserAgent    string
	Logger       *zap.Logger
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// encodeBody turns a request body into bytes. Raw forms pass through so NDJSON
// and pre-encoded queries survive unchanged.
func encodeBody(body interface{}) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	case string:
		return []byte(b), nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		return data, nil
	}
}

// encodeQuery renders the query map with sorted keys so request URLs are stable
func encodeQuery(query map[string]string) string {
	if len(query) == 0 {
		return ""
	}
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	params := url.Values{}
	for _, k := range keys {
		params.Add(k, query[k])
	}
	return params.Encode()
}

// newHTTPRequest builds the request for target (absolute for the REST client,
// path-only for the go-elasticsearch transports, which fill in the node).
func newHTTPRequest(ctx context.Context, req *Request, target, userAgent string) (*http.Request, error) {
	if !strings.HasPrefix(req.Path, "/") {
		return nil, fmt.Errorf("request path must start with '/': %q", req.Path)
	}

	data, err := encodeBody(req.Body)
	if err != nil {
		return nil, err
	}
	var bodyReader io.Reader
	if data != nil {
		bodyReader = bytes.NewReader(data)
	}

	if q := encodeQuery(req.Query); q != "" {
		target += "?" + q
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Accept", "application/json")
	if data != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if userAgent != "" {
		httpReq.Header.Set("User-Agent", userAgent)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	return httpReq, nil
}

// readResponse drains and closes body into a Response
func readResponse(status int, header http.Header, body io.ReadCloser, logger *zap.Logger) (*Response, error) {
	defer func() {
		if closeErr := body.Close(); closeErr != nil {
			logger.Warn("Failed to close response body", zap.Error(closeErr))
		}
	}()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return &Response{StatusCode: status, Body: data, Headers: header}, nil
}
