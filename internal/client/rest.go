package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// RESTImplementation is the name of the built-in net/http client
const RESTImplementation = "rest"

// restClient is the built-in client for majors without an official Go
// library (5.x, 6.x) and for OpenSearch.
type restClient struct {
	httpClient *http.Client
	baseURL    string
	opts       Options
	logger     *zap.Logger
}

func newRESTClient(opts Options) (Handle, error) {
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.RetryWaitMin <= 0 {
		opts.RetryWaitMin = 500 * time.Millisecond
	}
	if opts.RetryWaitMax < opts.RetryWaitMin {
		opts.RetryWaitMax = opts.RetryWaitMin
	}
	return &restClient{
		httpClient: opts.HTTPClient,
		baseURL:    strings.TrimRight(opts.URL, "/"),
		opts:       opts,
		logger:     opts.logger(),
	}, nil
}

func (c *restClient) Implementation() string { return RESTImplementation }

// Do executes a request with retry logic
func (c *restClient) Do(ctx context.Context, req *Request) (*Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff; cap the shift to keep the duration in range
			shift := min(attempt-1, 30)
			waitTime := c.opts.RetryWaitMin * time.Duration(1<<shift)
			if waitTime > c.opts.RetryWaitMax {
				waitTime = c.opts.RetryWaitMax
			}

			c.logger.Debug("Retrying request",
				zap.Int("attempt", attempt),
				zap.Duration("wait", waitTime),
			)

			select {
			case <-time.After(waitTime):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resp, err := c.doRequest(ctx, req)
		if err != nil {
			lastErr = err
			if isRetryable(err) {
				continue
			}
			return nil, err
		}

		if shouldRetry(resp.StatusCode) && attempt < c.opts.MaxRetries {
			lastErr = fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(resp.Body))
			continue
		}

		return resp, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *restClient) doRequest(ctx context.Context, req *Request) (*Response, error) {
	httpReq, err := newHTTPRequest(ctx, req, c.baseURL+req.Path, c.opts.UserAgent)
	if err != nil {
		return nil, err
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return readResponse(httpResp.StatusCode, httpResp.Header, httpResp.Body, c.logger)
}

func (c *restClient) Ping(ctx context.Context) error {
	resp, err := c.doRequest(ctx, &Request{Method: http.MethodHead, Path: "/"})
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("ping returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func (c *restClient) Info(ctx context.Context) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: "/"})
}

func (c *restClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// isRetryable determines if an error is a transient network failure
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if errors.Is(opErr.Err, syscall.ECONNREFUSED) ||
			errors.Is(opErr.Err, syscall.ECONNRESET) ||
			errors.Is(opErr.Err, syscall.ENETUNREACH) ||
			errors.Is(opErr.Err, syscall.EHOSTUNREACH) ||
			errors.Is(opErr.Err, syscall.ETIMEDOUT) {
			return true
		}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.Temporary()
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection reset",
		"connection refused",
		"network is unreachable",
		"i/o timeout",
		"tls handshake timeout",
		"eof",
	} {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// shouldRetry determines if an HTTP status code should trigger a retry
func shouldRetry(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
