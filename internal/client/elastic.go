package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	elasticsearch7 "github.com/elastic/go-elasticsearch/v7"
	elasticsearch8 "github.com/elastic/go-elasticsearch/v8"
	"go.uber.org/zap"
)

// Implementation names of the official clients
const (
	ES8Implementation = "go-elasticsearch/v8"
	ES7Implementation = "go-elasticsearch/v7"
)

var retryOnStatus = []int{http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout}

// performer is the request entry point both official clients share
type performer interface {
	Perform(req *http.Request) (*http.Response, error)
}

// elasticHandle runs raw REST requests through an official client, so its
// node selection, retries and product check apply.
type elasticHandle struct {
	name   string
	client performer
	opts   Options
	logger *zap.Logger
}

func (h *elasticHandle) Implementation() string { return h.name }

func (h *elasticHandle) Do(ctx context.Context, req *Request) (*Response, error) {
	httpReq, err := newHTTPRequest(ctx, req, req.Path, h.opts.UserAgent)
	if err != nil {
		return nil, err
	}
	httpResp, err := h.client.Perform(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return readResponse(httpResp.StatusCode, httpResp.Header, httpResp.Body, h.logger)
}

func (h *elasticHandle) Close() error {
	if h.opts.HTTPClient != nil {
		h.opts.HTTPClient.CloseIdleConnections()
	}
	return nil
}

func backoff(opts Options) func(int) time.Duration {
	return func(attempt int) time.Duration {
		shift := min(attempt-1, 30)
		wait := opts.RetryWaitMin * time.Duration(1<<max(shift, 0))
		if wait > opts.RetryWaitMax {
			wait = opts.RetryWaitMax
		}
		return wait
	}
}

func transportOf(opts Options) http.RoundTripper {
	if opts.HTTPClient != nil && opts.HTTPClient.Transport != nil {
		return opts.HTTPClient.Transport
	}
	return http.DefaultTransport
}

type es8Handle struct {
	elasticHandle
	es *elasticsearch8.Client
}

func newES8Client(opts Options) (Handle, error) {
	es, err := elasticsearch8.NewClient(elasticsearch8.Config{
		Addresses:     []string{opts.URL},
		Transport:     transportOf(opts),
		MaxRetries:    opts.MaxRetries,
		DisableRetry:  opts.MaxRetries == 0,
		RetryOnStatus: retryOnStatus,
		RetryBackoff:  backoff(opts),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", ES8Implementation, err)
	}
	return &es8Handle{
		elasticHandle: elasticHandle{name: ES8Implementation, client: es, opts: opts, logger: opts.logger()},
		es:            es,
	}, nil
}

func (h *es8Handle) Ping(ctx context.Context) error {
	res, err := h.es.Ping(h.es.Ping.WithContext(ctx))
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return fmt.Errorf("ping returned %s", res.Status())
	}
	return nil
}

func (h *es8Handle) Info(ctx context.Context) (*Response, error) {
	res, err := h.es.Info(h.es.Info.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	return readResponse(res.StatusCode, res.Header, res.Body, h.logger)
}

type es7Handle struct {
	elasticHandle
	es *elasticsearch7.Client
}

func newES7Client(opts Options) (Handle, error) {
	es, err := elasticsearch7.NewClient(elasticsearch7.Config{
		Addresses:     []string{opts.URL},
		Transport:     transportOf(opts),
		MaxRetries:    opts.MaxRetries,
		DisableRetry:  opts.MaxRetries == 0,
		RetryOnStatus: retryOnStatus,
		RetryBackoff:  backoff(opts),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", ES7Implementation, err)
	}
	return &es7Handle{
		elasticHandle: elasticHandle{name: ES7Implementation, client: es, opts: opts, logger: opts.logger()},
		es:            es,
	}, nil
}

func (h *es7Handle) Ping(ctx context.Context) error {
	res, err := h.es.Ping(h.es.Ping.WithContext(ctx))
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return fmt.Errorf("ping returned %s", res.Status())
	}
	return nil
}

func (h *es7Handle) Info(ctx context.Context) (*Response, error) {
	res, err := h.es.Info(h.es.Info.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	return readResponse(res.StatusCode, res.Header, res.Body, h.logger)
}
