package client

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tareqmamari/elasticsearch-mcp-server/internal/auth"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/config"
	apperrors "github.com/tareqmamari/elasticsearch-mcp-server/internal/errors"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/security"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/tracing"
)

// Recorder receives per-request measurements from the transport chain
type Recorder interface {
	RecordRequest(success bool, latency time.Duration, statusCode int)
	RecordRateLimitHit()
}

// NewHTTPClient builds the *http.Client shared by the version probe and every
// client implementation. The chain is, outermost first: credentials, rate
// limiting, instrumentation, then the TLS-configured base transport.
func NewHTTPClient(cfg *config.Config, authenticator *auth.Authenticator, recorder Recorder, logger *zap.Logger) (*http.Client, error) {
	tlsConfig, err := newTLSConfig(cfg, logger)
	if err != nil {
		return nil, err
	}

	var rt http.RoundTripper = &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.MaxIdleConns,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig:     tlsConfig,
	}

	rt = &instrumentedTransport{next: rt, recorder: recorder, logger: logger}

	if cfg.EnableRateLimit {
		rt = &rateLimitedTransport{
			next:     rt,
			limiter:  rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst),
			recorder: recorder,
		}
	}

	if authenticator != nil {
		rt = authenticator.RoundTripper(rt)
	}

	return &http.Client{Transport: rt}, nil
}

func newTLSConfig(cfg *config.Config, logger *zap.Logger) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}

	if cfg.CACert != "" {
		pem, err := os.ReadFile(filepath.Clean(cfg.CACert))
		if err != nil {
			return nil, apperrors.NewConfiguration(fmt.Sprintf("failed to read CA certificate %q", cfg.CACert)).WithCause(err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, apperrors.NewConfiguration(fmt.Sprintf("CA certificate %q contains no PEM certificates", cfg.CACert))
		}
		tlsConfig.RootCAs = pool
	}

	if cfg.SkipTLSVerify {
		tlsConfig.InsecureSkipVerify = true // #nosec G402 -- explicit opt-in, logged below
		logger.Warn("TLS certificate verification is DISABLED - this is insecure and should only be used for testing",
			zap.String("es_url", security.MaskURL(cfg.ESURL)),
		)
	}

	return tlsConfig, nil
}

type rateLimitedTransport struct {
	next     http.RoundTripper
	limiter  *rate.Limiter
	recorder Recorder
}

func (t *rateLimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !t.limiter.Allow() {
		if t.recorder != nil {
			t.recorder.RecordRateLimitHit()
		}
		if err := t.limiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("rate limit wait failed: %w", err)
		}
	}
	return t.next.RoundTrip(req)
}

// instrumentedTransport records an API span, request metrics and a debug log
// line for every round trip, whichever client implementation issued it.
type instrumentedTransport struct {
	next     http.RoundTripper
	recorder Recorder
	logger   *zap.Logger
}

func (t *instrumentedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx, span := tracing.APISpan(req.Context(), req.Method, req.URL.Path)
	defer span.End()

	out := req.Clone(ctx)
	if info := tracing.FromContext(ctx); info.TraceID != "" && out.Header.Get(tracing.OpaqueIDHeader) == "" {
		out.Header.Set(tracing.OpaqueIDHeader, info.TraceID)
	}

	start := time.Now()
	resp, err := t.next.RoundTrip(out)
	duration := time.Since(start)

	status := 0
	if resp != nil {
		status = resp.StatusCode
		span.SetAttributes(attribute.Int("http.status_code", status))
	}
	if err != nil {
		tracing.RecordError(span, err)
	}
	if t.recorder != nil {
		t.recorder.RecordRequest(err == nil && status < 400, duration, status)
	}

	t.logger.Debug("Cluster request completed",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", status),
		zap.Duration("duration", duration),
		zap.Error(err),
	)

	return resp, err
}
