package server

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tareqmamari/elasticsearch-mcp-server/internal/auth"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/capability"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/client"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/cluster"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/config"
	apperrors "github.com/tareqmamari/elasticsearch-mcp-server/internal/errors"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/security"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/tracing"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/version"
)

// Connection is the outcome of bootstrap: a verified handle and the
// operations built on it.
type Connection struct {
	Info   version.Info
	Handle client.Handle
	API    *cluster.API
}

// Close releases the client handle
func (c *Connection) Close() error {
	return c.Handle.Close()
}

// Bootstrap detects the cluster version and builds a verified client for it:
// probe, capability resolution, adapter selection, client creation, liveness
// check. Any failure stops startup.
func Bootstrap(ctx context.Context, cfg *config.Config, recorder client.Recorder, userAgent string, logger *zap.Logger) (*Connection, error) {
	authenticator, err := auth.New(auth.Credentials{
		APIKey:   cfg.APIKey,
		Username: cfg.Username,
		Password: cfg.Password,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create authenticator: %w", err)
	}

	httpClient, err := client.NewHTTPClient(cfg, authenticator, recorder, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	info, err := probe(ctx, cfg, httpClient)
	if err != nil {
		return nil, err
	}

	caps := capability.Resolve(info)
	strategy, err := capability.SelectStrategy(info)
	if err != nil {
		return nil, err
	}

	features := make([]string, 0, len(caps.Enabled()))
	for _, f := range caps.Enabled() {
		features = append(features, string(f))
	}
	logger.Info("Cluster detected",
		zap.String("cluster_version", info.Label()),
		zap.String("distribution", string(info.Distribution)),
		zap.String("adapter", strategy.Name()),
		zap.Strings("capabilities", features),
		zap.String("auth_mode", authenticator.Mode()),
	)

	factory := client.NewFactory(client.DefaultRegistry(), client.Options{
		URL:          cfg.ESURL,
		HTTPClient:   httpClient,
		MaxRetries:   cfg.MaxRetries,
		RetryWaitMin: cfg.RetryWaitMin,
		RetryWaitMax: cfg.RetryWaitMax,
		UserAgent:    userAgent,
		Logger:       logger,
	}, logger)

	handle, err := createHandle(ctx, factory, info, cfg)
	if err != nil {
		return nil, err
	}

	api := cluster.New(handle, info, strategy, caps, cluster.Options{
		RequestTimeout: cfg.Timeout,
		SearchTimeout:  cfg.SearchTimeout,
	}, logger)

	return &Connection{Info: info, Handle: handle, API: api}, nil
}

func probe(ctx context.Context, cfg *config.Config, httpClient version.Doer) (version.Info, error) {
	ctx, span := tracing.BootstrapSpan(ctx, "probe")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, cfg.ProbeTimeout)
	defer cancel()

	info, err := version.Probe(ctx, httpClient, cfg.ESURL)
	if err != nil {
		tracing.RecordError(span, err)
		return version.Info{}, err
	}
	tracing.AddToolAttributes(span, map[string]interface{}{
		"version":      info.String(),
		"distribution": string(info.Distribution),
	})
	tracing.SetSuccess(span)
	return info, nil
}

func createHandle(ctx context.Context, factory *client.Factory, info version.Info, cfg *config.Config) (client.Handle, error) {
	ctx, span := tracing.BootstrapSpan(ctx, "client")
	defer span.End()

	handle, err := factory.Create(info)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.ProbeTimeout)
	defer cancel()

	if !factory.Verify(ctx, handle) {
		_ = handle.Close()
		err := apperrors.NewConnection(security.MaskURL(cfg.ESURL),
			fmt.Errorf("%s client could not reach the cluster", handle.Implementation()))
		tracing.RecordError(span, err)
		return nil, err
	}
	tracing.SetSuccess(span)
	return handle, nil
}
