package client

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	apperrors "github.com/tareqmamari/elasticsearch-mcp-server/internal/errors"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/version"
)

// Constructor builds a Handle from connection options
type Constructor func(opts Options) (Handle, error)

// Implementation is one entry in the registry
type Implementation struct {
	Major int
	Name  string
	// OpenSearch marks the implementation used for OpenSearch clusters
	OpenSearch bool
	New        Constructor
}

// Registry lists the available implementations in priority order. A major
// without an entry is a normal outcome, handled by falling back.
type Registry []Implementation

// DefaultRegistry returns the implementations compiled into this build
func DefaultRegistry() Registry {
	return Registry{
		{Major: 8, Name: ES8Implementation, New: newES8Client},
		{Major: 7, Name: ES7Implementation, New: newES7Client},
		{Major: 6, Name: RESTImplementation, OpenSearch: true, New: newRESTClient},
		{Major: 5, Name: RESTImplementation, OpenSearch: true, New: newRESTClient},
	}
}

func (r Registry) lookup(major int) (Implementation, bool) {
	for _, impl := range r {
		if impl.Major == major {
			return impl, true
		}
	}
	return Implementation{}, false
}

func (r Registry) lowest() int {
	lowest := -1
	for _, impl := range r {
		if lowest == -1 || impl.Major < lowest {
			lowest = impl.Major
		}
	}
	return lowest
}

// Factory creates and verifies cluster client handles
type Factory struct {
	registry Registry
	opts     Options
	logger   *zap.Logger
}

// NewFactory creates a factory over registry with shared connection options
func NewFactory(registry Registry, opts Options, logger *zap.Logger) *Factory {
	return &Factory{registry: registry, opts: opts, logger: logger}
}

// Resolve picks the implementation for info: the exact major, else one step
// at a time toward the newest older major, warning on every step.
func (f *Factory) Resolve(info version.Info) (Implementation, error) {
	if info.IsOpenSearch() {
		for _, impl := range f.registry {
			if impl.OpenSearch {
				return impl, nil
			}
		}
		return Implementation{}, apperrors.NewConfiguration("no client implementation supports OpenSearch")
	}

	lowest := f.registry.lowest()
	for major := info.Major; major >= lowest && lowest >= 0; major-- {
		if impl, ok := f.registry.lookup(major); ok {
			return impl, nil
		}
		f.logger.Warn("No client implementation for major version, falling back",
			zap.Int("major", major),
			zap.Int("fallback_major", major-1),
			zap.String("cluster_version", info.String()),
		)
	}

	return Implementation{}, apperrors.NewConfiguration(
		fmt.Sprintf("no client implementation for Elasticsearch %s or any older major", info.String()))
}

// Create resolves and constructs the handle for info
func (f *Factory) Create(info version.Info) (Handle, error) {
	impl, err := f.Resolve(info)
	if err != nil {
		return nil, err
	}

	h, err := impl.New(f.opts)
	if err != nil {
		return nil, apperrors.NewConfiguration(fmt.Sprintf("failed to construct %s client", impl.Name)).WithCause(err)
	}

	f.logger.Info("Cluster client created",
		zap.String("implementation", impl.Name),
		zap.Int("implementation_major", impl.Major),
		zap.String("cluster_version", info.Label()),
	)
	return h, nil
}

// Verify checks liveness with a ping, falling back to an info call. It
// reports failure as false so startup can produce its own error.
func (f *Factory) Verify(ctx context.Context, h Handle) bool {
	err := h.Ping(ctx)
	if err == nil {
		return true
	}
	f.logger.Debug("Ping failed, trying info", zap.String("implementation", h.Implementation()), zap.Error(err))

	resp, err := h.Info(ctx)
	if err != nil {
		f.logger.Warn("Cluster liveness check failed", zap.String("implementation", h.Implementation()), zap.Error(err))
		return false
	}
	if resp.IsError() {
		f.logger.Warn("Cluster liveness check failed",
			zap.String("implementation", h.Implementation()),
			zap.Int("status", resp.StatusCode),
		)
		return false
	}
	return true
}
