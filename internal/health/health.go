package health

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tareqmamari/elasticsearch-mcp-server/internal/model"
)

// Status represents the health status
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// slowThreshold marks a reachable but slow cluster as degraded
const slowThreshold = 3 * time.Second

// Check represents a health check result
type Check struct {
	Name      string        `json:"name"`
	Status    Status        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`
}

// Cluster is what the checker needs from the cluster API
type Cluster interface {
	Ping(ctx context.Context) error
	Health(ctx context.Context) (*model.ClusterHealth, error)
}

// Checker performs health checks
type Checker struct {
	cluster Cluster
	logger  *zap.Logger
}

// New creates a new health checker
func New(cluster Cluster, logger *zap.Logger) *Checker {
	return &Checker{
		cluster: cluster,
		logger:  logger,
	}
}

// CheckAll performs all health checks
func (c *Checker) CheckAll(ctx context.Context) (Status, []Check) {
	connectivity := c.checkConnectivity(ctx)
	checks := []Check{connectivity}
	if connectivity.Status != StatusUnhealthy {
		checks = append(checks, c.checkClusterHealth(ctx))
	}

	overallStatus := StatusHealthy
	for _, check := range checks {
		if check.Status == StatusUnhealthy {
			overallStatus = StatusUnhealthy
			break
		} else if check.Status == StatusDegraded && overallStatus == StatusHealthy {
			overallStatus = StatusDegraded
		}
	}

	return overallStatus, checks
}

// checkConnectivity pings the cluster through the client handle
func (c *Checker) checkConnectivity(ctx context.Context) Check {
	start := time.Now()
	check := Check{
		Name:      "cluster_connectivity",
		Timestamp: start,
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := c.cluster.Ping(checkCtx)
	check.Duration = time.Since(start)

	switch {
	case err != nil:
		check.Status = StatusUnhealthy
		check.Message = fmt.Sprintf("Cluster unreachable: %v", err)
		c.logger.Warn("Health check failed: cluster connectivity",
			zap.Error(err),
			zap.Duration("duration", check.Duration),
		)
	case check.Duration > slowThreshold:
		check.Status = StatusDegraded
		check.Message = "Cluster responding slowly"
	default:
		check.Status = StatusHealthy
		check.Message = "Cluster reachable"
		c.logger.Debug("Health check passed: cluster connectivity",
			zap.Duration("duration", check.Duration),
		)
	}

	return check
}

// checkClusterHealth maps the cluster's own status: red is unhealthy,
// yellow is degraded.
func (c *Checker) checkClusterHealth(ctx context.Context) Check {
	start := time.Now()
	check := Check{
		Name:      "cluster_health",
		Timestamp: start,
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	h, err := c.cluster.Health(checkCtx)
	check.Duration = time.Since(start)

	if err != nil {
		// Reachable but health is not readable, e.g. missing monitor privilege
		check.Status = StatusDegraded
		check.Message = fmt.Sprintf("Cluster health unavailable: %v", err)
		c.logger.Warn("Health check failed: cluster health", zap.Error(err))
		return check
	}

	switch h.Status {
	case "green":
		check.Status = StatusHealthy
	case "yellow":
		check.Status = StatusDegraded
	default:
		check.Status = StatusUnhealthy
	}
	check.Message = fmt.Sprintf("Cluster %s is %s (%d nodes, %d unassigned shards)",
		h.ClusterName, h.Status, h.NumberOfNodes, h.UnassignedShards)
	return check
}
