package analysis

import (
	"fmt"
	"strings"

	"github.com/tareqmamari/elasticsearch-mcp-server/internal/budget"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/format"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/model"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/version"
)

// ClusterOverview is the get_cluster_info summary
type ClusterOverview struct {
	Version        version.Info         `json:"version"`
	Root           model.RootInfo       `json:"root"`
	Health         *model.ClusterHealth `json:"health,omitempty"`
	Enabled        []string             `json:"capabilities"`
	Unavailable    []string             `json:"unavailable"`
	Implementation string               `json:"client_implementation"`
	Strategy       string               `json:"adapter"`
}

func (c *ClusterOverview) Kind() string           { return "cluster" }
func (c *ClusterOverview) Len() int               { return 1 }
func (c *ClusterOverview) Ladder() []budget.Level { return budget.StandardLadder }
func (c *ClusterOverview) Detail() string         { return c.Render(budget.LevelFull) }

func (c *ClusterOverview) Render(level budget.Level) string {
	var b strings.Builder
	name := c.Root.ClusterName
	if c.Health != nil && c.Health.ClusterName != "" {
		name = c.Health.ClusterName
	}
	status := "unknown"
	if c.Health != nil {
		status = c.Health.Status
	}

	if level == budget.LevelMinimal {
		fmt.Fprintf(&b, "%s · %s · %s\n", name, c.Version.Label(), status)
		return b.String()
	}

	fmt.Fprintf(&b, "Cluster: %s", name)
	if c.Root.ClusterUUID != "" {
		fmt.Fprintf(&b, " (%s)", c.Root.ClusterUUID)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Version: %s\n", c.Version.Label())
	fmt.Fprintf(&b, "Client: %s · adapter %s\n", c.Implementation, c.Strategy)

	if h := c.Health; h != nil {
		fmt.Fprintf(&b, "Health: %s · nodes %d (data %d)\n", label(h.Status), h.NumberOfNodes, h.NumberOfDataNodes)
		fmt.Fprintf(&b, "Shards: active %d (primary %d) · relocating %d · initializing %d · unassigned %d · %s active\n",
			h.ActiveShards, h.ActivePrimaryShards, h.RelocatingShards, h.InitializingShards, h.UnassignedShards,
			format.Percent(h.ActiveShardsPercent))
		if level == budget.LevelFull && h.PendingTasks > 0 {
			fmt.Fprintf(&b, "Pending tasks: %d\n", h.PendingTasks)
		}
	}

	fmt.Fprintf(&b, "Capabilities: %s\n", strings.Join(c.Enabled, ", "))
	if level == budget.LevelFull && len(c.Unavailable) > 0 {
		fmt.Fprintf(&b, "Unavailable: %s\n", strings.Join(c.Unavailable, ", "))
	}
	return b.String()
}
