// Package prompts provides pre-built prompts for common Elasticsearch
// investigations. Each prompt walks the client through the tools in an order
// that keeps responses inside the token budget.
package prompts

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	apperrors "github.com/tareqmamari/elasticsearch-mcp-server/internal/errors"
)

// PromptDefinition represents a prompt with its metadata and handler
type PromptDefinition struct {
	// Prompt is the MCP prompt metadata
	Prompt *mcp.Prompt
	// Handler is the function that generates the prompt content
	Handler mcp.PromptHandler
}

// Registry holds all registered prompts
type Registry struct {
	logger  *zap.Logger
	prompts []*PromptDefinition
}

// NewRegistry creates a new prompt registry with all available prompts
func NewRegistry(logger *zap.Logger) *Registry {
	r := &Registry{
		logger: logger,
	}
	r.prompts = []*PromptDefinition{
		r.clusterHealthReviewPrompt(),
		r.indexInventoryPrompt(),
		r.mappingReviewPrompt(),
	}
	return r
}

// GetPrompts returns all registered prompt definitions
func (r *Registry) GetPrompts() []*PromptDefinition {
	return r.prompts
}

func createPromptResult(description, content string) *mcp.GetPromptResult {
	return &mcp.GetPromptResult{
		Description: description,
		Messages: []*mcp.PromptMessage{
			{
				Role: "user",
				Content: &mcp.TextContent{
					Text: content,
				},
			},
		},
	}
}

// getStringArg safely extracts a string argument with a default value
func getStringArg(req *mcp.GetPromptRequest, key, defaultVal string) string {
	if req == nil || req.Params == nil {
		return defaultVal
	}
	if val, ok := req.Params.Arguments[key]; ok && val != "" {
		return val
	}
	return defaultVal
}

func (r *Registry) clusterHealthReviewPrompt() *PromptDefinition {
	return &PromptDefinition{
		Prompt: &mcp.Prompt{
			Name:        "cluster_health_review",
			Title:       "Cluster Health Review",
			Description: "Review cluster health, shard balance and unassigned shards",
			Arguments: []*mcp.PromptArgument{
				{
					Name:        "index_pattern",
					Description: "Limit the shard review to indices matching this pattern (default: all)",
					Required:    false,
				},
			},
		},
		Handler: func(_ context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
			pattern := getStringArg(req, "index_pattern", "*")

			content := fmt.Sprintf(`Let's review the health of this Elasticsearch cluster.

1. Run get_cluster_info to see the version, status and which features this cluster supports.
2. Run get_shards with index_pattern "%s". Check hot shards, unassigned shards and node imbalance.
3. If the cluster is yellow or red, run list_indices with health "red" and then "yellow" to find the affected indices.
4. For any index with unassigned shards, check whether its replica count exceeds the number of data nodes.

Keep detail_level at the default unless a finding needs the full shard table. Summarize the problems found, ordered by severity, with a concrete next step for each.`, pattern)

			return createPromptResult("Cluster health review workflow", content), nil
		},
	}
}

func (r *Registry) indexInventoryPrompt() *PromptDefinition {
	return &PromptDefinition{
		Prompt: &mcp.Prompt{
			Name:        "index_inventory",
			Title:       "Index Inventory",
			Description: "Inventory indices and data streams, grouped by naming pattern and size",
			Arguments: []*mcp.PromptArgument{
				{
					Name:        "index_pattern",
					Description: "Index pattern to inventory (default: *)",
					Required:    false,
				},
				{
					Name:        "max_tokens",
					Description: "Token budget for each tool response",
					Required:    false,
				},
			},
		},
		Handler: func(_ context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
			pattern := getStringArg(req, "index_pattern", "*")
			budgetHint := ""
			if maxTokens := getStringArg(req, "max_tokens", ""); maxTokens != "" {
				budgetHint = fmt.Sprintf(" Pass max_tokens %s to every call.", maxTokens)
			}

			content := fmt.Sprintf(`Let's build an inventory of the indices matching "%s".%s

1. Run list_indices with index_pattern "%s" and exclude_system true. Large clusters return a grouped summary: note the biggest naming patterns, time-series families and empty indices.
2. Run get_data_streams with name_pattern "%s" if the cluster supports data streams. Note streams without a lifecycle policy.
3. Drill into one naming pattern at a time by re-running list_indices with a narrower index_pattern and detail_level "full".

Report the total size, the largest patterns, and any indices that look abandoned (empty, closed or unhealthy).`, pattern, budgetHint, pattern, pattern)

			return createPromptResult("Index inventory workflow", content), nil
		},
	}
}

func (r *Registry) mappingReviewPrompt() *PromptDefinition {
	return &PromptDefinition{
		Prompt: &mcp.Prompt{
			Name:        "mapping_review",
			Title:       "Mapping Review",
			Description: "Review the field mappings of an index for type conflicts and unused capabilities",
			Arguments: []*mcp.PromptArgument{
				{
					Name:        "index",
					Description: "Index or pattern whose mappings should be reviewed",
					Required:    true,
				},
			},
		},
		Handler: func(_ context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
			index := getStringArg(req, "index", "")
			if index == "" {
				return nil, apperrors.NewMissingParameter("index")
			}

			content := fmt.Sprintf(`Let's review the mappings of "%s".

1. Run get_mappings with index "%s". Read the field type counts and how many fields are searchable, aggregatable and sortable.
2. If several indices match, look at the fields whose type differs between indices. These break aggregations across the pattern.
3. Re-run get_mappings with capability "aggregatable" or a field_pattern to inspect a subset in detail.

List type conflicts, text fields without a keyword subfield that are likely aggregated, and deeply nested objects. Suggest mapping changes for new indices only, since existing mappings cannot change type.`, index, index)

			return createPromptResult("Mapping review workflow", content), nil
		},
	}
}
