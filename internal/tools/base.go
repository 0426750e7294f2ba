package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/tareqmamari/elasticsearch-mcp-server/internal/budget"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/capability"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/cluster"
	apperrors "github.com/tareqmamari/elasticsearch-mcp-server/internal/errors"
)

// Budget parameter names shared by every tool
const (
	ParamDetailLevel    = "detail_level"
	ParamMaxTokens      = "max_tokens"
	ParamBreakTokenRule = "break_token_rule"
	ParamEnforceBudget  = "enforce_budget"
)

// BaseTool provides common functionality for all tools
type BaseTool struct {
	api    *cluster.API
	shaper *budget.Shaper
	logger *zap.Logger
}

// NewBaseTool creates a new base tool
func NewBaseTool(api *cluster.API, shaper *budget.Shaper, logger *zap.Logger) *BaseTool {
	return &BaseTool{
		api:    api,
		shaper: shaper,
		logger: logger,
	}
}

// DefaultTimeout returns 0 so the server default applies
func (t *BaseTool) DefaultTimeout() time.Duration { return 0 }

// RequiredFeature returns "" for tools that work on every cluster
func (t *BaseTool) RequiredFeature() capability.Feature { return "" }

// budgetProperties are the JSON Schema properties every tool accepts
func budgetProperties() map[string]interface{} {
	return map[string]interface{}{
		ParamDetailLevel: map[string]interface{}{
			"type":        "string",
			"enum":        budget.LevelValues(),
			"description": "Response detail. auto (default) picks the richest level that fits the token budget; raw returns the unprocessed cluster response.",
		},
		ParamMaxTokens: map[string]interface{}{
			"type":        "integer",
			"minimum":     1,
			"description": "Token budget for this call. Defaults to the server's MAX_TOKEN_CALL.",
		},
		ParamBreakTokenRule: map[string]interface{}{
			"type":        "boolean",
			"description": "Accept a response larger than the token budget",
		},
		ParamEnforceBudget: map[string]interface{}{
			"type":        "boolean",
			"description": "Degrade an explicit compact/minimal request further when it still exceeds the budget",
		},
	}
}

// objectSchema builds an input schema from tool properties plus the budget
// properties.
func objectSchema(properties map[string]interface{}, required ...string) map[string]interface{} {
	props := budgetProperties()
	for k, v := range properties {
		props[k] = v
	}
	schema := map[string]interface{}{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// BudgetOptions parses the shared budget parameters
func BudgetOptions(args map[string]interface{}) (budget.Options, error) {
	var opts budget.Options

	level, err := GetStringParam(args, ParamDetailLevel, false)
	if err != nil {
		return opts, err
	}
	if opts.Level, err = budget.ParseLevel(level); err != nil {
		return opts, apperrors.NewInvalidInput(err.Error()).
			WithSuggestion(fmt.Sprintf("Use one of: %v", budget.LevelValues()))
	}

	if opts.Budget, err = GetIntParam(args, ParamMaxTokens, false); err != nil {
		return opts, err
	}
	if opts.Budget < 0 {
		return opts, apperrors.NewInvalidInput("max_tokens must be positive")
	}
	if opts.AllowOverride, err = GetBoolParam(args, ParamBreakTokenRule, false); err != nil {
		return opts, err
	}
	if opts.Enforce, err = GetBoolParam(args, ParamEnforceBudget, false); err != nil {
		return opts, err
	}
	return opts, nil
}

// Shape renders summary through the shaper and wraps it as a tool result.
// Budget overage never fails the call; the envelope text carries the note.
func (t *BaseTool) Shape(ctx context.Context, raw any, summary budget.Renderable, opts budget.Options) *mcp.CallToolResult {
	env := t.shaper.Shape(raw, summary, opts)
	recordShaping(ctx, env)
	if err := env.Overage(); err != nil {
		t.logger.Debug("Returning response over budget", zap.Error(err))
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: env.Text}},
	}
}
