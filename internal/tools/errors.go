package tools

import (
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	apperrors "github.com/tareqmamari/elasticsearch-mcp-server/internal/errors"
)

// NewToolResultError creates a new tool result with an error message
func NewToolResultError(message string) *mcp.CallToolResult {
	if message == "" {
		message = "An unknown error occurred"
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{
				Text: message,
			},
		},
		IsError: true,
	}
}

// NewToolResultErrorWithSuggestion creates a tool result with an error and recovery guidance
func NewToolResultErrorWithSuggestion(message, suggestion string) *mcp.CallToolResult {
	if suggestion == "" {
		return NewToolResultError(message)
	}
	fullMessage := fmt.Sprintf("%s\n\n💡 **Suggestion:** %s", message, suggestion)
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{
				Text: fullMessage,
			},
		},
		IsError: true,
	}
}

// HandleError converts err into an IsError tool result. Structured errors
// keep their code and suggestion; anything else is reported as-is.
func HandleError(err error) *mcp.CallToolResult {
	var se *apperrors.StructuredError
	if !errors.As(err, &se) {
		return NewToolResultError(err.Error())
	}

	message := fmt.Sprintf("[%s] %s", se.Code, se.Message)
	if cause := errors.Unwrap(se); cause != nil {
		message += ": " + cause.Error()
	}
	suggestion := se.Suggestion
	if suggestion == "" {
		suggestion = defaultSuggestion(se.Code)
	}
	return NewToolResultErrorWithSuggestion(message, suggestion)
}

func defaultSuggestion(code apperrors.ErrorCode) string {
	switch code {
	case apperrors.CodeCapabilityGap:
		return "Use get_cluster_info to see which features this cluster supports."
	case apperrors.CodeConflict:
		return "Re-read the resource and retry the request."
	default:
		return ""
	}
}
