// Package errors provides the structured error taxonomy shared by the
// bootstrap path and the tool handlers.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
)

// ErrorCategory classifies the type of error
type ErrorCategory string

const (
	// ClientError indicates the error was caused by the caller (bad input, 4xx)
	ClientError ErrorCategory = "CLIENT_ERROR"
	// ServerError indicates the error was caused by this server
	ServerError ErrorCategory = "SERVER_ERROR"
	// ExternalError indicates the error was caused by the cluster or the network
	ExternalError ErrorCategory = "EXTERNAL_ERROR"
)

// ErrorCode represents a structured error code
type ErrorCode string

const (
	// Client errors
	CodeInvalidInput     ErrorCode = "INVALID_INPUT"
	CodeMissingParameter ErrorCode = "MISSING_PARAMETER"
	CodeResourceNotFound ErrorCode = "RESOURCE_NOT_FOUND"
	CodeUnauthorized     ErrorCode = "UNAUTHORIZED"
	CodeForbidden        ErrorCode = "FORBIDDEN"
	CodeConflict         ErrorCode = "CONFLICT"
	CodeRateLimited      ErrorCode = "RATE_LIMIT_EXCEEDED"

	// Server errors
	CodeInternalError ErrorCode = "INTERNAL_ERROR"
	CodeConfiguration ErrorCode = "CONFIGURATION_ERROR"
	CodeCapabilityGap ErrorCode = "CAPABILITY_GAP"
	CodeBudgetExceed  ErrorCode = "BUDGET_EXCEEDED"
	CodeTimeout       ErrorCode = "TIMEOUT"

	// External errors
	CodeConnection ErrorCode = "CONNECTION_ERROR"
	CodeProtocol   ErrorCode = "PROTOCOL_ERROR"
	CodeParse      ErrorCode = "PARSE_ERROR"
	CodeAPIError   ErrorCode = "API_ERROR"
)

// StructuredError represents a detailed error with category, code, and recovery suggestion
type StructuredError struct {
	Code       ErrorCode     `json:"code"`
	Category   ErrorCategory `json:"category"`
	Message    string        `json:"message"`
	Details    interface{}   `json:"details,omitempty"`
	Suggestion string        `json:"suggestion,omitempty"`

	cause error
}

// Error implements the error interface
func (e *StructuredError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %s: %v", e.Code, e.Category, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Category, e.Message)
}

// Unwrap returns the underlying cause, if any
func (e *StructuredError) Unwrap() error {
	return e.cause
}

// ToJSON converts the error to JSON string
func (e *StructuredError) ToJSON() string {
	bytes, err := json.Marshal(e)
	if err != nil {
		return fmt.Sprintf(`{"code":"%s","category":"%s","message":"%s"}`, e.Code, e.Category, e.Message)
	}
	return string(bytes)
}

// New creates a new structured error
func New(code ErrorCode, category ErrorCategory, message string) *StructuredError {
	return &StructuredError{
		Code:     code,
		Category: category,
		Message:  message,
	}
}

// WithDetails adds details to the error
func (e *StructuredError) WithDetails(details interface{}) *StructuredError {
	e.Details = details
	return e
}

// WithSuggestion adds a recovery suggestion to the error
func (e *StructuredError) WithSuggestion(suggestion string) *StructuredError {
	e.Suggestion = suggestion
	return e
}

// WithCause attaches the underlying error
func (e *StructuredError) WithCause(err error) *StructuredError {
	e.cause = err
	return e
}

// HasCode reports whether err, or any error it wraps, is a StructuredError with the given code.
func HasCode(err error, code ErrorCode) bool {
	var se *StructuredError
	if stderrors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// CodeOf returns the code of the first StructuredError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var se *StructuredError
	if stderrors.As(err, &se) {
		return se.Code
	}
	return ""
}

// Common error constructors

// NewInvalidInput creates an invalid input error
func NewInvalidInput(message string) *StructuredError {
	return New(CodeInvalidInput, ClientError, message).
		WithSuggestion("Check the input parameters and try again")
}

// NewMissingParameter creates a missing parameter error
func NewMissingParameter(param string) *StructuredError {
	return New(CodeMissingParameter, ClientError, fmt.Sprintf("Required parameter '%s' is missing", param)).
		WithSuggestion(fmt.Sprintf("Provide the '%s' parameter", param))
}

// NewResourceNotFound creates a resource not found error
func NewResourceNotFound(resourceType, name string) *StructuredError {
	return New(CodeResourceNotFound, ClientError, fmt.Sprintf("%s '%s' not found", resourceType, name)).
		WithSuggestion("Use list_indices to see which indices exist")
}

// NewInternalError creates an internal server error
func NewInternalError(message string) *StructuredError {
	return New(CodeInternalError, ServerError, message).
		WithSuggestion("Try again later or report the issue if it persists")
}

// NewTimeout creates a timeout error
func NewTimeout(operation string) *StructuredError {
	return New(CodeTimeout, ServerError, fmt.Sprintf("Operation '%s' timed out", operation)).
		WithSuggestion("Narrow the index pattern or query and try again")
}

// NewConnection creates a connection error for network failures, DNS, and timeouts
func NewConnection(target string, cause error) *StructuredError {
	return New(CodeConnection, ExternalError, fmt.Sprintf("cannot reach cluster at %s", target)).
		WithCause(cause).
		WithSuggestion("Check ES_URL, network access, and that the cluster is running")
}

// NewProtocol creates a protocol error for unexpected status codes or malformed bodies
func NewProtocol(message string) *StructuredError {
	return New(CodeProtocol, ExternalError, message).
		WithSuggestion("Verify ES_URL points at an Elasticsearch or OpenSearch HTTP endpoint")
}

// NewParse creates a parse error for unreadable version strings
func NewParse(message string) *StructuredError {
	return New(CodeParse, ExternalError, message).
		WithSuggestion("The cluster root endpoint did not report a usable version.number")
}

// NewConfiguration creates a configuration error
func NewConfiguration(message string) *StructuredError {
	return New(CodeConfiguration, ServerError, message).
		WithSuggestion("Fix the startup environment or config file and restart the server")
}

// NewCapabilityGap creates an error for a feature the cluster version does not support
func NewCapabilityGap(feature, version string) *StructuredError {
	return New(CodeCapabilityGap, ServerError, fmt.Sprintf("feature '%s' is not available on cluster version %s", feature, version))
}

// NewBudgetExceeded describes a response that did not fit its token budget
func NewBudgetExceeded(tokens, limit int) *StructuredError {
	return New(CodeBudgetExceed, ServerError, fmt.Sprintf("response needs ~%d tokens, budget is %d", tokens, limit)).
		WithDetails(map[string]interface{}{
			"tokens": tokens,
			"limit":  limit,
		}).
		WithSuggestion("Narrow the pattern, lower detail_level, or raise max_tokens")
}

// NewAPIError creates a cluster API error
func NewAPIError(statusCode int, message string) *StructuredError {
	return New(CodeAPIError, ExternalError, fmt.Sprintf("Elasticsearch API error (HTTP %d): %s", statusCode, message)).
		WithDetails(map[string]interface{}{
			"status_code": statusCode,
		}).
		WithSuggestion("Check cluster health and the request parameters")
}

// FromHTTPStatus creates an appropriate error from HTTP status code
func FromHTTPStatus(statusCode int, responseBody string) *StructuredError {
	switch {
	case statusCode == 400:
		return NewInvalidInput(responseBody)
	case statusCode == 401:
		return New(CodeUnauthorized, ClientError, "Authentication required or credentials invalid").
			WithSuggestion("Check ES_API_KEY or ES_USERNAME/ES_PASSWORD")
	case statusCode == 403:
		return New(CodeForbidden, ClientError, "Access forbidden").
			WithSuggestion("Check the privileges of the configured user or API key")
	case statusCode == 404:
		return New(CodeResourceNotFound, ClientError, "Resource not found").
			WithSuggestion("Use list_indices to see which indices exist")
	case statusCode == 409:
		return New(CodeConflict, ClientError, "Resource conflict")
	case statusCode == 429:
		return New(CodeRateLimited, ClientError, "Rate limit exceeded").
			WithSuggestion("Wait a moment and try again")
	case statusCode >= 500 && statusCode < 600:
		return NewAPIError(statusCode, responseBody)
	default:
		return NewProtocol(fmt.Sprintf("Unexpected HTTP status %d: %s", statusCode, responseBody))
	}
}
