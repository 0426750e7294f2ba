package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructuredError(t *testing.T) {
	tests := []struct {
		name     string
		error    *StructuredError
		wantCode ErrorCode
		wantCat  ErrorCategory
	}{
		{
			name:     "invalid input error",
			error:    NewInvalidInput("test message"),
			wantCode: CodeInvalidInput,
			wantCat:  ClientError,
		},
		{
			name:     "missing parameter error",
			error:    NewMissingParameter("index"),
			wantCode: CodeMissingParameter,
			wantCat:  ClientError,
		},
		{
			name:     "connection error",
			error:    NewConnection("http://localhost:9200", fmt.Errorf("dial tcp: refused")),
			wantCode: CodeConnection,
			wantCat:  ExternalError,
		},
		{
			name:     "protocol error",
			error:    NewProtocol("unexpected status 503"),
			wantCode: CodeProtocol,
			wantCat:  ExternalError,
		},
		{
			name:     "parse error",
			error:    NewParse("version.number missing"),
			wantCode: CodeParse,
			wantCat:  ExternalError,
		},
		{
			name:     "configuration error",
			error:    NewConfiguration("ES_URL is required"),
			wantCode: CodeConfiguration,
			wantCat:  ServerError,
		},
		{
			name:     "capability gap",
			error:    NewCapabilityGap("data_streams", "7.4.0"),
			wantCode: CodeCapabilityGap,
			wantCat:  ServerError,
		},
		{
			name:     "budget exceeded",
			error:    NewBudgetExceeded(30000, 20000),
			wantCode: CodeBudgetExceed,
			wantCat:  ServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, tt.error.Code)
			assert.Equal(t, tt.wantCat, tt.error.Category)
			assert.NotEmpty(t, tt.error.Message)
			assert.Contains(t, tt.error.Error(), string(tt.wantCode))
		})
	}
}

func TestStructuredError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := NewConnection("http://es:9200", cause)

	assert.True(t, stderrors.Is(err, cause))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestHasCode(t *testing.T) {
	wrapped := fmt.Errorf("bootstrap: %w", NewParse("bad version"))

	assert.True(t, HasCode(wrapped, CodeParse))
	assert.False(t, HasCode(wrapped, CodeProtocol))
	assert.False(t, HasCode(fmt.Errorf("plain"), CodeParse))
	assert.Equal(t, CodeParse, CodeOf(wrapped))
	assert.Equal(t, ErrorCode(""), CodeOf(nil))
}

func TestToJSON(t *testing.T) {
	err := NewBudgetExceeded(500, 100)
	out := err.ToJSON()

	require.True(t, strings.HasPrefix(out, "{"))
	assert.Contains(t, out, `"code":"BUDGET_EXCEEDED"`)
	assert.Contains(t, out, `"suggestion"`)
}

func TestFromHTTPStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorCode
	}{
		{400, CodeInvalidInput},
		{401, CodeUnauthorized},
		{403, CodeForbidden},
		{404, CodeResourceNotFound},
		{409, CodeConflict},
		{429, CodeRateLimited},
		{503, CodeAPIError},
		{302, CodeProtocol},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("HTTP %d", tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, FromHTTPStatus(tt.status, "body").Code)
		})
	}
}
