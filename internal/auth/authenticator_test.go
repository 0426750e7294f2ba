package auth

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewAuthenticator(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name     string
		creds    Credentials
		wantMode string
		wantErr  bool
	}{
		{
			name:     "api key",
			creds:    Credentials{APIKey: "dGVzdDprZXk="}, //nolint:gosec // test value, not a real secret
			wantMode: ModeAPIKey,
		},
		{
			name:     "basic auth",
			creds:    Credentials{Username: "elastic", Password: "changeme"}, //nolint:gosec // test value
			wantMode: ModeBasic,
		},
		{
			name:     "no credentials",
			creds:    Credentials{},
			wantMode: ModeNone,
		},
		{
			name:    "username without password",
			creds:   Credentials{Username: "elastic"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := New(tt.creds, logger)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMode, a.Mode())
		})
	}
}

func TestAuthenticate_Headers(t *testing.T) {
	logger := zap.NewNop()

	t.Run("api key header", func(t *testing.T) {
		a, err := New(Credentials{APIKey: "abc123"}, logger)
		require.NoError(t, err)

		req, _ := http.NewRequest(http.MethodGet, "http://localhost:9200/", nil)
		require.NoError(t, a.Authenticate(req))
		assert.Equal(t, "ApiKey abc123", req.Header.Get("Authorization"))
	})

	t.Run("basic header", func(t *testing.T) {
		a, err := New(Credentials{Username: "elastic", Password: "changeme"}, logger)
		require.NoError(t, err)

		req, _ := http.NewRequest(http.MethodGet, "http://localhost:9200/", nil)
		require.NoError(t, a.Authenticate(req))
		want := "Basic " + base64.StdEncoding.EncodeToString([]byte("elastic:changeme"))
		assert.Equal(t, want, req.Header.Get("Authorization"))
	})

	t.Run("no auth leaves header empty", func(t *testing.T) {
		a, err := New(Credentials{}, logger)
		require.NoError(t, err)

		req, _ := http.NewRequest(http.MethodGet, "http://localhost:9200/", nil)
		require.NoError(t, a.Authenticate(req))
		assert.Empty(t, req.Header.Get("Authorization"))
	})

	t.Run("nil request", func(t *testing.T) {
		a, err := New(Credentials{}, logger)
		require.NoError(t, err)
		assert.Error(t, a.Authenticate(nil))
	})
}

func TestRoundTripper(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	a, err := New(Credentials{APIKey: "key-1"}, zap.NewNop())
	require.NoError(t, err)

	client := &http.Client{Transport: a.RoundTripper(nil)}
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	resp, err := client.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, "ApiKey key-1", got)
	// the caller's request is not mutated
	assert.Empty(t, req.Header.Get("Authorization"))
}
