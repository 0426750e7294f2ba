package version

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/tareqmamari/elasticsearch-mcp-server/internal/errors"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Info
		wantErr bool
	}{
		{in: "7.10.2", want: Info{Major: 7, Minor: 10, Patch: 2, Full: "7.10.2"}},
		{in: "8.0.0-SNAPSHOT", want: Info{Major: 8, Minor: 0, Patch: 0, Full: "8.0.0-SNAPSHOT"}},
		{in: "6.8", want: Info{Major: 6, Minor: 8, Patch: 0, Full: "6.8"}},
		{in: "5.6.16", want: Info{Major: 5, Minor: 6, Patch: 16, Full: "5.6.16"}},
		{in: "7.17.0-rc1", want: Info{Major: 7, Minor: 17, Full: "7.17.0-rc1"}},
		{in: "", wantErr: true},
		{in: "seven", wantErr: true},
		{in: "7", wantErr: true},
		{in: "7.x.1", wantErr: true},
		{in: "1.2.3.4", wantErr: true},
		{in: "7..1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.HasCode(err, apperrors.CodeParse))
				return
			}
			require.NoError(t, err)
			tt.want.Distribution = Elasticsearch
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_RoundTrip(t *testing.T) {
	for major := 0; major <= 9; major++ {
		for minor := 0; minor <= 20; minor += 3 {
			for _, patch := range []int{0, 1, 17} {
				s := fmt.Sprintf("%d.%d.%d", major, minor, patch)
				info, err := Parse(s)
				require.NoError(t, err)
				assert.Equal(t, s, info.String())
			}
		}
	}
}

func TestInfo_Compare(t *testing.T) {
	v := Info{Major: 7, Minor: 10}

	assert.True(t, v.AtLeast(7, 10))
	assert.True(t, v.AtLeast(7, 9))
	assert.True(t, v.AtLeast(6, 99))
	assert.False(t, v.AtLeast(7, 11))
	assert.False(t, v.AtLeast(8, 0))
	assert.True(t, v.Before(8, 0))
	assert.False(t, v.Before(7, 10))
}

func TestInfo_Effective(t *testing.T) {
	os := Info{Major: 2, Minor: 11, Patch: 0, Full: "2.11.0", Distribution: OpenSearch}
	eff := os.Effective()
	assert.Equal(t, 7, eff.Major)
	assert.Equal(t, 10, eff.Minor)
	assert.Equal(t, "OpenSearch 2.11.0", os.Label())

	es := Info{Major: 8, Minor: 12, Distribution: Elasticsearch}
	assert.Equal(t, es, es.Effective())
}

func rootHandler(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func TestProbe(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		want     Info
		wantCode apperrors.ErrorCode
	}{
		{
			name:   "elasticsearch 8",
			status: http.StatusOK,
			body:   `{"name":"node-1","cluster_name":"es","version":{"number":"8.12.1","build_flavor":"default"},"tagline":"You Know, for Search"}`,
			want:   Info{Major: 8, Minor: 12, Patch: 1, Full: "8.12.1", Distribution: Elasticsearch},
		},
		{
			name:   "elasticsearch 5",
			status: http.StatusOK,
			body:   `{"version":{"number":"5.6.16"}}`,
			want:   Info{Major: 5, Minor: 6, Patch: 16, Full: "5.6.16", Distribution: Elasticsearch},
		},
		{
			name:   "opensearch",
			status: http.StatusOK,
			body:   `{"version":{"distribution":"opensearch","number":"2.11.0"},"tagline":"The OpenSearch Project"}`,
			want:   Info{Major: 2, Minor: 11, Patch: 0, Full: "2.11.0", Distribution: OpenSearch},
		},
		{
			name:     "unauthorized",
			status:   http.StatusUnauthorized,
			body:     `{"error":"security_exception"}`,
			wantCode: apperrors.CodeProtocol,
		},
		{
			name:     "not json",
			status:   http.StatusOK,
			body:     `<html>proxy</html>`,
			wantCode: apperrors.CodeProtocol,
		},
		{
			name:     "missing version",
			status:   http.StatusOK,
			body:     `{"name":"node-1"}`,
			wantCode: apperrors.CodeParse,
		},
		{
			name:     "malformed version",
			status:   http.StatusOK,
			body:     `{"version":{"number":"banana"}}`,
			wantCode: apperrors.CodeParse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(rootHandler(tt.status, tt.body))
			defer server.Close()

			got, err := Probe(context.Background(), server.Client(), server.URL+"/")
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, apperrors.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProbe_ConnectionError(t *testing.T) {
	server := httptest.NewServer(rootHandler(http.StatusOK, `{}`))
	url := server.URL
	server.Close()

	_, err := Probe(context.Background(), http.DefaultClient, url)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConnection))
}

func TestProbe_SendsCredentialsFromTransport(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"version":{"number":"7.17.9"}}`))
	}))
	defer server.Close()

	client := &http.Client{Transport: headerTransport{key: "ApiKey secret"}}
	_, err := Probe(context.Background(), client, server.URL)
	require.NoError(t, err)
	assert.Equal(t, "ApiKey secret", gotAuth)
}

type headerTransport struct{ key string }

func (h headerTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.Header.Set("Authorization", h.key)
	return http.DefaultTransport.RoundTrip(r)
}
