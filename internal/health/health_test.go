package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tareqmamari/elasticsearch-mcp-server/internal/model"
)

type fakeCluster struct {
	pingErr   error
	health    *model.ClusterHealth
	healthErr error
}

func (f *fakeCluster) Ping(context.Context) error { return f.pingErr }

func (f *fakeCluster) Health(context.Context) (*model.ClusterHealth, error) {
	return f.health, f.healthErr
}

func TestCheckAll(t *testing.T) {
	tests := []struct {
		name    string
		cluster *fakeCluster
		want    Status
		checks  int
	}{
		{"green", &fakeCluster{health: &model.ClusterHealth{Status: "green"}}, StatusHealthy, 2},
		{"yellow", &fakeCluster{health: &model.ClusterHealth{Status: "yellow"}}, StatusDegraded, 2},
		{"red", &fakeCluster{health: &model.ClusterHealth{Status: "red"}}, StatusUnhealthy, 2},
		{"unreachable", &fakeCluster{pingErr: errors.New("connection refused")}, StatusUnhealthy, 1},
		{"health forbidden", &fakeCluster{healthErr: errors.New("403")}, StatusDegraded, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, checks := New(tt.cluster, zap.NewNop()).CheckAll(context.Background())
			assert.Equal(t, tt.want, status)
			assert.Len(t, checks, tt.checks)
		})
	}
}

func TestServer_Endpoints(t *testing.T) {
	cluster := &fakeCluster{health: &model.ClusterHealth{ClusterName: "dev", Status: "green", NumberOfNodes: 3}}
	s := NewServer(New(cluster, zap.NewNop()), zap.NewNop(), 0, "", prometheus.NewRegistry())
	s.SetCluster("Elasticsearch 8.11.0")
	h := s.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, "Elasticsearch 8.11.0", resp.Cluster)
	assert.Contains(t, resp.Checks[1].Message, "Cluster dev is green (3 nodes")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	s.SetReady(true)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/live", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServer_UnhealthyReturns503(t *testing.T) {
	s := NewServer(New(&fakeCluster{pingErr: errors.New("down")}, zap.NewNop()), zap.NewNop(), 0, "", nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
