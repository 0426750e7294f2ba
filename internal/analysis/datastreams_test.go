package analysis

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tareqmamari/elasticsearch-mcp-server/internal/budget"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/model"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func backing(n int, health string, sizeGB float64, docs uint64) []model.BackingIndex {
	out := make([]model.BackingIndex, n)
	for i := range out {
		out[i] = model.BackingIndex{
			Name:           fmt.Sprintf(".ds-logs-app-2024.01.01-%06d", i+1),
			Health:         health,
			Status:         "open",
			DocCount:       docs,
			StoreSizeBytes: gib(sizeGB),
			CreationDate:   epoch.Add(time.Duration(i) * 24 * time.Hour),
			Found:          true,
		}
	}
	return out
}

func stream(indices []model.BackingIndex, policy string) model.DataStreamRecord {
	return model.DataStreamRecord{Name: "logs-app", TimestampField: "@timestamp", BackingIndices: indices, Generation: len(indices), ILMPolicy: policy}
}

func severities(issues []Issue) []string {
	out := make([]string, len(issues))
	for i, is := range issues {
		out[i] = is.Severity
	}
	return out
}

func TestAnalyzeDataStream_Healthy(t *testing.T) {
	a := AnalyzeDataStream(stream(backing(10, "green", 10, 1000), "logs"), DataStreamOptions{})
	assert.Equal(t, HealthHealthy, a.Health)
	assert.Empty(t, a.Issues)
}

func TestAnalyzeDataStream_RedIsAlwaysCritical(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.DataStreamRecord)
	}{
		{"otherwise healthy", func(*model.DataStreamRecord) {}},
		{"no policy", func(d *model.DataStreamRecord) { d.ILMPolicy = "" }},
		{"yellow too", func(d *model.DataStreamRecord) { d.BackingIndices[1].Health = "yellow" }},
		{"oversized write index", func(d *model.DataStreamRecord) { d.BackingIndices[2].StoreSizeBytes = gib(80) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := stream(backing(3, "green", 1, 10), "logs")
			ds.BackingIndices[0].Health = "red"
			tt.mutate(&ds)
			a := AnalyzeDataStream(ds, DataStreamOptions{})
			assert.Equal(t, HealthCritical, a.Health)
			assert.Equal(t, HealthCritical, a.Issues[0].Severity)
			for _, is := range a.Issues {
				assert.NotEmpty(t, is.Recommendation)
			}
		})
	}
}

func TestAnalyzeDataStream_Conditions(t *testing.T) {
	tests := []struct {
		name   string
		ds     model.DataStreamRecord
		opts   DataStreamOptions
		health string
		issues []string
	}{
		{"too many backing indices", stream(backing(201, "green", 1, 1), "p"), DataStreamOptions{}, HealthCritical, []string{HealthCritical}},
		{"yellow", stream(backing(5, "yellow", 1, 1), "p"), DataStreamOptions{}, HealthWarning, []string{HealthWarning}},
		{"oversized write index", func() model.DataStreamRecord {
			ds := stream(backing(10, "green", 1, 1), "p")
			ds.BackingIndices[9].StoreSizeBytes = gib(60)
			return ds
		}(), DataStreamOptions{}, HealthWarning, []string{HealthWarning}},
		{"few large indices", stream(backing(3, "green", 40, 1), "p"), DataStreamOptions{}, HealthWarning, []string{HealthWarning}},
		{"many small indices", stream(backing(150, "green", 0.1, 1), "p"), DataStreamOptions{}, HealthWarning, []string{HealthWarning}},
		{"missing policy", stream(backing(10, "green", 1, 1), ""), DataStreamOptions{}, HealthWarning, []string{HealthWarning}},
		{"missing policy skipped", stream(backing(10, "green", 1, 1), ""), DataStreamOptions{SkipPolicyCheck: true}, HealthHealthy, []string{}},
		{"lifecycle managed", func() model.DataStreamRecord {
			ds := stream(backing(10, "green", 1, 1), "")
			ds.LifecycleManaged = true
			return ds
		}(), DataStreamOptions{}, HealthHealthy, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := AnalyzeDataStream(tt.ds, tt.opts)
			assert.Equal(t, tt.health, a.Health)
			assert.Equal(t, tt.issues, severities(a.Issues))
		})
	}
}

func TestAnalyzeDataStream_Stats(t *testing.T) {
	indices := backing(3, "green", 2, 2400)
	indices[1].Found = false

	a := AnalyzeDataStream(stream(indices, "p"), DataStreamOptions{})
	st := a.Stats

	assert.Equal(t, 3, st.BackingCount)
	assert.Equal(t, 1, st.MissingStats)
	assert.Equal(t, uint64(4800), st.TotalDocs)
	assert.Equal(t, gib(4), st.TotalSizeBytes)
	require.NotNil(t, st.Oldest)
	require.NotNil(t, st.Newest)
	assert.Equal(t, indices[0].Name, st.Oldest.Name)
	assert.Equal(t, indices[2].Name, st.Newest.Name)
	assert.InDelta(t, 48.0, st.AgeHours, 0.001)
	assert.InDelta(t, 100.0, st.IngestionRatePerHour, 0.001)
}

func TestSummarizeDataStreams(t *testing.T) {
	healthy := stream(backing(2, "green", 1, 1), "p")
	healthy.Name = "b-healthy"
	critical := stream(backing(2, "red", 1, 1), "p")
	critical.Name = "z-critical"
	warning := stream(backing(2, "green", 1, 1), "")
	warning.Name = "a-warning"

	s := SummarizeDataStreams([]model.DataStreamRecord{healthy, warning, critical}, DataStreamOptions{})
	require.Equal(t, 3, s.Len())
	assert.False(t, s.SummaryMode)
	assert.Equal(t, "z-critical", s.Streams[0].Stream.Name)
	assert.Equal(t, "a-warning", s.Streams[1].Stream.Name)
	assert.Equal(t, map[string]int{HealthHealthy: 1, HealthWarning: 1, HealthCritical: 1}, s.Health)

	assert.Contains(t, s.Render(budget.LevelFull), "### z-critical (Critical)")
	assert.Contains(t, s.Render(budget.LevelMinimal), "Critical: z-critical")
}

func TestSummarizeDataStreams_SummaryMode(t *testing.T) {
	var records []model.DataStreamRecord
	for i := 0; i < 60; i++ {
		ds := stream(backing(2, "green", 1, 1), "p")
		ds.Name = fmt.Sprintf("stream-%02d", i)
		records = append(records, ds)
	}
	s := SummarizeDataStreams(records, DataStreamOptions{})
	require.True(t, s.SummaryMode)

	full := s.Render(budget.LevelFull)
	assert.Contains(t, full, "Summary mode: 60 data streams")
	assert.Contains(t, full, "Healthy (60):")
	assert.NotContains(t, full, "### stream-00")
}

func TestSummarizeDataStreams_MissingStatsNote(t *testing.T) {
	var records []model.DataStreamRecord
	for i := 0; i < 60; i++ {
		indices := backing(2, "green", 1, 1)
		if i < 3 {
			indices[0].Found = false
		}
		ds := stream(indices, "p")
		ds.Name = fmt.Sprintf("stream-%02d", i)
		records = append(records, ds)
	}
	s := SummarizeDataStreams(records, DataStreamOptions{})
	assert.Equal(t, 3, s.MissingStats)

	for _, level := range []budget.Level{budget.LevelFull, budget.LevelCompact, budget.LevelMinimal} {
		assert.Contains(t, s.Render(level), "stats unavailable for 3 backing index(es)", string(level))
	}

	clean := SummarizeDataStreams(records[3:], DataStreamOptions{})
	assert.Zero(t, clean.MissingStats)
	assert.NotContains(t, clean.Render(budget.LevelMinimal), "stats unavailable")
}

func TestDataStreamsSummary_Detail(t *testing.T) {
	indices := backing(25, "green", 1, 1)
	indices[24].Found = false
	s := SummarizeDataStreams([]model.DataStreamRecord{stream(indices, "p")}, DataStreamOptions{})
	d := s.Detail()
	assert.Contains(t, d, "### logs-app (Healthy)")
	assert.Contains(t, d, "(5 older omitted)")
	assert.Contains(t, d, "stats unavailable")
}
