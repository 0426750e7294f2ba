package analysis

import (
	"fmt"

	"github.com/tareqmamari/elasticsearch-mcp-server/internal/format"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/model"
)

// Data stream health thresholds
const (
	MaxBackingIndices = 200
	CurrentIndexMaxGB = 50.0
	FewIndicesMax     = 5
	FewIndicesMinGB   = 100.0
	ManyIndicesMin    = 100
	ManyIndicesMaxGB  = 50.0
)

// DataStreamOptions tunes the data stream analyzer
type DataStreamOptions struct {
	// SkipPolicyCheck disables the missing-policy warning on clusters that
	// have neither ILM nor data stream lifecycle
	SkipPolicyCheck bool
}

// Issue is one contributing health condition
type Issue struct {
	Severity       string `json:"severity"`
	Message        string `json:"message"`
	Recommendation string `json:"recommendation"`
}

// DataStreamStats aggregates the backing indices whose stats were resolved
type DataStreamStats struct {
	BackingCount         int                 `json:"backing_count"`
	TotalDocs            uint64              `json:"total_docs"`
	TotalSizeBytes       uint64              `json:"total_size_bytes"`
	Oldest               *model.BackingIndex `json:"oldest,omitempty"`
	Newest               *model.BackingIndex `json:"newest,omitempty"`
	AgeHours             float64             `json:"age_hours"`
	IngestionRatePerHour float64             `json:"ingestion_rate_per_hour"`
	// MissingStats counts backing indices whose stats batch failed
	MissingStats int `json:"missing_stats,omitempty"`
}

// DataStreamAnalysis is the analyzed form of one data stream
type DataStreamAnalysis struct {
	Stream model.DataStreamRecord `json:"stream"`
	Stats  DataStreamStats        `json:"stats"`
	Health string                 `json:"health"`
	Issues []Issue                `json:"issues"`
}

// AnalyzeDataStream computes stats and classifies health. Conditions are
// evaluated in precedence order: red backing index or too many backing
// indices is critical; yellow, oversized write index, rollover anomalies or
// a missing policy is a warning.
func AnalyzeDataStream(ds model.DataStreamRecord, opts DataStreamOptions) DataStreamAnalysis {
	a := DataStreamAnalysis{Stream: ds, Health: HealthHealthy, Issues: []Issue{}}
	a.Stats = dataStreamStats(ds)

	var red, yellow []string
	for _, bi := range ds.BackingIndices {
		switch bi.Health {
		case "red":
			red = append(red, bi.Name)
		case "yellow":
			yellow = append(yellow, bi.Name)
		}
	}

	count := len(ds.BackingIndices)
	totalGB := format.ToGB(a.Stats.TotalSizeBytes)

	if len(red) > 0 {
		a.add(HealthCritical,
			fmt.Sprintf("%d red backing index(es): %s", len(red), nameList(red, 5)),
			"Recover or restore the red backing indices; check GET _cluster/allocation/explain")
	}
	if count > MaxBackingIndices {
		a.add(HealthCritical,
			fmt.Sprintf("%d backing indices exceed the limit of %d", count, MaxBackingIndices),
			"Add a delete phase or retention so old backing indices are removed")
	}
	if len(yellow) > 0 {
		a.add(HealthWarning,
			fmt.Sprintf("%d yellow backing index(es): %s", len(yellow), nameList(yellow, 5)),
			"Allocate missing replicas or add nodes")
	}
	if cur, ok := ds.Current(); ok && cur.Found {
		if gb := format.ToGB(cur.StoreSizeBytes); gb > CurrentIndexMaxGB {
			a.add(HealthWarning,
				fmt.Sprintf("Write index %s is %s, over %.0fGB", cur.Name, format.Bytes(cur.StoreSizeBytes), CurrentIndexMaxGB),
				"Lower the rollover max_primary_shard_size or max_age")
		}
	}
	if count < FewIndicesMax && totalGB > FewIndicesMinGB {
		a.add(HealthWarning,
			fmt.Sprintf("Only %d backing indices hold %s", count, format.Bytes(a.Stats.TotalSizeBytes)),
			"Roll over more often so backing indices stay small")
	}
	if count > ManyIndicesMin && totalGB < ManyIndicesMaxGB {
		a.add(HealthWarning,
			fmt.Sprintf("%d backing indices hold only %s", count, format.Bytes(a.Stats.TotalSizeBytes)),
			"Roll over less often to avoid many small indices")
	}
	if !opts.SkipPolicyCheck && ds.ILMPolicy == "" && !ds.LifecycleManaged {
		a.add(HealthWarning,
			"No ILM policy or lifecycle manages this stream",
			"Attach an ILM policy (or data stream lifecycle) via the index template")
	}
	return a
}

func (a *DataStreamAnalysis) add(severity, msg, rec string) {
	a.Issues = append(a.Issues, Issue{Severity: severity, Message: msg, Recommendation: rec})
	if severity == HealthCritical || a.Health == HealthHealthy {
		a.Health = severity
	}
}

func dataStreamStats(ds model.DataStreamRecord) DataStreamStats {
	st := DataStreamStats{BackingCount: len(ds.BackingIndices)}
	for i := range ds.BackingIndices {
		bi := ds.BackingIndices[i]
		if !bi.Found {
			st.MissingStats++
			continue
		}
		st.TotalDocs += bi.DocCount
		st.TotalSizeBytes += bi.StoreSizeBytes
		if bi.CreationDate.IsZero() {
			continue
		}
		if st.Oldest == nil || bi.CreationDate.Before(st.Oldest.CreationDate) {
			b := bi
			st.Oldest = &b
		}
		if st.Newest == nil || bi.CreationDate.After(st.Newest.CreationDate) {
			b := bi
			st.Newest = &b
		}
	}
	if st.Oldest != nil && st.Newest != nil {
		st.AgeHours = st.Newest.CreationDate.Sub(st.Oldest.CreationDate).Hours()
		if st.AgeHours > 0 {
			st.IngestionRatePerHour = float64(st.TotalDocs) / st.AgeHours
		}
	}
	return st
}
