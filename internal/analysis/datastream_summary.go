package analysis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tareqmamari/elasticsearch-mcp-server/internal/budget"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/format"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/model"
)

const (
	detailBackingLimit    = 20
	largestStreamsShown   = 10
	compactProblemStreams = 20
)

// DataStreamsSummary is the get_data_streams summary
type DataStreamsSummary struct {
	Streams      []DataStreamAnalysis `json:"streams"`
	Health       map[string]int       `json:"health"`
	BackingTotal int                  `json:"backing_total"`
	TotalDocs    uint64               `json:"total_docs"`
	TotalBytes   uint64               `json:"total_bytes"`
	// MissingStats counts backing indices, across all streams, whose stats
	// could not be fetched
	MissingStats int `json:"missing_stats,omitempty"`
	// SummaryMode is set above DataStreamSummaryThreshold
	SummaryMode bool `json:"summary_mode"`
}

// SummarizeDataStreams analyzes every stream. Streams are ordered most
// severe first, then by name.
func SummarizeDataStreams(records []model.DataStreamRecord, opts DataStreamOptions) *DataStreamsSummary {
	s := &DataStreamsSummary{
		Health:      map[string]int{},
		SummaryMode: len(records) > budget.DataStreamSummaryThreshold,
	}
	for _, rec := range records {
		a := AnalyzeDataStream(rec, opts)
		s.Streams = append(s.Streams, a)
		s.Health[a.Health]++
		s.BackingTotal += a.Stats.BackingCount
		s.TotalDocs += a.Stats.TotalDocs
		s.TotalBytes += a.Stats.TotalSizeBytes
		s.MissingStats += a.Stats.MissingStats
	}
	sort.SliceStable(s.Streams, func(i, j int) bool {
		ri, rj := severityRank(s.Streams[i].Health), severityRank(s.Streams[j].Health)
		if ri != rj {
			return ri < rj
		}
		return s.Streams[i].Stream.Name < s.Streams[j].Stream.Name
	})
	return s
}

func severityRank(h string) int {
	switch h {
	case HealthCritical:
		return 0
	case HealthWarning:
		return 1
	default:
		return 2
	}
}

func (s *DataStreamsSummary) Kind() string           { return "data streams" }
func (s *DataStreamsSummary) Len() int               { return len(s.Streams) }
func (s *DataStreamsSummary) Ladder() []budget.Level { return budget.StandardLadder }

func (s *DataStreamsSummary) Render(level budget.Level) string {
	switch level {
	case budget.LevelMinimal:
		return s.renderMinimal()
	case budget.LevelCompact:
		return s.renderCompact()
	default:
		return s.renderFull()
	}
}

// Detail renders the only stream with its backing indices
func (s *DataStreamsSummary) Detail() string {
	if len(s.Streams) == 0 {
		return ""
	}
	a := s.Streams[0]
	var b strings.Builder
	writeStream(&b, a)
	bis := a.Stream.BackingIndices
	fmt.Fprintf(&b, "Backing indices (%d, oldest first):\n", len(bis))
	start := 0
	if len(bis) > detailBackingLimit {
		start = len(bis) - detailBackingLimit
		fmt.Fprintf(&b, "- … (%d older omitted)\n", start)
	}
	for _, bi := range bis[start:] {
		if !bi.Found {
			fmt.Fprintf(&b, "- %s: stats unavailable\n", bi.Name)
			continue
		}
		fmt.Fprintf(&b, "- %s: %s, docs %s, %s\n", bi.Name, bi.Health, format.Number(bi.DocCount), format.Bytes(bi.StoreSizeBytes))
	}
	return b.String()
}

func (s *DataStreamsSummary) header(b *strings.Builder) {
	fmt.Fprintf(b, "Data streams: %d · backing indices %d · docs %s · size %s\n",
		len(s.Streams), s.BackingTotal, format.Number(s.TotalDocs), format.Bytes(s.TotalBytes))
	fmt.Fprintf(b, "Health: healthy %d · warning %d · critical %d\n",
		s.Health[HealthHealthy], s.Health[HealthWarning], s.Health[HealthCritical])
	if s.MissingStats > 0 {
		fmt.Fprintf(b, "Note: stats unavailable for %d backing index(es); docs and size totals exclude them\n", s.MissingStats)
	}
}

func writeStream(b *strings.Builder, a DataStreamAnalysis) {
	st := a.Stats
	fmt.Fprintf(b, "### %s (%s)\n", a.Stream.Name, label(a.Health))
	fmt.Fprintf(b, "Backing indices: %d · generation %d · docs %s · size %s\n",
		st.BackingCount, a.Stream.Generation, format.Number(st.TotalDocs), format.Bytes(st.TotalSizeBytes))
	if st.Oldest != nil && st.Newest != nil {
		fmt.Fprintf(b, "Span: %s → %s (%.1fh) · ingestion ~%s docs/h\n",
			st.Oldest.CreationDate.Format("2006-01-02"), st.Newest.CreationDate.Format("2006-01-02"),
			st.AgeHours, format.Number(uint64(st.IngestionRatePerHour)))
	}
	policy := a.Stream.ILMPolicy
	if policy == "" && a.Stream.LifecycleManaged {
		policy = "data stream lifecycle"
	}
	if policy == "" {
		policy = "none"
	}
	fmt.Fprintf(b, "Policy: %s · template: %s · timestamp: %s\n", policy, orNone(a.Stream.Template), orNone(a.Stream.TimestampField))
	if st.MissingStats > 0 {
		fmt.Fprintf(b, "Stats unavailable for %d backing index(es)\n", st.MissingStats)
	}
	for _, is := range a.Issues {
		fmt.Fprintf(b, "- [%s] %s → %s\n", is.Severity, is.Message, is.Recommendation)
	}
}

func (s *DataStreamsSummary) renderFull() string {
	var b strings.Builder
	s.header(&b)
	b.WriteString("\n")

	if !s.SummaryMode {
		for _, a := range s.Streams {
			writeStream(&b, a)
		}
		return b.String()
	}

	fmt.Fprintf(&b, "Summary mode: %d data streams exceed the itemized limit of %d.\n\n",
		len(s.Streams), budget.DataStreamSummaryThreshold)
	var healthy []string
	for _, a := range s.Streams {
		if a.Health == HealthHealthy {
			healthy = append(healthy, a.Stream.Name)
			continue
		}
		writeStream(&b, a)
	}

	b.WriteString("\n## Largest streams\n")
	for _, a := range s.largest(largestStreamsShown) {
		fmt.Fprintf(&b, "- %s: %s, %d backing, docs %s\n",
			a.Stream.Name, format.Bytes(a.Stats.TotalSizeBytes), a.Stats.BackingCount, format.Number(a.Stats.TotalDocs))
	}
	if len(healthy) > 0 {
		fmt.Fprintf(&b, "\nHealthy (%d): %s\n", len(healthy), nameList(healthy, 100))
	}
	return b.String()
}

func (s *DataStreamsSummary) renderCompact() string {
	var b strings.Builder
	s.header(&b)
	b.WriteString("\n")
	shown := 0
	for _, a := range s.Streams {
		if s.SummaryMode && a.Health == HealthHealthy {
			continue
		}
		if shown == compactProblemStreams {
			fmt.Fprintf(&b, "- … (+%d more)\n", len(s.Streams)-shown)
			break
		}
		shown++
		line := fmt.Sprintf("- %s: %s · %d backing · %s · docs %s",
			a.Stream.Name, a.Health, a.Stats.BackingCount, format.Bytes(a.Stats.TotalSizeBytes), format.Number(a.Stats.TotalDocs))
		if len(a.Issues) > 0 {
			msgs := make([]string, len(a.Issues))
			for i, is := range a.Issues {
				msgs[i] = is.Message
			}
			line += " · " + strings.Join(msgs, "; ")
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func (s *DataStreamsSummary) renderMinimal() string {
	var b strings.Builder
	s.header(&b)
	var critical []string
	for _, a := range s.Streams {
		if a.Health == HealthCritical {
			critical = append(critical, a.Stream.Name)
		}
	}
	if len(critical) > 0 {
		fmt.Fprintf(&b, "Critical: %s\n", nameList(critical, 10))
	}
	return b.String()
}

func (s *DataStreamsSummary) largest(n int) []DataStreamAnalysis {
	out := append([]DataStreamAnalysis(nil), s.Streams...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Stats.TotalSizeBytes > out[j].Stats.TotalSizeBytes })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
