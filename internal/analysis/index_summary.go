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
	largestIndicesShown = 10
	problemIndicesShown = 25
	minimalPatterns     = 5
)

// IndexSummary is the list_indices summary
type IndexSummary struct {
	Total        int                 `json:"total"`
	Health       map[string]int      `json:"health"`
	Status       map[string]int      `json:"status"`
	TotalDocs    uint64              `json:"total_docs"`
	TotalBytes   uint64              `json:"total_bytes"`
	PrimaryBytes uint64              `json:"primary_bytes"`
	Groups       []PatternGroup      `json:"groups"`
	Indices      []model.IndexRecord `json:"indices"`
	// Problems are the non-green indices, most severe first
	Problems []model.IndexRecord `json:"problems,omitempty"`
	// SummaryMode is set above IndexSummaryThreshold; full rendering is then
	// grouped instead of itemized
	SummaryMode bool `json:"summary_mode"`
}

// SummarizeIndices builds the index summary. Input order does not matter.
func SummarizeIndices(indices []model.IndexRecord) *IndexSummary {
	s := &IndexSummary{
		Total:       len(indices),
		Health:      map[string]int{},
		Status:      map[string]int{},
		Groups:      GroupIndicesByPattern(indices),
		Indices:     append([]model.IndexRecord(nil), indices...),
		SummaryMode: len(indices) > budget.IndexSummaryThreshold,
	}
	sort.Slice(s.Indices, func(i, j int) bool { return s.Indices[i].Name < s.Indices[j].Name })

	for _, idx := range s.Indices {
		if idx.Health != "" {
			s.Health[idx.Health]++
		}
		if idx.Status != "" {
			s.Status[idx.Status]++
		}
		s.TotalDocs += idx.DocCount
		s.TotalBytes += idx.StoreSizeBytes
		s.PrimaryBytes += idx.PriStoreSizeBytes
		if idx.Health != "" && idx.Health != "green" {
			s.Problems = append(s.Problems, idx)
		}
	}
	sort.SliceStable(s.Problems, func(i, j int) bool {
		return healthSeverity(s.Problems[i].Health) < healthSeverity(s.Problems[j].Health)
	})
	return s
}

func (s *IndexSummary) Kind() string           { return "indices" }
func (s *IndexSummary) Len() int               { return s.Total }
func (s *IndexSummary) Ladder() []budget.Level { return budget.StandardLadder }

// Render renders the summary at level
func (s *IndexSummary) Render(level budget.Level) string {
	switch level {
	case budget.LevelMinimal:
		return s.renderMinimal()
	case budget.LevelCompact:
		return s.renderCompact()
	default:
		return s.renderFull()
	}
}

// Detail renders a single index
func (s *IndexSummary) Detail() string {
	if len(s.Indices) == 0 {
		return ""
	}
	idx := s.Indices[0]
	var b strings.Builder
	fmt.Fprintf(&b, "Index: %s\n", idx.Name)
	fmt.Fprintf(&b, "Health: %s · Status: %s\n", idx.Health, idx.Status)
	fmt.Fprintf(&b, "Shards: %d primary, %d replica(s) each\n", idx.Primaries, idx.Replicas)
	fmt.Fprintf(&b, "Documents: %s\n", format.Number(idx.DocCount))
	fmt.Fprintf(&b, "Size: %s (primary %s)\n", format.Bytes(idx.StoreSizeBytes), format.Bytes(idx.PriStoreSizeBytes))
	if !idx.CreationDate.IsZero() {
		fmt.Fprintf(&b, "Created: %s\n", idx.CreationDate.Format("2006-01-02 15:04:05 MST"))
	}
	if p := DetectTimeSeriesPattern(idx.Name); p.IsTimeSeries {
		fmt.Fprintf(&b, "Time series: %s (%s)\n", p.Pattern, p.Format)
	}
	return b.String()
}

func (s *IndexSummary) header(b *strings.Builder) {
	fmt.Fprintf(b, "Indices: %s · docs %s · size %s (primary %s)\n",
		format.Number(uint64(s.Total)), format.Number(s.TotalDocs), format.Bytes(s.TotalBytes), format.Bytes(s.PrimaryBytes))
	fmt.Fprintf(b, "Health: %s\n", healthLine(s.Health))
	if len(s.Status) > 0 {
		fmt.Fprintf(b, "Status: %s\n", countLine(s.Status))
	}
}

func (s *IndexSummary) renderFull() string {
	var b strings.Builder
	s.header(&b)

	if !s.SummaryMode {
		b.WriteString("\n## Indices\n")
		for _, idx := range s.Indices {
			fmt.Fprintf(&b, "- %s | %s | %s | %d/%d | docs %s | %s\n",
				idx.Name, idx.Health, idx.Status, idx.Primaries, idx.Replicas, format.Number(idx.DocCount), format.Bytes(idx.StoreSizeBytes))
		}
		b.WriteString("\n## Patterns\n")
		for _, g := range s.Groups {
			fmt.Fprintf(&b, "- %s: %d indices\n", g.Pattern, g.Count)
		}
		return b.String()
	}

	fmt.Fprintf(&b, "\nSummary mode: %d indices exceed the itemized limit of %d, grouped by pattern.\n",
		s.Total, budget.IndexSummaryThreshold)
	b.WriteString("\n## Patterns\n")
	for _, g := range s.Groups {
		fmt.Fprintf(&b, "### %s\n", g.Pattern)
		fmt.Fprintf(&b, "Indices: %d · docs %s · size %s (primary %s)\n",
			g.Count, format.Number(g.TotalDocs), format.Bytes(g.TotalBytes), format.Bytes(g.PrimaryBytes))
		fmt.Fprintf(&b, "Health: %s\n", healthLine(g.Health))
		if g.Earliest != "" {
			fmt.Fprintf(&b, "Range: %s … %s (%s)\n", g.Earliest, g.Latest, g.DateFormat)
		}
		if g.Pattern == OtherBucket {
			fmt.Fprintf(&b, "Members: %s\n", nameList(g.Indices, 20))
		}
	}

	b.WriteString("\n## Largest indices\n")
	for _, idx := range s.largest(largestIndicesShown) {
		fmt.Fprintf(&b, "- %s: %s, docs %s\n", idx.Name, format.Bytes(idx.StoreSizeBytes), format.Number(idx.DocCount))
	}
	s.renderProblems(&b, problemIndicesShown)
	return b.String()
}

func (s *IndexSummary) renderCompact() string {
	var b strings.Builder
	s.header(&b)
	b.WriteString("\nPatterns:\n")
	for _, g := range s.Groups {
		line := fmt.Sprintf("- %s (%d): docs %s, %s", g.Pattern, g.Count, format.Number(g.TotalDocs), format.Bytes(g.TotalBytes))
		if g.Earliest != "" {
			line += fmt.Sprintf(", %s … %s", g.Earliest, g.Latest)
		}
		b.WriteString(line + "\n")
	}
	s.renderProblems(&b, 10)
	return b.String()
}

func (s *IndexSummary) renderMinimal() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Indices: %d · %s · health %s\n", s.Total, format.Bytes(s.TotalBytes), healthLine(s.Health))
	parts := make([]string, 0, minimalPatterns)
	for i, g := range s.Groups {
		if i == minimalPatterns {
			break
		}
		parts = append(parts, fmt.Sprintf("%s %d", g.Pattern, g.Count))
	}
	fmt.Fprintf(&b, "Top patterns: %s", strings.Join(parts, ", "))
	if extra := len(s.Groups) - minimalPatterns; extra > 0 {
		fmt.Fprintf(&b, " (+%d more)", extra)
	}
	b.WriteString("\n")
	return b.String()
}

func (s *IndexSummary) renderProblems(b *strings.Builder, limit int) {
	if len(s.Problems) == 0 {
		return
	}
	fmt.Fprintf(b, "\nNeeds attention (%d):\n", len(s.Problems))
	for i, idx := range s.Problems {
		if i == limit {
			fmt.Fprintf(b, "- … (+%d more)\n", len(s.Problems)-limit)
			break
		}
		fmt.Fprintf(b, "- %s: %s\n", idx.Name, label(idx.Health))
	}
}

func (s *IndexSummary) largest(n int) []model.IndexRecord {
	out := append([]model.IndexRecord(nil), s.Indices...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].StoreSizeBytes > out[j].StoreSizeBytes })
	if len(out) > n {
		out = out[:n]
	}
	return out
}
