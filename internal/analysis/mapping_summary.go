package analysis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tareqmamari/elasticsearch-mcp-server/internal/budget"
)

// IndexMapping is the flattened mapping of one index
type IndexMapping struct {
	Index       string         `json:"index"`
	Fields      []MappingField `json:"fields"`
	MaxDepth    int            `json:"max_depth"`
	TotalFields int            `json:"total_fields"`
}

// MappingSummary is the get_mappings summary. Entities are fields, so a
// single matching field renders as item detail.
type MappingSummary struct {
	Mappings   []IndexMapping     `json:"mappings"`
	Filter     FieldFilter        `json:"-"`
	Comparison *MappingComparison `json:"comparison,omitempty"`
}

// SummarizeMappings flattens and filters normalized per-index properties.
// Indices with two or more members also get a comparison.
func SummarizeMappings(properties map[string]map[string]interface{}, filter FieldFilter) (*MappingSummary, error) {
	s := &MappingSummary{Filter: filter}
	names := make([]string, 0, len(properties))
	for name := range properties {
		names = append(names, name)
	}
	sort.Strings(names)

	byIndex := make(map[string][]MappingField, len(names))
	for _, name := range names {
		all, depth := FlattenMapping(properties[name], "", 1)
		fields, err := FilterFields(all, filter)
		if err != nil {
			return nil, err
		}
		s.Mappings = append(s.Mappings, IndexMapping{Index: name, Fields: fields, MaxDepth: depth, TotalFields: len(all)})
		byIndex[name] = fields
	}
	if len(names) > 1 {
		cmp := CompareMappings(byIndex)
		s.Comparison = &cmp
	}
	return s, nil
}

func (s *MappingSummary) Kind() string { return "mappings" }

// Len counts matching fields across indices
func (s *MappingSummary) Len() int {
	n := 0
	for _, m := range s.Mappings {
		n += len(m.Fields)
	}
	return n
}

// Ladder uses the comparison rung when two or more indices are summarized
func (s *MappingSummary) Ladder() []budget.Level {
	if len(s.Mappings) > 1 {
		return budget.ComparisonLadder
	}
	return budget.StandardLadder
}

func (s *MappingSummary) Render(level budget.Level) string {
	switch level {
	case budget.LevelMinimal:
		return s.renderMinimal()
	case budget.LevelComparison:
		if s.Comparison != nil {
			return s.renderComparison()
		}
		return s.renderCompact()
	case budget.LevelCompact:
		return s.renderCompact()
	default:
		return s.renderFull()
	}
}

// Detail renders the only matching field
func (s *MappingSummary) Detail() string {
	for _, m := range s.Mappings {
		if len(m.Fields) == 0 {
			continue
		}
		f := m.Fields[0]
		var b strings.Builder
		fmt.Fprintf(&b, "Index: %s\n", m.Index)
		fmt.Fprintf(&b, "Field: %s\n", f.Path)
		fmt.Fprintf(&b, "Type: %s\n", f.Type)
		fmt.Fprintf(&b, "Capabilities: %s\n", capsOrNone(f.Capabilities))
		if f.Analyzer != "" {
			fmt.Fprintf(&b, "Analyzer: %s\n", f.Analyzer)
		}
		if f.Format != "" {
			fmt.Fprintf(&b, "Format: %s\n", f.Format)
		}
		if len(f.MultiFields) > 0 {
			fmt.Fprintf(&b, "Multi-fields: %s\n", multiFieldList(f.MultiFields))
		}
		fmt.Fprintf(&b, "Depth: %d\n", f.Depth)
		return b.String()
	}
	return ""
}

func (s *MappingSummary) filterNote(b *strings.Builder) {
	if s.Filter.IsZero() {
		return
	}
	var parts []string
	if s.Filter.Pattern != "" {
		parts = append(parts, "pattern "+s.Filter.Pattern)
	}
	if len(s.Filter.Types) > 0 {
		parts = append(parts, "types "+strings.Join(s.Filter.Types, ","))
	}
	if s.Filter.Class != "" {
		parts = append(parts, "capability "+s.Filter.Class)
	}
	fmt.Fprintf(b, "Filter: %s\n", strings.Join(parts, " AND "))
}

func (m IndexMapping) header(b *strings.Builder) {
	fmt.Fprintf(b, "## %s: %d of %d fields, max depth %d\n", m.Index, len(m.Fields), m.TotalFields, m.MaxDepth)
}

func (s *MappingSummary) renderFull() string {
	var b strings.Builder
	s.filterNote(&b)
	for _, m := range s.Mappings {
		m.header(&b)
		for _, f := range m.Fields {
			line := fmt.Sprintf("- %s: %s [%s]", f.Path, f.Type, capsOrNone(f.Capabilities))
			if f.Analyzer != "" {
				line += " analyzer=" + f.Analyzer
			}
			if f.Format != "" {
				line += " format=" + f.Format
			}
			if len(f.MultiFields) > 0 {
				line += " fields=" + multiFieldList(f.MultiFields)
			}
			b.WriteString(line + "\n")
		}
		b.WriteString("\n")
	}
	if s.Comparison != nil {
		s.writeComparison(&b, 0)
	}
	return b.String()
}

func (s *MappingSummary) renderCompact() string {
	var b strings.Builder
	s.filterNote(&b)
	for _, m := range s.Mappings {
		m.header(&b)
		byType := map[string][]string{}
		for _, f := range m.Fields {
			byType[f.Type] = append(byType[f.Type], f.Path)
		}
		types := make([]string, 0, len(byType))
		for t := range byType {
			types = append(types, t)
		}
		sort.Strings(types)
		for _, t := range types {
			fmt.Fprintf(&b, "- %s (%d): %s\n", t, len(byType[t]), strings.Join(byType[t], ", "))
		}
	}
	return b.String()
}

func (s *MappingSummary) renderComparison() string {
	var b strings.Builder
	s.filterNote(&b)
	for _, m := range s.Mappings {
		fmt.Fprintf(&b, "- %s: %d fields, max depth %d\n", m.Index, len(m.Fields), m.MaxDepth)
	}
	b.WriteString("\n")
	s.writeComparison(&b, 50)
	return b.String()
}

func (s *MappingSummary) writeComparison(b *strings.Builder, limit int) {
	cmp := s.Comparison
	fmt.Fprintf(b, "## Comparison across %d indices\n", len(cmp.Indices))
	fmt.Fprintf(b, "Common (%d): %s\n", len(cmp.Common), nameList(cmp.Common, limit))

	if len(cmp.Conflicts) > 0 {
		fmt.Fprintf(b, "Type conflicts (%d):\n", len(cmp.Conflicts))
		for _, c := range cmp.Conflicts {
			fmt.Fprintf(b, "- %s: %s\n", c.Path, conflictTypes(c, cmp.Indices))
		}
	}

	if len(cmp.Unique) > 0 {
		paths := make([]string, 0, len(cmp.Unique))
		for p := range cmp.Unique {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		fmt.Fprintf(b, "Not in every index (%d):\n", len(paths))
		for i, p := range paths {
			if limit > 0 && i == limit {
				fmt.Fprintf(b, "- … (+%d more)\n", len(paths)-limit)
				break
			}
			fmt.Fprintf(b, "- %s: %s\n", p, strings.Join(cmp.Unique[p], ", "))
		}
	}
}

func (s *MappingSummary) renderMinimal() string {
	var b strings.Builder
	s.filterNote(&b)
	for _, m := range s.Mappings {
		var searchable, aggregatable, sortable int
		types := map[string]int{}
		for _, f := range m.Fields {
			types[f.Type]++
			if f.Capabilities.Any(capabilityClasses[ClassSearchable]) {
				searchable++
			}
			if f.Capabilities.Any(CapAggregate) {
				aggregatable++
			}
			if f.Capabilities.Any(CapOrder) {
				sortable++
			}
		}
		fmt.Fprintf(&b, "%s: %d fields, depth %d · searchable %d · aggregatable %d · sortable %d\n",
			m.Index, len(m.Fields), m.MaxDepth, searchable, aggregatable, sortable)
		fmt.Fprintf(&b, "Types: %s\n", countLine(types))
	}
	if cmp := s.Comparison; cmp != nil {
		fmt.Fprintf(&b, "Common %d · not in every index %d · conflicts %d", len(cmp.Common), len(cmp.Unique), len(cmp.Conflicts))
		if len(cmp.Conflicts) > 0 {
			paths := make([]string, len(cmp.Conflicts))
			for i, c := range cmp.Conflicts {
				paths[i] = c.Path
			}
			fmt.Fprintf(&b, " (%s)", nameList(paths, 10))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func capsOrNone(c Capability) string {
	if c == 0 {
		return "none"
	}
	return c.String()
}

func multiFieldList(m map[string]string) string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	for i, n := range names {
		names[i] = n + "(" + m[n] + ")"
	}
	return strings.Join(names, ", ")
}

func conflictTypes(c TypeConflict, indices []string) string {
	parts := make([]string, 0, len(c.Types))
	for _, idx := range indices {
		if t, ok := c.Types[idx]; ok {
			parts = append(parts, idx+"="+t)
		}
	}
	return strings.Join(parts, ", ")
}
