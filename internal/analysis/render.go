package analysis

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// label title-cases a status word for rendered headings
func label(s string) string {
	return titleCaser.String(strings.ReplaceAll(s, "_", " "))
}

var healthOrder = []string{"green", "yellow", "red"}

// healthLine renders counts as "green 3 · yellow 1 · red 0" with any
// unexpected keys appended in sorted order.
func healthLine(counts map[string]int) string {
	parts := make([]string, 0, len(counts)+len(healthOrder))
	seen := map[string]bool{}
	for _, h := range healthOrder {
		parts = append(parts, fmt.Sprintf("%s %d", h, counts[h]))
		seen[h] = true
	}
	var extra []string
	for k := range counts {
		if !seen[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		parts = append(parts, fmt.Sprintf("%s %d", k, counts[k]))
	}
	return strings.Join(parts, " · ")
}

// countLine renders a map in descending count order
func countLine(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s %d", k, counts[k])
	}
	return strings.Join(parts, " · ")
}

// nameList joins up to limit names and notes how many were left out
func nameList(names []string, limit int) string {
	if limit <= 0 || len(names) <= limit {
		return strings.Join(names, ", ")
	}
	return fmt.Sprintf("%s, … (+%d more)", strings.Join(names[:limit], ", "), len(names)-limit)
}

func healthSeverity(h string) int {
	switch h {
	case "red":
		return 0
	case "yellow":
		return 1
	case "green":
		return 3
	default:
		return 2
	}
}
