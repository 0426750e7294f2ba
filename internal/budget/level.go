// Package budget estimates token counts and shapes analyzer summaries into
// the richest rendering that fits a caller's token budget.
package budget

import (
	"fmt"
	"strings"
)

// Level is a rendering detail level
type Level string

// Detail levels. Auto and Raw are requests only; a Renderable never renders
// them directly.
const (
	LevelAuto       Level = "auto"
	LevelFull       Level = "full"
	LevelCompact    Level = "compact"
	LevelComparison Level = "comparison"
	LevelMinimal    Level = "minimal"
	LevelRaw        Level = "raw"
)

// Summary-mode thresholds. Above these cardinalities the full rendering is
// grouped instead of itemized.
const (
	IndexSummaryThreshold      = 200
	DataStreamSummaryThreshold = 50
)

// StandardLadder is the ladder used by every kind except multi-index mappings
var StandardLadder = []Level{LevelFull, LevelCompact, LevelMinimal}

// ComparisonLadder is the ladder for mappings spanning two or more indices
var ComparisonLadder = []Level{LevelFull, LevelComparison, LevelMinimal}

// LevelValues returns the values accepted for the detail_level parameter.
func LevelValues() []string {
	return []string{string(LevelAuto), string(LevelFull), string(LevelCompact), string(LevelMinimal), string(LevelRaw)}
}

// ParseLevel normalizes a detail_level argument. Empty input means auto.
func ParseLevel(s string) (Level, error) {
	switch l := Level(strings.ToLower(strings.TrimSpace(s))); l {
	case "":
		return LevelAuto, nil
	case LevelAuto, LevelFull, LevelCompact, LevelComparison, LevelMinimal, LevelRaw:
		return l, nil
	default:
		return "", fmt.Errorf("invalid detail_level %q (valid: %s)", s, strings.Join(LevelValues(), ", "))
	}
}

// Renderable is an analyzer summary that can be rendered at each level of
// its ladder. Render must be a pure function of the summary.
type Renderable interface {
	// Kind names the data kind, e.g. "indices"
	Kind() string
	// Len is the number of entities summarized
	Len() int
	// Ladder lists the levels from most to least detailed
	Ladder() []Level
	Render(level Level) string
	// Detail renders a single entity; used when Len() == 1
	Detail() string
}
