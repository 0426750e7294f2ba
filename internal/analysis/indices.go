// Package analysis turns raw cluster metadata into the structured summaries
// the budget shaper renders: index pattern groups, flattened mappings, shard
// health and data-stream health.
package analysis

import (
	"regexp"
	"sort"
	"strings"

	"github.com/tareqmamari/elasticsearch-mcp-server/internal/model"
)

// OtherBucket collects indices without a time-series suffix
const OtherBucket = "other"

// Date formats recognized in index names
const (
	FormatDaily       = "YYYY.MM.DD"
	FormatDailyDash   = "YYYY-MM-DD"
	FormatMonthly     = "YYYY.MM"
	FormatMonthlyDash = "YYYY-MM"
	FormatYearly      = "YYYY"
	FormatGeneration  = "generation"
)

// TimeSeriesPattern is the result of DetectTimeSeriesPattern
type TimeSeriesPattern struct {
	IsTimeSeries bool   `json:"is_time_series"`
	BasePattern  string `json:"base_pattern,omitempty"`
	Date         string `json:"date,omitempty"`
	Format       string `json:"format,omitempty"`
	// Pattern is the wildcard expression matching the series, e.g. "logs-*"
	Pattern string `json:"pattern,omitempty"`
}

type seriesShape struct {
	re     *regexp.Regexp
	format string
	// dataStream marks the .ds- backing index shapes
	dataStream bool
}

const year = `(?:19|20)\d{2}`

// seriesShapes are tried in order; the first match wins.
var seriesShapes = []seriesShape{
	{re: regexp.MustCompile(`^\.ds-(.+)-(` + year + `\.\d{2}\.\d{2})-\d{6}$`), format: FormatDaily, dataStream: true},
	{re: regexp.MustCompile(`^\.ds-(.+)-(\d{6})$`), format: FormatGeneration, dataStream: true},
	{re: regexp.MustCompile(`^(.+?)([-_.])(` + year + `\.\d{2}\.\d{2})$`), format: FormatDaily},
	{re: regexp.MustCompile(`^(.+?)([-_.])(` + year + `-\d{2}-\d{2})$`), format: FormatDailyDash},
	{re: regexp.MustCompile(`^(.+?)([-_.])(` + year + `\.\d{2})$`), format: FormatMonthly},
	{re: regexp.MustCompile(`^(.+?)([-_.])(` + year + `-\d{2})$`), format: FormatMonthlyDash},
	{re: regexp.MustCompile(`^(.+?)([-_.])(` + year + `)$`), format: FormatYearly},
}

// DetectTimeSeriesPattern reports whether name carries a date suffix and,
// if so, its base pattern and date token.
func DetectTimeSeriesPattern(name string) TimeSeriesPattern {
	for _, shape := range seriesShapes {
		m := shape.re.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		if shape.dataStream {
			p := TimeSeriesPattern{IsTimeSeries: true, BasePattern: m[1], Format: shape.format, Pattern: ".ds-" + m[1] + "-*"}
			if shape.format != FormatGeneration {
				p.Date = m[2]
			}
			return p
		}
		return TimeSeriesPattern{
			IsTimeSeries: true,
			BasePattern:  m[1],
			Date:         m[3],
			Format:       shape.format,
			Pattern:      m[1] + m[2] + "*",
		}
	}
	return TimeSeriesPattern{}
}

// PatternGroup aggregates the indices sharing one base pattern
type PatternGroup struct {
	Pattern      string         `json:"pattern"`
	BasePattern  string         `json:"base_pattern,omitempty"`
	Count        int            `json:"count"`
	TotalDocs    uint64         `json:"total_docs"`
	TotalBytes   uint64         `json:"total_bytes"`
	PrimaryBytes uint64         `json:"primary_bytes"`
	Health       map[string]int `json:"health"`
	// Earliest and Latest are set only when every member shares one date format
	Earliest   string   `json:"earliest,omitempty"`
	Latest     string   `json:"latest,omitempty"`
	DateFormat string   `json:"date_format,omitempty"`
	Indices    []string `json:"indices"`

	formats map[string]struct{}
}

// GroupIndicesByPattern buckets indices by detected base pattern. The
// result is independent of input order: groups are sorted by count
// descending then pattern, and member names are sorted.
func GroupIndicesByPattern(indices []model.IndexRecord) []PatternGroup {
	groups := make(map[string]*PatternGroup)
	dates := make(map[string][]string)

	for _, idx := range indices {
		p := DetectTimeSeriesPattern(idx.Name)
		key := OtherBucket
		if p.IsTimeSeries {
			key = p.Pattern
		}
		g, ok := groups[key]
		if !ok {
			g = &PatternGroup{Pattern: key, BasePattern: p.BasePattern, Health: map[string]int{}, formats: map[string]struct{}{}}
			groups[key] = g
		}
		g.Count++
		g.TotalDocs += idx.DocCount
		g.TotalBytes += idx.StoreSizeBytes
		g.PrimaryBytes += idx.PriStoreSizeBytes
		if idx.Health != "" {
			g.Health[idx.Health]++
		}
		g.Indices = append(g.Indices, idx.Name)
		if p.IsTimeSeries {
			g.formats[p.Format] = struct{}{}
			if p.Date != "" {
				dates[key] = append(dates[key], p.Date)
			}
		}
	}

	out := make([]PatternGroup, 0, len(groups))
	for key, g := range groups {
		sort.Strings(g.Indices)
		if len(g.formats) == 1 && len(dates[key]) == g.Count {
			for f := range g.formats {
				g.DateFormat = f
			}
			g.Earliest, g.Latest = dateRange(dates[key])
		}
		g.formats = nil
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Pattern < out[j].Pattern
	})
	return out
}

// dateRange returns the lexicographic min and max. Valid because every
// recognized format is zero-padded and fixed-width.
func dateRange(dates []string) (string, string) {
	lo, hi := dates[0], dates[0]
	for _, d := range dates[1:] {
		if d < lo {
			lo = d
		}
		if d > hi {
			hi = d
		}
	}
	return lo, hi
}

// IsSystemIndex reports whether name is a dot-prefixed system or hidden
// index. Data stream backing indices are not treated as system indices.
func IsSystemIndex(name string) bool {
	return strings.HasPrefix(name, ".") && !strings.HasPrefix(name, ".ds-")
}
