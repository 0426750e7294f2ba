package analysis

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/tareqmamari/elasticsearch-mcp-server/internal/budget"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/format"
)

const (
	compactFieldLimit   = 8
	compactValueLen     = 80
	compactArrayLimit   = 10
	compactStringLen    = 200
	compactMaxDepth     = 6
	minimalOutlineDepth = 3
	minimalIDLimit      = 20
	compactRowLimit     = 50
	minimalRowLimit     = 3
)

// SearchHit is one search hit
type SearchHit struct {
	Index  string                 `json:"_index"`
	ID     string                 `json:"_id"`
	Score  *float64               `json:"_score"`
	Source map[string]interface{} `json:"_source"`
}

// SearchSummary summarizes a _search response
type SearchSummary struct {
	Took          int                        `json:"took"`
	TimedOut      bool                       `json:"timed_out"`
	Total         int64                      `json:"total"`
	TotalRelation string                     `json:"total_relation"`
	ShardsTotal   int                        `json:"shards_total"`
	ShardsOK      int                        `json:"shards_successful"`
	ShardsFailed  int                        `json:"shards_failed"`
	Hits          []SearchHit                `json:"hits"`
	Aggregations  map[string]json.RawMessage `json:"aggregations,omitempty"`
}

type searchResponse struct {
	Took     int  `json:"took"`
	TimedOut bool `json:"timed_out"`
	Shards   struct {
		Total      int `json:"total"`
		Successful int `json:"successful"`
		Failed     int `json:"failed"`
	} `json:"_shards"`
	Hits struct {
		Total json.RawMessage `json:"total"`
		Hits  []SearchHit     `json:"hits"`
	} `json:"hits"`
	Aggregations map[string]json.RawMessage `json:"aggregations"`
}

// SummarizeSearch decodes a search response. hits.total is an object on 7+
// and a number before.
func SummarizeSearch(body []byte) (*SearchSummary, error) {
	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	s := &SearchSummary{
		Took:          resp.Took,
		TimedOut:      resp.TimedOut,
		ShardsTotal:   resp.Shards.Total,
		ShardsOK:      resp.Shards.Successful,
		ShardsFailed:  resp.Shards.Failed,
		Hits:          resp.Hits.Hits,
		Aggregations:  resp.Aggregations,
		TotalRelation: "eq",
	}
	if len(resp.Hits.Total) > 0 {
		var obj struct {
			Value    int64  `json:"value"`
			Relation string `json:"relation"`
		}
		if err := json.Unmarshal(resp.Hits.Total, &obj); err == nil {
			s.Total = obj.Value
			if obj.Relation != "" {
				s.TotalRelation = obj.Relation
			}
		} else if err := json.Unmarshal(resp.Hits.Total, &s.Total); err != nil {
			return nil, fmt.Errorf("failed to decode hits.total: %w", err)
		}
	}
	return s, nil
}

func (s *SearchSummary) Kind() string           { return "documents" }
func (s *SearchSummary) Len() int               { return len(s.Hits) + len(s.Aggregations) }
func (s *SearchSummary) Ladder() []budget.Level { return budget.StandardLadder }
func (s *SearchSummary) Detail() string         { return s.Render(budget.LevelFull) }

func (s *SearchSummary) Render(level budget.Level) string {
	var b strings.Builder
	rel := ""
	if s.TotalRelation == "gte" {
		rel = "≥"
	}
	fmt.Fprintf(&b, "Hits: %d of %s%s · took %dms · shards %d/%d", len(s.Hits), rel, format.Number(uint64(s.Total)), s.Took, s.ShardsOK, s.ShardsTotal)
	if s.ShardsFailed > 0 {
		fmt.Fprintf(&b, " (%d failed)", s.ShardsFailed)
	}
	if s.TimedOut {
		b.WriteString(" · timed out")
	}
	b.WriteString("\n")

	switch level {
	case budget.LevelMinimal:
		ids := make([]string, len(s.Hits))
		for i, h := range s.Hits {
			ids[i] = h.ID
		}
		if len(ids) > 0 {
			fmt.Fprintf(&b, "IDs: %s\n", nameList(ids, minimalIDLimit))
		}
		if len(s.Aggregations) > 0 {
			fmt.Fprintf(&b, "Aggregations: %s\n", strings.Join(sortedKeys(s.Aggregations), ", "))
		}
	case budget.LevelCompact:
		for _, h := range s.Hits {
			fmt.Fprintf(&b, "- %s/%s: %s\n", h.Index, h.ID, compactSource(h.Source))
		}
		for _, name := range sortedKeys(s.Aggregations) {
			fmt.Fprintf(&b, "Aggregation %s: %s\n", name, compactAggregation(s.Aggregations[name]))
		}
	default:
		for _, h := range s.Hits {
			score := ""
			if h.Score != nil {
				score = fmt.Sprintf(" (score %.3f)", *h.Score)
			}
			fmt.Fprintf(&b, "### %s/%s%s\n%s\n", h.Index, h.ID, score, prettyJSON(h.Source))
		}
		for _, name := range sortedKeys(s.Aggregations) {
			var v interface{}
			_ = json.Unmarshal(s.Aggregations[name], &v)
			fmt.Fprintf(&b, "### Aggregation %s\n%s\n", name, prettyJSON(v))
		}
	}
	return b.String()
}

// compactSource renders up to compactFieldLimit top-level fields with
// truncated values
func compactSource(src map[string]interface{}) string {
	keys := sortedKeys(src)
	parts := make([]string, 0, compactFieldLimit)
	for i, k := range keys {
		if i == compactFieldLimit {
			parts = append(parts, fmt.Sprintf("… +%d fields", len(keys)-compactFieldLimit))
			break
		}
		parts = append(parts, k+"="+truncate(scalarString(src[k]), compactValueLen))
	}
	return strings.Join(parts, ", ")
}

func compactAggregation(raw json.RawMessage) string {
	var agg struct {
		Value   interface{} `json:"value"`
		Buckets []struct {
			Key      interface{} `json:"key"`
			KeyStr   string      `json:"key_as_string"`
			DocCount int64       `json:"doc_count"`
		} `json:"buckets"`
	}
	if err := json.Unmarshal(raw, &agg); err != nil {
		return truncate(string(raw), compactStringLen)
	}
	if agg.Buckets == nil {
		if agg.Value != nil {
			return scalarString(agg.Value)
		}
		return truncate(string(raw), compactStringLen)
	}
	parts := make([]string, 0, compactArrayLimit)
	for i, bk := range agg.Buckets {
		if i == compactArrayLimit {
			parts = append(parts, fmt.Sprintf("… +%d buckets", len(agg.Buckets)-compactArrayLimit))
			break
		}
		key := bk.KeyStr
		if key == "" {
			key = scalarString(bk.Key)
		}
		parts = append(parts, fmt.Sprintf("%s (%d)", key, bk.DocCount))
	}
	return strings.Join(parts, ", ")
}

// SQLColumn is one SQL result column
type SQLColumn struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// SQLSummary summarizes a SQL response
type SQLSummary struct {
	Columns []SQLColumn     `json:"columns"`
	Rows    [][]interface{} `json:"rows"`
	Cursor  string          `json:"cursor,omitempty"`
}

// SummarizeSQL decodes a SQL response
func SummarizeSQL(body []byte) (*SQLSummary, error) {
	var s SQLSummary
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, fmt.Errorf("failed to decode SQL response: %w", err)
	}
	return &s, nil
}

func (s *SQLSummary) Kind() string           { return "rows" }
func (s *SQLSummary) Len() int               { return len(s.Rows) }
func (s *SQLSummary) Ladder() []budget.Level { return budget.StandardLadder }

// Detail renders the only row as column: value lines
func (s *SQLSummary) Detail() string {
	var b strings.Builder
	for i, c := range s.Columns {
		var v interface{}
		if len(s.Rows) > 0 && i < len(s.Rows[0]) {
			v = s.Rows[0][i]
		}
		fmt.Fprintf(&b, "%s (%s): %s\n", c.Name, c.Type, scalarString(v))
	}
	return b.String()
}

func (s *SQLSummary) Render(level budget.Level) string {
	var b strings.Builder
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}

	limit, valueLen := len(s.Rows), 0
	switch level {
	case budget.LevelMinimal:
		cols := make([]string, len(s.Columns))
		for i, c := range s.Columns {
			cols[i] = c.Name + ":" + c.Type
		}
		fmt.Fprintf(&b, "Rows: %d · columns: %s\n", len(s.Rows), strings.Join(cols, ", "))
		limit, valueLen = minimalRowLimit, compactValueLen
	case budget.LevelCompact:
		fmt.Fprintf(&b, "Rows: %d\n", len(s.Rows))
		limit, valueLen = compactRowLimit, compactValueLen
	default:
		fmt.Fprintf(&b, "Rows: %d\n", len(s.Rows))
	}

	b.WriteString(strings.Join(names, " | ") + "\n")
	for i, row := range s.Rows {
		if i == limit {
			fmt.Fprintf(&b, "… +%d rows\n", len(s.Rows)-limit)
			break
		}
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = scalarString(v)
			if valueLen > 0 {
				cells[j] = truncate(cells[j], valueLen)
			}
		}
		b.WriteString(strings.Join(cells, " | ") + "\n")
	}
	if s.Cursor != "" {
		b.WriteString("More rows available (cursor returned)\n")
	}
	return b.String()
}

// JSONSummary summarizes an arbitrary JSON response
type JSONSummary struct {
	Data interface{}
}

// SummarizeJSON decodes an arbitrary response body. A non-JSON body is kept
// as a string.
func SummarizeJSON(body []byte) *JSONSummary {
	var v interface{}
	if err := json.Unmarshal(body, &v); err != nil {
		return &JSONSummary{Data: string(body)}
	}
	return &JSONSummary{Data: v}
}

func (s *JSONSummary) Kind() string           { return "response content" }
func (s *JSONSummary) Ladder() []budget.Level { return budget.StandardLadder }
func (s *JSONSummary) Detail() string         { return s.Render(budget.LevelFull) }

// Len counts array elements or object keys; any other value is one entity
func (s *JSONSummary) Len() int {
	switch v := s.Data.(type) {
	case nil:
		return 0
	case []interface{}:
		return len(v)
	case map[string]interface{}:
		return len(v)
	case string:
		if v == "" {
			return 0
		}
	}
	return 1
}

func (s *JSONSummary) Render(level budget.Level) string {
	if str, ok := s.Data.(string); ok {
		if level == budget.LevelFull {
			return str
		}
		return truncate(str, compactStringLen*4)
	}
	switch level {
	case budget.LevelMinimal:
		var b strings.Builder
		outline(&b, s.Data, "", 0)
		return b.String()
	case budget.LevelCompact:
		return prettyJSON(prune(s.Data, 0))
	default:
		return prettyJSON(s.Data)
	}
}

// prune truncates arrays and long strings and cuts deep nesting
func prune(v interface{}, depth int) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		if depth >= compactMaxDepth {
			return fmt.Sprintf("{… %d keys}", len(t))
		}
		out := make(map[string]interface{}, len(t))
		for k, vv := range t {
			out[k] = prune(vv, depth+1)
		}
		return out
	case []interface{}:
		if depth >= compactMaxDepth {
			return fmt.Sprintf("[… %d items]", len(t))
		}
		n := len(t)
		if n > compactArrayLimit {
			n = compactArrayLimit
		}
		out := make([]interface{}, 0, n+1)
		for _, vv := range t[:n] {
			out = append(out, prune(vv, depth+1))
		}
		if len(t) > n {
			out = append(out, fmt.Sprintf("… +%d more", len(t)-n))
		}
		return out
	case string:
		return truncate(t, compactStringLen)
	default:
		return v
	}
}

// outline writes the key structure with types and array lengths
func outline(b *strings.Builder, v interface{}, indent string, depth int) {
	switch t := v.(type) {
	case map[string]interface{}:
		if depth >= minimalOutlineDepth {
			fmt.Fprintf(b, "%s{%d keys}\n", indent, len(t))
			return
		}
		for _, k := range sortedKeys(t) {
			switch child := t[k].(type) {
			case map[string]interface{}:
				fmt.Fprintf(b, "%s%s: object\n", indent, k)
				outline(b, child, indent+"  ", depth+1)
			case []interface{}:
				fmt.Fprintf(b, "%s%s: array[%d]\n", indent, k, len(child))
			default:
				fmt.Fprintf(b, "%s%s: %s\n", indent, k, truncate(scalarString(child), compactValueLen))
			}
		}
	case []interface{}:
		fmt.Fprintf(b, "%sarray[%d]\n", indent, len(t))
		if len(t) > 0 {
			outline(b, t[0], indent+"  ", depth+1)
		}
	default:
		fmt.Fprintf(b, "%s%s\n", indent, truncate(scalarString(t), compactValueLen))
	}
}

func prettyJSON(v interface{}) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

func scalarString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case float64, bool, int, int64:
		return fmt.Sprint(t)
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
