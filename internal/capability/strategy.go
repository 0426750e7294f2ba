package capability

import (
	"fmt"
	"sort"

	apperrors "github.com/tareqmamari/elasticsearch-mcp-server/internal/errors"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/version"
)

// Strategy is the set of per-major normalization rules. One value exists per
// supported major; the server resolves it once at startup and never
// re-dispatches on version afterwards.
type Strategy interface {
	// Major is the Elasticsearch major this strategy was written for
	Major() int
	// Name is a short identifier such as "es7"
	Name() string
	// CatIndicesParams returns the extra query parameters for _cat/indices
	// that make wildcard expansion include hidden and closed indices. Clusters
	// before 7.7 reject expand_wildcards on _cat/indices and already list
	// closed indices, so they get none.
	CatIndicesParams(caps *Set) map[string]string
	// NormalizeMappings converts a GET _mapping response into
	// index name -> root "properties" tree, removing mapping types.
	NormalizeMappings(raw map[string]interface{}) map[string]map[string]interface{}
	// SQLPath is the REST path of the SQL endpoint, or "" when the major has none
	SQLPath() string
}

type typedStrategy struct {
	major   int
	sqlPath string
}

func (s typedStrategy) Major() int      { return s.major }
func (s typedStrategy) Name() string    { return fmt.Sprintf("es%d", s.major) }
func (s typedStrategy) SQLPath() string { return s.sqlPath }

func (s typedStrategy) CatIndicesParams(_ *Set) map[string]string {
	return map[string]string{}
}

// NormalizeMappings merges the properties of every mapping type into one tree.
func (s typedStrategy) NormalizeMappings(raw map[string]interface{}) map[string]map[string]interface{} {
	out := make(map[string]map[string]interface{}, len(raw))
	for index, body := range raw {
		mappings := mappingsOf(body)
		if props, ok := mappings["properties"].(map[string]interface{}); ok {
			out[index] = props
			continue
		}
		merged := make(map[string]interface{})
		types := make([]string, 0, len(mappings))
		for typeName := range mappings {
			types = append(types, typeName)
		}
		sort.Strings(types)
		for _, typeName := range types {
			if typeName == "_default_" {
				continue
			}
			typeBody, ok := mappings[typeName].(map[string]interface{})
			if !ok {
				continue
			}
			props, _ := typeBody["properties"].(map[string]interface{})
			for name, def := range props {
				if _, exists := merged[name]; !exists {
					merged[name] = def
				}
			}
		}
		out[index] = merged
	}
	return out
}

type typelessStrategy struct {
	major int
}

func (s typelessStrategy) Major() int      { return s.major }
func (s typelessStrategy) Name() string    { return fmt.Sprintf("es%d", s.major) }
func (s typelessStrategy) SQLPath() string { return "/_sql" }

func (s typelessStrategy) CatIndicesParams(caps *Set) map[string]string {
	if caps != nil && caps.Has(HiddenIndices) {
		return map[string]string{"expand_wildcards": "all"}
	}
	return map[string]string{}
}

func (s typelessStrategy) NormalizeMappings(raw map[string]interface{}) map[string]map[string]interface{} {
	out := make(map[string]map[string]interface{}, len(raw))
	for index, body := range raw {
		props, _ := mappingsOf(body)["properties"].(map[string]interface{})
		if props == nil {
			props = map[string]interface{}{}
		}
		out[index] = props
	}
	return out
}

func mappingsOf(body interface{}) map[string]interface{} {
	m, _ := body.(map[string]interface{})
	mappings, _ := m["mappings"].(map[string]interface{})
	if mappings == nil {
		return map[string]interface{}{}
	}
	return mappings
}

// Installed returns the strategies shipped with this build, newest first.
func Installed() []Strategy {
	return []Strategy{
		typelessStrategy{major: 8},
		typelessStrategy{major: 7},
		typedStrategy{major: 6, sqlPath: "/_xpack/sql"},
		typedStrategy{major: 5},
	}
}

// SelectStrategy picks the strategy for the detected version from the
// installed set. See Select.
func SelectStrategy(info version.Info) (Strategy, error) {
	return Select(info.Effective().Major, Installed())
}

// Select returns the strategy for major: an exact match, else the nearest
// lower installed major. A higher major is never chosen, since a newer
// strategy would assume capabilities an older cluster lacks.
func Select(major int, available []Strategy) (Strategy, error) {
	var best Strategy
	for _, s := range available {
		if s.Major() == major {
			return s, nil
		}
		if s.Major() < major && (best == nil || s.Major() > best.Major()) {
			best = s
		}
	}
	if best == nil {
		return nil, apperrors.NewConfiguration(fmt.Sprintf("no normalization strategy for Elasticsearch %d.x or older", major))
	}
	return best, nil
}
