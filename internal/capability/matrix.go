// Package capability decides, once at startup, what the detected cluster can
// do: which features exist and which per-major normalization rules apply.
package capability

import (
	"sort"

	"github.com/tareqmamari/elasticsearch-mcp-server/internal/version"
)

// Feature names a version-dependent cluster capability
type Feature string

// Known features
const (
	SQL                 Feature = "sql"
	ILM                 Feature = "ilm"
	FrozenIndices       Feature = "frozen_indices"
	HiddenIndices       Feature = "hidden_indices"
	AsyncSearch         Feature = "async_search"
	ComposableTemplates Feature = "composable_templates"
	DataStreams         Feature = "data_streams"
	SearchableSnapshots Feature = "searchable_snapshots"
	PointInTime         Feature = "point_in_time"
	RuntimeFields       Feature = "runtime_fields"
	DataStreamLifecycle Feature = "data_stream_lifecycle"
	MappingTypes        Feature = "mapping_types"
)

// Ver is a major.minor pair used in the feature table
type Ver struct {
	Major int
	Minor int
}

// rule describes when a feature is present: from Since (inclusive) until
// Until (exclusive). A zero Until means the feature was never removed.
type rule struct {
	feature Feature
	since   Ver
	until   Ver
	xpack   bool // absent on OpenSearch regardless of version
}

func (r rule) removed() bool {
	return r.until != (Ver{})
}

var matrix = []rule{
	{feature: SQL, since: Ver{6, 3}, xpack: true},
	{feature: ILM, since: Ver{6, 6}, xpack: true},
	{feature: FrozenIndices, since: Ver{6, 6}, until: Ver{8, 0}, xpack: true},
	{feature: HiddenIndices, since: Ver{7, 7}},
	{feature: AsyncSearch, since: Ver{7, 7}, xpack: true},
	{feature: ComposableTemplates, since: Ver{7, 8}},
	{feature: DataStreams, since: Ver{7, 9}},
	{feature: SearchableSnapshots, since: Ver{7, 10}, xpack: true},
	{feature: PointInTime, since: Ver{7, 10}, xpack: true},
	{feature: RuntimeFields, since: Ver{7, 11}},
	{feature: DataStreamLifecycle, since: Ver{8, 11}},
	{feature: MappingTypes, since: Ver{0, 0}, until: Ver{7, 0}},
}

// Set is the resolved feature set for one cluster version. It is computed
// once and read-only afterwards.
type Set struct {
	version  version.Info
	features map[Feature]bool
}

// Resolve computes the feature set for info. It is pure: no I/O, same
// answer for the same input.
func Resolve(info version.Info) *Set {
	eff := info.Effective()
	features := make(map[Feature]bool, len(matrix))
	for _, r := range matrix {
		available := eff.AtLeast(r.since.Major, r.since.Minor)
		if r.removed() && !eff.Before(r.until.Major, r.until.Minor) {
			available = false
		}
		if r.xpack && info.IsOpenSearch() {
			available = false
		}
		features[r.feature] = available
	}
	return &Set{version: info, features: features}
}

// Version returns the version the set was resolved from
func (s *Set) Version() version.Info {
	return s.version
}

// Has reports whether the feature is available
func (s *Set) Has(f Feature) bool {
	return s.features[f]
}

// Enabled returns the available features in name order
func (s *Set) Enabled() []Feature {
	out := make([]Feature, 0, len(s.features))
	for f, ok := range s.features {
		if ok {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Map returns a copy of the full feature map
func (s *Set) Map() map[Feature]bool {
	out := make(map[Feature]bool, len(s.features))
	for f, ok := range s.features {
		out[f] = ok
	}
	return out
}

// Features lists every known feature in table order
func Features() []Feature {
	out := make([]Feature, len(matrix))
	for i, r := range matrix {
		out[i] = r.feature
	}
	return out
}

// Since returns the first version a feature is available in
func Since(f Feature) (Ver, bool) {
	for _, r := range matrix {
		if r.feature == f {
			return r.since, true
		}
	}
	return Ver{}, false
}

// HasRemovalInterval reports whether a feature is modeled as a closed
// interval rather than a floor, and so is exempt from monotonicity.
func HasRemovalInterval(f Feature) bool {
	for _, r := range matrix {
		if r.feature == f {
			return r.removed()
		}
	}
	return false
}
