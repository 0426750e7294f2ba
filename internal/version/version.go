// Package version detects the cluster's version with a single plain HTTP
// request against the cluster root, before any version-specific client exists.
package version

import (
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/tareqmamari/elasticsearch-mcp-server/internal/errors"
)

// Distribution identifies the server product behind the root endpoint
type Distribution string

// Known distributions
const (
	Elasticsearch Distribution = "elasticsearch"
	OpenSearch    Distribution = "opensearch"
)

// Info is the parsed cluster version. It is created once at startup and
// never mutated.
type Info struct {
	Major        int          `json:"major"`
	Minor        int          `json:"minor"`
	Patch        int          `json:"patch"`
	Full         string       `json:"full"`
	Distribution Distribution `json:"distribution"`
}

// Parse parses a dotted version string such as "7.10.2", "8.0.0-SNAPSHOT"
// or "6.8". Pre-release and build suffixes are kept in Full but ignored for
// the numeric fields.
func Parse(s string) (Info, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return Info{}, apperrors.NewParse("empty version string")
	}

	core := raw
	if i := strings.IndexAny(core, "-+"); i >= 0 {
		core = core[:i]
	}

	parts := strings.Split(core, ".")
	if len(parts) < 2 || len(parts) > 3 {
		return Info{}, apperrors.NewParse(fmt.Sprintf("version %q is not MAJOR.MINOR[.PATCH]", raw))
	}

	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || p == "" {
			return Info{}, apperrors.NewParse(fmt.Sprintf("version %q has a non-numeric component %q", raw, p))
		}
		nums[i] = n
	}

	return Info{
		Major:        nums[0],
		Minor:        nums[1],
		Patch:        nums[2],
		Full:         raw,
		Distribution: Elasticsearch,
	}, nil
}

// String returns "MAJOR.MINOR.PATCH"
func (i Info) String() string {
	return fmt.Sprintf("%d.%d.%d", i.Major, i.Minor, i.Patch)
}

// Label is a human-readable form including the distribution
func (i Info) Label() string {
	if i.Distribution == OpenSearch {
		return "OpenSearch " + i.String()
	}
	return "Elasticsearch " + i.String()
}

// AtLeast reports whether the version is >= major.minor
func (i Info) AtLeast(major, minor int) bool {
	if i.Major != major {
		return i.Major > major
	}
	return i.Minor >= minor
}

// Before reports whether the version is < major.minor
func (i Info) Before(major, minor int) bool {
	return !i.AtLeast(major, minor)
}

// IsOpenSearch reports whether the cluster is an OpenSearch distribution
func (i Info) IsOpenSearch() bool {
	return i.Distribution == OpenSearch
}

// openSearchBase is the Elasticsearch release OpenSearch forked from.
var openSearchBase = Info{Major: 7, Minor: 10, Patch: 2, Full: "7.10.2", Distribution: Elasticsearch}

// Effective returns the Elasticsearch API level the cluster speaks. For
// Elasticsearch it is the version itself; every OpenSearch release speaks
// the 7.10 REST API.
func (i Info) Effective() Info {
	if i.Distribution == OpenSearch {
		return openSearchBase
	}
	return i
}
