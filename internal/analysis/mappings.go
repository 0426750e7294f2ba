package analysis

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Capability is a query capability of a mapped field
type Capability uint8

// Field capabilities
const (
	CapSearch Capability = 1 << iota
	CapTerm
	CapAggregate
	CapOrder
	CapRange
	CapGeo
	CapNested
)

var capabilityNames = []struct {
	c    Capability
	name string
}{
	{CapSearch, "Search"},
	{CapTerm, "Term"},
	{CapAggregate, "Aggregate"},
	{CapOrder, "Order"},
	{CapRange, "Range"},
	{CapGeo, "Geo"},
	{CapNested, "Nested"},
}

// Has reports whether every capability in c2 is present
func (c Capability) Has(c2 Capability) bool { return c&c2 == c2 }

// Any reports whether any capability in c2 is present
func (c Capability) Any(c2 Capability) bool { return c&c2 != 0 }

// List returns capability names in canonical order
func (c Capability) List() []string {
	out := []string{}
	for _, n := range capabilityNames {
		if c.Has(n.c) {
			out = append(out, n.name)
		}
	}
	return out
}

func (c Capability) String() string { return strings.Join(c.List(), ",") }

// MarshalJSON renders the set as a list of names
func (c Capability) MarshalJSON() ([]byte, error) { return json.Marshal(c.List()) }

const (
	exactCaps   = CapTerm | CapAggregate | CapOrder
	rangedCaps  = exactCaps | CapRange
	textualCaps = CapSearch
)

// typeCapabilities is keyed by Elasticsearch field type
var typeCapabilities = map[string]Capability{
	"text":               textualCaps,
	"match_only_text":    textualCaps,
	"annotated_text":     textualCaps,
	"search_as_you_type": textualCaps,
	"keyword":            exactCaps,
	"constant_keyword":   exactCaps,
	"wildcard":           exactCaps,
	"long":               rangedCaps,
	"integer":            rangedCaps,
	"short":              rangedCaps,
	"byte":               rangedCaps,
	"double":             rangedCaps,
	"float":              rangedCaps,
	"half_float":         rangedCaps,
	"scaled_float":       rangedCaps,
	"unsigned_long":      rangedCaps,
	"date":               rangedCaps,
	"date_nanos":         rangedCaps,
	"ip":                 rangedCaps,
	"boolean":            CapTerm | CapAggregate,
	"geo_point":          CapGeo,
	"geo_shape":          CapGeo,
	"shape":              CapGeo,
	"point":              CapGeo,
	"nested":             CapNested,
	"integer_range":      CapRange,
	"long_range":         CapRange,
	"float_range":        CapRange,
	"double_range":       CapRange,
	"date_range":         CapRange,
	"ip_range":           CapRange,
}

// FieldCapabilities derives the capability set of a field definition.
// doc_values:false strips Aggregate; index:false strips everything.
func FieldCapabilities(fieldType string, docValues, indexed bool) Capability {
	if !indexed {
		return 0
	}
	c := typeCapabilities[fieldType]
	if !docValues {
		c &^= CapAggregate
	}
	return c
}

// MappingField is one flattened field
type MappingField struct {
	Path         string            `json:"path"`
	Type         string            `json:"type"`
	Capabilities Capability        `json:"capabilities"`
	Analyzer     string            `json:"analyzer,omitempty"`
	Format       string            `json:"format,omitempty"`
	MultiFields  map[string]string `json:"multi_fields,omitempty"`
	Depth        int               `json:"depth"`
	// MultiField marks a sub-field declared under a parent's "fields"
	MultiField bool `json:"multi_field,omitempty"`
}

// FlattenMapping walks a properties tree and emits one record per field,
// including object and nested containers, sorted by path. maxDepth is the
// deepest level observed; top-level fields are at depth.
func FlattenMapping(properties map[string]interface{}, prefix string, depth int) (fields []MappingField, maxDepth int) {
	names := make([]string, 0, len(properties))
	for name := range properties {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		def, ok := properties[name].(map[string]interface{})
		if !ok {
			continue
		}
		path := name
		if prefix != "" {
			path = prefix + "." + name
		}
		if depth > maxDepth {
			maxDepth = depth
		}

		fieldType, _ := def["type"].(string)
		children, hasChildren := def["properties"].(map[string]interface{})
		if fieldType == "" {
			if !hasChildren {
				continue
			}
			fieldType = "object"
		}

		f := MappingField{
			Path:         path,
			Type:         fieldType,
			Capabilities: FieldCapabilities(fieldType, boolOr(def["doc_values"], true), boolOr(def["index"], true)),
			Depth:        depth,
		}
		f.Analyzer, _ = def["analyzer"].(string)
		f.Format, _ = def["format"].(string)

		var subs []MappingField
		if multi, ok := def["fields"].(map[string]interface{}); ok && len(multi) > 0 {
			f.MultiFields = make(map[string]string, len(multi))
			subNames := make([]string, 0, len(multi))
			for sub := range multi {
				subNames = append(subNames, sub)
			}
			sort.Strings(subNames)
			for _, sub := range subNames {
				subDef, _ := multi[sub].(map[string]interface{})
				subType, _ := subDef["type"].(string)
				f.MultiFields[sub] = subType
				sf := MappingField{
					Path:         path + "." + sub,
					Type:         subType,
					Capabilities: FieldCapabilities(subType, boolOr(subDef["doc_values"], true), boolOr(subDef["index"], true)),
					Depth:        depth + 1,
					MultiField:   true,
				}
				sf.Analyzer, _ = subDef["analyzer"].(string)
				subs = append(subs, sf)
			}
		}

		fields = append(fields, f)
		fields = append(fields, subs...)

		if hasChildren {
			childFields, childDepth := FlattenMapping(children, path, depth+1)
			fields = append(fields, childFields...)
			if childDepth > maxDepth {
				maxDepth = childDepth
			}
		}
	}

	sort.SliceStable(fields, func(i, j int) bool { return fields[i].Path < fields[j].Path })
	return fields, maxDepth
}

// boolOr reads a mapping flag, which may be a JSON bool or a "true"/"false"
// string on older clusters.
func boolOr(v interface{}, def bool) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		switch strings.ToLower(b) {
		case "true":
			return true
		case "false":
			return false
		}
	}
	return def
}

// Capability classes accepted by FieldFilter
const (
	ClassSearchable   = "searchable"
	ClassAggregatable = "aggregatable"
	ClassSortable     = "sortable"
)

var capabilityClasses = map[string]Capability{
	ClassSearchable:   CapSearch | CapTerm,
	ClassAggregatable: CapAggregate,
	ClassSortable:     CapOrder,
}

// CapabilityClasses lists the accepted class names
func CapabilityClasses() []string {
	return []string{ClassSearchable, ClassAggregatable, ClassSortable}
}

// FieldFilter selects fields. Empty criteria match everything; set criteria
// combine with AND.
type FieldFilter struct {
	// Pattern is a glob over the dotted path; * matches any run of characters
	Pattern string
	Types   []string
	Class   string
}

// IsZero reports whether the filter selects everything
func (f FieldFilter) IsZero() bool {
	return f.Pattern == "" && len(f.Types) == 0 && f.Class == ""
}

// GlobToRegexp compiles a glob where * matches any run of characters
func GlobToRegexp(glob string) (*regexp.Regexp, error) {
	parts := strings.Split(glob, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return regexp.Compile("^" + strings.Join(parts, ".*") + "$")
}

// FilterFields applies f to fields, preserving order
func FilterFields(fields []MappingField, f FieldFilter) ([]MappingField, error) {
	if f.IsZero() {
		return fields, nil
	}

	var re *regexp.Regexp
	if f.Pattern != "" {
		var err error
		if re, err = GlobToRegexp(f.Pattern); err != nil {
			return nil, fmt.Errorf("invalid field pattern %q: %w", f.Pattern, err)
		}
	}

	var class Capability
	if f.Class != "" {
		c, ok := capabilityClasses[strings.ToLower(f.Class)]
		if !ok {
			return nil, fmt.Errorf("invalid capability %q (valid: %s)", f.Class, strings.Join(CapabilityClasses(), ", "))
		}
		class = c
	}

	types := make(map[string]bool, len(f.Types))
	for _, t := range f.Types {
		if t = strings.TrimSpace(t); t != "" {
			types[t] = true
		}
	}

	out := make([]MappingField, 0, len(fields))
	for _, field := range fields {
		if re != nil && !re.MatchString(field.Path) {
			continue
		}
		if len(types) > 0 && !types[field.Type] {
			continue
		}
		if class != 0 && !field.Capabilities.Any(class) {
			continue
		}
		out = append(out, field)
	}
	return out, nil
}

// TypeConflict is a path present in every index with differing types
type TypeConflict struct {
	Path  string            `json:"path"`
	Types map[string]string `json:"types"`
}

// MappingComparison partitions fields across indices
type MappingComparison struct {
	Indices []string `json:"indices"`
	Common  []string `json:"common"`
	// Unique maps a path to the indices declaring it, for paths missing from
	// at least one index
	Unique    map[string][]string `json:"unique"`
	Conflicts []TypeConflict      `json:"conflicts"`
}

// CompareMappings compares flattened mappings keyed by index name
func CompareMappings(byIndex map[string][]MappingField) MappingComparison {
	cmp := MappingComparison{Unique: map[string][]string{}}
	for name := range byIndex {
		cmp.Indices = append(cmp.Indices, name)
	}
	sort.Strings(cmp.Indices)

	types := map[string]map[string]string{}
	for _, name := range cmp.Indices {
		for _, f := range byIndex[name] {
			if types[f.Path] == nil {
				types[f.Path] = map[string]string{}
			}
			types[f.Path][name] = f.Type
		}
	}

	paths := make([]string, 0, len(types))
	for p := range types {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		present := types[p]
		if len(present) < len(cmp.Indices) {
			owners := make([]string, 0, len(present))
			for idx := range present {
				owners = append(owners, idx)
			}
			sort.Strings(owners)
			cmp.Unique[p] = owners
			continue
		}
		cmp.Common = append(cmp.Common, p)
		var first string
		for _, idx := range cmp.Indices {
			if first == "" {
				first = present[idx]
				continue
			}
			if present[idx] != first {
				cmp.Conflicts = append(cmp.Conflicts, TypeConflict{Path: p, Types: present})
				break
			}
		}
	}
	return cmp
}
