package domain

import (
	"strings"
	"unicode/utf8"
)

// RegionSearchThreshold is the input length at which subdivisions start
// appearing in region search results.
const RegionSearchThreshold = 3

// RegionIndex backs the region picker: it labels options and filters them
// against the typed input.
type RegionIndex struct {
	regions []Region
	byID    map[string]Region
}

// NewRegionIndex indexes regions by id. Order is preserved for Search.
func NewRegionIndex(regions []Region) *RegionIndex {
	byID := make(map[string]Region, len(regions))
	for _, r := range regions {
		byID[r.ID] = r
	}
	return &RegionIndex{regions: regions, byID: byID}
}

// Lookup returns the region with the given id.
func (x *RegionIndex) Lookup(id string) (Region, bool) {
	r, ok := x.byID[id]
	return r, ok
}

// DisplayName returns the region's name, or the id itself when unknown.
func (x *RegionIndex) DisplayName(id string) string {
	if r, ok := x.byID[id]; ok && r.Name != "" {
		return r.Name
	}
	return id
}

// Label renders an option. Subdivisions of a known country read
// "Country › Subdivision".
func (x *RegionIndex) Label(r Region) string {
	parent, ok := ParentID(r.ID)
	if !ok {
		return r.Name
	}
	country, ok := x.byID[parent]
	if !ok {
		return r.Name
	}
	return country.Name + " › " + r.Name
}

// Matches reports whether r should be offered for input. Subdivisions are
// hidden until the input reaches RegionSearchThreshold characters; matching is
// a case-insensitive substring test over the label and id.
func (x *RegionIndex) Matches(r Region, input string) bool {
	if utf8.RuneCountInString(input) < RegionSearchThreshold && IsSubdivision(r.ID) {
		return false
	}
	needle := strings.ToLower(strings.TrimSpace(input))
	haystack := strings.ToLower(strings.TrimSpace(x.Label(r) + " " + r.ID))
	return strings.Contains(haystack, needle)
}

// Search returns the regions matching input, in index order.
func (x *RegionIndex) Search(input string) []Region {
	out := make([]Region, 0)
	for _, r := range x.regions {
		if x.Matches(r, input) {
			out = append(out, r)
		}
	}
	return out
}
