package domain

import "strings"

// Region is a country or a hyphen-suffixed subdivision ("US-CA").
// Geometry holds raw GeoJSON geometry text and is nil when the store has none.
type Region struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Geometry *string `json:"geometry,omitempty"`
}

// Centroid is a WGS-84 latitude/longitude pair.
type Centroid struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// ParentID returns the country segment of a subdivision id. It reports false
// for top-level ids and for ids whose parent or suffix is empty.
func ParentID(id string) (string, bool) {
	parent, suffix, ok := strings.Cut(id, "-")
	if !ok || parent == "" || suffix == "" {
		return "", false
	}
	return parent, true
}

// IsSubdivision reports whether id names a subdivision of some country.
func IsSubdivision(id string) bool {
	_, ok := ParentID(id)
	return ok
}

// NormalizeID trims and upper-cases a region or disease identifier the way the
// store keys them.
func NormalizeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}
