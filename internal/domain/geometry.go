package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedGeometry is wrapped by GeometryParser implementations when the
// stored geometry text cannot be parsed.
var ErrMalformedGeometry = errors.New("malformed geometry")

// Geometry is a parsed region outline.
type Geometry interface {
	json.Marshaler
	Centroid() Centroid
}

// GeometryParser turns stored geometry text into a Geometry.
type GeometryParser interface {
	ParseGeometry(raw string) (Geometry, error)
}

// GeometryError ties a parse failure to the region it came from.
type GeometryError struct {
	RegionID string
	Err      error
}

func (e *GeometryError) Error() string {
	return fmt.Sprintf("region %s: %v", e.RegionID, e.Err)
}

func (e *GeometryError) Unwrap() error {
	return e.Err
}
