// Package geojson parses stored region outlines and encodes projected
// features as GeoJSON.
package geojson

import (
	"fmt"

	gj "github.com/paulmach/go.geojson"
	"github.com/picklehealth/pickle-map/internal/domain"
)

// Parser implements domain.GeometryParser over GeoJSON geometry objects.
type Parser struct{}

// ParseGeometry decodes a GeoJSON geometry and computes its centroid.
func (Parser) ParseGeometry(raw string) (domain.Geometry, error) {
	g, err := gj.UnmarshalGeometry([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedGeometry, err)
	}
	center, ok := centroid(g)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no coordinates", domain.ErrMalformedGeometry, g.Type)
	}
	return &Geometry{geom: g, center: center}, nil
}

// Geometry is a parsed GeoJSON geometry with a precomputed centroid.
type Geometry struct {
	geom   *gj.Geometry
	center domain.Centroid
}

func (g *Geometry) Centroid() domain.Centroid {
	return g.center
}

func (g *Geometry) MarshalJSON() ([]byte, error) {
	return g.geom.MarshalJSON()
}

// Raw exposes the decoded geometry.
func (g *Geometry) Raw() *gj.Geometry {
	return g.geom
}

// vertexMean accumulates the arithmetic mean of vertices.
type vertexMean struct {
	lon, lat float64
	n        int
}

func (m *vertexMean) point(p []float64) {
	if len(p) < 2 {
		return
	}
	m.lon += p[0]
	m.lat += p[1]
	m.n++
}

func (m *vertexMean) line(points [][]float64) {
	for _, p := range points {
		m.point(p)
	}
}

// ring skips the closing vertex so it is not counted twice.
func (m *vertexMean) ring(points [][]float64) {
	n := len(points)
	if n > 1 && samePoint(points[0], points[n-1]) {
		n--
	}
	m.line(points[:n])
}

func (m *vertexMean) polygon(rings [][][]float64) {
	for _, r := range rings {
		m.ring(r)
	}
}

func (m *vertexMean) geometry(g *gj.Geometry) {
	if g == nil {
		return
	}
	switch g.Type {
	case gj.GeometryPoint:
		m.point(g.Point)
	case gj.GeometryMultiPoint:
		m.line(g.MultiPoint)
	case gj.GeometryLineString:
		m.line(g.LineString)
	case gj.GeometryMultiLineString:
		for _, l := range g.MultiLineString {
			m.line(l)
		}
	case gj.GeometryPolygon:
		m.polygon(g.Polygon)
	case gj.GeometryMultiPolygon:
		for _, p := range g.MultiPolygon {
			m.polygon(p)
		}
	case gj.GeometryCollection:
		for _, child := range g.Geometries {
			m.geometry(child)
		}
	}
}

// centroid is the mean of the geometry's distinct ring vertices.
func centroid(g *gj.Geometry) (domain.Centroid, bool) {
	var m vertexMean
	m.geometry(g)
	if m.n == 0 {
		return domain.Centroid{}, false
	}
	return domain.Centroid{Lat: m.lat / float64(m.n), Lon: m.lon / float64(m.n)}, true
}

func samePoint(a, b []float64) bool {
	if len(a) < 2 || len(b) < 2 {
		return false
	}
	return a[0] == b[0] && a[1] == b[1]
}
