package domain

import "fmt"

// Projection is the result of joining a disease with a set of regions.
type Projection struct {
	Features []Feature
	// Skipped lists regions dropped because their geometry failed to parse.
	// Always empty for a strict Projector.
	Skipped []*GeometryError
}

// Projector joins disease statistics onto region geometries.
type Projector struct {
	parser GeometryParser
	strict bool
}

// NewProjector creates a Projector. A strict projector fails the whole
// projection on the first malformed geometry; otherwise the region is skipped
// and reported in Projection.Skipped.
func NewProjector(parser GeometryParser, strict bool) *Projector {
	return &Projector{parser: parser, strict: strict}
}

// Project builds one Feature per region that has geometry, in region order.
// Stat records mark their parent region subdivisible whenever the parent is
// in the region set, even if the record's own region has no geometry. Records
// whose region has a feature attach their counts and derived rates to it.
// Neither argument is modified.
func (p *Projector) Project(disease Disease, regions []Region) (Projection, error) {
	var out Projection
	known := make(map[string]struct{}, len(regions))
	featureAt := make(map[string]int, len(regions))
	features := make([]Feature, 0, len(regions))

	for _, region := range regions {
		if _, dup := known[region.ID]; dup {
			continue
		}
		known[region.ID] = struct{}{}
		if region.Geometry == nil {
			continue
		}

		geom, err := p.parser.ParseGeometry(*region.Geometry)
		if err != nil {
			gerr := &GeometryError{RegionID: region.ID, Err: err}
			if p.strict {
				return Projection{}, fmt.Errorf("project %s: %w", disease.ID, gerr)
			}
			out.Skipped = append(out.Skipped, gerr)
			continue
		}

		featureAt[region.ID] = len(features)
		features = append(features, Feature{
			ID:       region.ID,
			Name:     region.Name,
			Center:   geom.Centroid(),
			Geometry: geom,
		})
	}

	subdivisible := make(map[string]bool)
	for _, rec := range disease.Stats {
		if parent, ok := ParentID(rec.Region); ok {
			if _, present := known[parent]; present {
				subdivisible[parent] = true
			}
		}
		i, ok := featureAt[rec.Region]
		if !ok {
			continue
		}
		attachStats(&features[i], rec)
	}

	for i := range features {
		features[i].Subdivisible = subdivisible[features[i].ID]
	}
	out.Features = features
	return out, nil
}

func attachStats(f *Feature, rec StatRecord) {
	f.Cases = cloneInt(rec.Cases)
	f.Deaths = cloneInt(rec.Deaths)
	f.Recoveries = cloneInt(rec.Recoveries)
	f.Population = cloneInt(rec.Population)
	f.Active = ActiveCases(rec)
	f.ActivePerMillion = ActivePerMillion(f.Active, f.Population)
}
