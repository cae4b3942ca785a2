package geojson

import (
	"encoding/json"
	"fmt"

	gj "github.com/paulmach/go.geojson"
	"github.com/picklehealth/pickle-map/internal/domain"
)

// Decorate adds renderer-specific properties to an encoded feature.
type Decorate func(f domain.Feature, set func(key string, value any))

// EncodeFeatures renders features as a FeatureCollection. Statistic
// properties are only present when known.
func EncodeFeatures(features []domain.Feature, decorate Decorate) ([]byte, error) {
	fc := gj.NewFeatureCollection()
	for _, f := range features {
		geom, err := toGeometry(f.Geometry)
		if err != nil {
			return nil, fmt.Errorf("encode feature %s: %w", f.ID, err)
		}

		out := gj.NewFeature(geom)
		out.ID = f.ID
		out.SetProperty("id", f.ID)
		out.SetProperty("name", f.Name)
		out.SetProperty("subdivisible", f.Subdivisible)
		out.SetProperty("center", f.Center)
		setIfKnown(out, "cases", f.Cases)
		setIfKnown(out, "deaths", f.Deaths)
		setIfKnown(out, "recoveries", f.Recoveries)
		setIfKnown(out, "population", f.Population)
		setIfKnown(out, "active", f.Active)
		if f.ActivePerMillion != nil {
			out.SetProperty("activePerMillion", *f.ActivePerMillion)
		}
		if decorate != nil {
			decorate(f, out.SetProperty)
		}
		fc.AddFeature(out)
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encode feature collection: %w", err)
	}
	return data, nil
}

func setIfKnown(f *gj.Feature, key string, v *int64) {
	if v != nil {
		f.SetProperty(key, *v)
	}
}

// toGeometry reuses the decoded geometry when the feature was parsed by this
// package and re-decodes any other Geometry implementation.
func toGeometry(g domain.Geometry) (*gj.Geometry, error) {
	if g == nil {
		return nil, nil
	}
	if own, ok := g.(*Geometry); ok {
		return own.geom, nil
	}
	data, err := json.Marshal(g)
	if err != nil {
		return nil, err
	}
	return gj.UnmarshalGeometry(data)
}
