package mapview

import (
	"math"

	"github.com/picklehealth/pickle-map/internal/domain"
)

// MaxFillOpacity is the fill opacity of the worst region on the map.
const MaxFillOpacity = 0.75

// Style is the per-feature path style handed to the host renderer.
type Style struct {
	Color       string  `json:"color"`
	FillColor   string  `json:"fillColor"`
	Weight      float64 `json:"weight"`
	FillOpacity float64 `json:"fillOpacity"`
}

// NeutralStyle draws a feature with no fill and no outline.
var NeutralStyle = Style{Color: "#000", FillColor: "#F00", Weight: 0, FillOpacity: 0}

// StyleFor shades a feature relative to bound, which callers obtain from
// domain.NormalizationBound. Opacity grows with the square root of the ratio.
func StyleFor(f domain.Feature, bound float64) Style {
	if f.ActivePerMillion == nil || bound <= 0 {
		return NeutralStyle
	}
	k := math.Max(0, *f.ActivePerMillion/bound)
	s := NeutralStyle
	s.FillOpacity = MaxFillOpacity * math.Sqrt(k)
	return s
}
