package mapview

import (
	"fmt"
	"math"

	"github.com/picklehealth/pickle-map/internal/domain"
)

const (
	activeColor   = "#D00"
	unknownRegion = "Unknown Region"
)

// InfoLine is one row of the info box.
type InfoLine struct {
	Text  string `json:"text"`
	Color string `json:"color,omitempty"`
}

// InfoBox is the panel describing the selected region or what to do next.
type InfoBox struct {
	Title string     `json:"title,omitempty"`
	Lines []InfoLine `json:"lines"`
	Hint  string     `json:"hint,omitempty"`
}

// InfoFor describes the selected feature, or prompts the visitor when nothing
// is hovered. loading reports whether the current feature set is still being
// fetched.
func InfoFor(s State, loading bool) InfoBox {
	if s.Selected != nil {
		return RegionInfo(*s.Selected)
	}
	if loading {
		return InfoBox{Lines: []InfoLine{{Text: "Loading…"}}}
	}
	if s.Drill != nil {
		return InfoBox{
			Title: s.Drill.Name,
			Lines: []InfoLine{
				{Text: "Hover over a region for more information."},
				{Text: "Zoom out to return to the rest of the world."},
			},
		}
	}
	return InfoBox{Lines: []InfoLine{{Text: "Hover over a country for more information."}}}
}

// RegionInfo summarizes a feature's statistics.
func RegionInfo(f domain.Feature) InfoBox {
	box := InfoBox{Title: f.Name, Lines: make([]InfoLine, 0, 4)}
	if box.Title == "" {
		box.Title = unknownRegion
	}

	if f.ActivePerMillion != nil {
		box.Lines = append(box.Lines, InfoLine{
			Text:  quantity(*f.ActivePerMillion, "active case per million people", "active cases per million people"),
			Color: activeColor,
		})
	}
	for _, c := range []struct {
		v                *int64
		singular, plural string
	}{
		{f.Cases, "case", "cases"},
		{f.Deaths, "death", "deaths"},
		{f.Recoveries, "recovery", "recoveries"},
	} {
		if c.v != nil {
			box.Lines = append(box.Lines, InfoLine{Text: quantity(float64(*c.v), c.singular, c.plural)})
		}
	}

	if len(box.Lines) == 0 {
		box.Lines = append(box.Lines, InfoLine{Text: "No data."})
	}
	if f.Subdivisible {
		box.Hint = "Click for a state-by-state breakdown."
	}
	return box
}

// quantity rounds half away from zero and picks the singular form only for
// an exact value of one.
func quantity(v float64, singular, plural string) string {
	word := plural
	if v == 1 {
		word = singular
	}
	return fmt.Sprintf("%d %s", int64(math.Round(v)), word)
}
