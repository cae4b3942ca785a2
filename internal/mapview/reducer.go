package mapview

import "github.com/picklehealth/pickle-map/internal/domain"

const (
	// DrillZoom is the minimum zoom while drilled into a country.
	DrillZoom = 4.0
	// InitialZoom is the host map's zoom before any zoom events.
	InitialZoom = 2.0

	hoverWeight = 1.0
)

// State is the interaction state of one map.
type State struct {
	Drill    *domain.Feature
	Selected *domain.Feature
	Zoom     float64
}

// NewState returns the world view at InitialZoom.
func NewState() State {
	return State{Zoom: InitialZoom}
}

// LayerKey identifies the rendered feature set. The host must rebuild its
// layer whenever the key changes.
func (s State) LayerKey() string {
	if s.Drill == nil {
		return ""
	}
	return s.Drill.ID
}

// Event is a pointer or zoom event raised by the host map.
type Event interface{ isEvent() }

type (
	Hover   struct{ Feature domain.Feature }
	Unhover struct{ Feature domain.Feature }
	Click   struct{ Feature domain.Feature }
	ZoomEnd struct{ Zoom float64 }
)

func (Hover) isEvent()   {}
func (Unhover) isEvent() {}
func (Click) isEvent()   {}
func (ZoomEnd) isEvent() {}

// Effect is an instruction for the host map.
type Effect interface{ isEffect() }

// Outline sets a feature's outline weight.
type Outline struct {
	FeatureID    string
	Weight       float64
	BringToFront bool
}

// FlyTo pans and zooms the map.
type FlyTo struct {
	Center domain.Centroid
	Zoom   float64
}

// ResetLayer replaces the rendered feature set with the one for Key.
type ResetLayer struct{ Key string }

func (Outline) isEffect()    {}
func (FlyTo) isEffect()      {}
func (ResetLayer) isEffect() {}

// Reduce applies ev to s.
func Reduce(s State, ev Event) (State, []Effect) {
	switch ev := ev.(type) {
	case Hover:
		f := ev.Feature
		s.Selected = &f
		return s, []Effect{Outline{FeatureID: f.ID, Weight: hoverWeight, BringToFront: true}}

	case Unhover:
		if s.Selected != nil && s.Selected.ID == ev.Feature.ID {
			s.Selected = nil
		}
		return s, []Effect{Outline{FeatureID: ev.Feature.ID, Weight: 0}}

	case Click:
		if !ev.Feature.Subdivisible {
			return s, nil
		}
		f := ev.Feature
		s.Drill = &f
		s.Selected = nil
		return s, []Effect{
			FlyTo{Center: f.Center, Zoom: max(DrillZoom, s.Zoom)},
			ResetLayer{Key: s.LayerKey()},
		}

	case ZoomEnd:
		s.Zoom = ev.Zoom
		if s.Drill == nil || ev.Zoom >= DrillZoom {
			return s, nil
		}
		s.Drill = nil
		return s, []Effect{ResetLayer{Key: s.LayerKey()}}
	}
	return s, nil
}
