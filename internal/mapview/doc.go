// Package mapview drives the interactive choropleth.
//
// # Reducer
//
// Pointer and zoom events from the host map widget are folded into a [State]
// by [Reduce], which also returns the [Effect] values the host must apply.
// The reducer is pure; it never touches the network or the widget.
//
//	Hover{F}    outline F, bring to front, select F
//	Unhover{F}  clear outline, deselect only if F is still selected
//	Click{F}    drill into F when subdivisible, fly to its centre
//	ZoomEnd{z}  leave the drilled country once z falls below DrillZoom
//
// # Session
//
// A [Session] owns the state for one map on screen. It fetches the disease
// and the geometry for the current drill level concurrently, projects them,
// and discards results whose dependency key has since changed.
package mapview
