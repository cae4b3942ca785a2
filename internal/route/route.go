// Package route parses and builds the site's page URLs and resolves the
// pages that redirect to a concrete disease and region.
package route

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/picklehealth/pickle-map/internal/domain"
)

// ErrUnknownPath is returned by Parse for paths outside the site's routes.
var ErrUnknownPath = errors.New("unknown path")

// Kind enumerates the page routes.
type Kind int

const (
	Home          Kind = iota // /
	DiseaseSelect             // /disease-select
	Disease                   // /disease/{d}
	DiseaseNews               // /disease/{d}/news
	Map                       // /disease/{d}/map
	InRegion                  // /disease/{d}/in/{r}
	InRegionNews              // /disease/{d}/in/{r}/news
	Compare                   // /disease/{d}/in/{r}/vs/{o}
)

// Route is a parsed page URL.
type Route struct {
	Kind    Kind
	Disease string
	Region  string
	Other   string
}

// Parse maps a URL path onto a Route. Trailing slashes are ignored.
func Parse(path string) (Route, error) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return Route{Kind: Home}, nil
	}
	parts := strings.Split(trimmed, "/")
	for i, p := range parts {
		unescaped, err := url.PathUnescape(p)
		if err != nil || unescaped == "" {
			return Route{}, fmt.Errorf("%w: %s", ErrUnknownPath, path)
		}
		parts[i] = unescaped
	}

	if len(parts) == 1 && parts[0] == "disease-select" {
		return Route{Kind: DiseaseSelect}, nil
	}
	if parts[0] != "disease" || len(parts) < 2 {
		return Route{}, fmt.Errorf("%w: %s", ErrUnknownPath, path)
	}

	r := Route{Disease: parts[1]}
	rest := parts[2:]
	switch {
	case len(rest) == 0:
		r.Kind = Disease
	case len(rest) == 1 && rest[0] == "news":
		r.Kind = DiseaseNews
	case len(rest) == 1 && rest[0] == "map":
		r.Kind = Map
	case len(rest) == 2 && rest[0] == "in":
		r.Kind, r.Region = InRegion, rest[1]
	case len(rest) == 3 && rest[0] == "in" && rest[2] == "news":
		r.Kind, r.Region = InRegionNews, rest[1]
	case len(rest) == 4 && rest[0] == "in" && rest[2] == "vs":
		r.Kind, r.Region, r.Other = Compare, rest[1], rest[3]
	default:
		return Route{}, fmt.Errorf("%w: %s", ErrUnknownPath, path)
	}
	return r, nil
}

// Path renders the route as a URL path.
func (r Route) Path() string {
	d := url.PathEscape(r.Disease)
	switch r.Kind {
	case DiseaseSelect:
		return "/disease-select"
	case Disease:
		return "/disease/" + d
	case DiseaseNews:
		return "/disease/" + d + "/news"
	case Map:
		return "/disease/" + d + "/map"
	case InRegion:
		return "/disease/" + d + "/in/" + url.PathEscape(r.Region)
	case InRegionNews:
		return "/disease/" + d + "/in/" + url.PathEscape(r.Region) + "/news"
	case Compare:
		return "/disease/" + d + "/in/" + url.PathEscape(r.Region) + "/vs/" + url.PathEscape(r.Other)
	}
	return "/"
}

// NeedsRedirect reports whether the route lacks a disease or region that a
// redirect would fill in.
func (r Route) NeedsRedirect() bool {
	switch r.Kind {
	case Home, Disease, DiseaseNews:
		return true
	}
	return false
}

// Redirect fills in the missing parts of a redirecting route: the most
// popular disease when none is given, and current as the region. Routes that
// do not redirect are returned unchanged.
func Redirect(r Route, diseases []domain.DiseaseSummary, current string) (Route, error) {
	if !r.NeedsRedirect() {
		return r, nil
	}

	disease := r.Disease
	if disease == "" {
		best, ok := domain.BestDisease(diseases)
		if !ok {
			return Route{}, domain.ErrNoDiseases
		}
		disease = best.ID
	}

	kind := InRegion
	if r.Kind == DiseaseNews {
		kind = InRegionNews
	}
	return Route{Kind: kind, Disease: disease, Region: current}, nil
}

// WithRegion is the navigation performed when the visitor picks a region.
func WithRegion(r Route, region string) Route {
	switch r.Kind {
	case InRegion, InRegionNews, Compare:
		r.Region = region
	case Disease:
		r = Route{Kind: InRegion, Disease: r.Disease, Region: region}
	case DiseaseNews:
		r = Route{Kind: InRegionNews, Disease: r.Disease, Region: region}
	}
	return r
}

// NavLink is an entry of the disease page header.
type NavLink struct {
	Text string
	Path string
}

// NavLinks returns the header links for a disease page. Links keep the
// current region when the route has one.
func NavLinks(r Route) []NavLink {
	faq := Route{Kind: Disease, Disease: r.Disease}
	news := Route{Kind: DiseaseNews, Disease: r.Disease}
	if r.Region != "" {
		faq = WithRegion(faq, r.Region)
		news = WithRegion(news, r.Region)
	}
	return []NavLink{
		{Text: "FAQ", Path: faq.Path()},
		{Text: "Map", Path: Route{Kind: Map, Disease: r.Disease}.Path()},
		{Text: "News", Path: news.Path()},
		{Text: "Other Diseases", Path: Route{Kind: DiseaseSelect}.Path()},
	}
}
