// Package domain models disease statistics joined with region geometries for a
// choropleth map.
//
// # Region Identifiers
//
// Regions are identified by upper-case codes. Countries use ISO 3166-1 alpha-2
// codes ("US", "AU"); subdivisions append an ISO 3166-2 suffix after a single
// hyphen ("US-CA", "AU-NSW"). The segment before the first hyphen names the
// parent country. An identifier with an empty suffix ("US-") is not a
// subdivision. See [ParentID].
//
// # Statistics
//
// Each disease carries one [StatRecord] per region holding the latest known
// counts. Any count may be unknown and is modelled as a nil pointer:
//
//	active           = max(0, cases - recoveries - deaths)   unknown iff cases unknown
//	activePerMillion = active * 1e6 / population             unknown unless population > 0
//
// Unknown recoveries and deaths count as zero when deriving active cases.
//
// # Subdivisibility
//
// A region is subdivisible when any stat record of the current disease names
// one of its subdivisions, whether or not that subdivision has geometry. The
// map uses the flag to decide whether a click drills into the country.
//
// # Normalization
//
// Choropleth intensity is relative to the worst region on the map, clamped up
// to [MinWorstPerMillion] so that a disease with uniformly low prevalence is
// not painted as if it were severe. See [NormalizationBound].
//
// # Ingest
//
// Scrapers publish dated [StatReport] messages; [ParseStatReport] validates
// them before they are upserted into the store.
package domain
