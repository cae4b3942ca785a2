package domain

// Feature is a renderable region annotated with the disease statistics that
// matched it. Statistic fields stay nil when no record matched or the value
// is unknown.
type Feature struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Subdivisible bool     `json:"subdivisible"`
	Center       Centroid `json:"center"`
	Geometry     Geometry `json:"-"`

	Cases            *int64   `json:"cases,omitempty"`
	Deaths           *int64   `json:"deaths,omitempty"`
	Recoveries       *int64   `json:"recoveries,omitempty"`
	Population       *int64   `json:"population,omitempty"`
	Active           *int64   `json:"active,omitempty"`
	ActivePerMillion *float64 `json:"activePerMillion,omitempty"`
}

// HasStats reports whether any statistic is known for the feature.
func (f Feature) HasStats() bool {
	return f.Cases != nil || f.Deaths != nil || f.Recoveries != nil || f.ActivePerMillion != nil
}

// ActiveCases derives active cases from a record: cases minus recoveries minus
// deaths, floored at zero. Unknown recoveries and deaths count as zero. The
// result is nil when cases are unknown.
func ActiveCases(r StatRecord) *int64 {
	if r.Cases == nil {
		return nil
	}
	active := *r.Cases - valueOr(r.Recoveries, 0) - valueOr(r.Deaths, 0)
	if active < 0 {
		active = 0
	}
	return &active
}

// ActivePerMillion scales active cases to a rate per million people. The
// result is nil unless both operands are known and population is positive.
func ActivePerMillion(active, population *int64) *float64 {
	if active == nil || population == nil || *population <= 0 {
		return nil
	}
	rate := float64(*active) * 1_000_000 / float64(*population)
	return &rate
}

func valueOr(p *int64, fallback int64) int64 {
	if p == nil {
		return fallback
	}
	return *p
}

func cloneInt(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
