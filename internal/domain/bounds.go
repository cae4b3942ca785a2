package domain

// MinWorstPerMillion is the floor applied to the normalization bound.
const MinWorstPerMillion = 1000.0

// MaxActivePerMillion returns the largest known ActivePerMillion, or false
// when no feature has one.
func MaxActivePerMillion(features []Feature) (float64, bool) {
	var (
		best  float64
		found bool
	)
	for _, f := range features {
		if f.ActivePerMillion == nil {
			continue
		}
		if !found || *f.ActivePerMillion > best {
			best = *f.ActivePerMillion
			found = true
		}
	}
	return best, found
}

// NormalizationBound is MaxActivePerMillion clamped up to floor. It reports
// false when no feature has a rate, in which case nothing is shaded.
func NormalizationBound(features []Feature, floor float64) (float64, bool) {
	worst, ok := MaxActivePerMillion(features)
	if !ok {
		return 0, false
	}
	return max(worst, floor), true
}
