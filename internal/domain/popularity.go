package domain

import (
	"cmp"
	"errors"
	"slices"
)

// ErrNoDiseases is returned when a default disease is needed but none exist.
var ErrNoDiseases = errors.New("there are no diseases in our system right now")

// BestDisease returns the most popular disease. On equal popularity the
// earliest entry wins. It reports false for an empty list.
func BestDisease(diseases []DiseaseSummary) (DiseaseSummary, bool) {
	if len(diseases) == 0 {
		return DiseaseSummary{}, false
	}
	best := diseases[0]
	for _, d := range diseases[1:] {
		if d.Popularity > best.Popularity {
			best = d
		}
	}
	return best, true
}

// SortByPopularity returns a copy ordered from most to least popular. Equal
// entries keep their relative order.
func SortByPopularity(diseases []DiseaseSummary) []DiseaseSummary {
	sorted := slices.Clone(diseases)
	slices.SortStableFunc(sorted, func(a, b DiseaseSummary) int {
		return cmp.Compare(b.Popularity, a.Popularity)
	})
	return sorted
}
