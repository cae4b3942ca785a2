package domain

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a region or disease does not exist.
var ErrNotFound = errors.New("not found")

// StatRecord holds the latest counts for one disease in one region.
// Nil fields are unknown.
type StatRecord struct {
	Region     string `json:"region"`
	Cases      *int64 `json:"cases"`
	Deaths     *int64 `json:"deaths"`
	Recoveries *int64 `json:"recoveries"`
	Population *int64 `json:"population"`
}

// Disease is a tracked disease together with its per-region statistics.
type Disease struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	LongName     string       `json:"long_name,omitempty"`
	Description  string       `json:"description,omitempty"`
	Reinfectable bool         `json:"reinfectable"`
	Popularity   float64      `json:"popularity"`
	Stats        []StatRecord `json:"stats"`
}

// DiseaseSummary is the list form of a disease.
type DiseaseSummary struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	LongName   string  `json:"long_name,omitempty"`
	Popularity float64 `json:"popularity"`
}

// Summary drops the statistics and descriptive text.
func (d Disease) Summary() DiseaseSummary {
	return DiseaseSummary{ID: d.ID, Name: d.Name, LongName: d.LongName, Popularity: d.Popularity}
}

// Link is an external resource about a disease, optionally scoped to a region.
type Link struct {
	URI         string `json:"uri"`
	Description string `json:"description"`
}

// DatedStat is one day of counts. Date is formatted YYYY-MM-DD.
type DatedStat struct {
	Date       string `json:"date"`
	Cases      *int64 `json:"cases"`
	Deaths     *int64 `json:"deaths"`
	Recoveries *int64 `json:"recoveries"`
}

// DatedPopulation is a population estimate effective from Date.
type DatedPopulation struct {
	Date       string `json:"date"`
	Population *int64 `json:"population"`
}

// DiseaseInRegion is the time series of a disease within one region.
type DiseaseInRegion struct {
	ID         string            `json:"id"`
	Links      []Link            `json:"links"`
	Stats      []DatedStat       `json:"stats"`
	Population []DatedPopulation `json:"population"`
}

// NewsItem is a headline about a disease in a region.
type NewsItem struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	Published   time.Time `json:"published"`
	Description string    `json:"description"`
}

// NewsQuery scopes a news search to a disease within a region. Country is
// the top-level region code used to localize results.
type NewsQuery struct {
	Disease    string
	RegionName string
	Country    string
}
