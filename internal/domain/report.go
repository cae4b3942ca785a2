package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DateLayout is the wire format of report and timeline dates.
const DateLayout = "2006-01-02"

var (
	// ErrMalformedReport wraps report messages that are not valid JSON.
	ErrMalformedReport = errors.New("malformed stat report")
	// ErrInvalidReport wraps reports that decode but fail validation.
	ErrInvalidReport = errors.New("invalid stat report")
)

// StatReport is one scraped observation of a disease in a region on a day.
type StatReport struct {
	Disease    string    `json:"disease"`
	Region     string    `json:"region"`
	Date       string    `json:"date"`
	Cases      *int64    `json:"cases,omitempty"`
	Deaths     *int64    `json:"deaths,omitempty"`
	Recoveries *int64    `json:"recoveries,omitempty"`
	Population *int64    `json:"population,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// Key identifies the row a report upserts.
func (r StatReport) Key() string {
	return r.Disease + "|" + r.Region + "|" + r.Date
}

// HasCounts reports whether the report carries any disease count.
func (r StatReport) HasCounts() bool {
	return r.Cases != nil || r.Deaths != nil || r.Recoveries != nil
}

// ParseStatReport decodes and validates a report message. Identifiers are
// normalized and ReceivedAt is stamped from the package clock. Errors wrap
// ErrMalformedReport or ErrInvalidReport.
func ParseStatReport(raw RawEvent) (StatReport, error) {
	var r StatReport
	if err := json.Unmarshal(raw.Value, &r); err != nil {
		return StatReport{}, fmt.Errorf("%w: %w", ErrMalformedReport, err)
	}

	r.Disease = NormalizeID(r.Disease)
	r.Region = NormalizeID(r.Region)
	if err := r.validate(); err != nil {
		return StatReport{}, fmt.Errorf("%w: %w", ErrInvalidReport, err)
	}

	r.ReceivedAt = clock.Now().UTC()
	return r, nil
}

func (r StatReport) validate() error {
	if r.Disease == "" {
		return errors.New("disease is required")
	}
	if r.Region == "" {
		return errors.New("region is required")
	}
	if _, err := time.Parse(DateLayout, r.Date); err != nil {
		return fmt.Errorf("%s/%s: date %q: %w", r.Disease, r.Region, r.Date, err)
	}
	if !r.HasCounts() && r.Population == nil {
		return fmt.Errorf("%s: no counts", r.Key())
	}
	for _, f := range []struct {
		name string
		v    *int64
	}{{"cases", r.Cases}, {"deaths", r.Deaths}, {"recoveries", r.Recoveries}, {"population", r.Population}} {
		if f.v != nil && *f.v < 0 {
			return fmt.Errorf("%s: negative %s", r.Key(), f.name)
		}
	}
	return nil
}

// RejectReason classifies a ParseStatReport error for metrics.
func RejectReason(err error) string {
	switch {
	case errors.Is(err, ErrMalformedReport):
		return "malformed"
	case errors.Is(err, ErrInvalidReport):
		return "invalid"
	}
	return "other"
}

// MergeReports folds reports that share a Key into one, keeping the order of
// first appearance. A later report's counts replace earlier ones field by
// field; nil fields keep the earlier value, matching how the store merges
// successive upserts. It returns the merged reports and how many were folded.
func MergeReports(reports []StatReport) ([]StatReport, int) {
	index := make(map[string]int, len(reports))
	merged := make([]StatReport, 0, len(reports))
	for _, r := range reports {
		i, ok := index[r.Key()]
		if !ok {
			index[r.Key()] = len(merged)
			merged = append(merged, r)
			continue
		}
		prev := &merged[i]
		prev.Cases = coalesce(r.Cases, prev.Cases)
		prev.Deaths = coalesce(r.Deaths, prev.Deaths)
		prev.Recoveries = coalesce(r.Recoveries, prev.Recoveries)
		prev.Population = coalesce(r.Population, prev.Population)
		if r.ReceivedAt.After(prev.ReceivedAt) {
			prev.ReceivedAt = r.ReceivedAt
		}
	}
	return merged, len(reports) - len(merged)
}

func coalesce(v, fallback *int64) *int64 {
	if v != nil {
		return v
	}
	return fallback
}
