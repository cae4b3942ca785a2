package pipeline

import (
	"context"

	"github.com/picklehealth/pickle-map/internal/domain"
)

// StatTransformer validates report messages with domain.ParseStatReport.
type StatTransformer struct{}

// NewTransformer creates a StatTransformer.
func NewTransformer() *StatTransformer {
	return &StatTransformer{}
}

func (t *StatTransformer) Transform(_ context.Context, raw domain.RawEvent) (domain.StatReport, error) {
	return domain.ParseStatReport(raw)
}
