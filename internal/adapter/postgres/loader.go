package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/picklehealth/pickle-map/internal/domain"
)

// Counts missing from a report keep the stored value.
const upsertStatSQL = `
INSERT INTO disease_stats (disease, region, date, cases, deaths, recoveries, updated_at)
VALUES ($1, $2, $3::date, $4, $5, $6, $7)
ON CONFLICT (disease, region, date) DO UPDATE SET
    cases      = COALESCE(EXCLUDED.cases, disease_stats.cases),
    deaths     = COALESCE(EXCLUDED.deaths, disease_stats.deaths),
    recoveries = COALESCE(EXCLUDED.recoveries, disease_stats.recoveries),
    updated_at = EXCLUDED.updated_at
`

const upsertPopulationSQL = `
INSERT INTO region_population (region, date, population)
VALUES ($1, $2::date, $3)
ON CONFLICT (region, date) DO UPDATE SET population = EXCLUDED.population
`

// LoadBatch upserts stat reports in one round trip.
// It implements pipeline.BatchLoader.
func (s *Store) LoadBatch(ctx context.Context, reports []domain.StatReport) error {
	batch := buildBatch(reports)
	if batch.Len() == 0 {
		return nil
	}

	res := s.pool.SendBatch(ctx, batch)
	defer res.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := res.Exec(); err != nil {
			return fmt.Errorf("upsert stat reports: %w", err)
		}
	}
	return nil
}

func buildBatch(reports []domain.StatReport) *pgx.Batch {
	batch := &pgx.Batch{}
	for _, r := range reports {
		if r.HasCounts() {
			batch.Queue(upsertStatSQL, r.Disease, r.Region, r.Date, r.Cases, r.Deaths, r.Recoveries, r.ReceivedAt)
		}
		if r.Population != nil {
			batch.Queue(upsertPopulationSQL, r.Region, r.Date, *r.Population)
		}
	}
	return batch
}
