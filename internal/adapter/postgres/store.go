// Package postgres stores regions, diseases and their statistics, and serves
// the read queries behind the data service.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/picklehealth/pickle-map/internal/domain"
)

// ErrNotFound is returned when a region or disease row does not exist.
var ErrNotFound = domain.ErrNotFound

// Store wraps a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store backed by a pgx pool.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// CheckReadiness pings the database.
func (s *Store) CheckReadiness(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const listRegionsSQL = `SELECT id, name FROM region ORDER BY id`

// ListRegions returns every region without geometry.
func (s *Store) ListRegions(ctx context.Context) ([]domain.Region, error) {
	rows, err := s.pool.Query(ctx, listRegionsSQL)
	if err != nil {
		return nil, fmt.Errorf("list regions: %w", err)
	}
	defer rows.Close()

	regions := make([]domain.Region, 0)
	for rows.Next() {
		var r domain.Region
		if err := rows.Scan(&r.ID, &r.Name); err != nil {
			return nil, fmt.Errorf("scan region: %w", err)
		}
		regions = append(regions, r)
	}
	return regions, rows.Err()
}

const (
	topLevelRegionsSQL = `
    SELECT id, name, geometry
    FROM region
    WHERE id NOT LIKE '%-%'
    ORDER BY id
`
	subregionsSQL = `
    SELECT id, name, geometry
    FROM region
    WHERE starts_with(id, $1 || '-')
    ORDER BY id
`
)

// subregionsQuery picks the query for one drill level. An empty country
// selects the top-level countries.
func subregionsQuery(country string) (string, []any) {
	if country == "" {
		return topLevelRegionsSQL, nil
	}
	return subregionsSQL, []any{country}
}

// Subregions returns the regions one level below country, with geometry.
func (s *Store) Subregions(ctx context.Context, country string) ([]domain.Region, error) {
	sql, args := subregionsQuery(country)
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list subregions of %q: %w", country, err)
	}
	defer rows.Close()

	regions := make([]domain.Region, 0)
	for rows.Next() {
		var r domain.Region
		if err := rows.Scan(&r.ID, &r.Name, &r.Geometry); err != nil {
			return nil, fmt.Errorf("scan region: %w", err)
		}
		regions = append(regions, r)
	}
	return regions, rows.Err()
}

const regionSQL = `SELECT id, name, geometry FROM region WHERE id = $1`

// Region returns one region with its geometry.
func (s *Store) Region(ctx context.Context, id string) (domain.Region, error) {
	var r domain.Region
	err := s.pool.QueryRow(ctx, regionSQL, id).Scan(&r.ID, &r.Name, &r.Geometry)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Region{}, fmt.Errorf("region %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return domain.Region{}, fmt.Errorf("get region %s: %w", id, err)
	}
	return r, nil
}

const listDiseasesSQL = `
    SELECT id, name, COALESCE(long_name, ''), popularity
    FROM disease
    ORDER BY id
`

// ListDiseases returns the disease summaries.
func (s *Store) ListDiseases(ctx context.Context) ([]domain.DiseaseSummary, error) {
	rows, err := s.pool.Query(ctx, listDiseasesSQL)
	if err != nil {
		return nil, fmt.Errorf("list diseases: %w", err)
	}
	defer rows.Close()

	diseases := make([]domain.DiseaseSummary, 0)
	for rows.Next() {
		var d domain.DiseaseSummary
		if err := rows.Scan(&d.ID, &d.Name, &d.LongName, &d.Popularity); err != nil {
			return nil, fmt.Errorf("scan disease: %w", err)
		}
		diseases = append(diseases, d)
	}
	return diseases, rows.Err()
}

const (
	diseaseSQL = `
    SELECT name, COALESCE(long_name, ''), COALESCE(description, ''), reinfectable, popularity
    FROM disease
    WHERE id = $1
`
	// Latest counts per region, paired with the most recent known population.
	diseaseStatsSQL = `
    SELECT
        region,
        MAX(cases),
        MAX(deaths),
        MAX(recoveries),
        (
            SELECT population
            FROM region_population
            WHERE
                region_population.region = disease_stats.region AND
                population IS NOT NULL
            ORDER BY region_population.date DESC
            LIMIT 1
        )
    FROM disease_stats
    WHERE disease = $1
    GROUP BY region
    ORDER BY region
`
)

// Disease returns a disease with its per-region statistics.
func (s *Store) Disease(ctx context.Context, id string) (domain.Disease, error) {
	d := domain.Disease{ID: id}
	err := s.pool.QueryRow(ctx, diseaseSQL, id).
		Scan(&d.Name, &d.LongName, &d.Description, &d.Reinfectable, &d.Popularity)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Disease{}, fmt.Errorf("disease %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return domain.Disease{}, fmt.Errorf("get disease %s: %w", id, err)
	}

	rows, err := s.pool.Query(ctx, diseaseStatsSQL, id)
	if err != nil {
		return domain.Disease{}, fmt.Errorf("disease %s stats: %w", id, err)
	}
	defer rows.Close()

	d.Stats = make([]domain.StatRecord, 0)
	for rows.Next() {
		var st domain.StatRecord
		if err := rows.Scan(&st.Region, &st.Cases, &st.Deaths, &st.Recoveries, &st.Population); err != nil {
			return domain.Disease{}, fmt.Errorf("scan stat: %w", err)
		}
		d.Stats = append(d.Stats, st)
	}
	if err := rows.Err(); err != nil {
		return domain.Disease{}, fmt.Errorf("disease %s stats: %w", id, err)
	}
	return d, nil
}

const (
	// Global links, links for the region itself, and links for its country.
	diseaseLinksSQL = `
    SELECT uri, description
    FROM disease_link
    WHERE
        disease = $1 AND
        (region IS NULL OR region = $2 OR starts_with($2, region || '-'))
`
	regionStatsSQL = `
    SELECT to_char(date, 'YYYY-MM-DD'), cases, deaths, recoveries
    FROM disease_stats
    WHERE
        disease = $1 AND
        region = $2
    ORDER BY date
`
	// Population rows inside [$2, $3] plus the nearest row on either side.
	regionPopulationSQL = `
    SELECT to_char(date, 'YYYY-MM-DD'), population
    FROM region_population
    WHERE
        region = $1 AND
        (
            ($2::date <= date AND date <= $3::date) OR
            (date < $2::date AND date >= ALL(SELECT date FROM region_population WHERE region = $1 AND date < $2::date)) OR
            (date > $3::date AND date <= ALL(SELECT date FROM region_population WHERE region = $1 AND date > $3::date))
        )
    ORDER BY date
`
)

// DiseaseInRegion returns the links, daily counts and population series of
// a disease within one region.
func (s *Store) DiseaseInRegion(ctx context.Context, id, region string) (domain.DiseaseInRegion, error) {
	out := domain.DiseaseInRegion{ID: id}

	links, err := s.links(ctx, id, region)
	if err != nil {
		return domain.DiseaseInRegion{}, err
	}
	out.Links = links

	stats, err := s.regionStats(ctx, id, region)
	if err != nil {
		return domain.DiseaseInRegion{}, err
	}
	out.Stats = stats

	out.Population = make([]domain.DatedPopulation, 0)
	if first, last, ok := dateRange(stats); ok {
		pop, err := s.population(ctx, region, first, last)
		if err != nil {
			return domain.DiseaseInRegion{}, err
		}
		out.Population = pop
	}
	return out, nil
}

func (s *Store) links(ctx context.Context, id, region string) ([]domain.Link, error) {
	rows, err := s.pool.Query(ctx, diseaseLinksSQL, id, region)
	if err != nil {
		return nil, fmt.Errorf("disease %s links: %w", id, err)
	}
	defer rows.Close()

	links := make([]domain.Link, 0)
	for rows.Next() {
		var l domain.Link
		if err := rows.Scan(&l.URI, &l.Description); err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

func (s *Store) regionStats(ctx context.Context, id, region string) ([]domain.DatedStat, error) {
	rows, err := s.pool.Query(ctx, regionStatsSQL, id, region)
	if err != nil {
		return nil, fmt.Errorf("disease %s stats in %s: %w", id, region, err)
	}
	defer rows.Close()

	stats := make([]domain.DatedStat, 0)
	for rows.Next() {
		var st domain.DatedStat
		if err := rows.Scan(&st.Date, &st.Cases, &st.Deaths, &st.Recoveries); err != nil {
			return nil, fmt.Errorf("scan stat: %w", err)
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

func (s *Store) population(ctx context.Context, region, first, last string) ([]domain.DatedPopulation, error) {
	rows, err := s.pool.Query(ctx, regionPopulationSQL, region, first, last)
	if err != nil {
		return nil, fmt.Errorf("population of %s: %w", region, err)
	}
	defer rows.Close()

	pop := make([]domain.DatedPopulation, 0)
	for rows.Next() {
		var p domain.DatedPopulation
		if err := rows.Scan(&p.Date, &p.Population); err != nil {
			return nil, fmt.Errorf("scan population: %w", err)
		}
		pop = append(pop, p)
	}
	return pop, rows.Err()
}

// dateRange returns the earliest and latest dates of stats. Dates are
// YYYY-MM-DD, so string order is date order.
func dateRange(stats []domain.DatedStat) (first, last string, ok bool) {
	for i, st := range stats {
		if i == 0 || st.Date < first {
			first = st.Date
		}
		if i == 0 || st.Date > last {
			last = st.Date
		}
	}
	return first, last, len(stats) > 0
}
