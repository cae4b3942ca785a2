//go:build integration

package integration_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/picklehealth/pickle-map/internal/adapter/postgres"
	"github.com/picklehealth/pickle-map/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64p(v int64) *int64 { return &v }

// seed inserts reference rows the scrapers would normally maintain.
func seed(ctx context.Context, t *testing.T, dsn string) {
	t.Helper()
	conn, err := pgx.Connect(ctx, dsn)
	require.NoError(t, err)
	defer conn.Close(ctx)

	_, err = conn.Exec(ctx, `
        INSERT INTO region (id, name, geometry) VALUES
            ('AU', 'Australia', '{"type":"Point","coordinates":[134,-25]}'),
            ('AU-NSW', 'New South Wales', '{"type":"Point","coordinates":[147,-32]}'),
            ('AU-VIC', 'Victoria', NULL),
            ('US', 'United States', NULL);
        INSERT INTO disease (id, name, long_name, description, reinfectable, popularity) VALUES
            ('COVID-19', 'COVID-19', 'Coronavirus disease 2019', 'A respiratory illness.', TRUE, 9.5),
            ('FLU', 'Influenza', NULL, NULL, TRUE, 2);
        INSERT INTO disease_link (disease, region, uri, description) VALUES
            ('COVID-19', NULL, 'https://who.example', 'WHO'),
            ('COVID-19', 'AU', 'https://health.gov.au', 'Australian Government'),
            ('COVID-19', 'AU-NSW', 'https://health.nsw.gov.au', 'NSW Health'),
            ('COVID-19', 'AU-VIC', 'https://health.vic.gov.au', 'VIC Health'),
            ('FLU', NULL, 'https://flu.example', 'Flu');
        INSERT INTO region_population (region, date, population) VALUES
            ('AU-NSW', '2018-06-30', 7900000),
            ('AU-NSW', '2019-06-30', 8100000),
            ('AU-NSW', '2020-03-01', 8120000),
            ('AU-NSW', '2020-06-30', 8160000),
            ('AU-NSW', '2021-06-30', 8180000);
    `)
	require.NoError(t, err)
}

func TestStore_Reads(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	store, dsn := startStore(ctx, t)
	seed(ctx, t, dsn)
	require.NoError(t, store.CheckReadiness(ctx))

	require.NoError(t, store.LoadBatch(ctx, []domain.StatReport{
		{Disease: "COVID-19", Region: "AU-NSW", Date: "2020-03-02", Cases: int64p(12), ReceivedAt: time.Now()},
		{Disease: "COVID-19", Region: "AU-NSW", Date: "2020-03-05", Cases: int64p(30), Deaths: int64p(1), ReceivedAt: time.Now()},
		{Disease: "COVID-19", Region: "AU", Date: "2020-03-05", Cases: int64p(60), ReceivedAt: time.Now()},
		{Disease: "COVID-19", Region: "AU", Date: "2020-03-05", Population: int64p(25_500_000), ReceivedAt: time.Now()},
	}))

	t.Run("regions", func(t *testing.T) {
		regions, err := store.ListRegions(ctx)
		require.NoError(t, err)
		require.Len(t, regions, 4)
		assert.Nil(t, regions[0].Geometry)

		top, err := store.Subregions(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, []string{"AU", "US"}, ids(top))
		require.NotNil(t, top[0].Geometry)

		au, err := store.Subregions(ctx, "AU")
		require.NoError(t, err)
		assert.Equal(t, []string{"AU-NSW", "AU-VIC"}, ids(au))

		for _, wildcard := range []string{"%", "_U", "A_"} {
			none, err := store.Subregions(ctx, wildcard)
			require.NoError(t, err)
			assert.Empty(t, none, "country id %q is matched literally", wildcard)
		}

		r, err := store.Region(ctx, "AU-NSW")
		require.NoError(t, err)
		assert.Equal(t, "New South Wales", r.Name)

		_, err = store.Region(ctx, "ZZ")
		assert.ErrorIs(t, err, postgres.ErrNotFound)
	})

	t.Run("diseases", func(t *testing.T) {
		diseases, err := store.ListDiseases(ctx)
		require.NoError(t, err)
		require.Len(t, diseases, 2)
		assert.Equal(t, "COVID-19", diseases[0].ID)
		assert.InDelta(t, 9.5, diseases[0].Popularity, 1e-9)
		assert.Empty(t, diseases[1].LongName)

		_, err = store.Disease(ctx, "NOPE")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("disease stats use latest counts and population", func(t *testing.T) {
		d, err := store.Disease(ctx, "COVID-19")
		require.NoError(t, err)
		assert.True(t, d.Reinfectable)
		assert.Equal(t, "A respiratory illness.", d.Description)
		require.Len(t, d.Stats, 2)

		au, nsw := d.Stats[0], d.Stats[1]
		assert.Equal(t, "AU", au.Region)
		assert.Equal(t, int64(60), *au.Cases)
		assert.Equal(t, int64(25_500_000), *au.Population)

		assert.Equal(t, "AU-NSW", nsw.Region)
		assert.Equal(t, int64(30), *nsw.Cases)
		assert.Equal(t, int64(1), *nsw.Deaths)
		assert.Nil(t, nsw.Recoveries)
		assert.Equal(t, int64(8_180_000), *nsw.Population)
	})

	t.Run("disease in region", func(t *testing.T) {
		d, err := store.DiseaseInRegion(ctx, "COVID-19", "AU-NSW")
		require.NoError(t, err)

		descriptions := make([]string, 0, len(d.Links))
		for _, l := range d.Links {
			descriptions = append(descriptions, l.Description)
		}
		assert.ElementsMatch(t, []string{"WHO", "Australian Government", "NSW Health"}, descriptions)

		require.Len(t, d.Stats, 2)
		assert.Equal(t, "2020-03-02", d.Stats[0].Date)
		assert.Equal(t, "2020-03-05", d.Stats[1].Date)

		dates := make([]string, 0, len(d.Population))
		for _, p := range d.Population {
			dates = append(dates, p.Date)
		}
		assert.Equal(t, []string{"2020-03-01", "2020-06-30"}, dates)
	})

	t.Run("disease in region without stats", func(t *testing.T) {
		d, err := store.DiseaseInRegion(ctx, "FLU", "AU-NSW")
		require.NoError(t, err)
		assert.Len(t, d.Links, 1)
		assert.Empty(t, d.Stats)
		assert.Empty(t, d.Population)
	})
}

func TestStore_LoadBatchKeepsKnownCounts(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	store, dsn := startStore(ctx, t)
	seed(ctx, t, dsn)

	require.NoError(t, store.LoadBatch(ctx, []domain.StatReport{
		{Disease: "FLU", Region: "US", Date: "2020-01-05", Cases: int64p(100), Deaths: int64p(2), ReceivedAt: time.Now()},
	}))
	require.NoError(t, store.LoadBatch(ctx, []domain.StatReport{
		{Disease: "FLU", Region: "US", Date: "2020-01-05", Recoveries: int64p(40), ReceivedAt: time.Now()},
	}))

	d, err := store.DiseaseInRegion(ctx, "FLU", "US")
	require.NoError(t, err)
	require.Len(t, d.Stats, 1)
	assert.Equal(t, int64(100), *d.Stats[0].Cases)
	assert.Equal(t, int64(2), *d.Stats[0].Deaths)
	assert.Equal(t, int64(40), *d.Stats[0].Recoveries)
}

func ids(regions []domain.Region) []string {
	out := make([]string, 0, len(regions))
	for _, r := range regions {
		out = append(out, r.ID)
	}
	return out
}
