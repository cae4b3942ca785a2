package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/picklehealth/pickle-map/internal/adapter/geojson"
	"github.com/picklehealth/pickle-map/internal/domain"
	"github.com/picklehealth/pickle-map/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// --- fakes ---

type fakeStore struct {
	mu       sync.Mutex
	calls    map[string]int
	regions  []domain.Region
	diseases []domain.Disease
	inRegion map[string]domain.DiseaseInRegion
	err      error
}

func (f *fakeStore) record(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[name]++
	return f.err
}

func (f *fakeStore) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeStore) ListRegions(context.Context) ([]domain.Region, error) {
	if err := f.record("ListRegions"); err != nil {
		return nil, err
	}
	out := make([]domain.Region, 0, len(f.regions))
	for _, r := range f.regions {
		out = append(out, domain.Region{ID: r.ID, Name: r.Name})
	}
	return out, nil
}

func (f *fakeStore) Subregions(_ context.Context, country string) ([]domain.Region, error) {
	if err := f.record("Subregions"); err != nil {
		return nil, err
	}
	out := make([]domain.Region, 0)
	for _, r := range f.regions {
		parent, ok := domain.ParentID(r.ID)
		if (country == "" && !ok) || (ok && parent == country) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) Region(_ context.Context, id string) (domain.Region, error) {
	if err := f.record("Region"); err != nil {
		return domain.Region{}, err
	}
	for _, r := range f.regions {
		if r.ID == id {
			return r, nil
		}
	}
	return domain.Region{}, domain.ErrNotFound
}

func (f *fakeStore) ListDiseases(context.Context) ([]domain.DiseaseSummary, error) {
	if err := f.record("ListDiseases"); err != nil {
		return nil, err
	}
	out := make([]domain.DiseaseSummary, 0, len(f.diseases))
	for _, d := range f.diseases {
		out = append(out, d.Summary())
	}
	return out, nil
}

func (f *fakeStore) Disease(_ context.Context, id string) (domain.Disease, error) {
	if err := f.record("Disease"); err != nil {
		return domain.Disease{}, err
	}
	for _, d := range f.diseases {
		if d.ID == id {
			return d, nil
		}
	}
	return domain.Disease{}, domain.ErrNotFound
}

func (f *fakeStore) DiseaseInRegion(_ context.Context, id, region string) (domain.DiseaseInRegion, error) {
	if err := f.record("DiseaseInRegion"); err != nil {
		return domain.DiseaseInRegion{}, err
	}
	if d, ok := f.inRegion[id+"/"+region]; ok {
		return d, nil
	}
	return domain.DiseaseInRegion{ID: id, Links: []domain.Link{}, Stats: []domain.DatedStat{}, Population: []domain.DatedPopulation{}}, nil
}

type fixedLocator string

func (l fixedLocator) CurrentRegion(*http.Request) string { return string(l) }

type fakeNews struct {
	got domain.NewsQuery
}

func (n *fakeNews) Search(_ context.Context, q domain.NewsQuery) ([]domain.NewsItem, error) {
	n.got = q
	return []domain.NewsItem{{Title: "Cases climb", URL: "https://news.example/a"}}, nil
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func (m *memoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.entries[key]
	return b, ok, nil
}

func (m *memoryCache) Set(_ context.Context, key string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries == nil {
		m.entries = map[string][]byte{}
	}
	m.entries[key] = body
	return nil
}

// --- helpers ---

func strp(s string) *string { return &s }
func int64p(v int64) *int64 { return &v }

const (
	usPolygon = `{"type":"Polygon","coordinates":[[[-120,30],[-80,30],[-80,50],[-120,50],[-120,30]]]}`
	auPolygon = `{"type":"Polygon","coordinates":[[[115,-35],[150,-35],[150,-15],[115,-15],[115,-35]]]}`
	caPolygon = `{"type":"Polygon","coordinates":[[[-124,33],[-114,33],[-114,42],[-124,42],[-124,33]]]}`
)

func seededStore() *fakeStore {
	return &fakeStore{
		regions: []domain.Region{
			{ID: "AU", Name: "Australia", Geometry: strp(auPolygon)},
			{ID: "AU-NSW", Name: "New South Wales"},
			{ID: "US", Name: "United States", Geometry: strp(usPolygon)},
			{ID: "US-CA", Name: "California", Geometry: strp(caPolygon)},
		},
		diseases: []domain.Disease{
			{
				ID: "FLU", Name: "Influenza", Popularity: 2,
				Stats: []domain.StatRecord{},
			},
			{
				ID: "COVID-19", Name: "COVID-19", LongName: "Coronavirus disease 2019", Popularity: 9,
				Stats: []domain.StatRecord{
					{Region: "US", Cases: int64p(1500), Deaths: int64p(100), Recoveries: int64p(400), Population: int64p(1_000_000)},
					{Region: "US-CA", Cases: int64p(20)},
					{Region: "AU", Cases: int64p(10)},
				},
			},
		},
	}
}

type testEnv struct {
	srv     *Server
	store   *fakeStore
	news    *fakeNews
	metrics *observability.Metrics
}

func newTestEnv(t *testing.T, store *fakeStore, cache ResponseCache, staticDir string) testEnv {
	t.Helper()
	news := &fakeNews{}
	metrics := observability.NewMetricsForTesting()
	srv := NewServer(Options{
		Addr:      ":0",
		StaticDir: staticDir,
		Store:     store,
		Locator:   fixedLocator("US-CA"),
		News:      news,
		Cache:     cache,
		Projector: domain.NewProjector(geojson.Parser{}, false),
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics:   metrics,
	})
	return testEnv{srv: srv, store: store, news: news, metrics: metrics}
}

func (e testEnv) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// --- tests ---

func TestRegions(t *testing.T) {
	env := newTestEnv(t, seededStore(), nil, "")

	rec := env.get(t, "/data/region")
	require.Equal(t, http.StatusOK, rec.Code)

	regions := decode[[]domain.Region](t, rec)
	require.Len(t, regions, 4)
	assert.Equal(t, "AU", regions[0].ID)
	assert.Nil(t, regions[0].Geometry)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCurrentRegion(t *testing.T) {
	env := newTestEnv(t, seededStore(), nil, "")

	rec := env.get(t, "/data/region/current")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `"US-CA"`, rec.Body.String())
}

func TestRegionByID_UpperCasesID(t *testing.T) {
	env := newTestEnv(t, seededStore(), nil, "")

	rec := env.get(t, "/data/region/us-ca")
	require.Equal(t, http.StatusOK, rec.Code)

	region := decode[domain.Region](t, rec)
	assert.Equal(t, "California", region.Name)
	require.NotNil(t, region.Geometry)
	assert.JSONEq(t, caPolygon, *region.Geometry)
}

func TestRegionByID_NotFound(t *testing.T) {
	env := newTestEnv(t, seededStore(), nil, "")

	rec := env.get(t, "/data/region/zz")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decode[map[string]string](t, rec)["error"], "not found")
}

func TestSubregions(t *testing.T) {
	env := newTestEnv(t, seededStore(), nil, "")

	top := decode[[]domain.Region](t, env.get(t, "/data/region/subregions"))
	ids := make([]string, 0, len(top))
	for _, r := range top {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"AU", "US"}, ids)

	us := decode[[]domain.Region](t, env.get(t, "/data/region/subregions/us"))
	require.Len(t, us, 1)
	assert.Equal(t, "US-CA", us[0].ID)
}

func TestDiseases(t *testing.T) {
	env := newTestEnv(t, seededStore(), nil, "")

	diseases := decode[[]domain.DiseaseSummary](t, env.get(t, "/data/disease"))
	require.Len(t, diseases, 2)
	assert.Equal(t, "FLU", diseases[0].ID)
}

func TestDiseaseByID(t *testing.T) {
	env := newTestEnv(t, seededStore(), nil, "")

	d := decode[domain.Disease](t, env.get(t, "/data/disease/covid-19"))
	assert.Equal(t, "Coronavirus disease 2019", d.LongName)
	assert.Len(t, d.Stats, 3)
}

func TestDiseaseInRegion(t *testing.T) {
	store := seededStore()
	store.inRegion = map[string]domain.DiseaseInRegion{
		"COVID-19/AU-NSW": {
			ID:         "COVID-19",
			Links:      []domain.Link{{URI: "https://health.nsw.gov.au", Description: "NSW Health"}},
			Stats:      []domain.DatedStat{{Date: "2020-03-02", Cases: int64p(12)}},
			Population: []domain.DatedPopulation{{Date: "2019-06-30", Population: int64p(8_100_000)}},
		},
	}
	env := newTestEnv(t, store, nil, "")

	d := decode[domain.DiseaseInRegion](t, env.get(t, "/data/disease/covid-19/in/au-nsw"))
	assert.Equal(t, "COVID-19", d.ID)
	require.Len(t, d.Links, 1)
	assert.Equal(t, "NSW Health", d.Links[0].Description)
	require.Len(t, d.Stats, 1)
	assert.Equal(t, "2020-03-02", d.Stats[0].Date)
}

type mapCollection struct {
	Type     string `json:"type"`
	Features []struct {
		ID         string         `json:"id"`
		Properties map[string]any `json:"properties"`
	} `json:"features"`
}

func TestDiseaseMap_TopLevel(t *testing.T) {
	env := newTestEnv(t, seededStore(), nil, "")

	rec := env.get(t, "/data/disease/covid-19/map")
	require.Equal(t, http.StatusOK, rec.Code)

	fc := decode[mapCollection](t, rec)
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 2)

	au, us := fc.Features[0].Properties, fc.Features[1].Properties
	assert.Equal(t, "AU", au["id"])
	assert.Equal(t, false, au["subdivisible"])
	assert.Equal(t, 0.0, au["style"].(map[string]any)["fillOpacity"])

	assert.Equal(t, "US", us["id"])
	assert.Equal(t, true, us["subdivisible"])
	assert.Equal(t, 1000.0, us["active"])
	assert.InDelta(t, 0.75, us["style"].(map[string]any)["fillOpacity"], 1e-9)
}

func TestDiseaseMap_Country(t *testing.T) {
	env := newTestEnv(t, seededStore(), nil, "")

	fc := decode[mapCollection](t, env.get(t, "/data/disease/covid-19/map?country=us"))
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "US-CA", fc.Features[0].Properties["id"])
	assert.Equal(t, 20.0, fc.Features[0].Properties["cases"])
}

func TestDiseaseMap_SkipsMalformedGeometry(t *testing.T) {
	store := seededStore()
	store.regions[0].Geometry = strp(`{"type":"Polygon"`)
	env := newTestEnv(t, store, nil, "")

	fc := decode[mapCollection](t, env.get(t, "/data/disease/covid-19/map"))
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "US", fc.Features[0].Properties["id"])
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.ProjectionSkipped))
}

func TestDiseaseMap_UnknownDisease(t *testing.T) {
	env := newTestEnv(t, seededStore(), nil, "")
	assert.Equal(t, http.StatusNotFound, env.get(t, "/data/disease/nope/map").Code)
}

func TestNews(t *testing.T) {
	env := newTestEnv(t, seededStore(), nil, "")

	rec := env.get(t, "/data/disease/covid-19/in/au-nsw/news")
	require.Equal(t, http.StatusOK, rec.Code)

	items := decode[[]domain.NewsItem](t, rec)
	require.Len(t, items, 1)
	assert.Equal(t, domain.NewsQuery{Disease: "COVID-19", RegionName: "New South Wales", Country: "AU"}, env.news.got)
}

func TestStoreFailureReturns500(t *testing.T) {
	store := seededStore()
	store.err = errors.New("connection refused")
	env := newTestEnv(t, store, nil, "")

	rec := env.get(t, "/data/disease")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "connection refused", decode[map[string]string](t, rec)["error"])
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.HTTPRequests.WithLabelValues("/data/disease", "500")))
}

func TestResponseCache(t *testing.T) {
	cache := &memoryCache{}
	env := newTestEnv(t, seededStore(), cache, "")

	first := env.get(t, "/data/disease/covid-19")
	second := env.get(t, "/data/disease/COVID-19")
	third := env.get(t, "/data/disease/covid-19")

	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, first.Body.String(), third.Body.String())
	assert.Equal(t, 2, env.store.callCount("Disease"), "keys are the request URI")
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.ResponseCache.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(env.metrics.ResponseCache.WithLabelValues("miss")))
}

func TestResponseCache_ErrorsNotCached(t *testing.T) {
	cache := &memoryCache{}
	env := newTestEnv(t, seededStore(), cache, "")

	assert.Equal(t, http.StatusNotFound, env.get(t, "/data/region/zz").Code)
	assert.Equal(t, http.StatusNotFound, env.get(t, "/data/region/zz").Code)
	assert.Equal(t, 2, env.store.callCount("Region"))
	assert.Empty(t, cache.entries)
}

func TestPageRedirects(t *testing.T) {
	env := newTestEnv(t, seededStore(), nil, "")

	tests := []struct {
		path string
		want string
	}{
		{"/", "/disease/COVID-19/in/US-CA"},
		{"/disease/flu", "/disease/flu/in/US-CA"},
		{"/disease/flu/news", "/disease/flu/in/US-CA/news"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := env.get(t, tt.path)
			assert.Equal(t, http.StatusFound, rec.Code)
			assert.Equal(t, tt.want, rec.Header().Get("Location"))
		})
	}
}

func TestPageRedirect_NoDiseases(t *testing.T) {
	store := seededStore()
	store.diseases = nil
	env := newTestEnv(t, store, nil, "")

	rec := env.get(t, "/")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, domain.ErrNoDiseases.Error(), decode[map[string]string](t, rec)["error"])
}

func TestUnknownDataPath(t *testing.T) {
	env := newTestEnv(t, seededStore(), nil, t.TempDir())

	rec := env.get(t, "/data/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not found", decode[map[string]string](t, rec)["error"])
}

func TestStaticFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>app</html>"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.js"), []byte("console.log(1)"), 0o600))
	env := newTestEnv(t, seededStore(), nil, dir)

	asset := env.get(t, "/main.js")
	assert.Equal(t, http.StatusOK, asset.Code)
	assert.Equal(t, "console.log(1)", asset.Body.String())

	page := env.get(t, "/disease/COVID-19/in/AU-NSW")
	assert.Equal(t, http.StatusOK, page.Code)
	assert.Equal(t, "<html>app</html>", page.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, seededStore(), nil, "")

	rec := httptest.NewRecorder()
	env.srv.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/data/region", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
