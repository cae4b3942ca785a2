package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/picklehealth/pickle-map/internal/adapter/geojson"
	"github.com/picklehealth/pickle-map/internal/domain"
	"github.com/picklehealth/pickle-map/internal/mapview"
	"github.com/picklehealth/pickle-map/internal/route"
	"golang.org/x/sync/errgroup"
)

func param(c *gin.Context, name string) string {
	return domain.NormalizeID(c.Param(name))
}

func (s *Server) handleRegions(c *gin.Context) {
	s.serveCached(c, func(ctx context.Context) (any, error) {
		return s.store.ListRegions(ctx)
	})
}

func (s *Server) handleCurrentRegion(c *gin.Context) {
	c.JSON(http.StatusOK, s.locator.CurrentRegion(c.Request))
}

func (s *Server) handleSubregions(c *gin.Context) {
	country := param(c, "id")
	s.serveCached(c, func(ctx context.Context) (any, error) {
		return s.store.Subregions(ctx, country)
	})
}

func (s *Server) handleRegion(c *gin.Context) {
	id := param(c, "id")
	s.serveCached(c, func(ctx context.Context) (any, error) {
		return s.store.Region(ctx, id)
	})
}

func (s *Server) handleDiseases(c *gin.Context) {
	s.serveCached(c, func(ctx context.Context) (any, error) {
		return s.store.ListDiseases(ctx)
	})
}

func (s *Server) handleDisease(c *gin.Context) {
	id := param(c, "id")
	s.serveCached(c, func(ctx context.Context) (any, error) {
		return s.store.Disease(ctx, id)
	})
}

func (s *Server) handleDiseaseInRegion(c *gin.Context) {
	id, region := param(c, "id"), param(c, "region")
	s.serveCached(c, func(ctx context.Context) (any, error) {
		return s.store.DiseaseInRegion(ctx, id, region)
	})
}

// handleDiseaseMap renders one drill level of the map as a styled GeoJSON
// FeatureCollection. ?country= selects the subdivisions of that country.
func (s *Server) handleDiseaseMap(c *gin.Context) {
	id := domain.NormalizeID(c.Param("id"))
	country := domain.NormalizeID(c.Query("country"))

	s.serveCached(c, func(ctx context.Context) (any, error) {
		var (
			disease domain.Disease
			regions []domain.Region
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			disease, err = s.store.Disease(gctx, id)
			return err
		})
		g.Go(func() error {
			var err error
			regions, err = s.store.Subregions(gctx, country)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}

		proj, err := s.projector.Project(disease, regions)
		if err != nil {
			return nil, err
		}
		for _, skipped := range proj.Skipped {
			s.metrics.ProjectionSkipped.Inc()
			s.logger.Warn("region geometry skipped", "disease", id, "region", skipped.RegionID, "error", skipped.Err)
		}

		bound, _ := domain.NormalizationBound(proj.Features, domain.MinWorstPerMillion)
		body, err := geojson.EncodeFeatures(proj.Features, func(f domain.Feature, set func(string, any)) {
			set("style", mapview.StyleFor(f, bound))
		})
		if err != nil {
			return nil, err
		}
		return json.RawMessage(body), nil
	})
}

func (s *Server) handleNews(c *gin.Context) {
	id, regionID := param(c, "id"), param(c, "region")

	s.serveCached(c, func(ctx context.Context) (any, error) {
		disease, err := s.store.Disease(ctx, id)
		if err != nil {
			return nil, err
		}
		region, err := s.store.Region(ctx, regionID)
		if err != nil {
			return nil, err
		}
		country := regionID
		if parent, ok := domain.ParentID(regionID); ok {
			country = parent
		}
		return s.news.Search(ctx, domain.NewsQuery{
			Disease:    disease.Name,
			RegionName: region.Name,
			Country:    country,
		})
	})
}

// handlePageRedirect sends visitors of the bare pages to the most popular
// disease in their current region.
func (s *Server) handlePageRedirect(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), handlerTimeout)
	defer cancel()

	r, err := route.Parse(c.Request.URL.Path)
	if err != nil {
		s.writeError(c, err)
		return
	}

	var diseases []domain.DiseaseSummary
	if r.Disease == "" {
		diseases, err = s.store.ListDiseases(ctx)
		if err != nil {
			s.writeError(c, err)
			return
		}
	}

	target, err := route.Redirect(r, diseases, s.locator.CurrentRegion(c.Request))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.Redirect(http.StatusFound, target.Path())
}

// handleNoRoute answers unknown data paths with a JSON 404 and everything
// else from the static directory, falling back to index.html so client-side
// routes load the app.
func (s *Server) handleNoRoute(c *gin.Context) {
	p := c.Request.URL.Path
	if p == "/data" || strings.HasPrefix(p, "/data/") || s.staticDir == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	file := filepath.Join(s.staticDir, filepath.FromSlash(path.Clean("/"+p)))
	if info, err := os.Stat(file); err == nil && !info.IsDir() {
		c.File(file)
		return
	}
	c.File(filepath.Join(s.staticDir, "index.html"))
}

// serveCached writes the JSON encoding of load's result, consulting the
// response cache first when one is configured. Failures are never cached.
func (s *Server) serveCached(c *gin.Context, load func(ctx context.Context) (any, error)) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), handlerTimeout)
	defer cancel()

	key := c.Request.URL.RequestURI()
	if s.cache != nil {
		body, ok, err := s.cache.Get(ctx, key)
		switch {
		case err != nil:
			s.metrics.ResponseCache.WithLabelValues("error").Inc()
			s.logger.Warn("response cache read failed", "key", key, "error", err)
		case ok:
			s.metrics.ResponseCache.WithLabelValues("hit").Inc()
			c.Data(http.StatusOK, "application/json; charset=utf-8", body)
			return
		default:
			s.metrics.ResponseCache.WithLabelValues("miss").Inc()
		}
	}

	v, err := load(ctx)
	if err != nil {
		s.writeError(c, err)
		return
	}
	body, err := json.Marshal(v)
	if err != nil {
		s.writeError(c, err)
		return
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, body); err != nil {
			s.logger.Warn("response cache write failed", "key", key, "error", err)
		}
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

func (s *Server) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, route.ErrUnknownPath), errors.Is(err, domain.ErrNoDiseases):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		s.logger.Error("request failed", "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
