// Package api serves the map's data endpoints under /data and the page
// redirects that send visitors to a concrete disease and region.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/picklehealth/pickle-map/internal/domain"
	"github.com/picklehealth/pickle-map/internal/observability"
)

const handlerTimeout = 10 * time.Second

// Store is the read side of the region and disease store.
type Store interface {
	ListRegions(ctx context.Context) ([]domain.Region, error)
	Subregions(ctx context.Context, country string) ([]domain.Region, error)
	Region(ctx context.Context, id string) (domain.Region, error)
	ListDiseases(ctx context.Context) ([]domain.DiseaseSummary, error)
	Disease(ctx context.Context, id string) (domain.Disease, error)
	DiseaseInRegion(ctx context.Context, id, region string) (domain.DiseaseInRegion, error)
}

// RegionLocator guesses the visitor's region from a request.
type RegionLocator interface {
	CurrentRegion(req *http.Request) string
}

// NewsSource searches headlines for a disease in a region.
type NewsSource interface {
	Search(ctx context.Context, q domain.NewsQuery) ([]domain.NewsItem, error)
}

// ResponseCache memoizes response bodies by request URI.
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, body []byte) error
}

// Options configures a Server. Cache and StaticDir are optional.
type Options struct {
	Addr      string
	StaticDir string
	Store     Store
	Locator   RegionLocator
	News      NewsSource
	Cache     ResponseCache
	Projector *domain.Projector
	Logger    *slog.Logger
	Metrics   *observability.Metrics
}

// Server bundles the gin router and its dependencies.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	store      Store
	locator    RegionLocator
	news       NewsSource
	cache      ResponseCache
	projector  *domain.Projector
	staticDir  string
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewServer constructs a server with routes and middleware.
func NewServer(opts Options) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(accessLog(opts.Logger))
	engine.Use(requestMetrics(opts.Metrics))
	engine.Use(corsMiddleware())

	s := &Server{
		engine:    engine,
		store:     opts.Store,
		locator:   opts.Locator,
		news:      opts.News,
		cache:     opts.Cache,
		projector: opts.Projector,
		staticDir: opts.StaticDir,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
	}
	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	data := s.engine.Group("/data")
	data.GET("/region", s.handleRegions)
	data.GET("/region/current", s.handleCurrentRegion)
	data.GET("/region/subregions", s.handleSubregions)
	data.GET("/region/subregions/:id", s.handleSubregions)
	data.GET("/region/:id", s.handleRegion)
	data.GET("/disease", s.handleDiseases)
	data.GET("/disease/:id", s.handleDisease)
	data.GET("/disease/:id/map", s.handleDiseaseMap)
	data.GET("/disease/:id/in/:region", s.handleDiseaseInRegion)
	data.GET("/disease/:id/in/:region/news", s.handleNews)

	s.engine.GET("/", s.handlePageRedirect)
	s.engine.GET("/disease/:disease", s.handlePageRedirect)
	s.engine.GET("/disease/:disease/news", s.handlePageRedirect)

	s.engine.NoRoute(s.handleNoRoute)
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("data server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the gin engine, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func accessLog(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}

func requestMetrics(metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}
