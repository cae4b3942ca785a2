package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/picklehealth/pickle-map/internal/adapter/api"
	"github.com/picklehealth/pickle-map/internal/adapter/geoip"
	"github.com/picklehealth/pickle-map/internal/adapter/geojson"
	httpadapter "github.com/picklehealth/pickle-map/internal/adapter/http"
	"github.com/picklehealth/pickle-map/internal/adapter/news"
	"github.com/picklehealth/pickle-map/internal/adapter/postgres"
	"github.com/picklehealth/pickle-map/internal/adapter/rediscache"
	"github.com/picklehealth/pickle-map/internal/config"
	"github.com/picklehealth/pickle-map/internal/domain"
	"github.com/picklehealth/pickle-map/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		logger.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}

	// GeoIP is optional; without a database every visitor gets DEFAULT_REGION.
	var resolver *geoip.Resolver
	if cfg.GeoIPPath != "" {
		resolver, err = geoip.Open(cfg.GeoIPPath, cfg.DefaultRegion, logger, metrics)
		if err != nil {
			logger.Error("failed to open geoip database", "error", err)
			os.Exit(1)
		}
		logger.Info("geoip enabled", "path", cfg.GeoIPPath)
	} else {
		resolver = geoip.NewResolver(nil, cfg.DefaultRegion, logger, metrics)
		logger.Info("geoip disabled", "default_region", cfg.DefaultRegion)
	}
	defer resolver.Close()

	checks := []httpadapter.Check{{Name: "postgres", Checker: store}}

	opts := api.Options{
		Addr:      cfg.DataAddr,
		StaticDir: cfg.StaticDir,
		Store:     store,
		Locator:   resolver,
		News:      news.NewClient(cfg.NewsBaseURL, cfg.NewsTimeout, logger, metrics),
		Projector: domain.NewProjector(geojson.Parser{}, cfg.StrictGeometry),
		Logger:    logger,
		Metrics:   metrics,
	}

	if cfg.RedisAddr != "" {
		cache := rediscache.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.ResponseCacheTTL)
		defer cache.Close()
		opts.Cache = cache
		checks = append(checks, httpadapter.Check{Name: "redis", Checker: cache})
		logger.Info("response cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.ResponseCacheTTL)
	} else {
		logger.Info("response cache disabled")
	}

	dataSrv := api.NewServer(opts)
	opsSrv := httpadapter.NewServer(cfg.HTTPAddr, logger, checks...)

	go func() {
		if err := dataSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("data server error", "error", err)
			stop()
		}
	}()
	go func() {
		if err := opsSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ops server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := dataSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("data server shutdown error", "error", err)
	}
	if err := opsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("ops server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
