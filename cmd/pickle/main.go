// Command pickle is the operator CLI for the disease map: it renders map
// layers from the data service, inspects diseases, regions and routes, and
// publishes stat reports to the ingest topic.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/picklehealth/pickle-map/internal/adapter/dataapi"
	"github.com/picklehealth/pickle-map/internal/config"
	"github.com/picklehealth/pickle-map/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// app holds what every subcommand shares. It is filled in by the root
// command's PersistentPreRunE.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
	client  *dataapi.Client
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	var (
		apiURL  string
		verbose bool
	)

	rootCmd := &cobra.Command{
		Use:           "pickle",
		Short:         "Inspect and feed the Pickle disease map",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if apiURL != "" {
				cfg.DataAPIURL = apiURL
			}

			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			a.cfg = cfg
			a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			a.metrics = observability.NewMetricsWithRegistry(prometheus.NewRegistry())

			transport := dataapi.NewHTTPTransport(cfg.DataAPIURL, cfg.DataAPITimeout, a.logger, a.metrics)
			cached := dataapi.NewCachedTransport(transport, cfg.DataCacheSize, cfg.DataCacheTTL, clockwork.NewRealClock(), a.metrics)
			a.client = dataapi.NewClient(cached, a.logger)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "", "Data service base URL (defaults to DATA_API_URL)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(
		newMapCmd(a),
		newDiseasesCmd(a),
		newRegionsCmd(a),
		newNewsCmd(a),
		newRouteCmd(a),
		newPublishCmd(a),
	)
	return rootCmd
}
