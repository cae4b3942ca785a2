package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/picklehealth/pickle-map/internal/adapter/geojson"
	"github.com/picklehealth/pickle-map/internal/domain"
	"github.com/picklehealth/pickle-map/internal/mapview"
	"github.com/spf13/cobra"
)

func newMapCmd(a *app) *cobra.Command {
	var (
		disease string
		country string
		hover   string
		output  string
	)

	cmd := &cobra.Command{
		Use:   "map",
		Short: "Render one map layer as styled GeoJSON",
		Long: `Map loads a disease the way the browser map does: it starts at the
world view and, with --country, drills into that country by clicking it.
The resulting layer is written as a GeoJSON FeatureCollection with a
"style" property on every feature.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			projector := domain.NewProjector(geojson.Parser{}, a.cfg.StrictGeometry)
			session := mapview.NewSession(a.client, projector, a.logger)
			stop := context.AfterFunc(ctx, session.Close)
			defer stop()

			session.SetDisease(ctx, domain.NormalizeID(disease))
			view, err := settle(session)
			if err != nil {
				return err
			}

			if country != "" {
				f, ok := findFeature(view.Features, domain.NormalizeID(country))
				if !ok {
					return fmt.Errorf("country %s is not on the world map", country)
				}
				session.Dispatch(ctx, mapview.Click{Feature: f})
				if view, err = settle(session); err != nil {
					return err
				}
				if view.LayerKey != f.ID {
					return fmt.Errorf("%s has no subdivisions with data", f.Name)
				}
			}

			if hover != "" {
				if f, ok := findFeature(view.Features, domain.NormalizeID(hover)); ok {
					session.Dispatch(ctx, mapview.Hover{Feature: f})
					view = session.View()
				}
			}

			body, err := geojson.EncodeFeatures(view.Features, func(f domain.Feature, set func(string, any)) {
				set("style", view.Style(f))
			})
			if err != nil {
				return err
			}

			printInfo(cmd, view)
			if len(view.Skipped) > 0 {
				cmd.PrintErrln(fmt.Sprintf("skipped regions with malformed geometry: %v", view.Skipped))
			}

			if output == "" {
				_, err = cmd.OutOrStdout().Write(append(body, '\n'))
				return err
			}
			if err := os.WriteFile(output, body, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			cmd.PrintErrln(fmt.Sprintf("%d features written to %s", len(view.Features), output))
			return nil
		},
	}

	cmd.Flags().StringVarP(&disease, "disease", "d", "", "Disease id")
	cmd.Flags().StringVarP(&country, "country", "c", "", "Drill into this country")
	cmd.Flags().StringVar(&hover, "hover", "", "Show the info box of this region")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (defaults to stdout)")
	_ = cmd.MarkFlagRequired("disease")
	return cmd
}

// settle waits for the session's pending load and reports terminal failures.
func settle(s *mapview.Session) (mapview.View, error) {
	s.Wait()
	view := s.View()
	switch view.Phase {
	case mapview.PhaseLoading:
		return view, errors.New("map load interrupted")
	case mapview.PhaseError:
		return view, fmt.Errorf("load %s: %w", view.DiseaseID, view.Err)
	case mapview.PhaseEmpty:
		return view, fmt.Errorf("no regions with data for %s", view.DiseaseID)
	}
	return view, nil
}

func findFeature(features []domain.Feature, id string) (domain.Feature, bool) {
	for _, f := range features {
		if f.ID == id {
			return f, true
		}
	}
	return domain.Feature{}, false
}

func printInfo(cmd *cobra.Command, view mapview.View) {
	if view.Info.Title != "" {
		cmd.PrintErrln(view.Info.Title)
	}
	for _, line := range view.Info.Lines {
		cmd.PrintErrln("  " + line.Text)
	}
	if view.Info.Hint != "" {
		cmd.PrintErrln("  " + view.Info.Hint)
	}
}
