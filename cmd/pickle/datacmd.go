package main

import (
	"fmt"

	"github.com/picklehealth/pickle-map/internal/domain"
	"github.com/picklehealth/pickle-map/internal/route"
	"github.com/spf13/cobra"
)

func newDiseasesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "diseases",
		Short: "List diseases, most popular first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			diseases, err := a.client.Diseases(cmd.Context())
			if err != nil {
				return fmt.Errorf("fetch diseases: %w", err)
			}
			if len(diseases) == 0 {
				cmd.Println(domain.ErrNoDiseases.Error())
				return nil
			}
			for _, d := range domain.SortByPopularity(diseases) {
				cmd.Println(fmt.Sprintf("%-12s %-24s %6.1f", d.ID, d.Name, d.Popularity))
			}
			return nil
		},
	}
}

func newRegionsCmd(a *app) *cobra.Command {
	var search string

	cmd := &cobra.Command{
		Use:   "regions",
		Short: "List regions the way the region picker shows them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			regions, err := a.client.Regions(cmd.Context())
			if err != nil {
				return fmt.Errorf("fetch regions: %w", err)
			}
			idx := domain.NewRegionIndex(regions)
			for _, r := range idx.Search(search) {
				cmd.Println(fmt.Sprintf("%-8s %s", r.ID, idx.Label(r)))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&search, "search", "s", "", "Filter text; subdivisions appear from three characters")
	return cmd
}

func newNewsCmd(a *app) *cobra.Command {
	var disease, region string

	cmd := &cobra.Command{
		Use:   "news",
		Short: "Show headlines for a disease in a region",
		RunE: func(cmd *cobra.Command, _ []string) error {
			items, err := a.client.News(cmd.Context(), domain.NormalizeID(disease), domain.NormalizeID(region))
			if err != nil {
				return fmt.Errorf("fetch news: %w", err)
			}
			if len(items) == 0 {
				cmd.Println("No news.")
				return nil
			}
			for _, it := range items {
				cmd.Println("---")
				cmd.Println(it.Title)
				if it.Source != "" {
					cmd.Println(fmt.Sprintf("Source: %s", it.Source))
				}
				if !it.Published.IsZero() {
					cmd.Println(fmt.Sprintf("Published: %s", it.Published.Format(domain.DateLayout)))
				}
				cmd.Println(it.URL)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&disease, "disease", "d", "", "Disease id")
	cmd.Flags().StringVarP(&region, "region", "r", "", "Region id")
	_ = cmd.MarkFlagRequired("disease")
	_ = cmd.MarkFlagRequired("region")
	return cmd
}

func newRouteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "route PATH",
		Short: "Resolve a page path to where the site sends the visitor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			r, err := route.Parse(args[0])
			if err != nil {
				return err
			}

			if r.NeedsRedirect() {
				var diseases []domain.DiseaseSummary
				if r.Disease == "" {
					if diseases, err = a.client.Diseases(ctx); err != nil {
						return fmt.Errorf("fetch diseases: %w", err)
					}
				}
				current, err := a.client.CurrentRegion(ctx)
				if err != nil {
					return fmt.Errorf("fetch current region: %w", err)
				}
				if r, err = route.Redirect(r, diseases, current); err != nil {
					return err
				}
			}

			cmd.Println(r.Path())
			if r.Disease != "" {
				for _, link := range route.NavLinks(r) {
					cmd.Println(fmt.Sprintf("  %-16s %s", link.Text, link.Path))
				}
			}
			return nil
		},
	}
}
