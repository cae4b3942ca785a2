package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	kafkaadapter "github.com/picklehealth/pickle-map/internal/adapter/kafka"
	"github.com/picklehealth/pickle-map/internal/domain"
	"github.com/spf13/cobra"
)

func newPublishCmd(a *app) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Validate stat reports and publish them to the ingest topic",
		Long: `Publish reads a JSON array of stat reports, from --file or stdin,
validates every report with the same rules the ingest pipeline applies and
writes the valid ones to KAFKA_TOPIC. Any invalid report aborts the publish.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in := cmd.InOrStdin()
			if file != "" {
				f, err := os.Open(file)
				if err != nil {
					return fmt.Errorf("open %s: %w", file, err)
				}
				defer f.Close()
				in = f
			}

			reports, err := readReports(in)
			if err != nil {
				return err
			}
			if len(reports) == 0 {
				cmd.Println("Nothing to publish.")
				return nil
			}

			writer := kafkaadapter.NewWriter(a.cfg, a.logger)
			defer writer.Close()

			if err := writer.Publish(cmd.Context(), reports); err != nil {
				return err
			}
			cmd.Println(fmt.Sprintf("Published %d reports to %s", len(reports), a.cfg.KafkaTopic))
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file of reports (defaults to stdin)")
	return cmd
}

func readReports(r io.Reader) ([]domain.StatReport, error) {
	var raws []json.RawMessage
	if err := json.NewDecoder(r).Decode(&raws); err != nil {
		return nil, fmt.Errorf("decode reports: %w", err)
	}

	reports := make([]domain.StatReport, 0, len(raws))
	for i, raw := range raws {
		report, err := domain.ParseStatReport(domain.RawEvent{Value: raw})
		if err != nil {
			return nil, fmt.Errorf("report %d: %w", i, err)
		}
		reports = append(reports, report)
	}
	return reports, nil
}
