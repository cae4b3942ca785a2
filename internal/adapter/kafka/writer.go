package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/picklehealth/pickle-map/internal/config"
	"github.com/picklehealth/pickle-map/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer publishes stat reports to the report topic. Scrapers and the
// operator CLI use it to feed the ingest pipeline.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a producer for the configured report topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish writes reports in a single WriteMessages call. Reports are keyed
// by disease, region and date so updates to one row stay ordered.
func (w *Writer) Publish(ctx context.Context, reports []domain.StatReport) error {
	if len(reports) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(reports))
	for i := range reports {
		msg, err := serializeToMessage(reports[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d reports: %w", len(msgs), err)
	}
	w.logger.Info("reports published", "count", len(msgs), "topic", w.writer.Topic)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

func serializeToMessage(report domain.StatReport) (kafkago.Message, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize stat report: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(report.Key()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "disease", Value: []byte(report.Disease)},
			{Key: "region", Value: []byte(report.Region)},
			{Key: "received_at", Value: []byte(report.ReceivedAt.Format(time.RFC3339))},
		},
	}, nil
}
