// Package pipeline moves scraped stat reports from the report topic into the
// store that backs the data service.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/picklehealth/pickle-map/internal/domain"
	"github.com/picklehealth/pickle-map/internal/observability"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// BatchExtractor reads up to batchSize raw events from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error)
}

// Transformer validates a raw event into a stat report.
type Transformer interface {
	Transform(ctx context.Context, raw domain.RawEvent) (domain.StatReport, error)
}

// BatchLoader upserts stat reports into the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, reports []domain.StatReport) error
}

// Pipeline runs the extract-validate-load loop.
type Pipeline struct {
	extractor   BatchExtractor
	transformer Transformer
	loader      BatchLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool
	batchSize   int
	sleep       func(context.Context, time.Duration) bool
}

// New creates a Pipeline with the given stages and observability.
func New(e BatchExtractor, t Transformer, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Pipeline {
	return &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		logger:      logger,
		metrics:     metrics,
		batchSize:   batchSize,
		sleep:       sleepWithContext,
	}
}

// CheckReadiness returns nil once a batch has been loaded.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not loaded any reports yet")
	}
	return nil
}

// Run executes the loop until the context is cancelled. The retry delay
// doubles on each consecutive extract or load failure and resets once a
// batch is handled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	backoff := initialBackoff
	for ctx.Err() == nil {
		err := p.runOnce(ctx)
		if err == nil {
			backoff = initialBackoff
			continue
		}
		if ctx.Err() != nil {
			break
		}
		p.logger.Error("ingest cycle failed", "error", err, "retry_in", backoff)
		if !p.sleep(ctx, backoff) {
			break
		}
		backoff = nextBackoff(backoff)
	}
	p.logger.Info("pipeline stopping", "reason", context.Cause(ctx))
	return nil
}

// validated holds the reports of one extracted batch that passed validation
// and the messages they came from.
type validated struct {
	reports  []domain.StatReport
	accepted []domain.RawEvent
}

// runOnce handles one batch. A returned error means nothing from the valid
// part of the batch was committed and it will be redelivered.
func (p *Pipeline) runOnce(ctx context.Context) error {
	start := time.Now()

	rawBatch, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}
	if len(rawBatch) == 0 {
		return nil
	}
	p.metrics.ReportsConsumed.Add(float64(len(rawBatch)))
	p.metrics.BatchSize.Observe(float64(len(rawBatch)))

	v := p.validate(ctx, rawBatch)
	if len(v.reports) == 0 {
		return nil
	}

	rows, folded := domain.MergeReports(v.reports)
	if folded > 0 {
		p.metrics.ReportsMerged.Add(float64(folded))
	}
	if err := p.loader.LoadBatch(ctx, rows); err != nil {
		p.metrics.LoadFailures.Inc()
		return fmt.Errorf("load %d reports: %w", len(rows), err)
	}
	p.metrics.ReportsLoaded.Add(float64(len(rows)))
	p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
	p.ready.Store(true)

	for _, raw := range v.accepted {
		p.commitOffset(ctx, raw)
	}
	return nil
}

// validate transforms each message. Rejected messages are committed straight
// away so a poison message never blocks the partition.
func (p *Pipeline) validate(ctx context.Context, rawBatch []domain.RawEvent) validated {
	v := validated{
		reports:  make([]domain.StatReport, 0, len(rawBatch)),
		accepted: make([]domain.RawEvent, 0, len(rawBatch)),
	}
	for _, raw := range rawBatch {
		report, err := p.transformer.Transform(ctx, raw)
		if err != nil {
			reason := domain.RejectReason(err)
			p.logger.Warn("rejected stat report",
				"reason", reason,
				"error", err,
				"topic", raw.Topic,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			p.metrics.ReportsRejected.WithLabelValues(reason).Inc()
			p.commitOffset(ctx, raw)
			continue
		}
		v.reports = append(v.reports, report)
		v.accepted = append(v.accepted, raw)
	}
	return v
}

func (p *Pipeline) commitOffset(ctx context.Context, raw domain.RawEvent) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.metrics.CommitFailures.Inc()
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

func nextBackoff(current time.Duration) time.Duration {
	return min(current*2, maxBackoff)
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
