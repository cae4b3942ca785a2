//go:build integration

package integration_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/picklehealth/pickle-map/internal/adapter/kafka"
	"github.com/picklehealth/pickle-map/internal/config"
	"github.com/picklehealth/pickle-map/internal/domain"
	"github.com/picklehealth/pickle-map/internal/observability"
	"github.com/picklehealth/pickle-map/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus/testutil"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTopic = "test-stat-reports"

func testConfig(broker, group string) *config.Config {
	return &config.Config{
		KafkaBrokers:       []string{broker},
		KafkaTopic:         testTopic,
		KafkaGroupID:       fmt.Sprintf("%s-%d", group, time.Now().UnixNano()),
		BatchFlushInterval: 5 * time.Second,
	}
}

// TestKafkaWriterReader verifies that kafka.Writer output is read back by
// kafka.Reader with its key, value and headers intact.
func TestKafkaWriterReader(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)
	cfg := testConfig(broker, "test-reader")

	report := domain.StatReport{
		Disease:    "COVID-19",
		Region:     "AU-NSW",
		Date:       "2020-03-02",
		Cases:      int64p(12),
		ReceivedAt: time.Date(2020, 3, 2, 9, 0, 0, 0, time.UTC),
	}

	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })
	require.NoError(t, writer.Publish(ctx, []domain.StatReport{report}))

	// Retry because the consumer group may need time to rebalance before
	// partitions are assigned and messages become available.
	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })

	var batch []domain.RawEvent
	for len(batch) == 0 {
		var err error
		batch, err = reader.ExtractBatch(ctx, 1)
		require.NoError(t, err)
		if ctx.Err() != nil {
			t.Fatal("timed out waiting for message")
		}
	}
	require.Len(t, batch, 1)
	raw := batch[0]
	assert.Equal(t, []byte("COVID-19|AU-NSW|2020-03-02"), raw.Key)
	assert.Equal(t, testTopic, raw.Topic)
	assert.Equal(t, "AU-NSW", raw.Headers["region"])
	assert.Equal(t, "2020-03-02T09:00:00Z", raw.Headers["received_at"])
	require.NotNil(t, raw.Commit, "commit callback should be set")
	require.NoError(t, raw.Commit(ctx))

	parsed, err := pipeline.NewTransformer().Transform(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, report.Key(), parsed.Key())
	assert.Equal(t, int64(12), *parsed.Cases)
}

// TestPipelineEndToEnd runs Reader, Transformer and the Postgres store
// together and checks that valid reports land in the store while a poison
// message is skipped.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)
	store, dsn := startStore(ctx, t)
	seed(ctx, t, dsn)
	cfg := testConfig(broker, "test-pipeline")

	payloads := []string{
		`{"disease":"covid-19","region":"au-nsw","date":"2020-03-02","cases":12}`,
		`not-json{{{`,
		`{"disease":"COVID-19","region":"AU-NSW","date":"2020-03-05","cases":30,"deaths":1}`,
		`{"disease":"COVID-19","region":"AU-NSW","date":"2020-03-05","population":8125000}`,
		`{"disease":"COVID-19","region":"AU","date":"2020-03-05"}`,
	}
	msgs := make([]kafkago.Message, 0, len(payloads))
	for i, p := range payloads {
		msgs = append(msgs, kafkago.Message{Key: []byte(fmt.Sprintf("report-%d", i)), Value: []byte(p)})
	}
	producer := &kafkago.Writer{Addr: kafkago.TCP(broker), Topic: testTopic}
	t.Cleanup(func() { _ = producer.Close() })
	require.NoError(t, producer.WriteMessages(ctx, msgs...))

	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })

	metrics := observability.NewMetricsForTesting()
	p := pipeline.New(reader, pipeline.NewTransformer(), store, discardLogger(), metrics, 50)

	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pipelineCtx) }()

	require.Eventually(t, func() bool {
		d, err := store.DiseaseInRegion(ctx, "COVID-19", "AU-NSW")
		return err == nil && len(d.Stats) == 2 && len(d.Population) > 0
	}, 90*time.Second, 500*time.Millisecond, "reports should reach the store")

	pipelineCancel()
	require.NoError(t, <-errCh)

	d, err := store.DiseaseInRegion(ctx, "COVID-19", "AU-NSW")
	require.NoError(t, err)
	assert.Equal(t, int64(12), *d.Stats[0].Cases)
	assert.Equal(t, int64(30), *d.Stats[1].Cases)

	var populations []int64
	for _, pop := range d.Population {
		populations = append(populations, *pop.Population)
	}
	assert.Contains(t, populations, int64(8_125_000))

	assert.NoError(t, p.CheckReadiness(ctx))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ReportsRejected.WithLabelValues("malformed")), "poison message")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ReportsRejected.WithLabelValues("invalid")), "count-less report")
}
