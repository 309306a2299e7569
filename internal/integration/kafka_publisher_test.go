//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weather-yield-etl/internal/adapter/kafka"
	"github.com/couchcryptid/weather-yield-etl/internal/config"
	"github.com/couchcryptid/weather-yield-etl/internal/domain"
)

const testRunsTopic = "test-ingestion-runs"

// TestRunPublisher_RoundTrip publishes a finished run and reads it back.
func TestRunPublisher_RoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testRunsTopic)

	cfg := &config.Config{
		KafkaBrokers:   []string{broker},
		KafkaRunsTopic: testRunsTopic,
	}
	publisher := kafka.NewRunPublisher(cfg, discardLogger())
	t.Cleanup(func() { _ = publisher.Close() })

	finished := testStart.Add(90 * time.Second)
	run := domain.IngestionRun{
		ID:         7,
		Dataset:    domain.DatasetWeather,
		StartedAt:  testStart,
		FinishedAt: &finished,
		RunCounts:  domain.RunCounts{Processed: 3, RawInserted: 3, CuratedUpserted: 2, Conflicts: 1},
	}
	require.NoError(t, publisher.PublishRun(ctx, run))

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testRunsTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
	defer readCancel()
	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from runs topic")

	assert.Equal(t, "7", string(msg.Key))
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, domain.DatasetWeather, headers["dataset"])
	assert.Equal(t, finished.Format(time.RFC3339), headers["finished_at"])

	var body struct {
		RunID           int64     `json:"run_id"`
		Dataset         string    `json:"dataset"`
		FinishedAt      time.Time `json:"finished_at"`
		Processed       int64     `json:"processed"`
		CuratedUpserted int64     `json:"curated_upserted"`
		Conflicts       int64     `json:"conflicts"`
	}
	require.NoError(t, json.Unmarshal(msg.Value, &body))
	assert.Equal(t, int64(7), body.RunID)
	assert.Equal(t, int64(3), body.Processed)
	assert.Equal(t, int64(2), body.CuratedUpserted)
	assert.Equal(t, int64(1), body.Conflicts)
	assert.True(t, finished.Equal(body.FinishedAt))
}
