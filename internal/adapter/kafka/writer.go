// Package kafka publishes ingestion run summaries to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/weather-yield-etl/internal/config"
	"github.com/couchcryptid/weather-yield-etl/internal/domain"
)

const (
	publishAttempts   = 3
	initialBackoff    = 200 * time.Millisecond
	maxPublishBackoff = 2 * time.Second
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// RunPublisher produces one message per finished run.
// It implements pipeline.RunPublisher.
type RunPublisher struct {
	writer messageWriter
	topic  string
	logger *slog.Logger
}

// NewRunPublisher creates a Kafka producer for the configured runs topic.
func NewRunPublisher(cfg *config.Config, logger *slog.Logger) *RunPublisher {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaRunsTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		MaxAttempts:            1,
		WriteTimeout:           10 * time.Second,
		AllowAutoTopicCreation: true,
	}
	return &RunPublisher{writer: w, topic: cfg.KafkaRunsTopic, logger: logger}
}

// PublishRun serializes run and writes it synchronously, keyed by run ID so
// all messages for a run land on one partition.
func (p *RunPublisher) PublishRun(ctx context.Context, run domain.IngestionRun) error {
	msg, err := serializeRun(run)
	if err != nil {
		return err
	}

	backoff := initialBackoff
	for attempt := 1; ; attempt++ {
		err = p.writer.WriteMessages(ctx, msg)
		if err == nil {
			p.logger.Debug("run summary published", "run_id", run.ID, "topic", p.topic)
			return nil
		}
		if attempt == publishAttempts {
			break
		}
		p.logger.Warn("run summary publish failed, retrying",
			"run_id", run.ID, "attempt", attempt, "backoff", backoff, "error", err)
		if !retry.SleepWithContext(ctx, backoff) {
			break
		}
		backoff = retry.NextBackoff(backoff, maxPublishBackoff)
	}
	return fmt.Errorf("publish run %d to %s: %w", run.ID, p.topic, err)
}

func (p *RunPublisher) Close() error {
	return p.writer.Close()
}

// runSummary is the wire form of a finished run.
type runSummary struct {
	RunID      int64     `json:"run_id"`
	Dataset    string    `json:"dataset"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	domain.RunCounts
}

// serializeRun marshals a finished run into a Kafka message.
func serializeRun(run domain.IngestionRun) (kafkago.Message, error) {
	if run.FinishedAt == nil {
		return kafkago.Message{}, fmt.Errorf("serialize run %d: run is not finished", run.ID)
	}
	data, err := json.Marshal(runSummary{
		RunID:      run.ID,
		Dataset:    run.Dataset,
		StartedAt:  run.StartedAt.UTC(),
		FinishedAt: run.FinishedAt.UTC(),
		RunCounts:  run.RunCounts,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize run %d: %w", run.ID, err)
	}
	return kafkago.Message{
		Key:   []byte(strconv.FormatInt(run.ID, 10)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "dataset", Value: []byte(run.Dataset)},
			{Key: "finished_at", Value: []byte(run.FinishedAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}
