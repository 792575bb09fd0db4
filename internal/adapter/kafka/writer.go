package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/rainfall-etl/internal/config"
	"github.com/couchcryptid/rainfall-etl/internal/domain"
	"github.com/couchcryptid/rainfall-etl/internal/observability"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafkago.Writer used by Writer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes one message per non-zero matrix cell.
// It implements pipeline.Loader.
type Writer struct {
	writer  messageWriter
	topic   string
	logger  *slog.Logger
	metrics *observability.Metrics
}

// observationMessage is the JSON value of every published message.
type observationMessage struct {
	Date    domain.Date `json:"date"`
	Station string      `json:"station"`
	Value   float64     `json:"value"`
	RunID   string      `json:"run_id"`
}

// NewWriter creates a Kafka producer for the configured topic. Keys hash to
// partitions so a station/date cell always lands on the same partition.
func NewWriter(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchSize:    500,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &Writer{writer: w, topic: cfg.KafkaTopic, logger: logger, metrics: metrics}
}

// Load serializes the snapshot's non-zero cells and publishes them in a
// single WriteMessages call.
func (w *Writer) Load(ctx context.Context, snap domain.Snapshot) error {
	msgs, err := snapshotMessages(snap)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		w.logger.Info("no observations to publish", "run_id", snap.RunID)
		return nil
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish observations: %w", err)
	}
	w.metrics.MessagesProduced.Add(float64(len(msgs)))
	w.logger.Info("observations published", "run_id", snap.RunID, "topic", w.topic, "messages", len(msgs))
	return nil
}

// Close flushes pending messages and closes the underlying producer.
func (w *Writer) Close() error {
	return w.writer.Close()
}

func snapshotMessages(snap domain.Snapshot) ([]kafkago.Message, error) {
	if snap.Matrix == nil {
		return nil, nil
	}
	collectedAt := []byte(snap.CollectedAt.UTC().Format(time.RFC3339))

	var msgs []kafkago.Message
	for _, o := range snap.Matrix.Observations() {
		if o.Value == 0 {
			continue
		}
		msg, err := serializeToMessage(o, snap.RunID, collectedAt)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// serializeToMessage marshals one matrix cell into a Kafka message.
func serializeToMessage(o domain.Observation, runID string, collectedAt []byte) (kafkago.Message, error) {
	data, err := json.Marshal(observationMessage{
		Date:    o.Date,
		Station: o.Station,
		Value:   o.Value,
		RunID:   runID,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize observation: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(MessageKey(o.Station, o.Date)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(runID)},
			{Key: "collected_at", Value: collectedAt},
		},
	}, nil
}

// MessageKey is the partition key for a station/date cell.
func MessageKey(station string, d domain.Date) string {
	return station + "|" + d.String()
}
