package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/agrisense/internal/config"
	"github.com/couchcryptid/agrisense/internal/domain"
)

// Writer publishes season outcomes to a Kafka topic.
// It implements simulator.Publisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured outcome topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish serializes one outcome and writes it synchronously.
func (w *Writer) Publish(ctx context.Context, outcome domain.SeasonOutcome) error {
	msg, err := serializeToMessage(outcome)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write outcome %s: %w", outcome.ID, err)
	}
	w.logger.Debug("outcome published", "id", outcome.ID, "topic", w.writer.Topic)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a SeasonOutcome into a Kafka message keyed by
// run ID.
func serializeToMessage(outcome domain.SeasonOutcome) (kafkago.Message, error) {
	data, err := json.Marshal(outcome)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize season outcome: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(outcome.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "crop", Value: []byte(outcome.Decision.Crop)},
			{Key: "simulated_at", Value: []byte(outcome.SimulatedAt.Format(time.RFC3339))},
		},
	}, nil
}
