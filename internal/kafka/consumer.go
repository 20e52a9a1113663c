package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/Okay2121/vine-ledger/internal/ledger"
	"github.com/Okay2121/vine-ledger/internal/models"
	"github.com/Okay2121/vine-ledger/internal/observability"
)

// EventProcessor is the engine-shaped dependency the consumer needs. Kept
// as a single-method interface so tests can substitute a fake.
type EventProcessor interface {
	ProcessEvent(ctx context.Context, event models.TradeEvent, source string) (*ledger.Result, error)
}

// Consumer ingests externally reported trade events from Kafka and feeds
// them through the same pipeline as the HTTP path. Duplicate and unmatched
// events are expected on an at-least-once transport and are logged, not
// fatal.
type Consumer struct {
	reader    *kafka.Reader
	processor EventProcessor
	logger    zerolog.Logger
}

// NewConsumer creates a new Kafka consumer for trade events
func NewConsumer(brokers []string, topic, groupID string, processor EventProcessor) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: time.Second,
	})

	return &Consumer{
		reader:    reader,
		processor: processor,
		logger:    observability.NewLogger("kafka-consumer"),
	}
}

// Start begins consuming messages from Kafka
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info().Str("topic", c.reader.Config().Topic).Msg("starting trade event consumer")

	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("trade event consumer shutting down")
			return c.reader.Close()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil // context cancelled, normal shutdown
				}
				c.logger.Error().Err(err).Msg("error reading message")
				continue
			}

			if err := c.processMessage(ctx, msg); err != nil {
				c.logger.Error().Err(err).
					Int("partition", msg.Partition).
					Int64("offset", msg.Offset).
					Msg("error processing message")
				// Continue processing other messages
			}
		}
	}
}

// processMessage handles a single Kafka message
func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) error {
	var event models.TradeEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal trade event: %w", err)
	}

	_, err := c.processor.ProcessEvent(ctx, event, "kafka")
	switch {
	case err == nil:
		c.logger.Info().
			Str("action", event.Action).
			Str("token", event.TokenName).
			Str("tx_hash", event.TxHash).
			Msg("trade event ingested")
		return nil
	case errors.Is(err, models.ErrDuplicateReference):
		// Redelivery of a processed event; already applied exactly once.
		c.logger.Info().Str("tx_hash", event.TxHash).Msg("duplicate trade event skipped")
		return nil
	case errors.Is(err, models.ErrNoOpenPosition):
		c.logger.Warn().
			Str("token", event.TokenName).
			Str("tx_hash", event.TxHash).
			Msg("sell event had no open position to match")
		return nil
	case errors.Is(err, models.ErrSellBeforeBuy):
		// Redelivery cannot make the timestamp valid; drop it.
		c.logger.Warn().
			Str("token", event.TokenName).
			Str("tx_hash", event.TxHash).
			Msg("sell event predates the position it matched")
		return nil
	default:
		return err
	}
}

// Close closes the Kafka consumer
func (c *Consumer) Close() error {
	return c.reader.Close()
}
