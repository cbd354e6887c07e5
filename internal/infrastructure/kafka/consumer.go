package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageHandler processes one message. A non-nil error hands the message to
// the handler again until the consumer's attempts run out.
type MessageHandler func(ctx context.Context, message []byte) error

const (
	maxRetryBackoff    = 30 * time.Second
	defaultMaxAttempts = 8
)

type Consumer struct {
	reader          *kafka.Reader
	logger          *zap.Logger
	retry           time.Duration
	maxAttempts     int
	deadLetter      Producer
	deadLetterTopic string
}

type ConsumerOption func(*Consumer)

// WithMaxAttempts bounds how many times one message is handed to the handler
// before it is given up on. Values below one keep the default.
func WithMaxAttempts(n int) ConsumerOption {
	return func(c *Consumer) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithDeadLetter republishes messages that exhaust their attempts to topic.
// Without it such messages are logged and skipped.
func WithDeadLetter(p Producer, topic string) ConsumerOption {
	return func(c *Consumer) {
		c.deadLetter = p
		c.deadLetterTopic = topic
	}
}

func NewConsumer(brokers []string, topic, groupID string, l *zap.Logger, opts ...ConsumerOption) *Consumer {
	cl := l.With(zap.String("kafka_component", "consumer"), zap.String("topic", topic))
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     groupID,
		MinBytes:    10e3,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
		Logger:      kafka.LoggerFunc(cl.Sugar().Debugf),
		ErrorLogger: kafka.LoggerFunc(cl.Sugar().Errorf),
	})

	l.Info("Kafka consumer created",
		zap.String("topic", topic),
		zap.String("group_id", groupID),
		zap.Strings("brokers", brokers))

	c := &Consumer{reader: reader, logger: cl, retry: time.Second, maxAttempts: defaultMaxAttempts}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run fetches and handles messages until ctx is cancelled. A failed message
// is handed to the handler again with backoff. Its offset is committed once the
// handler succeeds or the message has been parked after its last attempt.
func (c *Consumer) Run(ctx context.Context, handler MessageHandler) error {
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("Error fetching message from Kafka", zap.Error(err))
			return fmt.Errorf("kafka fetch: %w", err)
		}

		if !c.process(ctx, m, handler) {
			return nil
		}

		if err := c.reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("Failed to commit offset for message",
				zap.Int("partition", m.Partition),
				zap.Int64("offset", m.Offset),
				zap.Error(err))
			continue
		}
		c.logger.Debug("Committed message offset",
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset))
	}
}

// process returns false if ctx was cancelled before the message was settled.
func (c *Consumer) process(ctx context.Context, m kafka.Message, handler MessageHandler) bool {
	err := c.handleWithRetry(ctx, m, handler)
	if err == nil {
		return true
	}
	if ctx.Err() != nil {
		return false
	}
	return c.park(ctx, m, err)
}

// handleWithRetry returns the last handler error once attempts run out or ctx
// is cancelled.
func (c *Consumer) handleWithRetry(ctx context.Context, m kafka.Message, handler MessageHandler) error {
	backoff := c.retry
	var err error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err = handler(ctx, m.Value); err == nil {
			return nil
		}
		if attempt == c.maxAttempts {
			break
		}
		c.logger.Error("Error handling Kafka message, will retry",
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return err
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxRetryBackoff)
	}
	return err
}

// park moves an exhausted message out of the partition's way so later
// messages keep flowing.
func (c *Consumer) park(ctx context.Context, m kafka.Message, cause error) bool {
	log := c.logger.With(
		zap.Int("partition", m.Partition),
		zap.Int64("offset", m.Offset),
		zap.Int("attempts", c.maxAttempts),
		zap.NamedError("cause", cause))

	if c.deadLetter == nil {
		log.Error("Giving up on Kafka message", zap.ByteString("message", m.Value))
		return true
	}

	backoff := c.retry
	for {
		err := c.deadLetter.Produce(ctx, c.deadLetterTopic, m.Key, m.Value)
		if err == nil {
			log.Warn("Kafka message moved to dead-letter topic", zap.String("dead_letter_topic", c.deadLetterTopic))
			return true
		}
		log.Error("Failed to publish message to dead-letter topic, will retry",
			zap.String("dead_letter_topic", c.deadLetterTopic),
			zap.Duration("backoff", backoff),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxRetryBackoff)
	}
}

func (c *Consumer) Close() error {
	if err := c.reader.Close(); err != nil {
		c.logger.Error("Failed to close Kafka consumer", zap.Error(err))
		return fmt.Errorf("failed to close Kafka consumer: %w", err)
	}
	c.logger.Info("Kafka consumer closed.")
	return nil
}
