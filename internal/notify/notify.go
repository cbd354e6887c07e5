// Package notify delivers customer notifications. Delivery is best effort:
// callers log failures and never fail the order workflow because of them.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"storefront/internal/infrastructure/kafka"
)

type Result struct {
	OK     bool `json:"ok"`
	DryRun bool `json:"dryRun"`
}

type Notifier interface {
	Notify(ctx context.Context, destination, message string) (Result, error)
}

var ErrEmptyDestination = errors.New("notification destination is empty")

// Message is the payload published for the delivery worker.
type Message struct {
	Destination string    `json:"destination"`
	Message     string    `json:"message"`
	SentAt      time.Time `json:"sent_at"`
}

type KafkaNotifier struct {
	producer kafka.Producer
	topic    string
	logger   *zap.Logger
}

func NewKafkaNotifier(producer kafka.Producer, topic string, logger *zap.Logger) *KafkaNotifier {
	return &KafkaNotifier{producer: producer, topic: topic, logger: logger}
}

func (n *KafkaNotifier) Notify(ctx context.Context, destination, message string) (Result, error) {
	if destination == "" {
		return Result{}, ErrEmptyDestination
	}
	payload, err := json.Marshal(Message{Destination: destination, Message: message, SentAt: time.Now().UTC()})
	if err != nil {
		return Result{}, fmt.Errorf("failed to encode notification: %w", err)
	}
	if err := n.producer.Produce(ctx, n.topic, []byte(destination), payload); err != nil {
		return Result{}, fmt.Errorf("failed to publish notification: %w", err)
	}
	n.logger.Debug("Notification published", zap.String("topic", n.topic), zap.String("destination", destination))
	return Result{OK: true}, nil
}

// DryRunNotifier only logs; used when no delivery channel is configured.
type DryRunNotifier struct {
	logger *zap.Logger
}

func NewDryRunNotifier(logger *zap.Logger) *DryRunNotifier {
	return &DryRunNotifier{logger: logger}
}

func (n *DryRunNotifier) Notify(_ context.Context, destination, message string) (Result, error) {
	if destination == "" {
		return Result{}, ErrEmptyDestination
	}
	n.logger.Info("Notification (dry run)", zap.String("destination", destination), zap.String("message", message))
	return Result{OK: true, DryRun: true}, nil
}
