package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingProducer struct {
	topic string
	key   []byte
	value []byte
	err   error
}

func (p *recordingProducer) Produce(_ context.Context, topic string, key, message []byte) error {
	p.topic, p.key, p.value = topic, key, message
	return p.err
}

func (p *recordingProducer) Close() error { return nil }

func TestKafkaNotifier_Publishes(t *testing.T) {
	producer := &recordingProducer{}
	n := NewKafkaNotifier(producer, "customer_notifications", zap.NewNop())

	res, err := n.Notify(context.Background(), "cust_1", "Your order ord_1 is confirmed")
	require.NoError(t, err)
	assert.Equal(t, Result{OK: true}, res)
	assert.Equal(t, "customer_notifications", producer.topic)
	assert.Equal(t, []byte("cust_1"), producer.key)

	var msg Message
	require.NoError(t, json.Unmarshal(producer.value, &msg))
	assert.Equal(t, "cust_1", msg.Destination)
	assert.Equal(t, "Your order ord_1 is confirmed", msg.Message)
	assert.False(t, msg.SentAt.IsZero())
}

func TestKafkaNotifier_ProducerFailure(t *testing.T) {
	n := NewKafkaNotifier(&recordingProducer{err: errors.New("broker down")}, "t", zap.NewNop())

	res, err := n.Notify(context.Background(), "cust_1", "hi")
	require.Error(t, err)
	assert.False(t, res.OK)
}

func TestNotifiers_RejectEmptyDestination(t *testing.T) {
	for name, n := range map[string]Notifier{
		"kafka":   NewKafkaNotifier(&recordingProducer{}, "t", zap.NewNop()),
		"dry-run": NewDryRunNotifier(zap.NewNop()),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := n.Notify(context.Background(), "", "hi")
			assert.ErrorIs(t, err, ErrEmptyDestination)
		})
	}
}

func TestDryRunNotifier(t *testing.T) {
	res, err := NewDryRunNotifier(zap.NewNop()).Notify(context.Background(), "cust_1", "hi")
	require.NoError(t, err)
	assert.Equal(t, Result{OK: true, DryRun: true}, res)
}
