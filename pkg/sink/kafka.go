// Package sink forwards delivered match batches to external systems.
package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/matchmore/alps-go/pkg/model"
)

// DefaultTimeout bounds one produce call.
const DefaultTimeout = 5 * time.Second

// Header keys set on every record.
const (
	HeaderDeviceID       = "device_id"
	HeaderSubscriptionID = "subscription_id"
	HeaderPublicationID  = "publication_id"
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("sink closed")

// Producer is the part of *kgo.Client used by Kafka.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// KafkaConfig configures a Kafka sink.
type KafkaConfig struct {
	// Topic receives one record per match. Required.
	Topic string

	// Timeout bounds one produce call. Zero uses DefaultTimeout.
	Timeout time.Duration

	// Logger is the optional logger for produce failures.
	Logger *slog.Logger
}

// Kafka publishes every match as a JSON record keyed by match ID.
type Kafka struct {
	producer Producer
	topic    string
	timeout  time.Duration
	logger   *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewKafka connects a franz-go client to brokers.
func NewKafka(brokers []string, cfg KafkaConfig) (*Kafka, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("sink: no kafka brokers")
	}
	cl, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("sink: kafka client: %w", err)
	}
	k, err := NewKafkaWithProducer(cl, cfg)
	if err != nil {
		cl.Close()
		return nil, err
	}
	return k, nil
}

// NewKafkaWithProducer creates a sink on an existing producer.
func NewKafkaWithProducer(p Producer, cfg KafkaConfig) (*Kafka, error) {
	if p == nil {
		return nil, fmt.Errorf("sink: producer is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("sink: topic is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Kafka{
		producer: p,
		topic:    cfg.Topic,
		timeout:  cfg.Timeout,
		logger:   cfg.Logger,
	}, nil
}

// Send produces one record per match and waits for the acknowledgements.
func (k *Kafka) Send(ctx context.Context, deviceID string, matches []model.Match) error {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.closed {
		return ErrClosed
	}
	if len(matches) == 0 {
		return nil
	}

	records := make([]*kgo.Record, 0, len(matches))
	for _, m := range matches {
		value, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("sink: encode match %s: %w", m.ID, err)
		}
		records = append(records, &kgo.Record{
			Topic: k.topic,
			Key:   []byte(m.ID),
			Value: value,
			Headers: []kgo.RecordHeader{
				{Key: HeaderDeviceID, Value: []byte(deviceID)},
				{Key: HeaderSubscriptionID, Value: []byte(m.Subscription.ID)},
				{Key: HeaderPublicationID, Value: []byte(m.Publication.ID)},
			},
		})
	}

	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()
	if err := k.producer.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("sink: produce to %s: %w", k.topic, err)
	}
	return nil
}

// Forward is a match handler. Failures are logged and dropped.
func (k *Kafka) Forward(deviceID string, matches []model.Match) {
	if err := k.Send(context.Background(), deviceID, matches); err != nil && k.logger != nil {
		k.logger.Warn("forwarding matches failed",
			"device_id", deviceID, "count", len(matches), "error", err)
	}
}

// Close waits for in-flight sends and closes the producer.
func (k *Kafka) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return nil
	}
	k.closed = true
	k.producer.Close()
	return nil
}
