package queue

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	ck "github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// Message is the transport-neutral pull envelope. Data carries the payload
// base64-encoded, the form pull APIs hand back.
type Message struct {
	ID   string
	Data string
}

// Subscription is a pull-based, at-least-once view of the sales topic.
// Message ordering is not guaranteed across partitions.
type Subscription interface {
	// Pull returns up to max messages, fewer when the subscription drains
	// before max is reached.
	Pull(ctx context.Context, max int) ([]Message, error)
	// Commit acknowledges everything pulled so far. Callers commit only
	// after the pulled batch has been fully processed.
	Commit() error
	Close() error
}

// kafkaConsumer abstracts ck.Consumer for testability.
type kafkaConsumer interface {
	ReadMessage(timeout time.Duration) (*ck.Message, error)
	Commit() ([]ck.TopicPartition, error)
	Close() error
}

// KafkaSubscription pulls from a Kafka topic with manual offset commit, so
// redelivery after a crashed run gives at-least-once semantics.
type KafkaSubscription struct {
	consumer    kafkaConsumer
	readTimeout time.Duration
}

func NewKafkaSubscription(bootstrap, topic, group string) (*KafkaSubscription, error) {
	c, err := ck.NewConsumer(&ck.ConfigMap{
		"bootstrap.servers":  bootstrap,
		"group.id":           group,
		"enable.auto.commit": false,
		"isolation.level":    "read_committed",
		"auto.offset.reset":  "earliest",
	})
	if err != nil {
		return nil, fmt.Errorf("consumer: %w", err)
	}
	if err := c.SubscribeTopics([]string{topic}, nil); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	return &KafkaSubscription{consumer: c, readTimeout: 2 * time.Second}, nil
}

// NewKafkaSubscriptionWith is only for tests to inject a fake consumer.
func NewKafkaSubscriptionWith(c kafkaConsumer, readTimeout time.Duration) *KafkaSubscription {
	return &KafkaSubscription{consumer: c, readTimeout: readTimeout}
}

func (s *KafkaSubscription) Pull(ctx context.Context, max int) ([]Message, error) {
	var out []Message
	for len(out) < max {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		m, err := s.consumer.ReadMessage(s.readTimeout)
		if err != nil {
			if kerr, ok := err.(ck.Error); ok && kerr.Code() == ck.ErrTimedOut {
				break // drained
			}
			return out, fmt.Errorf("read: %w", err)
		}
		out = append(out, Message{
			ID:   fmt.Sprintf("%s/%d/%d", *m.TopicPartition.Topic, m.TopicPartition.Partition, m.TopicPartition.Offset),
			Data: base64.StdEncoding.EncodeToString(m.Value),
		})
	}
	return out, nil
}

func (s *KafkaSubscription) Commit() error {
	if _, err := s.consumer.Commit(); err != nil {
		if kerr, ok := err.(ck.Error); ok && kerr.Code() == ck.ErrNoOffset {
			return nil // nothing consumed yet
		}
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *KafkaSubscription) Close() error { return s.consumer.Close() }
