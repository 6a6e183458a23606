package publish

import (
	"context"
	"fmt"
	"strconv"

	"salespipe/internal/model"

	ck "github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// Receipt acknowledges a durable publish. MessageID is the broker-assigned
// topic/partition/offset coordinate.
type Receipt struct {
	MessageID string
}

// TransportError reports a queue transport failure during publish.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("transport: %v", e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// Publisher hands enriched events to the queue transport.
type Publisher interface {
	Publish(ctx context.Context, ev model.SalesEvent) (Receipt, error)
}

// eventProducer abstracts ck.Producer for testability.
type eventProducer interface {
	Produce(msg *ck.Message, deliveryChan chan ck.Event) error
}

// KafkaPublisher publishes sales events with acks=all and waits for the
// broker delivery report before returning, so a returned Receipt implies
// durability. Safe for concurrent use; the underlying producer handle is
// shared across requests.
type KafkaPublisher struct {
	producer eventProducer
	topic    string
	closer   func()
}

func NewKafkaPublisher(bootstrap, topic string) (*KafkaPublisher, error) {
	p, err := ck.NewProducer(&ck.ConfigMap{
		"bootstrap.servers":  bootstrap,
		"enable.idempotence": true,
		"acks":               "all",
	})
	if err != nil {
		return nil, fmt.Errorf("producer: %w", err)
	}
	return &KafkaPublisher{
		producer: p,
		topic:    topic,
		closer: func() {
			_ = p.Flush(5000)
			p.Close()
		},
	}, nil
}

// NewKafkaPublisherWith is only for tests to inject a fake producer.
func NewKafkaPublisherWith(p eventProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: p, topic: topic}
}

// Publish encodes ev to the canonical wire form and blocks until the broker
// confirms the write or ctx expires. There is no local retry; retry policy
// belongs to the caller.
func (k *KafkaPublisher) Publish(ctx context.Context, ev model.SalesEvent) (Receipt, error) {
	val, err := model.EncodeEvent(ev)
	if err != nil {
		return Receipt{}, err
	}

	delivery := make(chan ck.Event, 1)
	msg := &ck.Message{
		TopicPartition: ck.TopicPartition{Topic: &k.topic, Partition: ck.PartitionAny},
		Key:            []byte(strconv.FormatInt(ev.OrderID, 10)),
		Value:          val,
	}
	if err := k.producer.Produce(msg, delivery); err != nil {
		return Receipt{}, &TransportError{Err: err}
	}

	select {
	case e := <-delivery:
		m, ok := e.(*ck.Message)
		if !ok {
			return Receipt{}, &TransportError{Err: fmt.Errorf("unexpected delivery event %T", e)}
		}
		if m.TopicPartition.Error != nil {
			return Receipt{}, &TransportError{Err: m.TopicPartition.Error}
		}
		id := fmt.Sprintf("%s/%d/%d", *m.TopicPartition.Topic, m.TopicPartition.Partition, m.TopicPartition.Offset)
		return Receipt{MessageID: id}, nil
	case <-ctx.Done():
		return Receipt{}, &TransportError{Err: ctx.Err()}
	}
}

func (k *KafkaPublisher) Close() {
	if k.closer != nil {
		k.closer()
	}
}
