package queue

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	ck "github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// fakeConsumer implements kafkaConsumer for tests.
type fakeConsumer struct {
	values    [][]byte
	next      int
	commits   int
	commitErr error
	readErr   error
}

func (f *fakeConsumer) ReadMessage(timeout time.Duration) (*ck.Message, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	if f.next >= len(f.values) {
		return nil, ck.NewError(ck.ErrTimedOut, "timed out", false)
	}
	topic := "sales.orders"
	m := &ck.Message{
		TopicPartition: ck.TopicPartition{Topic: &topic, Partition: 0, Offset: ck.Offset(f.next)},
		Value:          f.values[f.next],
	}
	f.next++
	return m, nil
}

func (f *fakeConsumer) Commit() ([]ck.TopicPartition, error) {
	f.commits++
	return nil, f.commitErr
}

func (f *fakeConsumer) Close() error { return nil }

func TestPull_UpToMax(t *testing.T) {
	fc := &fakeConsumer{values: [][]byte{[]byte("a"), []byte("b"), []byte("c")}}
	sub := NewKafkaSubscriptionWith(fc, time.Millisecond)

	msgs, err := sub.Pull(context.Background(), 2)
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("want 2 msgs, got %d", len(msgs))
	}
	if msgs[0].ID != "sales.orders/0/0" || msgs[1].ID != "sales.orders/0/1" {
		t.Fatalf("ids: %s %s", msgs[0].ID, msgs[1].ID)
	}
	if msgs[0].Data != base64.StdEncoding.EncodeToString([]byte("a")) {
		t.Fatalf("payload not base64 enveloped: %s", msgs[0].Data)
	}
}

func TestPull_DrainsOnTimeout(t *testing.T) {
	fc := &fakeConsumer{values: [][]byte{[]byte("a")}}
	sub := NewKafkaSubscriptionWith(fc, time.Millisecond)

	msgs, err := sub.Pull(context.Background(), 10)
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("want 1 msg, got %d", len(msgs))
	}
}

func TestPull_ReadError(t *testing.T) {
	fc := &fakeConsumer{readErr: errors.New("broker down")}
	sub := NewKafkaSubscriptionWith(fc, time.Millisecond)

	_, err := sub.Pull(context.Background(), 10)
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestCommit(t *testing.T) {
	fc := &fakeConsumer{}
	sub := NewKafkaSubscriptionWith(fc, time.Millisecond)
	if err := sub.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if fc.commits != 1 {
		t.Fatalf("commits: %d", fc.commits)
	}
}

func TestCommit_NoOffsetIsNotAnError(t *testing.T) {
	fc := &fakeConsumer{commitErr: ck.NewError(ck.ErrNoOffset, "no offset", false)}
	sub := NewKafkaSubscriptionWith(fc, time.Millisecond)
	if err := sub.Commit(); err != nil {
		t.Fatalf("commit with no offsets must be a no-op: %v", err)
	}
}
