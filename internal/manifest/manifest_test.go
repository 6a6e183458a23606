package manifest

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
)

func TestPublishAndReadLatest(t *testing.T) {
	dir := t.TempDir()
	m := NewFilesystemManifest(dir)
	in := RunManifest{
		RunID:                  "20240115_103000",
		ObjectKey:              "sales/raw/sales_20240115_103000.json",
		RawTable:               "local-dev.sales_dwh.sales_raw",
		SummaryTable:           "local-dev.sales_dwh.sales_summary",
		Records:                7,
		LoadedRows:             7,
		CompletedAtEpochSecond: 1705314600,
	}
	if err := m.PublishLatest(in); err != nil {
		t.Fatalf("PublishLatest error: %v", err)
	}
	got, err := m.ReadLatest()
	if err != nil {
		t.Fatalf("ReadLatest error: %v", err)
	}
	if got != in {
		t.Fatalf("unexpected manifest: %+v", got)
	}
}

// fakeKafkaWriter implements kafkaMessageWriter for tests
type fakeKafkaWriter struct {
	msgs []kafka.Message
	fail bool
}

func (f *fakeKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.fail {
		return errors.New("fail")
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func TestKafkaManifest_PublishLatest_Success(t *testing.T) {
	fk := &fakeKafkaWriter{}
	km := NewKafkaManifestWith(fk, "sales-pipeline-run-latest")
	if err := km.PublishLatest(RunManifest{RunID: "20240115_103000"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(fk.msgs) != 1 {
		t.Fatalf("want 1 msg, got %d", len(fk.msgs))
	}
	if string(fk.msgs[0].Key) != "sales-pipeline-run-latest" {
		t.Fatalf("bad key: %s", string(fk.msgs[0].Key))
	}
}

func TestKafkaManifest_PublishLatest_Fail(t *testing.T) {
	fk := &fakeKafkaWriter{fail: true}
	km := NewKafkaManifestWith(fk, "sales-pipeline-run-latest")
	if err := km.PublishLatest(RunManifest{RunID: "x"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestMultiPublisher_StopsOnError(t *testing.T) {
	dir := t.TempDir()
	fs := NewFilesystemManifest(dir)
	failing := NewKafkaManifestWith(&fakeKafkaWriter{fail: true}, "k")
	mp := MultiPublisher(fs, failing)
	if err := mp.PublishLatest(RunManifest{RunID: "r1"}); err == nil {
		t.Fatalf("expected error from second publisher")
	}
	// First publisher already wrote.
	if _, err := fs.ReadLatest(); err != nil {
		t.Fatalf("filesystem manifest missing: %v", err)
	}
}
