package batch

import (
	"bytes"
	"fmt"
	"time"

	"salespipe/internal/model"
	"salespipe/internal/objstore"
)

// NoBatch is the sentinel object key returned when there were no records
// to write. It is not an error.
const NoBatch = ""

const (
	contentType         = "application/json"
	objectKeyTimeLayout = "20060102_150405"
)

// StorageError reports a batch-object write failure. Fatal to the run.
type StorageError struct {
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage: %v", e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// ObjectKey derives the deterministic, time-partitioned batch key from the
// run's logical execution time. Two runs at the same logical time collide;
// the scheduler guarantees one run per slot.
func ObjectKey(logicalTime time.Time) string {
	return fmt.Sprintf("sales/raw/sales_%s.json", logicalTime.Format(objectKeyTimeLayout))
}

// Writer persists a record set as an immutable newline-delimited JSON
// object.
type Writer struct {
	store objstore.Store
}

func NewWriter(store objstore.Store) *Writer {
	return &Writer{store: store}
}

// Write serializes records in input order, one JSON object per line, and
// stores them under ObjectKey(logicalTime). An empty set short-circuits to
// the NoBatch sentinel without touching storage.
func (w *Writer) Write(records RecordSet, logicalTime time.Time) (string, error) {
	if records.Empty() {
		return NoBatch, nil
	}

	var buf bytes.Buffer
	for i, ev := range records.Events {
		b, err := model.EncodeEvent(ev)
		if err != nil {
			return "", &StorageError{Err: err}
		}
		if i > 0 {
			buf.WriteByte('\n')
		}
		buf.Write(b)
	}

	key := ObjectKey(logicalTime)
	if err := w.store.Put(key, buf.Bytes(), contentType); err != nil {
		return "", &StorageError{Err: err}
	}
	return key, nil
}
