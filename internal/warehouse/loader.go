package warehouse

import (
	"bufio"
	"bytes"
	"fmt"

	"salespipe/internal/model"
	"salespipe/internal/objstore"
)

// LoadError reports a raw-table load failure. The raw table is left in its
// pre-load state; the append is all-or-nothing.
type LoadError struct {
	Err error
}

func (e *LoadError) Error() string { return fmt.Sprintf("load: %v", e.Err) }
func (e *LoadError) Unwrap() error { return e.Err }

// LoadResult reports a completed load.
type LoadResult struct {
	ObjectKey string
	Rows      int
}

// Loader appends a persisted batch object's records to the raw table.
// Loading the same object key twice appends duplicate rows; the
// orchestrator invokes it at most once per written batch.
type Loader struct {
	objects objstore.Store
	store   Store
}

func NewLoader(objects objstore.Store, store Store) *Loader {
	return &Loader{objects: objects, store: store}
}

// Load reads the newline-delimited batch object and appends every row.
// A batch object the pipeline wrote itself must be well-formed; any
// malformed line fails the load.
func (l *Loader) Load(key string) (LoadResult, error) {
	data, err := l.objects.Get(key)
	if err != nil {
		return LoadResult{}, &LoadError{Err: err}
	}

	var events []model.SalesEvent
	scanner := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for scanner.Scan() {
		line++
		if len(bytes.TrimSpace(scanner.Bytes())) == 0 {
			continue
		}
		ev, err := model.DecodeEvent(scanner.Bytes())
		if err != nil {
			return LoadResult{}, &LoadError{Err: fmt.Errorf("line %d: %w", line, err)}
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return LoadResult{}, &LoadError{Err: fmt.Errorf("scan: %w", err)}
	}

	if err := l.store.AppendRaw(events); err != nil {
		return LoadResult{}, &LoadError{Err: err}
	}
	return LoadResult{ObjectKey: key, Rows: len(events)}, nil
}
