package warehouse

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/cockroachdb/pebble"

	"salespipe/internal/model"
)

// Key layout: raw rows under raw/<20-digit seq> in load order, summary
// rows under sum/<6-digit index> in rebuild order.
var (
	rawPrefix = []byte("raw/")
	rawEnd    = []byte("raw0")
	sumPrefix = []byte("sum/")
	sumEnd    = []byte("sum0")
)

// PebbleStore implements Store using PebbleDB.
type PebbleStore struct {
	db *pebble.DB

	mu      sync.Mutex
	nextSeq uint64
}

func NewPebbleStore(dir string) (*PebbleStore, error) {
	d, err := pebble.Open(filepath.Clean(dir), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	s := &PebbleStore{db: d}
	if err := s.recoverSeq(); err != nil {
		_ = d.Close()
		return nil, err
	}
	return s, nil
}

// recoverSeq restores the append position from the last raw key.
func (s *PebbleStore) recoverSeq() error {
	it, err := s.db.NewIter(&pebble.IterOptions{LowerBound: rawPrefix, UpperBound: rawEnd})
	if err != nil {
		return fmt.Errorf("pebble iter: %w", err)
	}
	defer it.Close()
	if it.Last() && it.Valid() {
		seq, err := strconv.ParseUint(string(it.Key()[len(rawPrefix):]), 10, 64)
		if err != nil {
			return fmt.Errorf("bad raw key %q: %w", it.Key(), err)
		}
		s.nextSeq = seq + 1
	}
	return nil
}

func rawKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("raw/%020d", seq))
}

func sumKey(idx int) []byte {
	return []byte(fmt.Sprintf("sum/%06d", idx))
}

func (s *PebbleStore) Close() error { return s.db.Close() }

func (s *PebbleStore) AppendRaw(events []model.SalesEvent) error {
	if len(events) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	wb := s.db.NewBatch()
	defer wb.Close()
	for _, ev := range events {
		b, err := json.Marshal(&ev)
		if err != nil {
			return fmt.Errorf("encode row: %w", err)
		}
		if err := wb.Set(rawKey(s.nextSeq), b, nil); err != nil {
			return fmt.Errorf("set row: %w", err)
		}
		s.nextSeq++
	}
	if err := wb.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

func (s *PebbleStore) RangeRaw(fn func(ev model.SalesEvent) error) error {
	it, err := s.db.NewIter(&pebble.IterOptions{LowerBound: rawPrefix, UpperBound: rawEnd})
	if err != nil {
		return fmt.Errorf("pebble iter: %w", err)
	}
	defer it.Close()
	for it.First(); it.Valid(); it.Next() {
		var ev model.SalesEvent
		if err := json.Unmarshal(it.Value(), &ev); err != nil {
			return fmt.Errorf("decode row %q: %w", it.Key(), err)
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
	return nil
}

// ReplaceSummary swaps the whole summary table in a single atomic batch.
func (s *PebbleStore) ReplaceSummary(rows []SummaryRow) error {
	wb := s.db.NewBatch()
	defer wb.Close()
	if err := wb.DeleteRange(sumPrefix, sumEnd, nil); err != nil {
		return fmt.Errorf("clear summary: %w", err)
	}
	for i, row := range rows {
		b, err := json.Marshal(&row)
		if err != nil {
			return fmt.Errorf("encode summary row: %w", err)
		}
		if err := wb.Set(sumKey(i), b, nil); err != nil {
			return fmt.Errorf("set summary row: %w", err)
		}
	}
	if err := wb.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("commit summary: %w", err)
	}
	return nil
}

func (s *PebbleStore) Summary() ([]SummaryRow, error) {
	it, err := s.db.NewIter(&pebble.IterOptions{LowerBound: sumPrefix, UpperBound: sumEnd})
	if err != nil {
		return nil, fmt.Errorf("pebble iter: %w", err)
	}
	defer it.Close()
	var rows []SummaryRow
	for it.First(); it.Valid(); it.Next() {
		var row SummaryRow
		if err := json.Unmarshal(it.Value(), &row); err != nil {
			return nil, fmt.Errorf("decode summary row %q: %w", it.Key(), err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
