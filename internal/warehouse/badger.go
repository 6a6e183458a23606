package warehouse

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"

	badger "github.com/dgraph-io/badger/v4"

	"salespipe/internal/model"
)

// BadgerStore implements Store using BadgerDB. Same key layout as the
// pebble backend.
type BadgerStore struct {
	db *badger.DB

	mu      sync.Mutex
	nextSeq uint64
}

func NewBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(filepath.Clean(dir))
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger open: %w", err)
	}
	s := &BadgerStore{db: db}
	if err := s.recoverSeq(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *BadgerStore) recoverSeq() error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		it.Seek(rawEnd)
		if it.ValidForPrefix(rawPrefix) {
			key := it.Item().KeyCopy(nil)
			seq, err := strconv.ParseUint(string(key[len(rawPrefix):]), 10, 64)
			if err != nil {
				return fmt.Errorf("bad raw key %q: %w", key, err)
			}
			s.nextSeq = seq + 1
		}
		return nil
	})
}

func (s *BadgerStore) Close() error { return s.db.Close() }

func (s *BadgerStore) AppendRaw(events []model.SalesEvent) error {
	if len(events) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.db.Update(func(txn *badger.Txn) error {
		for i, ev := range events {
			b, err := json.Marshal(&ev)
			if err != nil {
				return fmt.Errorf("encode row: %w", err)
			}
			if err := txn.Set(rawKey(s.nextSeq+uint64(i)), b); err != nil {
				return fmt.Errorf("set row: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.nextSeq += uint64(len(events))
	return nil
}

func (s *BadgerStore) RangeRaw(fn func(ev model.SalesEvent) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = rawPrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(rawPrefix); it.ValidForPrefix(rawPrefix); it.Next() {
			v, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var ev model.SalesEvent
			if err := json.Unmarshal(v, &ev); err != nil {
				return fmt.Errorf("decode row: %w", err)
			}
			if err := fn(ev); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReplaceSummary swaps the whole summary table in one transaction.
func (s *BadgerStore) ReplaceSummary(rows []SummaryRow) error {
	return s.db.Update(func(txn *badger.Txn) error {
		// Collect keys first to avoid mutating while iterating.
		opts := badger.DefaultIteratorOptions
		opts.Prefix = sumPrefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		var toDelete [][]byte
		for it.Seek(sumPrefix); it.ValidForPrefix(sumPrefix); it.Next() {
			toDelete = append(toDelete, it.Item().KeyCopy(nil))
		}
		it.Close()
		for _, k := range toDelete {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		for i, row := range rows {
			b, err := json.Marshal(&row)
			if err != nil {
				return fmt.Errorf("encode summary row: %w", err)
			}
			if err := txn.Set(sumKey(i), b); err != nil {
				return fmt.Errorf("set summary row: %w", err)
			}
		}
		return nil
	})
}

func (s *BadgerStore) Summary() ([]SummaryRow, error) {
	var rows []SummaryRow
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = sumPrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(sumPrefix); it.ValidForPrefix(sumPrefix); it.Next() {
			v, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var row SummaryRow
			if err := json.Unmarshal(v, &row); err != nil {
				return fmt.Errorf("decode summary row: %w", err)
			}
			rows = append(rows, row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}
