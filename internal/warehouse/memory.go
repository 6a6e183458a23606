package warehouse

import (
	"fmt"
	"sync"

	"salespipe/internal/model"
)

// InMemoryStore is a simple thread-safe warehouse for tests and dev runs.
type InMemoryStore struct {
	mu      sync.RWMutex
	raw     []model.SalesEvent
	summary []SummaryRow
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) AppendRaw(events []model.SalesEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw = append(s.raw, events...)
	return nil
}

func (s *InMemoryStore) RangeRaw(fn func(ev model.SalesEvent) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ev := range s.raw {
		if err := fn(ev); err != nil {
			return fmt.Errorf("range callback failed: %w", err)
		}
	}
	return nil
}

func (s *InMemoryStore) ReplaceSummary(rows []SummaryRow) error {
	cp := append([]SummaryRow(nil), rows...)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summary = cp
	return nil
}

func (s *InMemoryStore) Summary() ([]SummaryRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]SummaryRow(nil), s.summary...), nil
}

func (s *InMemoryStore) Close() error { return nil }
