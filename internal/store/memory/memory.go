package memory

import (
	"context"
	"slices"
	"sync"

	"veggiemarket/backend/internal/domain"
	"veggiemarket/backend/internal/store"
)

// Store keeps snapshots and archived sales in process memory.
type Store struct {
	mu        sync.RWMutex
	snapshots map[string][]byte
	sales     []domain.Sale
}

func New() *Store {
	return &Store{snapshots: make(map[string][]byte)}
}

func (s *Store) Load(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	payload, ok := s.snapshots[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return slices.Clone(payload), nil
}

func (s *Store) Save(_ context.Context, key string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots[key] = slices.Clone(payload)
	return nil
}

func (s *Store) ArchiveSale(_ context.Context, sale domain.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.sales {
		if existing.ID == sale.ID {
			return nil
		}
	}
	s.sales = append(s.sales, sale)
	return nil
}

// ArchivedSales returns archived sales in commit order.
func (s *Store) ArchivedSales() []domain.Sale {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.sales)
}

func (s *Store) Close() error {
	return nil
}
