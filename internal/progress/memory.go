package progress

import (
	"context"
	"sync"
)

// MemoryStore is a Store that keeps rows in memory. Simulations without a database
// use it.
type MemoryStore struct {
	mu   sync.Mutex
	rows map[slot]Row
	// FailSave makes SaveProgress return this error when set.
	FailSave error
}

// NewMemoryStore returns an empty store.
func NewMemoryStore(rows ...Row) *MemoryStore {
	s := &MemoryStore{rows: make(map[slot]Row, len(rows))}
	for _, r := range rows {
		s.rows[slot{r.InstanceID, r.Key}] = r
	}
	return s
}

func (s *MemoryStore) LoadProgress(_ context.Context) ([]Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]Row, 0, len(s.rows))
	for _, row := range s.rows {
		result = append(result, row)
	}
	return result, nil
}

func (s *MemoryStore) SaveProgress(_ context.Context, row Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSave != nil {
		return s.FailSave
	}
	s.rows[slot{row.InstanceID, row.Key}] = row
	return nil
}

// Row returns the stored row for (instance, key).
func (s *MemoryStore) Row(instance uint32, key int32) (Row, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[slot{instance, key}]
	return row, ok
}
