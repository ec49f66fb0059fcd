package snapshot

import (
	"context"
	"fmt"
	"sync"

	"github.com/ignite/churn-radar/internal/domain"
)

// MemoryStore keeps the most recent snapshots in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	byID  map[string]domain.Snapshot
	order []string
	limit int
}

// NewMemoryStore keeps at most limit snapshots; older ones are evicted.
// A limit <= 0 means 16.
func NewMemoryStore(limit int) *MemoryStore {
	if limit <= 0 {
		limit = 16
	}
	return &MemoryStore{byID: make(map[string]domain.Snapshot), limit: limit}
}

func (m *MemoryStore) Put(_ context.Context, snap domain.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[snap.BatchID]; !ok {
		m.order = append(m.order, snap.BatchID)
	}
	m.byID[snap.BatchID] = snap

	for len(m.order) > m.limit {
		delete(m.byID, m.order[0])
		m.order = m.order[1:]
	}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, batchID string) (domain.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap, ok := m.byID[batchID]
	if !ok {
		return domain.Snapshot{}, fmt.Errorf("batch %s: %w", batchID, ErrNotFound)
	}
	return snap, nil
}

func (m *MemoryStore) Latest(_ context.Context) (domain.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.order) == 0 {
		return domain.Snapshot{}, ErrNotFound
	}
	return m.byID[m.order[len(m.order)-1]], nil
}
