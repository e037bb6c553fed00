package signals

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mkryl/sigflow/pkg/models"
)

// MemoryStore is an in-process Store used when no database is configured
// and throughout the test suite. It keeps at most capacity signals,
// evicting the oldest on overflow.
type MemoryStore struct {
	mu       sync.RWMutex
	rows     []models.Signal
	nextID   int64
	capacity int
}

// NewMemoryStore creates an in-memory store bounded to capacity entries
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = 10_000
	}
	return &MemoryStore{
		nextID:   1,
		capacity: capacity,
	}
}

// Append stores a copy of the signal and returns its assigned id
func (m *MemoryStore) Append(ctx context.Context, sig *models.Signal) (int64, error) {
	if err := sig.Validate(); err != nil {
		return 0, fmt.Errorf("refusing to store invalid signal: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *sig
	stored.ID = m.nextID
	m.nextID++

	m.rows = append(m.rows, stored)
	if len(m.rows) > m.capacity {
		m.rows = m.rows[len(m.rows)-m.capacity:]
	}

	return stored.ID, nil
}

// Query returns matching signals newest first. Rows share a created-at
// timestamp in insertion order, so walking the slice backwards yields the
// required ordering directly.
func (m *MemoryStore) Query(ctx context.Context, f Filter) ([]models.Signal, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Signal, 0, limit)
	for i := len(m.rows) - 1; i >= 0 && len(out) < limit; i-- {
		row := m.rows[i]
		if f.Symbol != "" && row.Symbol != f.Symbol {
			continue
		}
		if !f.Since.IsZero() && row.CreatedAt.Before(f.Since) {
			continue
		}
		out = append(out, row)
	}

	return out, nil
}

// Prune removes signals created before olderThan
func (m *MemoryStore) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.rows[:0]
	var removed int64
	for _, row := range m.rows {
		if row.CreatedAt.Before(olderThan) {
			removed++
			continue
		}
		kept = append(kept, row)
	}
	m.rows = kept

	return removed, nil
}
