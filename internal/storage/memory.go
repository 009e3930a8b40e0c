package storage

import (
	"context"
	"sync"

	"github.com/OldStager01/cloudpulse/pkg/models"
)

// MemoryTable keeps rows in memory. A nil row slice means the table has not
// been created yet.
type MemoryTable[T any] struct {
	mu   sync.RWMutex
	rows []T
}

func NewMemoryTable[T any](rows ...T) *MemoryTable[T] {
	t := &MemoryTable[T]{}
	if rows != nil {
		t.rows = append([]T{}, rows...)
	}
	return t
}

func (t *MemoryTable[T]) ReadAll(ctx context.Context) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.rows == nil {
		return nil, ErrTableNotFound
	}
	return append([]T{}, t.rows...), nil
}

func (t *MemoryTable[T]) Append(ctx context.Context, rows ...T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.rows == nil {
		t.rows = []T{}
	}
	t.rows = append(t.rows, rows...)
	return nil
}

func (t *MemoryTable[T]) AtomicReplace(ctx context.Context, rows []T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rows = append([]T{}, rows...)
	return nil
}

func (t *MemoryTable[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// NewMemoryStore returns a Store backed by empty in-memory tables.
func NewMemoryStore() *Store {
	return &Store{
		Hourly: NewMemoryTable[models.HourlyCostRecord](),
		Daily:  NewMemoryTable[models.DailyCostRecord](),
	}
}
