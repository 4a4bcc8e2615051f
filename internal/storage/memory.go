package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrIndexOutOfRange is returned for row indices past the end of the table
var ErrIndexOutOfRange = errors.New("row index out of range")

// MemoryTable is an in-process table, lost on restart.
type MemoryTable struct {
	mu   sync.RWMutex
	rows [][]string
}

var _ TabularBackend = (*MemoryTable)(nil)

// NewMemoryTable creates a table seeded with copies of the given rows
func NewMemoryTable(rows ...[]string) *MemoryTable {
	t := &MemoryTable{}
	for _, r := range rows {
		t.rows = append(t.rows, cloneRow(r))
	}
	return t
}

func (t *MemoryTable) ListRows(_ context.Context) ([][]string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([][]string, 0, len(t.rows))
	for _, r := range t.rows {
		out = append(out, cloneRow(r))
	}
	return out, nil
}

func (t *MemoryTable) AppendRow(_ context.Context, row []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rows = append(t.rows, cloneRow(row))
	return nil
}

func (t *MemoryTable) UpdateRow(_ context.Context, index int, row []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if index < 0 || index >= len(t.rows) {
		return fmt.Errorf("update row %d: %w", index, ErrIndexOutOfRange)
	}
	t.rows[index] = cloneRow(row)
	return nil
}

func (t *MemoryTable) DeleteRow(_ context.Context, index int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if index < 0 || index >= len(t.rows) {
		return fmt.Errorf("delete row %d: %w", index, ErrIndexOutOfRange)
	}
	t.rows = append(t.rows[:index], t.rows[index+1:]...)
	return nil
}

// Len returns the number of data rows
func (t *MemoryTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

func cloneRow(r []string) []string {
	return append([]string(nil), r...)
}
