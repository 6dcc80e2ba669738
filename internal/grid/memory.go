// Package grid provides an in-process row store for server-side run-monitor grids.
package grid

import (
	"sync"

	"go-laue-run-monitor/internal/model"
)

// Memory holds the canonical row array of one grid. Readers may call it concurrently
// with the single writer.
type Memory struct {
	mu       sync.RWMutex
	rows     []model.Row
	version  uint64
	repaints map[string]uint64
}

func NewMemory() *Memory {
	return &Memory{repaints: make(map[string]uint64)}
}

// Rows returns a copy of the current rows.
func (m *Memory) Rows() []model.Row {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Row, len(m.rows))
	copy(out, m.rows)
	return out
}

// SetRows replaces the row array.
func (m *Memory) SetRows(rows []model.Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = rows
	m.version++
}

// RefreshColumns records a repaint request for each column.
func (m *Memory) RefreshColumns(columns ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, col := range columns {
		m.repaints[col]++
	}
}

// Version increases on every SetRows.
func (m *Memory) Version() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.version
}

// Repaints returns how many times column was asked to repaint.
func (m *Memory) Repaints(column string) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.repaints[column]
}
