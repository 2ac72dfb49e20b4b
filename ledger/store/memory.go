// Package store provides in-process ledger.Store implementations.
package store

import (
	"context"
	"sync"

	"github.com/warp/mockbank/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps the snapshot and the journal in process memory.
type Memory struct {
	mu      sync.RWMutex
	snap    ledger.Snapshot
	journal map[ledger.AccountNumber][]ledger.Entry
	saves   int
}

func NewMemory() *Memory {
	return &Memory{
		snap:    ledger.EmptySnapshot(),
		journal: make(map[ledger.AccountNumber][]ledger.Entry),
	}
}

// Load returns a copy of the held snapshot.
func (m *Memory) Load(_ context.Context) (ledger.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap.Clone(), nil
}

// Save replaces the held snapshot.
func (m *Memory) Save(_ context.Context, snap ledger.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveLocked(snap)
	return nil
}

// SaveWithEntries replaces the snapshot and appends entries atomically.
func (m *Memory) SaveWithEntries(_ context.Context, snap ledger.Snapshot, entries []ledger.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.saveLocked(snap)
	for _, e := range entries {
		m.journal[e.AccountNumber] = append(m.journal[e.AccountNumber], e)
	}
	return nil
}

func (m *Memory) saveLocked(snap ledger.Snapshot) {
	m.snap = snap.Clone().Normalize()
	m.saves++
}

// Entries returns the account's entries, newest first.
func (m *Memory) Entries(_ context.Context, number ledger.AccountNumber, limit int) ([]ledger.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	src := m.journal[number]
	result := make([]ledger.Entry, 0, len(src))
	for i := len(src) - 1; i >= 0; i-- {
		if limit > 0 && len(result) == limit {
			break
		}
		result = append(result, src[i])
	}
	return result, nil
}

// Saves reports how many times the snapshot has been persisted.
func (m *Memory) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}
