package store

import (
	"context"
	"sync"

	"github.com/Adda-Baaj/bazaar-khobor/internal/domain"
)

// Memory is a process-local Store, used for dry runs and tests.
type Memory struct {
	mu      sync.RWMutex
	records map[string]domain.Record
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string]domain.Record)}
}

func (m *Memory) Exists(_ context.Context, url string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.records[url]
	return ok, nil
}

func (m *Memory) Upsert(_ context.Context, rec domain.Record) error {
	if err := validate(rec); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.records[rec.URL]; ok {
		rec = merge(prev, rec)
	}
	m.records[rec.URL] = rec
	return nil
}

// Get returns the stored record for url.
func (m *Memory) Get(url string) (domain.Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[url]
	return rec, ok
}

// Len is the number of stored records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func (m *Memory) Close() error { return nil }
