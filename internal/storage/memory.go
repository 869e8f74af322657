package storage

import (
	"context"
	"sync"
	"time"
)

type memoryRecord struct {
	value     []byte
	expiresAt time.Time
	expires   bool
}

// Memory is an in-process Store. Records vanish when the process exits.
type Memory struct {
	mu      sync.Mutex
	records map[string]memoryRecord
	now     func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]memoryRecord), now: time.Now}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	if !ok {
		return nil, ErrNotFound
	}
	if rec.expires && !m.now().Before(rec.expiresAt) {
		delete(m.records, key)
		return nil, ErrNotFound
	}
	return append([]byte(nil), rec.value...), nil
}

func (m *Memory) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := memoryRecord{value: append([]byte(nil), value...)}
	rec.expiresAt, rec.expires = expiry(m.now(), ttl)
	m.records[key] = rec
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, key)
	return nil
}

// CleanExpired drops expired records.
func (m *Memory) CleanExpired(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	var n int64
	for k, rec := range m.records {
		if rec.expires && !now.Before(rec.expiresAt) {
			delete(m.records, k)
			n++
		}
	}
	return n, nil
}
