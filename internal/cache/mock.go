package cache

import (
	"context"
	"sync"
	"time"
)

// MockCache is an in-memory PageCache for tests and for running without
// Redis.
type MockCache struct {
	mu   sync.RWMutex
	data map[string]mockEntry
}

type mockEntry struct {
	payload   []byte
	expiresAt time.Time
}

func NewMockCache() *MockCache {
	return &MockCache{data: make(map[string]mockEntry)}
}

func (m *MockCache) Close() error {
	return nil
}

func (m *MockCache) Get(ctx context.Context, key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.data[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.payload, true
}

func (m *MockCache) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = mockEntry{
		payload:   payload,
		expiresAt: time.Now().Add(ttl),
	}
}
