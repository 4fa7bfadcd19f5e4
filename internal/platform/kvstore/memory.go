package kvstore

import (
	"context"
	"sync"
)

// Memory is an in-process store with a byte quota over all keys and values.
type Memory struct {
	mu    sync.RWMutex
	data  map[string][]byte
	used  int64
	quota int64
}

func NewMemory(quotaBytes int64) *Memory {
	return &Memory{data: map[string][]byte{}, quota: quotaBytes}
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (m *Memory) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	next := m.used + entrySize(key, value)
	if old, ok := m.data[key]; ok {
		next -= entrySize(key, old)
	}
	if m.quota > 0 && next > m.quota {
		return ErrQuotaExceeded
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	m.data[key] = cp
	m.used = next
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.data[key]; ok {
		m.used -= entrySize(key, old)
		delete(m.data, key)
	}
	return nil
}

// Used reports the bytes currently counted against the quota.
func (m *Memory) Used() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.used
}

func (m *Memory) Close() error { return nil }

func entrySize(key string, value []byte) int64 {
	return int64(len(key) + len(value))
}
