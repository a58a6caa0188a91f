// Package kv provides the durable key-value mirror the application state is
// written through. Values are opaque JSON blobs stored under fixed keys.
package kv

import (
	"context"
	"sort"
	"sync"
)

// Store is the persistence port. Get returns (nil, nil) for an absent key.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Memory is an in-process Store, used by tests and as a fallback.
type Memory struct {
	mu     sync.RWMutex
	values map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{values: make(map[string][]byte)}
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (m *Memory) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.values[key] = append([]byte(nil), value...)
	m.mu.Unlock()
	return nil
}

// Keys returns the stored keys in lexical order.
func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
