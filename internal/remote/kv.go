// Package remote implements the quota-constrained remote mirror: a small
// key/value view over an S3-compatible object store, the chunked push/pull
// engine on top of it, and the debounced reaction to remote change
// notifications.
package remote

import (
	"context"
	"sync"
)

// KV is the remote store surface the mirror needs: batched string items
// keyed by name. Implementations are expected to be eventually consistent;
// the mirror never relies on read-after-write across devices.
type KV interface {
	// Get returns the values for the requested keys. Missing keys are
	// simply absent from the result, not an error.
	Get(ctx context.Context, keys []string) (map[string]string, error)

	// Set writes all items.
	Set(ctx context.Context, items map[string]string) error

	// Remove deletes the given keys. Missing keys are ignored.
	Remove(ctx context.Context, keys []string) error
}

// MemoryKV is an in-process KV used in tests and when the daemon runs
// without a configured remote endpoint.
type MemoryKV struct {
	mu    sync.RWMutex
	items map[string]string
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{items: map[string]string{}}
}

func (m *MemoryKV) Get(ctx context.Context, keys []string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := m.items[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (m *MemoryKV) Set(ctx context.Context, items map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k, v := range items {
		m.items[k] = v
	}
	return nil
}

func (m *MemoryKV) Remove(ctx context.Context, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, k := range keys {
		delete(m.items, k)
	}
	return nil
}

// Len reports the number of stored items.
func (m *MemoryKV) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Keys returns a snapshot of all stored keys.
func (m *MemoryKV) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.items))
	for k := range m.items {
		out = append(out, k)
	}
	return out
}
