// Package storage is the durable key-value capability session state is
// persisted through. Backends only store strings; Prefs layers the typed
// get/put helpers on top.
package storage

import (
	"context"
	"errors"
	"sync"
)

var ErrMalformedValue = errors.New("malformed stored value")

// Batch is applied atomically: all puts and deletes land, or none do.
type Batch struct {
	Puts    map[string]string
	Deletes []string
}

func (b Batch) Empty() bool {
	return len(b.Puts) == 0 && len(b.Deletes) == 0
}

type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Apply(ctx context.Context, batch Batch) error
}

// MemoryKV keeps values in process memory.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]string)}
}

func (m *MemoryKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.data[key]
	return value, ok, nil
}

func (m *MemoryKV) Apply(_ context.Context, batch Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, value := range batch.Puts {
		m.data[key] = value
	}
	for _, key := range batch.Deletes {
		delete(m.data, key)
	}
	return nil
}
