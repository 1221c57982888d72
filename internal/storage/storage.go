// Package storage is the persistence collaborator for received transactions.
package storage

import (
	"bytes"
	"errors"
	"sort"
	"sync"
)

var (
	ErrEmptyKey     = errors.New("storage: empty key")
	ErrBatchApplied = errors.New("storage: batch already applied")
)

// Backend stores opaque values by key.
type Backend interface {
	NewBatch() Batch
	Get(key []byte) ([]byte, bool)
}

// Batch collects writes that are applied together. A batch is applied at most once.
type Batch interface {
	Put(key, value []byte) error
	Delete(key []byte) error
	// Apply commits every operation. A durable apply must not return before
	// the writes would survive a crash.
	Apply(durable bool) error
}

// Memory is an in-memory Backend. Batches are applied atomically under one lock.
type Memory struct {
	mu             sync.RWMutex
	store          map[string][]byte
	applies        int
	durableApplies int
}

func NewMemory() *Memory {
	return &Memory{
		store: make(map[string][]byte),
	}
}

func (m *Memory) NewBatch() Batch {
	return &memoryBatch{backend: m}
}

func (m *Memory) Get(key []byte) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.store[string(key)]
	if !ok {
		return nil, false
	}
	return bytes.Clone(v), true
}

// Keys lists stored keys with the given prefix, sorted.
func (m *Memory) Keys(prefix []byte) [][]byte {
	m.mu.RLock()
	keys := make([]string, 0, len(m.store))
	for k := range m.store {
		if bytes.HasPrefix([]byte(k), prefix) {
			keys = append(keys, k)
		}
	}
	m.mu.RUnlock()
	sort.Strings(keys)
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = []byte(k)
	}
	return out
}

// Applies returns the number of applied batches and how many of them were durable.
func (m *Memory) Applies() (total, durable int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.applies, m.durableApplies
}

type op struct {
	key    string
	value  []byte
	delete bool
}

type memoryBatch struct {
	backend *Memory
	ops     []op
	applied bool
}

func (b *memoryBatch) Put(key, value []byte) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}
	if b.applied {
		return ErrBatchApplied
	}
	b.ops = append(b.ops, op{key: string(key), value: bytes.Clone(value)})
	return nil
}

func (b *memoryBatch) Delete(key []byte) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}
	if b.applied {
		return ErrBatchApplied
	}
	b.ops = append(b.ops, op{key: string(key), delete: true})
	return nil
}

func (b *memoryBatch) Apply(durable bool) error {
	if b.applied {
		return ErrBatchApplied
	}
	b.applied = true
	m := b.backend
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range b.ops {
		if o.delete {
			delete(m.store, o.key)
			continue
		}
		m.store[o.key] = o.value
	}
	m.applies++
	if durable {
		m.durableApplies++
	}
	return nil
}
