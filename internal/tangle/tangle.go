// Package tangle is the ledger view consulted by the gossip workers.
package tangle

import (
	"bytes"
	"sync"

	"github.com/danmuck/tanglegossip/internal/protocol"
)

// Tangle answers the membership questions asked before requesting a transaction.
type Tangle interface {
	Contains(hash protocol.Hash) bool
	IsSolidEntryPoint(hash protocol.Hash) bool
}

// Memory is a thread-safe in-memory tangle.
type Memory struct {
	mu                sync.RWMutex
	transactions      map[protocol.Hash][]byte
	solidEntryPoints  map[protocol.Hash]struct{}
	milestones        map[uint32]protocol.Hash
	latestMilestone   uint32
	solidMilestone    uint32
	snapshotMilestone uint32
}

func NewMemory() *Memory {
	return &Memory{
		transactions:     make(map[protocol.Hash][]byte),
		solidEntryPoints: make(map[protocol.Hash]struct{}),
		milestones:       make(map[uint32]protocol.Hash),
	}
}

func (m *Memory) Contains(hash protocol.Hash) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.transactions[hash]
	return ok
}

func (m *Memory) IsSolidEntryPoint(hash protocol.Hash) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.solidEntryPoints[hash]
	return ok
}

// Insert stores tx under hash and reports whether it was new.
func (m *Memory) Insert(hash protocol.Hash, tx []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.transactions[hash]; ok {
		return false
	}
	m.transactions[hash] = bytes.Clone(tx)
	return true
}

func (m *Memory) Get(hash protocol.Hash) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tx, ok := m.transactions[hash]
	if !ok {
		return nil, false
	}
	return bytes.Clone(tx), true
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.transactions)
}

func (m *Memory) AddSolidEntryPoint(hash protocol.Hash) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.solidEntryPoints[hash] = struct{}{}
}

// SetMilestone records the milestone transaction for index and advances the
// latest index when index is newer.
func (m *Memory) SetMilestone(index uint32, hash protocol.Hash) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.milestones[index] = hash
	if index > m.latestMilestone {
		m.latestMilestone = index
	}
}

// Milestone resolves index to its transaction hash. Index 0 means the latest milestone.
func (m *Memory) Milestone(index uint32) (protocol.Hash, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if index == 0 {
		index = m.latestMilestone
	}
	h, ok := m.milestones[index]
	return h, ok
}

func (m *Memory) LatestMilestoneIndex() uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latestMilestone
}

func (m *Memory) SetSolidMilestoneIndex(index uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.solidMilestone = index
}

func (m *Memory) SolidMilestoneIndex() uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.solidMilestone
}

func (m *Memory) SetSnapshotMilestoneIndex(index uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshotMilestone = index
}

func (m *Memory) SnapshotMilestoneIndex() uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotMilestone
}
