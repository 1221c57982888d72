package session

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Peer is one peer that completed a handshake.
type Peer struct {
	ID                     string    `json:"id"`
	Port                   uint16    `json:"port"`
	Version                int       `json:"version"`
	MinimumWeightMagnitude uint8     `json:"minimum_weight_magnitude"`
	HandshakeAt            time.Time `json:"handshake_at"`
}

// PeerTable stores handshaked peers by id.
type PeerTable struct {
	mu    sync.RWMutex
	items map[string]Peer
}

func NewPeerTable() *PeerTable {
	return &PeerTable{
		items: make(map[string]Peer),
	}
}

// Upsert stores p and reports whether the id was new.
func (t *PeerTable) Upsert(p Peer) bool {
	key := strings.TrimSpace(p.ID)
	if key == "" {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	_, existed := t.items[key]
	t.items[key] = p
	return !existed
}

// Remove reports whether the id was present.
func (t *PeerTable) Remove(id string) bool {
	key := strings.TrimSpace(id)
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.items[key]
	delete(t.items, key)
	return ok
}

func (t *PeerTable) Get(id string) (Peer, bool) {
	key := strings.TrimSpace(id)
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.items[key]
	return p, ok
}

func (t *PeerTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.items)
}

func (t *PeerTable) List() []Peer {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Peer, 0, len(t.items))
	for _, p := range t.items {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out
}

// IDs returns the sorted ids of all handshaked peers.
func (t *PeerTable) IDs() []string {
	list := t.List()
	out := make([]string, len(list))
	for i, p := range list {
		out[i] = p.ID
	}
	return out
}
