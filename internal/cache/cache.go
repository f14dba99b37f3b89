package cache

import (
	"sort"
	"sync"

	"github.com/tidewatch/battlecore/pkg/core"
)

// SnapshotCache holds the latest published snapshot of every session so
// readers never touch a session's live state.
type SnapshotCache struct {
	mu        sync.RWMutex
	snapshots map[string]core.Snapshot
}

// NewSnapshotCache creates an empty SnapshotCache
func NewSnapshotCache() *SnapshotCache {
	return &SnapshotCache{
		snapshots: make(map[string]core.Snapshot),
	}
}

// Get returns the latest snapshot for a session
func (c *SnapshotCache) Get(sessionID string) (core.Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.snapshots[sessionID]
	return s, ok
}

// Set stores the snapshot for its session
func (c *SnapshotCache) Set(s core.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshots[s.SessionID] = s
}

// Delete removes a session
func (c *SnapshotCache) Delete(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.snapshots, sessionID)
}

// Len returns the number of cached sessions
func (c *SnapshotCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.snapshots)
}

// All returns every cached snapshot ordered by session id
func (c *SnapshotCache) All() []core.Snapshot {
	c.mu.RLock()
	out := make([]core.Snapshot, 0, len(c.snapshots))
	for _, s := range c.snapshots {
		out = append(out, s)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out
}

// Reset clears the cache
func (c *SnapshotCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshots = make(map[string]core.Snapshot)
}
