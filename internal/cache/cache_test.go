package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidewatch/battlecore/pkg/core"
)

func TestSnapshotCache_NewSnapshotCache(t *testing.T) {
	c := NewSnapshotCache()
	require.NotNil(t, c)
	assert.NotNil(t, c.snapshots)
	assert.Equal(t, 0, c.Len())
}

func TestSnapshotCache_SetAndGet(t *testing.T) {
	c := NewSnapshotCache()
	c.Set(core.Snapshot{SessionID: "s1", Phase: core.PhaseBattle, Turn: 4})

	got, ok := c.Get("s1")
	require.True(t, ok)
	assert.Equal(t, core.PhaseBattle, got.Phase)
	assert.Equal(t, 4, got.Turn)

	c.Set(core.Snapshot{SessionID: "s1", Phase: core.PhaseEnded, Turn: 5})
	got, _ = c.Get("s1")
	assert.Equal(t, core.PhaseEnded, got.Phase)
	assert.Equal(t, 1, c.Len())
}

func TestSnapshotCache_Get_NotFound(t *testing.T) {
	c := NewSnapshotCache()
	_, ok := c.Get("missing")
	assert.False(t, ok)
}

func TestSnapshotCache_DeleteAndReset(t *testing.T) {
	c := NewSnapshotCache()
	c.Set(core.Snapshot{SessionID: "a"})
	c.Set(core.Snapshot{SessionID: "b"})

	c.Delete("a")
	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())

	c.Reset()
	assert.Equal(t, 0, c.Len())
}

func TestSnapshotCache_AllIsSorted(t *testing.T) {
	c := NewSnapshotCache()
	for _, id := range []string{"charlie", "alpha", "bravo"} {
		c.Set(core.Snapshot{SessionID: id})
	}
	all := c.All()
	require.Len(t, all, 3)
	assert.Equal(t, "alpha", all[0].SessionID)
	assert.Equal(t, "bravo", all[1].SessionID)
	assert.Equal(t, "charlie", all[2].SessionID)
}

func TestSnapshotCache_Concurrent(t *testing.T) {
	c := NewSnapshotCache()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			c.Set(core.Snapshot{SessionID: fmt.Sprintf("s%d", n), Turn: n})
		}(i)
		go func(n int) {
			defer wg.Done()
			c.Get(fmt.Sprintf("s%d", n))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, c.Len())
}
