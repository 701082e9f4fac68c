package fetch

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/scenex/internal/graph"
)

type countingFetcher struct {
	mu    sync.Mutex
	calls map[graph.NodeID]int
}

func (f *countingFetcher) Fetch(_ context.Context, id graph.NodeID) *graph.RawRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[graph.NodeID]int)
	}
	f.calls[id]++
	if id%2 == 0 {
		return nil
	}
	return &graph.RawRecord{NodeID: id}
}

func TestCache_ReplaysOnce(t *testing.T) {
	next := &countingFetcher{}
	c, err := NewCache(next, 10)
	require.NoError(t, err)
	ctx := context.Background()

	assert.NotNil(t, c.Fetch(ctx, 1))
	assert.Nil(t, c.Fetch(ctx, 2))
	assert.Equal(t, 2, c.Len())
	c.Stop()

	rec := c.Fetch(ctx, 1)
	require.NotNil(t, rec)
	assert.Equal(t, graph.NodeID(1), rec.NodeID)
	assert.Nil(t, c.Fetch(ctx, 2))
	assert.Equal(t, 1, next.calls[1], "served from the cache")
	assert.Equal(t, 1, next.calls[2], "absent results are cached too")
	assert.Zero(t, c.Len())

	c.Fetch(ctx, 1)
	assert.Equal(t, 2, next.calls[1], "each result is replayed once")
	assert.Zero(t, c.Len(), "nothing recorded after Stop")
}

func TestCache_BoundedAndCancelled(t *testing.T) {
	next := &countingFetcher{}
	c, err := NewCache(next, 2)
	require.NoError(t, err)

	for id := graph.NodeID(1); id <= 5; id++ {
		c.Fetch(context.Background(), id)
	}
	assert.Equal(t, 2, c.Len())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c2, err := NewCache(next, 2)
	require.NoError(t, err)
	c2.Fetch(ctx, 7)
	assert.Zero(t, c2.Len())
}
