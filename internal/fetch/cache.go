package fetch

import (
	"context"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/agentic-research/scenex/internal/graph"
)

// Fetcher resolves one node; nil means the node has no usable properties.
type Fetcher interface {
	Fetch(ctx context.Context, id graph.NodeID) *graph.RawRecord
}

// Cache records results while it is recording and replays each of them
// once. The schema sample goes through it first, so the export pass does
// not request sampled nodes a second time. Absent results are recorded
// too.
type Cache struct {
	next      Fetcher
	entries   *lru.Cache[graph.NodeID, *graph.RawRecord]
	recording atomic.Bool
}

// NewCache wraps next, holding at most size recorded results.
func NewCache(next Fetcher, size int) (*Cache, error) {
	entries, err := lru.New[graph.NodeID, *graph.RawRecord](max(1, size))
	if err != nil {
		return nil, err
	}
	c := &Cache{next: next, entries: entries}
	c.recording.Store(true)
	return c, nil
}

func (c *Cache) Fetch(ctx context.Context, id graph.NodeID) *graph.RawRecord {
	if rec, ok := c.entries.Peek(id); ok {
		c.entries.Remove(id)
		return rec
	}
	rec := c.next.Fetch(ctx, id)
	// A result cut short by cancellation is not worth replaying.
	if c.recording.Load() && ctx.Err() == nil {
		c.entries.Add(id, rec)
	}
	return rec
}

// Stop ends recording. Results already recorded are still replayed.
func (c *Cache) Stop() { c.recording.Store(false) }

// Len returns the number of results waiting to be replayed.
func (c *Cache) Len() int { return c.entries.Len() }
