package ingest

import (
	"fmt"

	"github.com/agentic-research/scenex/internal/graph"
)

// MemoryTarget ingests into a graph.MemoryStore.
type MemoryTarget struct {
	Store *graph.MemoryStore
	links [][2]graph.NodeID // parent, child in arrival order
}

func NewMemoryTarget() *MemoryTarget {
	return &MemoryTarget{Store: graph.NewMemoryStore()}
}

func (t *MemoryTarget) SetModelName(name string) error {
	t.Store.SetModelName(name)
	return nil
}

func (t *MemoryTarget) AddSceneNode(n SceneNode) error {
	node := &graph.Node{ID: n.ID, Name: n.Name, Props: n.Props}
	if n.Parent == nil {
		t.Store.AddRoot(node)
		return nil
	}
	t.Store.AddNode(node)
	t.links = append(t.links, [2]graph.NodeID{*n.Parent, n.ID})
	return nil
}

func (t *MemoryTarget) Finish() error {
	for _, l := range t.links {
		if err := t.Store.Link(l[0], l[1]); err != nil {
			return fmt.Errorf("node %d: %w", l[1], err)
		}
	}
	t.links = nil
	return nil
}
