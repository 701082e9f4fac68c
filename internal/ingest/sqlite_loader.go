package ingest

import (
	"fmt"

	"github.com/agentic-research/scenex/internal/graph"
)

// StreamSQLite walks the scene database at dbPath in depth-first pre-order,
// calling fn once per node with its properties loaded. Only one node's
// properties are alive at a time.
func StreamSQLite(dbPath string, fn func(model string, n SceneNode) error) error {
	g, err := graph.OpenSQLiteGraph(dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = g.Close() }() // safe to ignore

	root, err := g.Root()
	if err != nil {
		return fmt.Errorf("stream %s: %w", dbPath, err)
	}
	model := g.ModelName()

	type frame struct {
		id     graph.NodeID
		parent *graph.NodeID
	}
	stack := []frame{{id: root}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		props, err := g.ReadProperties(f.id)
		if err != nil {
			return fmt.Errorf("stream %s: %w", dbPath, err)
		}
		if props.ExternalID == "" && len(props.Properties) == 0 {
			props = nil
		}
		if err := fn(model, SceneNode{ID: f.id, Parent: f.parent, Name: g.DisplayName(f.id), Props: props}); err != nil {
			return err
		}

		children, err := g.ListChildren(f.id)
		if err != nil {
			return fmt.Errorf("stream %s: %w", dbPath, err)
		}
		parent := f.id
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, frame{id: children[i], parent: &parent})
		}
	}
	return nil
}
