package ingest

import "github.com/agentic-research/scenex/internal/graph"

// SceneNode is one node as read from a scene source, in document order.
type SceneNode struct {
	ID     graph.NodeID
	Parent *graph.NodeID // nil for the root
	Name   string
	Props  *graph.PropertySet
}

// IngestionTarget receives a scene node by node. Parents are not
// guaranteed to arrive before their children; Finish resolves the tree.
type IngestionTarget interface {
	SetModelName(name string) error
	AddSceneNode(n SceneNode) error
	Finish() error
}
