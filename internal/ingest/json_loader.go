package ingest

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"

	"github.com/agentic-research/scenex/internal/graph"
)

// ErrBadScene reports a scene document that cannot form a single tree.
var ErrBadScene = errors.New("malformed scene")

var (
	nodesPath = jp.MustParseString("$.nodes[*]")
	propsPath = jp.MustParseString("$.properties[*]")
	namePath  = jp.C("name")
	rootPath  = jp.C("root")
)

// ParseScene turns a decoded scene document into its model name and nodes.
//
// The document looks like:
//
//	{"name": "Tower", "root": 1, "nodes": [
//	  {"id": 1, "name": "Tower"},
//	  {"id": 2, "parent": 1, "name": "Wall", "externalId": "w-2",
//	   "properties": [{"category": "Dimensions", "name": "Height", "value": 3.2, "units": "m"}]}
//	]}
//
// "root" is optional; without it the single node lacking a parent is the root.
func ParseScene(doc any) (string, []SceneNode, error) {
	model, _ := namePath.First(doc).(string)

	var declared *graph.NodeID
	if r := rootPath.First(doc); r != nil {
		id, err := toNodeID(r)
		if err != nil {
			return "", nil, fmt.Errorf("%w: root: %v", ErrBadScene, err)
		}
		declared = &id
	}

	raw := nodesPath.Get(doc)
	nodes := make([]SceneNode, 0, len(raw))
	seen := make(map[graph.NodeID]bool, len(raw))
	var roots []graph.NodeID
	for i, r := range raw {
		obj, ok := r.(map[string]any)
		if !ok {
			return "", nil, fmt.Errorf("%w: nodes[%d] is not an object", ErrBadScene, i)
		}
		n, err := parseNode(obj)
		if err != nil {
			return "", nil, fmt.Errorf("%w: nodes[%d]: %v", ErrBadScene, i, err)
		}
		if seen[n.ID] {
			return "", nil, fmt.Errorf("%w: duplicate node id %d", ErrBadScene, n.ID)
		}
		seen[n.ID] = true
		if n.Parent == nil {
			roots = append(roots, n.ID)
		}
		nodes = append(nodes, n)
	}

	switch {
	case len(roots) == 0:
		return "", nil, fmt.Errorf("%w: %w", ErrBadScene, graph.ErrNoRoot)
	case len(roots) > 1:
		return "", nil, fmt.Errorf("%w: %d nodes without a parent", ErrBadScene, len(roots))
	case declared != nil && *declared != roots[0]:
		return "", nil, fmt.Errorf("%w: root %d is not the parentless node %d", ErrBadScene, *declared, roots[0])
	}
	for _, n := range nodes {
		if n.Parent != nil && !seen[*n.Parent] {
			return "", nil, fmt.Errorf("%w: node %d has unknown parent %d", ErrBadScene, n.ID, *n.Parent)
		}
	}
	return model, nodes, nil
}

func parseNode(obj map[string]any) (SceneNode, error) {
	id, err := toNodeID(obj["id"])
	if err != nil {
		return SceneNode{}, fmt.Errorf("id: %w", err)
	}
	n := SceneNode{ID: id}
	n.Name, _ = obj["name"].(string)
	if p, ok := obj["parent"]; ok && p != nil {
		pid, err := toNodeID(p)
		if err != nil {
			return SceneNode{}, fmt.Errorf("parent: %w", err)
		}
		n.Parent = &pid
	}

	ext, _ := obj["externalId"].(string)
	rawProps := propsPath.Get(obj)
	if ext == "" && len(rawProps) == 0 {
		return n, nil
	}
	set := &graph.PropertySet{ExternalID: ext}
	for _, rp := range rawProps {
		pm, ok := rp.(map[string]any)
		if !ok {
			continue
		}
		p := graph.Property{Value: scalar(pm["value"])}
		p.Category, _ = pm["category"].(string)
		p.Name, _ = pm["name"].(string)
		p.Units, _ = pm["units"].(string)
		set.Properties = append(set.Properties, p)
	}
	n.Props = set
	return n, nil
}

func toNodeID(v any) (graph.NodeID, error) {
	switch x := v.(type) {
	case int64:
		if x < 0 || x > math.MaxUint32 {
			return 0, fmt.Errorf("%d out of range", x)
		}
		return graph.NodeID(x), nil
	case float64:
		if x < 0 || x > math.MaxUint32 || x != math.Trunc(x) {
			return 0, fmt.Errorf("%v is not a node id", x)
		}
		return graph.NodeID(x), nil
	case nil:
		return 0, errors.New("missing")
	}
	return 0, fmt.Errorf("%v (%T) is not a node id", v, v)
}

// scalar keeps primitive values and flattens anything nested to its JSON text.
func scalar(v any) any {
	switch v.(type) {
	case nil, string, int64, float64, bool:
		return v
	}
	return oj.JSON(v, &oj.Options{Sort: true})
}

// ReadScene decodes a scene document from r and feeds it to target.
func ReadScene(r io.Reader, target IngestionTarget) error {
	doc, err := oj.Load(r)
	if err != nil {
		return fmt.Errorf("parse scene json: %w", err)
	}
	model, nodes, err := ParseScene(doc)
	if err != nil {
		return err
	}
	if err := target.SetModelName(model); err != nil {
		return err
	}
	for _, n := range nodes {
		if err := target.AddSceneNode(n); err != nil {
			return err
		}
	}
	return target.Finish()
}

// LoadJSON reads a scene document into memory.
func LoadJSON(r io.Reader) (*graph.MemoryStore, error) {
	t := NewMemoryTarget()
	if err := ReadScene(r, t); err != nil {
		return nil, err
	}
	return t.Store, nil
}

// LoadJSONFile reads the scene document at path into memory.
func LoadJSONFile(path string) (*graph.MemoryStore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }() // safe to ignore
	return LoadJSON(f)
}
