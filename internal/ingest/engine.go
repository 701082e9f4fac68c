package ingest

import (
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/agentic-research/scenex/internal/graph"
)

// SceneFile is a scene opened from disk.
type SceneFile interface {
	graph.Scene
	Close() error
}

// Engine copies scene sources into an IngestionTarget.
type Engine struct {
	Target IngestionTarget
	logger *zap.Logger
}

func NewEngine(target IngestionTarget, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		Target: target,
		logger: logger.With(zap.String("component", "ingest")),
	}
}

// Ingest reads the scene at path, dispatching on its extension, and
// finishes the target.
func (e *Engine) Ingest(path string) error {
	start := time.Now()
	var (
		nodes int
		err   error
	)
	switch ext := filepath.Ext(path); ext {
	case ".json":
		nodes, err = e.ingestJSON(path)
	case ".db":
		nodes, err = e.ingestSQLite(path)
	default:
		return fmt.Errorf("ingest %s: unsupported scene format %q", path, ext)
	}
	if err != nil {
		return fmt.Errorf("ingest %s: %w", path, err)
	}
	e.logger.Info("scene ingested",
		zap.String("path", path),
		zap.Int("nodes", nodes),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (e *Engine) ingestJSON(path string) (int, error) {
	counter := &countingTarget{IngestionTarget: e.Target}
	store, err := LoadJSONFile(path)
	if err != nil {
		return 0, err
	}
	// Replay the in-memory tree so the target sees parents before children.
	if err := counter.SetModelName(store.ModelName()); err != nil {
		return 0, err
	}
	root, err := store.Root()
	if err != nil {
		return 0, err
	}
	if err := replay(store, root, nil, counter); err != nil {
		return counter.n, err
	}
	return counter.n, counter.Finish()
}

func replay(store *graph.MemoryStore, root graph.NodeID, parent *graph.NodeID, t IngestionTarget) error {
	type frame struct {
		id     graph.NodeID
		parent *graph.NodeID
	}
	stack := []frame{{id: root, parent: parent}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n, err := store.GetNode(f.id)
		if err != nil {
			return err
		}
		if err := t.AddSceneNode(SceneNode{ID: n.ID, Parent: f.parent, Name: n.Name, Props: n.Props}); err != nil {
			return err
		}
		id := n.ID
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{id: n.Children[i], parent: &id})
		}
	}
	return nil
}

func (e *Engine) ingestSQLite(path string) (int, error) {
	nodes := 0
	named := false
	err := StreamSQLite(path, func(model string, n SceneNode) error {
		if !named {
			if err := e.Target.SetModelName(model); err != nil {
				return err
			}
			named = true
		}
		nodes++
		return e.Target.AddSceneNode(n)
	})
	if err != nil {
		return nodes, err
	}
	return nodes, e.Target.Finish()
}

type countingTarget struct {
	IngestionTarget
	n int
}

func (c *countingTarget) AddSceneNode(n SceneNode) error {
	c.n++
	return c.IngestionTarget.AddSceneNode(n)
}

// memoryScene adds a no-op Close to an in-memory scene.
type memoryScene struct {
	*graph.MemoryStore
}

func (memoryScene) Close() error { return nil }

// Open loads the scene at path for export. JSON scenes are read into
// memory; scene databases are queried in place.
func Open(path string) (SceneFile, error) {
	switch ext := filepath.Ext(path); ext {
	case ".json":
		store, err := LoadJSONFile(path)
		if err != nil {
			return nil, fmt.Errorf("open scene %s: %w", path, err)
		}
		return memoryScene{store}, nil
	case ".db":
		g, err := graph.OpenSQLiteGraph(path)
		if err != nil {
			return nil, fmt.Errorf("open scene %s: %w", path, err)
		}
		return g, nil
	default:
		return nil, fmt.Errorf("open scene %s: unsupported scene format %q", path, ext)
	}
}
