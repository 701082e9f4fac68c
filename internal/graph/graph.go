package graph

import (
	"errors"
	"fmt"
	"sync"

	"github.com/RoaringBitmap/roaring"
)

var (
	ErrNotFound = errors.New("node not found")
	ErrNoRoot   = errors.New("scene has no root node")
)

// NodeID identifies a node within one scene. IDs are dense non-negative
// integers assigned by the scene producer.
type NodeID uint32

// Property is one raw attribute of a node. Value is a string, int64,
// float64, bool or nil.
type Property struct {
	Category string
	Name     string
	Value    any
	Units    string
}

// PropertySet is what the property callback delivers for a node.
type PropertySet struct {
	ExternalID string
	Properties []Property
}

// RawRecord is a node whose property fetch produced at least one property.
type RawRecord struct {
	NodeID      NodeID
	DisplayName string
	ExternalID  string
	Properties  []Property
}

// Graph is the read-only tree view of a scene.
type Graph interface {
	Root() (NodeID, error)
	ListChildren(id NodeID) ([]NodeID, error)
	DisplayName(id NodeID) string
}

// PropertySource resolves a node's properties asynchronously. Exactly one of
// the callbacks is expected to fire, possibly on another goroutine and
// possibly never.
type PropertySource interface {
	GetProperties(id NodeID, onSuccess func(*PropertySet), onFailure func(error))
}

// Scene is a loaded model: its tree, its properties and its name.
type Scene interface {
	Graph
	PropertySource
	ModelName() string
}

// Node is the in-memory form of a scene node.
type Node struct {
	ID       NodeID
	Name     string
	Children []NodeID
	Props    *PropertySet
}

// -----------------------------------------------------------------------------
// In-memory scene
// -----------------------------------------------------------------------------

// MemoryStore is a Scene held entirely in memory. Property callbacks run on
// their own goroutine, the same way a viewer delivers them.
type MemoryStore struct {
	mu       sync.RWMutex
	name     string
	nodes    map[NodeID]*Node
	root     NodeID
	hasRoot  bool
	index    *roaring.Bitmap // every NodeID present
	failures map[NodeID]error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes:    make(map[NodeID]*Node),
		index:    roaring.New(),
		failures: make(map[NodeID]error),
	}
}

func (s *MemoryStore) SetModelName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
}

func (s *MemoryStore) ModelName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

// AddRoot adds n and makes it the scene root. A later AddRoot replaces the root.
func (s *MemoryStore) AddRoot(n *Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(n)
	s.root = n.ID
	s.hasRoot = true
}

// AddNode adds or replaces n. Children are taken from n.Children.
func (s *MemoryStore) AddNode(n *Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(n)
}

func (s *MemoryStore) put(n *Node) {
	s.nodes[n.ID] = n
	s.index.Add(uint32(n.ID))
}

// Link appends child to parent's children.
func (s *MemoryStore) Link(parent, child NodeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.nodes[parent]
	if !ok {
		return fmt.Errorf("link %d -> %d: parent: %w", parent, child, ErrNotFound)
	}
	p.Children = append(p.Children, child)
	return nil
}

// SetProperties replaces the property set delivered for id.
func (s *MemoryStore) SetProperties(id NodeID, props *PropertySet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return fmt.Errorf("set properties %d: %w", id, ErrNotFound)
	}
	n.Props = props
	return nil
}

// SetFailure makes every property request for id end in the failure
// callback with err. A nil err clears it.
func (s *MemoryStore) SetFailure(id NodeID, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, id)
		return
	}
	s.failures[id] = err
}

// Len returns the number of nodes in the store.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int(s.index.GetCardinality())
}

// Contains reports whether id has been added.
func (s *MemoryStore) Contains(id NodeID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Contains(uint32(id))
}

func (s *MemoryStore) GetNode(id NodeID) (*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return n, nil
}

func (s *MemoryStore) Root() (NodeID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.hasRoot {
		return 0, ErrNoRoot
	}
	return s.root, nil
}

func (s *MemoryStore) ListChildren(id NodeID) ([]NodeID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return nil, fmt.Errorf("list children of %d: %w", id, ErrNotFound)
	}
	return n.Children, nil
}

func (s *MemoryStore) DisplayName(id NodeID) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n, ok := s.nodes[id]; ok {
		return n.Name
	}
	return ""
}

func (s *MemoryStore) GetProperties(id NodeID, onSuccess func(*PropertySet), onFailure func(error)) {
	s.mu.RLock()
	n, ok := s.nodes[id]
	failure := s.failures[id]
	var props *PropertySet
	if ok {
		props = n.Props
	}
	s.mu.RUnlock()

	go func() {
		switch {
		case !ok:
			onFailure(fmt.Errorf("properties of %d: %w", id, ErrNotFound))
		case failure != nil:
			onFailure(failure)
		default:
			onSuccess(props)
		}
	}()
}
