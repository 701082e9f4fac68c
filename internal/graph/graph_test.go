package graph

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fetchSync(t *testing.T, src PropertySource, id NodeID) (*PropertySet, error) {
	t.Helper()
	type result struct {
		set *PropertySet
		err error
	}
	done := make(chan result, 1)
	src.GetProperties(id,
		func(set *PropertySet) { done <- result{set: set} },
		func(err error) { done <- result{err: err} },
	)
	select {
	case r := <-done:
		return r.set, r.err
	case <-time.After(5 * time.Second):
		t.Fatal("property callback never fired")
		return nil, nil
	}
}

func TestMemoryStore_AddRootAndGetNode(t *testing.T) {
	store := NewMemoryStore()
	store.AddRoot(&Node{ID: 1, Name: "Model", Children: []NodeID{2}})
	store.AddNode(&Node{ID: 2, Name: "Wall"})

	root, err := store.Root()
	if err != nil {
		t.Fatalf("Root returned error: %v", err)
	}
	if root != 1 {
		t.Errorf("root = %d, want 1", root)
	}

	node, err := store.GetNode(2)
	if err != nil {
		t.Fatalf("GetNode(2) returned error: %v", err)
	}
	if node.Name != "Wall" {
		t.Errorf("Name = %q, want Wall", node.Name)
	}
	if store.Len() != 2 {
		t.Errorf("Len = %d, want 2", store.Len())
	}
}

func TestMemoryStore_NoRoot(t *testing.T) {
	store := NewMemoryStore()
	store.AddNode(&Node{ID: 4})
	_, err := store.Root()
	assert.ErrorIs(t, err, ErrNoRoot)
}

func TestMemoryStore_GetNodeNotFound(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.GetNode(99)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.ListChildren(99)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "", store.DisplayName(99))
}

func TestMemoryStore_Link(t *testing.T) {
	store := NewMemoryStore()
	store.AddRoot(&Node{ID: 0})
	store.AddNode(&Node{ID: 1})
	store.AddNode(&Node{ID: 2})
	require.NoError(t, store.Link(0, 2))
	require.NoError(t, store.Link(0, 1))
	assert.ErrorIs(t, store.Link(7, 1), ErrNotFound)

	children, err := store.ListChildren(0)
	require.NoError(t, err)
	assert.Equal(t, []NodeID{2, 1}, children)
	assert.True(t, store.Contains(2))
	assert.False(t, store.Contains(7))
}

func TestMemoryStore_GetProperties(t *testing.T) {
	store := NewMemoryStore()
	store.AddRoot(&Node{ID: 1})
	require.NoError(t, store.SetProperties(1, &PropertySet{
		ExternalID: "ext-1",
		Properties: []Property{{Category: "Dimensions", Name: "Width", Value: 1.5, Units: "m"}},
	}))

	set, err := fetchSync(t, store, 1)
	require.NoError(t, err)
	assert.Equal(t, "ext-1", set.ExternalID)
	require.Len(t, set.Properties, 1)
	assert.Equal(t, 1.5, set.Properties[0].Value)
}

func TestMemoryStore_GetPropertiesFailures(t *testing.T) {
	store := NewMemoryStore()
	store.AddRoot(&Node{ID: 1})

	_, err := fetchSync(t, store, 42)
	assert.ErrorIs(t, err, ErrNotFound)

	boom := errors.New("viewer error")
	store.SetFailure(1, boom)
	_, err = fetchSync(t, store, 1)
	assert.ErrorIs(t, err, boom)

	store.SetFailure(1, nil)
	set, err := fetchSync(t, store, 1)
	require.NoError(t, err)
	assert.Nil(t, set)
}

func TestMemoryStore_ModelName(t *testing.T) {
	store := NewMemoryStore()
	store.SetModelName("Tower A")
	assert.Equal(t, "Tower A", store.ModelName())
}
