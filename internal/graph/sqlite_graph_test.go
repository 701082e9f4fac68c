package graph

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

type testNode struct {
	id       int64
	parent   any // nil or int64
	position int
	name     string
	ext      any
}

type testProp struct {
	node     int64
	seq      int
	category string
	name     string
	value    any // JSON text or nil
	units    any
}

func createSceneDB(t *testing.T, model string, nodes []testNode, props []testProp) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "scene.db")
	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	_, err = db.Exec(SceneSchema)
	require.NoError(t, err)
	if model != "" {
		_, err = db.Exec(`INSERT INTO meta (key, value) VALUES (?, ?)`, MetaModelName, model)
		require.NoError(t, err)
	}
	for _, n := range nodes {
		_, err = db.Exec(`INSERT INTO nodes (id, parent_id, position, name, external_id) VALUES (?, ?, ?, ?, ?)`,
			n.id, n.parent, n.position, n.name, n.ext)
		require.NoError(t, err)
	}
	for _, p := range props {
		_, err = db.Exec(`INSERT INTO properties (node_id, seq, category, name, value, units) VALUES (?, ?, ?, ?, ?, ?)`,
			p.node, p.seq, p.category, p.name, p.value, p.units)
		require.NoError(t, err)
	}
	return dbPath
}

func TestSQLiteGraph_Tree(t *testing.T) {
	dbPath := createSceneDB(t, "Bridge", []testNode{
		{id: 10, parent: nil, name: "Bridge"},
		{id: 12, parent: int64(10), position: 1, name: "Deck"},
		{id: 11, parent: int64(10), position: 0, name: "Pier"},
		{id: 13, parent: int64(11), position: 0, name: "Footing"},
	}, nil)

	g, err := OpenSQLiteGraph(dbPath)
	require.NoError(t, err)
	defer func() { _ = g.Close() }()

	assert.Equal(t, "Bridge", g.ModelName())
	root, err := g.Root()
	require.NoError(t, err)
	assert.Equal(t, NodeID(10), root)

	children, err := g.ListChildren(10)
	require.NoError(t, err)
	assert.Equal(t, []NodeID{11, 12}, children, "children follow position order")
	assert.Equal(t, "Footing", g.DisplayName(13))
	assert.Equal(t, 4, g.Len())

	leaf, err := g.ListChildren(13)
	require.NoError(t, err)
	assert.Empty(t, leaf)

	_, err = g.ListChildren(99)
	assert.ErrorIs(t, err, ErrNotFound)

	ids, err := EnumerateFromRoot(context.Background(), g)
	require.NoError(t, err)
	assert.Equal(t, []NodeID{10, 11, 13, 12}, ids)
}

func TestSQLiteGraph_Properties(t *testing.T) {
	dbPath := createSceneDB(t, "", []testNode{
		{id: 1, name: "Root"},
		{id: 2, parent: int64(1), name: "Beam", ext: "abc-2"},
	}, []testProp{
		{node: 2, seq: 0, category: "Identity", name: "Mark", value: `"B-12"`},
		{node: 2, seq: 1, category: "Dimensions", name: "Length", value: `4.25`, units: "m"},
		{node: 2, seq: 2, category: "Dimensions", name: "Count", value: `3`},
		{node: 2, seq: 3, category: "Other", name: "Structural", value: `true`},
		{node: 2, seq: 4, category: "", name: "Comment", value: nil},
	})

	g, err := OpenSQLiteGraph(dbPath)
	require.NoError(t, err)
	defer func() { _ = g.Close() }()

	set, err := fetchSync(t, g, 2)
	require.NoError(t, err)
	assert.Equal(t, "abc-2", set.ExternalID)
	require.Len(t, set.Properties, 5)
	assert.Equal(t, "B-12", set.Properties[0].Value)
	assert.Equal(t, 4.25, set.Properties[1].Value)
	assert.Equal(t, "m", set.Properties[1].Units)
	assert.Equal(t, int64(3), set.Properties[2].Value)
	assert.Equal(t, true, set.Properties[3].Value)
	assert.Nil(t, set.Properties[4].Value)

	empty, err := fetchSync(t, g, 1)
	require.NoError(t, err)
	assert.Empty(t, empty.Properties)

	_, err = fetchSync(t, g, 77)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteGraph_NoRoot(t *testing.T) {
	dbPath := createSceneDB(t, "", nil, nil)
	g, err := OpenSQLiteGraph(dbPath)
	require.NoError(t, err)
	defer func() { _ = g.Close() }()

	_, err = g.Root()
	assert.ErrorIs(t, err, ErrNoRoot)
}

func TestOpenSQLiteGraph_Missing(t *testing.T) {
	_, err := OpenSQLiteGraph(filepath.Join(t.TempDir(), "absent.db"))
	assert.Error(t, err)
}
