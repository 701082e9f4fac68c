package graph

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/ohler55/ojg/oj"
	_ "modernc.org/sqlite"
)

// SceneSchema is the DDL of a scene database. Property values are stored as
// JSON text so strings, numbers, booleans and null survive the round trip.
const SceneSchema = `
CREATE TABLE IF NOT EXISTS meta (
	key TEXT PRIMARY KEY,
	value TEXT
);
CREATE TABLE IF NOT EXISTS nodes (
	id INTEGER PRIMARY KEY,
	parent_id INTEGER,
	position INTEGER NOT NULL DEFAULT 0,
	name TEXT NOT NULL DEFAULT '',
	external_id TEXT
);
CREATE INDEX IF NOT EXISTS idx_nodes_parent ON nodes(parent_id, position);

CREATE TABLE IF NOT EXISTS properties (
	node_id INTEGER NOT NULL,
	seq INTEGER NOT NULL,
	category TEXT NOT NULL DEFAULT '',
	name TEXT NOT NULL,
	value TEXT,
	units TEXT,
	PRIMARY KEY (node_id, seq)
) WITHOUT ROWID;
`

// MetaModelName is the meta key holding the scene's display name.
const MetaModelName = "model_name"

// SQLiteGraph is a Scene backed by a scene database opened read-only.
//
// The tree (parent links and names) is scanned once on first access and
// kept in memory; properties are read per node with primary-key lookups
// from the goroutine that serves the callback.
type SQLiteGraph struct {
	db     *sql.DB
	dbPath string

	scanOnce sync.Once
	scanErr  error // sticky: if the scan fails, all tree lookups fail
	children map[NodeID][]NodeID
	names    map[NodeID]string
	root     NodeID
	hasRoot  bool
	model    string
}

// OpenSQLiteGraph opens dbPath read-only. A missing file is an error.
func OpenSQLiteGraph(dbPath string) (*SQLiteGraph, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(4)
	if err := db.Ping(); err != nil {
		_ = db.Close() // ignore error
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	return &SQLiteGraph{db: db, dbPath: dbPath}, nil
}

func (g *SQLiteGraph) scan() error {
	g.scanOnce.Do(func() {
		g.scanErr = g.loadTree()
	})
	return g.scanErr
}

func (g *SQLiteGraph) loadTree() error {
	g.children = make(map[NodeID][]NodeID)
	g.names = make(map[NodeID]string)

	var model sql.NullString
	err := g.db.QueryRow(`SELECT value FROM meta WHERE key = ?`, MetaModelName).Scan(&model)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("read scene meta: %w", err)
	}
	g.model = model.String

	// NULL parents sort first, so the first root seen is the lowest-positioned one.
	rows, err := g.db.Query(`SELECT id, parent_id, name FROM nodes ORDER BY parent_id, position, id`)
	if err != nil {
		return fmt.Errorf("scan nodes: %w", err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	for rows.Next() {
		var (
			id     int64
			parent sql.NullInt64
			name   string
		)
		if err := rows.Scan(&id, &parent, &name); err != nil {
			return fmt.Errorf("scan node row: %w", err)
		}
		nid := NodeID(id)
		g.names[nid] = name
		if !parent.Valid {
			if !g.hasRoot {
				g.root = nid
				g.hasRoot = true
			}
			continue
		}
		p := NodeID(parent.Int64)
		g.children[p] = append(g.children[p], nid)
	}
	return rows.Err()
}

func (g *SQLiteGraph) ModelName() string {
	if err := g.scan(); err != nil {
		return ""
	}
	return g.model
}

func (g *SQLiteGraph) Root() (NodeID, error) {
	if err := g.scan(); err != nil {
		return 0, err
	}
	if !g.hasRoot {
		return 0, ErrNoRoot
	}
	return g.root, nil
}

func (g *SQLiteGraph) ListChildren(id NodeID) ([]NodeID, error) {
	if err := g.scan(); err != nil {
		return nil, err
	}
	if _, ok := g.names[id]; !ok {
		return nil, fmt.Errorf("list children of %d: %w", id, ErrNotFound)
	}
	return g.children[id], nil
}

func (g *SQLiteGraph) DisplayName(id NodeID) string {
	if err := g.scan(); err != nil {
		return ""
	}
	return g.names[id]
}

// Len returns the number of nodes in the database.
func (g *SQLiteGraph) Len() int {
	if err := g.scan(); err != nil {
		return 0
	}
	return len(g.names)
}

func (g *SQLiteGraph) GetProperties(id NodeID, onSuccess func(*PropertySet), onFailure func(error)) {
	go func() {
		set, err := g.ReadProperties(id)
		if err != nil {
			onFailure(err)
			return
		}
		onSuccess(set)
	}()
}

// ReadProperties loads id's property set synchronously.
func (g *SQLiteGraph) ReadProperties(id NodeID) (*PropertySet, error) {
	var ext sql.NullString
	err := g.db.QueryRow(`SELECT external_id FROM nodes WHERE id = ?`, int64(id)).Scan(&ext)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("properties of %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("properties of %d: %w", id, err)
	}

	rows, err := g.db.Query(`SELECT category, name, value, units FROM properties WHERE node_id = ? ORDER BY seq`, int64(id))
	if err != nil {
		return nil, fmt.Errorf("properties of %d: %w", id, err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	set := &PropertySet{ExternalID: ext.String}
	for rows.Next() {
		var (
			p     Property
			value sql.NullString
			units sql.NullString
		)
		if err := rows.Scan(&p.Category, &p.Name, &value, &units); err != nil {
			return nil, fmt.Errorf("properties of %d: %w", id, err)
		}
		if value.Valid {
			v, err := oj.ParseString(value.String)
			if err != nil {
				return nil, fmt.Errorf("property %q of %d: bad value: %w", p.Name, id, err)
			}
			p.Value = v
		}
		p.Units = units.String
		set.Properties = append(set.Properties, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("properties of %d: %w", id, err)
	}
	return set, nil
}

func (g *SQLiteGraph) Close() error {
	return g.db.Close()
}
