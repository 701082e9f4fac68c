package ingest

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/ohler55/ojg/oj"
	_ "modernc.org/sqlite"

	"github.com/agentic-research/scenex/internal/graph"
)

// SQLiteWriter implements IngestionTarget by writing a scene database.
// Inserts are batched into transactions of batchSize nodes.
type SQLiteWriter struct {
	db        *sql.DB
	tx        *sql.Tx
	stmtNode  *sql.Stmt
	stmtProp  *sql.Stmt
	batchSize int
	count     int
	positions map[graph.NodeID]int // next child position per parent
	mu        sync.Mutex
}

// NewSQLiteWriter creates a new writer and initializes the schema.
func NewSQLiteWriter(dbPath string) (*SQLiteWriter, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}

	// Performance tuning for bulk insert
	if _, err := db.Exec("PRAGMA synchronous = OFF"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode = MEMORY"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(graph.SceneSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	w := &SQLiteWriter{
		db:        db,
		batchSize: 10000,
		positions: make(map[graph.NodeID]int),
	}
	if err := w.beginTx(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return w, nil
}

func (w *SQLiteWriter) beginTx() error {
	var err error
	w.tx, err = w.db.Begin()
	if err != nil {
		return err
	}
	w.stmtNode, err = w.tx.Prepare(`
		INSERT OR REPLACE INTO nodes (id, parent_id, position, name, external_id)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	w.stmtProp, err = w.tx.Prepare(`
		INSERT OR REPLACE INTO properties (node_id, seq, category, name, value, units)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	return err
}

func (w *SQLiteWriter) ensureTx() error {
	if w.tx != nil {
		return nil
	}
	return w.beginTx()
}

func (w *SQLiteWriter) commitTx() error {
	if w.tx == nil {
		return nil
	}
	if w.stmtNode != nil {
		_ = w.stmtNode.Close()
	}
	if w.stmtProp != nil {
		_ = w.stmtProp.Close()
	}
	err := w.tx.Commit()
	w.tx, w.stmtNode, w.stmtProp = nil, nil, nil
	return err
}

func (w *SQLiteWriter) SetModelName(name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.ensureTx(); err != nil {
		return err
	}
	_, err := w.tx.Exec(`INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`, graph.MetaModelName, name)
	return err
}

// AddSceneNode writes a node and its properties.
func (w *SQLiteWriter) AddSceneNode(n SceneNode) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.ensureTx(); err != nil {
		return err
	}

	var parent any
	position := 0
	if n.Parent != nil {
		parent = int64(*n.Parent)
		position = w.positions[*n.Parent]
		w.positions[*n.Parent] = position + 1
	}
	var ext any
	if n.Props != nil && n.Props.ExternalID != "" {
		ext = n.Props.ExternalID
	}
	if _, err := w.stmtNode.Exec(int64(n.ID), parent, position, n.Name, ext); err != nil {
		return fmt.Errorf("insert node %d: %w", n.ID, err)
	}

	if n.Props != nil {
		for seq, p := range n.Props.Properties {
			var value, units any
			if p.Value != nil {
				value = oj.JSON(p.Value)
			}
			if p.Units != "" {
				units = p.Units
			}
			if _, err := w.stmtProp.Exec(int64(n.ID), seq, p.Category, p.Name, value, units); err != nil {
				return fmt.Errorf("insert property %q of %d: %w", p.Name, n.ID, err)
			}
		}
	}

	w.count++
	if w.count%w.batchSize == 0 {
		return w.commitTx()
	}
	return nil
}

// Finish commits any pending batch.
func (w *SQLiteWriter) Finish() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.commitTx()
}

func (w *SQLiteWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.commitTx(); err != nil {
		_ = w.db.Close()
		return err
	}
	return w.db.Close()
}
