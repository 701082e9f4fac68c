package export

import (
	"sort"

	"github.com/agentic-research/scenex/internal/projector"
)

// Partition is one bounded slice of rows, written as one sheet.
type Partition struct {
	Index   int      // 1-based
	Columns []string // data columns, identity columns excluded
	Records []*projector.Record
}

// Partitioner buffers records and hands out full partitions of exactly
// maxRows records; Close flushes the remainder.
type Partitioner struct {
	maxRows int
	columns []string
	flush   func(Partition) error
	buf     []*projector.Record
	written int
	rows    int
}

func NewPartitioner(maxRows int, columns []string, flush func(Partition) error) *Partitioner {
	if maxRows <= 0 {
		maxRows = 1
	}
	return &Partitioner{maxRows: maxRows, columns: columns, flush: flush}
}

func (p *Partitioner) Add(records ...*projector.Record) error {
	for _, r := range records {
		p.buf = append(p.buf, r)
		p.rows++
		if len(p.buf) == p.maxRows {
			if err := p.emit(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close flushes buffered records, if any.
func (p *Partitioner) Close() error {
	if len(p.buf) == 0 {
		return nil
	}
	return p.emit()
}

func (p *Partitioner) emit() error {
	p.written++
	part := Partition{Index: p.written, Columns: p.columns, Records: p.buf}
	p.buf = nil
	return p.flush(part)
}

// Partitions returns the number of partitions flushed so far.
func (p *Partitioner) Partitions() int { return p.written }

// Rows returns the number of records added.
func (p *Partitioner) Rows() int { return p.rows }

// Split cuts records into partitions of at most maxRows.
func Split(records []*projector.Record, columns []string, maxRows int) []Partition {
	var parts []Partition
	p := NewPartitioner(maxRows, columns, func(part Partition) error {
		parts = append(parts, part)
		return nil
	})
	_ = p.Add(records...) // flush never fails
	_ = p.Close()
	return parts
}

// OrderColumns returns the sheet column order: identity columns, then the
// data columns sorted lexicographically.
func OrderColumns(data []string) []string {
	sorted := append([]string(nil), data...)
	sort.Strings(sorted)
	return append(append([]string(nil), projector.IdentityColumns...), sorted...)
}
