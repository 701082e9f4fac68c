package pipeline

import (
	"math"

	"go.uber.org/zap"

	"github.com/agentic-research/scenex/internal/export"
	"github.com/agentic-research/scenex/internal/graph"
	"github.com/agentic-research/scenex/internal/projector"
	"github.com/agentic-research/scenex/internal/telemetry"
)

// sink receives fetched records batch by batch and encodes the artifact.
type sink interface {
	consume(records []*graph.RawRecord) error
	finish(meta export.Metadata) (*export.Artifact, error)
	close()
}

type jsonSink struct {
	w *export.JSONWriter
}

func (s *jsonSink) consume(records []*graph.RawRecord) error {
	for _, r := range records {
		s.w.Add(projector.Nest(r))
	}
	return nil
}

func (s *jsonSink) finish(meta export.Metadata) (*export.Artifact, error) {
	return s.w.Finish(meta)
}

func (s *jsonSink) close() {}

// xlsxSink projects records and streams full partitions into the
// workbook, so at most one partition of rows is buffered.
type xlsxSink struct {
	schema *projector.Schema
	w      *export.XLSXWriter
	parts  *export.Partitioner
	counts map[string]int
}

func newXLSXSink(schema *projector.Schema, maxRows int, maxBytes int64, metrics *telemetry.Collector, logger *zap.Logger) (*xlsxSink, error) {
	w, err := export.NewXLSXWriter(maxBytes)
	if err != nil {
		return nil, err
	}
	s := &xlsxSink{schema: schema, w: w, counts: make(map[string]int)}
	s.parts = export.NewPartitioner(maxRows, schema.ColumnNames(), func(p export.Partition) error {
		if err := w.WritePartition(p); err != nil {
			return err
		}
		metrics.PartitionWritten()
		logger.Debug("partition written", zap.Int("index", p.Index), zap.Int("rows", len(p.Records)))
		return nil
	})
	return s, nil
}

func (s *xlsxSink) consume(records []*graph.RawRecord) error {
	for _, r := range records {
		rec := projector.Project(r, s.schema)
		s.counts[rec.PrimaryCategory]++
		if err := s.parts.Add(rec); err != nil {
			return err
		}
	}
	return nil
}

func (s *xlsxSink) finish(meta export.Metadata) (*export.Artifact, error) {
	if err := s.parts.Close(); err != nil {
		return nil, err
	}
	meta.SampleSize = s.schema.Sampled
	meta.Columns = len(s.schema.Columns)
	meta.TopCategories = len(s.schema.TopCategories)
	meta.Categories = distribution(s.counts, s.parts.Rows())
	return s.w.Finish(meta)
}

func (s *xlsxSink) close() { _ = s.w.Close() }

// distribution turns per-category counts into sorted percentages of total.
func distribution(counts map[string]int, total int) []export.CategoryCount {
	if total == 0 {
		return nil
	}
	out := make([]export.CategoryCount, 0, len(counts))
	for cat, n := range counts {
		pct := float64(n) / float64(total) * 100
		out = append(out, export.CategoryCount{
			Category: cat,
			Count:    n,
			Percent:  math.Round(pct*100) / 100,
		})
	}
	return export.SortCategories(out)
}
