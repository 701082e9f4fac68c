package export

import (
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/agentic-research/scenex/api"
	"github.com/agentic-research/scenex/internal/projector"
)

const (
	SummarySheet    = "Summary"
	CategoriesSheet = "Categories"
	defaultSheet    = "Sheet1"

	defaultColumnWidth = 22
)

var columnWidths = map[string]float64{
	projector.ColumnID:              12,
	projector.ColumnName:            35,
	projector.ColumnExternalID:      20,
	projector.ColumnPrimaryCategory: 25,
}

// DataSheetName names the sheet holding partition index.
func DataSheetName(index int) string {
	return fmt.Sprintf("Data_%d", index)
}

// XLSXWriter streams partitions into a workbook, one sheet per partition.
// The summary sheet is placed first and filled by Finish.
type XLSXWriter struct {
	file        *excelize.File
	headerStyle int
	maxBytes    int64
	partitions  int
	rows        int
	closed      bool
}

// NewXLSXWriter starts an empty workbook. maxBytes <= 0 disables the size
// guard.
func NewXLSXWriter(maxBytes int64) (*XLSXWriter, error) {
	f := excelize.NewFile()
	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"D9E1F2"}},
	})
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("create header style: %w", err)
	}
	if err := f.SetSheetName(defaultSheet, SummarySheet); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &XLSXWriter{file: f, headerStyle: style, maxBytes: maxBytes}, nil
}

// WritePartition appends p as sheet Data_<p.Index>.
func (w *XLSXWriter) WritePartition(p Partition) error {
	name := DataSheetName(p.Index)
	if _, err := w.file.NewSheet(name); err != nil {
		return fmt.Errorf("add sheet %s: %w", name, err)
	}
	sw, err := w.file.NewStreamWriter(name)
	if err != nil {
		return fmt.Errorf("stream sheet %s: %w", name, err)
	}

	cols := OrderColumns(p.Columns)
	for i, c := range cols {
		width, ok := columnWidths[c]
		if !ok {
			width = defaultColumnWidth
		}
		if err := sw.SetColWidth(i+1, i+1, width); err != nil {
			return err
		}
	}
	if err := sw.SetPanes(&excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return err
	}

	header := make([]any, len(cols))
	for i, c := range cols {
		header[i] = excelize.Cell{StyleID: w.headerStyle, Value: c}
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("write header of %s: %w", name, err)
	}

	for i, rec := range p.Records {
		row := make([]any, len(cols))
		for j, c := range cols {
			v := rec.Value(c)
			if s, ok := v.(string); ok && s == "" {
				continue
			}
			row[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("write row %d of %s: %w", i+2, name, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet %s: %w", name, err)
	}
	w.partitions++
	w.rows += len(p.Records)
	return nil
}

// Finish writes the summary (and, in rich mode, category) sheets and
// encodes the workbook. The writer is closed afterwards either way.
func (w *XLSXWriter) Finish(meta Metadata) (*Artifact, error) {
	defer func() { _ = w.Close() }()

	if w.partitions == 0 {
		return nil, ErrNoRecords
	}
	meta.TotalObjects = w.rows
	meta.Partitions = w.partitions

	if err := w.writeSummary(meta); err != nil {
		return nil, err
	}
	if meta.Mode == api.ModeRich && len(meta.Categories) > 0 {
		if err := w.writeCategories(meta.Categories); err != nil {
			return nil, err
		}
	}
	w.file.SetActiveSheet(0)

	buf, err := w.file.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("encode workbook: %w", err)
	}
	if err := checkSize(buf.Bytes(), w.maxBytes); err != nil {
		return nil, err
	}
	return &Artifact{
		Filename:    Filename(meta.ModelName, meta.TotalObjects, meta.ExportDate, api.FormatXLSX),
		ContentType: ContentTypeXLSX,
		Data:        buf.Bytes(),
		Metadata:    meta,
	}, nil
}

func (w *XLSXWriter) writeSummary(meta Metadata) error {
	samplePct := 0.0
	if meta.TotalNodes > 0 {
		samplePct = float64(meta.SampleSize) / float64(meta.TotalNodes) * 100
	}
	rows := [][]any{
		{"Export summary", ""},
		{"Model", meta.ModelName},
		{"Source", meta.Source},
		{"Export date", meta.ExportDate.UTC().Format("2006-01-02 15:04:05 MST")},
		{"Mode", string(meta.Mode)},
		{"Strategy", meta.Tier.Name},
		{"Total nodes", meta.TotalNodes},
		{"Processed nodes", meta.ProcessedNodes},
		{"Exported objects", meta.TotalObjects},
		{"Success rate (%)", meta.SuccessRatePercent},
		{"Processing time (s)", float64(meta.ProcessingTimeMs) / 1000},
		{"Throughput (nodes/s)", meta.Throughput},
		{"Data sheets", meta.Partitions},
		{"Max rows per sheet", meta.Tier.MaxRowsPerPartition},
		{"Property columns", meta.Columns},
		{"Top categories", meta.TopCategories},
		{"Batch size", meta.Tier.BatchSize},
		{"Sample size", meta.SampleSize},
		{"Sample (%)", samplePct},
		{"Max columns", meta.Tier.MaxColumns},
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := w.file.SetSheetRow(SummarySheet, cell, &r); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}
	if err := w.file.SetCellStyle(SummarySheet, "A1", fmt.Sprintf("A%d", len(rows)), w.headerStyle); err != nil {
		return err
	}
	if err := w.file.SetColWidth(SummarySheet, "A", "A", 28); err != nil {
		return err
	}
	return w.file.SetColWidth(SummarySheet, "B", "B", 40)
}

func (w *XLSXWriter) writeCategories(cats []CategoryCount) error {
	if _, err := w.file.NewSheet(CategoriesSheet); err != nil {
		return err
	}
	sorted := SortCategories(cats)
	header := []any{"Category", "Count", "Percent"}
	if err := w.file.SetSheetRow(CategoriesSheet, "A1", &header); err != nil {
		return err
	}
	if err := w.file.SetCellStyle(CategoriesSheet, "A1", "C1", w.headerStyle); err != nil {
		return err
	}
	for i, c := range sorted {
		row := []any{c.Category, c.Count, c.Percent}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := w.file.SetSheetRow(CategoriesSheet, cell, &row); err != nil {
			return fmt.Errorf("write categories: %w", err)
		}
	}
	return w.file.SetColWidth(CategoriesSheet, "A", "A", 30)
}

// Close releases the workbook's temporary files. It is safe to call twice.
func (w *XLSXWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.file.Close()
}

// SortCategories orders counts descending, ties by name.
func SortCategories(cats []CategoryCount) []CategoryCount {
	out := append([]CategoryCount(nil), cats...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// WriteXLSX encodes already partitioned records in one call.
func WriteXLSX(parts []Partition, meta Metadata, maxBytes int64) (*Artifact, error) {
	w, err := NewXLSXWriter(maxBytes)
	if err != nil {
		return nil, err
	}
	for _, p := range parts {
		if err := w.WritePartition(p); err != nil {
			_ = w.Close()
			return nil, err
		}
	}
	return w.Finish(meta)
}
