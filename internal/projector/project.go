package projector

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/agentic-research/scenex/api"
	"github.com/agentic-research/scenex/internal/graph"
)

// Record is one projected row. Fields holds every schema column, empty when
// the node lacks the property.
type Record struct {
	NodeID          graph.NodeID
	Name            string
	ExternalID      string
	PrimaryCategory string
	Fields          map[string]string
}

// Value returns the cell for column, identity columns included.
func (r *Record) Value(column string) any {
	switch column {
	case ColumnID:
		return int64(r.NodeID)
	case ColumnName:
		return r.Name
	case ColumnExternalID:
		return r.ExternalID
	case ColumnPrimaryCategory:
		return r.PrimaryCategory
	}
	return r.Fields[column]
}

// Project maps raw onto s.
func Project(raw *graph.RawRecord, s *Schema) *Record {
	rec := &Record{
		NodeID:     raw.NodeID,
		Name:       Truncate(raw.DisplayName),
		ExternalID: Truncate(raw.ExternalID),
		Fields:     make(map[string]string, len(s.Columns)),
	}
	for _, c := range s.Columns {
		rec.Fields[c.Name] = ""
	}
	if s.Mode == api.ModeMinimal {
		projectMinimal(raw, s, rec)
	} else {
		projectRich(raw, s, rec)
	}
	return rec
}

func projectRich(raw *graph.RawRecord, s *Schema, rec *Record) {
	for _, p := range raw.Properties {
		cat := categoryOf(p.Category)
		if col, ok := s.byKey[Key{Category: cat, Name: p.Name}]; ok {
			rec.Fields[col] = Truncate(FormatValue(p.Value))
		}
		if rec.PrimaryCategory == "" && s.topSet[cat] {
			rec.PrimaryCategory = cat
		}
	}
	if rec.PrimaryCategory == "" {
		rec.PrimaryCategory = DefaultCategory
	}
}

func projectMinimal(raw *graph.RawRecord, s *Schema, rec *Record) {
	props := raw.Properties
	if len(props) > s.maxProps {
		props = props[:s.maxProps]
	}
	for _, p := range props {
		for _, r := range s.rules {
			if !r.Match(p.Name) {
				continue
			}
			if rec.Fields[r.Column] == "" {
				rec.Fields[r.Column] = Truncate(FormatValue(p.Value))
			}
			break
		}
	}
	switch {
	case rec.Fields["Category"] != "":
		rec.PrimaryCategory = rec.Fields["Category"]
	case len(raw.Properties) > 0:
		rec.PrimaryCategory = categoryOf(raw.Properties[0].Category)
	default:
		rec.PrimaryCategory = DefaultCategory
	}
}

// FormatValue renders a property value the way it is displayed.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}
