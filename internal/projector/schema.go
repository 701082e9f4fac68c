// Package projector turns raw property records into flat rows.
package projector

import (
	"regexp"
	"unicode/utf8"

	"github.com/agentic-research/scenex/api"
)

// Identity columns lead every row, in this order.
const (
	ColumnID              = "ID"
	ColumnName            = "Name"
	ColumnExternalID      = "ExternalId"
	ColumnPrimaryCategory = "PrimaryCategory"
)

// IdentityColumns is the fixed prefix of every tabular partition.
var IdentityColumns = []string{ColumnID, ColumnName, ColumnExternalID, ColumnPrimaryCategory}

const (
	// DefaultCategory stands in for properties without a category.
	DefaultCategory = "General"
	// MaxCellLength is the longest value a cell keeps.
	MaxCellLength = 255

	topCategoryCount = 10
)

// Key identifies a property across nodes.
type Key struct {
	Category string
	Name     string
}

func (k Key) String() string { return k.Category + "::" + k.Name }

// Column is one projected field.
type Column struct {
	Name  string
	Key   Key // zero in minimal mode
	Count int // occurrences in the sample
}

// Schema is the column set every record of a job is projected onto.
type Schema struct {
	Mode          api.Mode
	Columns       []Column
	TopCategories []string

	// SampleSize counts sampled records that carried properties; Sampled
	// counts the nodes requested for the sample.
	SampleSize int
	Sampled    int

	byKey    map[Key]string // rich: property key to column name
	topSet   map[string]bool
	rules    []Rule // minimal
	maxProps int
}

// ColumnNames returns the data column names in schema order.
func (s *Schema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

var nonWord = regexp.MustCompile(`\W`)

// KeyColumn derives a column name from a property key: category and name
// joined by "_", with every non-word character replaced by "_".
func KeyColumn(category, name string) string {
	return nonWord.ReplaceAllString(category+"_"+name, "_")
}

// Truncate cuts s to MaxCellLength runes.
func Truncate(s string) string {
	if utf8.RuneCountInString(s) <= MaxCellLength {
		return s
	}
	return string([]rune(s)[:MaxCellLength])
}

func categoryOf(c string) string {
	if c == "" {
		return DefaultCategory
	}
	return c
}
