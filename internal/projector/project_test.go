package projector

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentic-research/scenex/api"
	"github.com/agentic-research/scenex/internal/graph"
)

func TestProject_Rich(t *testing.T) {
	sample := []*graph.RawRecord{
		rec(1, prop("Dimensions", "Width", 1.5), prop("Identity", "Mark", "W1")),
		rec(2, prop("Dimensions", "Width", 2.0), prop("Other", "Note", "x")),
	}
	s := (&Inferrer{MaxColumns: 2}).Infer(sample)
	assert.Equal(t, []string{"Dimensions_Width", "Identity_Mark"}, s.ColumnNames())

	raw := &graph.RawRecord{
		NodeID:      9,
		DisplayName: "Door",
		ExternalID:  "ext-9",
		Properties: []graph.Property{
			prop("Unranked", "Thing", "ignored"),
			prop("Dimensions", "Width", 0.9),
			prop("Other", "Note", "not a column"),
		},
	}
	r := Project(raw, s)
	assert.Equal(t, graph.NodeID(9), r.NodeID)
	assert.Equal(t, "Door", r.Name)
	assert.Equal(t, "ext-9", r.ExternalID)
	assert.Equal(t, "Dimensions", r.PrimaryCategory, "first category among the top ten")
	assert.Equal(t, map[string]string{"Dimensions_Width": "0.9", "Identity_Mark": ""}, r.Fields)
	assert.LessOrEqual(t, len(r.Fields), 2)
}

func TestProject_RichPrimaryFallsBack(t *testing.T) {
	s := (&Inferrer{MaxColumns: 5}).Infer([]*graph.RawRecord{rec(1, prop("A", "x", 1))})
	r := Project(rec(2, prop("Z", "y", 1)), s)
	assert.Equal(t, DefaultCategory, r.PrimaryCategory)
	assert.Equal(t, "", r.Fields["A_x"])
}

func TestProject_Truncates(t *testing.T) {
	long := strings.Repeat("é", 300)
	s := (&Inferrer{MaxColumns: 5}).Infer([]*graph.RawRecord{rec(1, prop("A", "x", long))})
	raw := rec(1, prop("A", "x", long))
	raw.DisplayName = long
	r := Project(raw, s)
	assert.Equal(t, MaxCellLength, len([]rune(r.Fields["A_x"])))
	assert.Equal(t, MaxCellLength, len([]rune(r.Name)))
}

func TestProject_Minimal(t *testing.T) {
	s := MinimalSchema(DefaultRules(), 0, 100)
	assert.Equal(t, api.ModeMinimal, s.Mode)
	assert.Equal(t, []string{"Category", "Type", "Material", "Dimensions", "Code", "Description"}, s.ColumnNames())

	raw := rec(3,
		prop("Identity", "Type Name", "Basic Wall"),
		prop("Identity", "Family Type", "second type loses"),
		prop("Materials", "Structural MATERIAL", "Concrete"),
		prop("Identity", "Assembly Code", "B2010"),
		prop("Identity", "Category", "Walls"),
		prop("Identity", "Category Type", "first rule wins: category"),
		prop("Dimensions", "Overall Dimensions", "3x4"),
		prop("Other", "Comments", "unmatched"),
	)
	r := Project(raw, s)
	assert.Equal(t, map[string]string{
		"Category":    "Walls",
		"Type":        "Basic Wall",
		"Material":    "Concrete",
		"Dimensions":  "3x4",
		"Code":        "B2010",
		"Description": "",
	}, r.Fields)
	assert.Equal(t, "Walls", r.PrimaryCategory)
}

func TestProject_MinimalCaps(t *testing.T) {
	s := MinimalSchema(DefaultRules(), 2, 3)
	assert.Equal(t, []string{"Category", "Type", "Material"}, s.ColumnNames())

	raw := rec(1,
		prop("", "Width", 1),
		prop("", "Height", 2),
		prop("", "Type", "beyond the property cap"),
	)
	r := Project(raw, s)
	assert.Equal(t, "", r.Fields["Type"])
	assert.Len(t, r.Fields, 3)
	assert.Equal(t, DefaultCategory, r.PrimaryCategory)
}

func TestRules_Contains(t *testing.T) {
	m := Contains("Code", "keynote")
	assert.True(t, m("Assembly CODE"))
	assert.True(t, m("Keynote"))
	assert.False(t, m("Mark"))
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "", FormatValue(nil))
	assert.Equal(t, "abc", FormatValue("abc"))
	assert.Equal(t, "2.5", FormatValue(2.5))
	assert.Equal(t, "3", FormatValue(3.0))
	assert.Equal(t, "42", FormatValue(int64(42)))
	assert.Equal(t, "true", FormatValue(true))
	assert.Equal(t, "7", FormatValue(7))
}

func TestRecord_Value(t *testing.T) {
	r := &Record{NodeID: 4, Name: "n", ExternalID: "e", PrimaryCategory: "P", Fields: map[string]string{"A_x": "1"}}
	assert.Equal(t, int64(4), r.Value(ColumnID))
	assert.Equal(t, "n", r.Value(ColumnName))
	assert.Equal(t, "e", r.Value(ColumnExternalID))
	assert.Equal(t, "P", r.Value(ColumnPrimaryCategory))
	assert.Equal(t, "1", r.Value("A_x"))
}

func TestNest(t *testing.T) {
	raw := &graph.RawRecord{
		NodeID:      5,
		DisplayName: "Pipe",
		Properties: []graph.Property{
			{Category: "Dimensions", Name: "Diameter", Value: 0.2, Units: "m"},
			{Category: "Dimensions", Name: "Length", Value: int64(4)},
			{Name: "Tag", Value: "P-5"},
		},
	}
	obj := Nest(raw)
	assert.Equal(t, graph.NodeID(5), obj.DbID)
	assert.Nil(t, obj.ExternalID)
	assert.Len(t, obj.Properties, 2)
	assert.Equal(t, 0.2, obj.Properties["Dimensions"]["Diameter"].Value)
	assert.Equal(t, "m", *obj.Properties["Dimensions"]["Diameter"].Units)
	assert.Nil(t, obj.Properties["Dimensions"]["Length"].Units)
	assert.Equal(t, "P-5", obj.Properties[NestCategory]["Tag"].Value)
}
