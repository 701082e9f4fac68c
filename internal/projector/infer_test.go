package projector

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/scenex/api"
	"github.com/agentic-research/scenex/internal/graph"
)

func rec(id graph.NodeID, props ...graph.Property) *graph.RawRecord {
	return &graph.RawRecord{NodeID: id, DisplayName: fmt.Sprintf("n%d", id), Properties: props}
}

func prop(cat, name string, v any) graph.Property {
	return graph.Property{Category: cat, Name: name, Value: v}
}

// frequencySample builds records where property P<k> appears on the first
// 100-k*5 records, so P0 is the most common.
func frequencySample() []*graph.RawRecord {
	var out []*graph.RawRecord
	for i := 0; i < 100; i++ {
		var props []graph.Property
		for k := 0; k < 15; k++ {
			if i < 100-k*5 {
				props = append(props, prop("Data", fmt.Sprintf("P%d", k), i))
			}
		}
		out = append(out, rec(graph.NodeID(i), props...))
	}
	return out
}

func TestInfer_TopN(t *testing.T) {
	s := (&Inferrer{MaxColumns: 4}).Infer(frequencySample())

	assert.Equal(t, api.ModeRich, s.Mode)
	assert.Equal(t, []string{"Data_P0", "Data_P1", "Data_P2", "Data_P3"}, s.ColumnNames())
	assert.Equal(t, 100, s.Columns[0].Count)
	assert.Equal(t, 85, s.Columns[3].Count)
	assert.Equal(t, 100, s.SampleSize)
}

func TestInfer_StableAcrossOrder(t *testing.T) {
	sample := frequencySample()
	want := (&Inferrer{MaxColumns: 7}).Infer(sample).ColumnNames()

	r := rand.New(rand.NewSource(1))
	for i := 0; i < 5; i++ {
		shuffled := append([]*graph.RawRecord(nil), sample...)
		r.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		assert.Equal(t, want, (&Inferrer{MaxColumns: 7}).Infer(shuffled).ColumnNames())
	}
}

func TestInfer_TiesBrokenByKey(t *testing.T) {
	sample := []*graph.RawRecord{
		rec(1, prop("B", "x", 1), prop("A", "z", 1), prop("A", "y", 1)),
	}
	s := (&Inferrer{MaxColumns: 2}).Infer(sample)
	assert.Equal(t, []string{"A_y", "A_z"}, s.ColumnNames())
}

func TestInfer_CountsEveryOccurrence(t *testing.T) {
	sample := []*graph.RawRecord{
		rec(1, prop("C", "rep", 1), prop("C", "rep", 2), prop("C", "rep", 3)),
		rec(2, prop("C", "once", 1)),
		rec(3, prop("C", "once", 1)),
	}
	s := (&Inferrer{MaxColumns: 1}).Infer(sample)
	assert.Equal(t, []string{"C_rep"}, s.ColumnNames())
}

func TestInfer_CollidingNamesSkipped(t *testing.T) {
	sample := []*graph.RawRecord{
		rec(1, prop("Size", "a b", 1), prop("Size", "a-b", 1), prop("Size", "c", 1)),
		rec(2, prop("Size", "a b", 1)),
	}
	s := (&Inferrer{MaxColumns: 2}).Infer(sample)
	assert.Equal(t, []string{"Size_a_b", "Size_c"}, s.ColumnNames())
}

func TestInfer_TopCategories(t *testing.T) {
	var sample []*graph.RawRecord
	for c := 0; c < 12; c++ {
		var props []graph.Property
		for n := 0; n <= c; n++ {
			props = append(props, prop(fmt.Sprintf("Cat%02d", c), fmt.Sprintf("p%d", n), n))
		}
		sample = append(sample, rec(graph.NodeID(c), props...))
	}
	s := (&Inferrer{MaxColumns: 100}).Infer(sample)
	require.Len(t, s.TopCategories, 10)
	assert.Equal(t, "Cat11", s.TopCategories[0])
	assert.Equal(t, "Cat02", s.TopCategories[9])
}

func TestInfer_EmptyCategoryIsGeneral(t *testing.T) {
	s := (&Inferrer{MaxColumns: 5}).Infer([]*graph.RawRecord{rec(1, prop("", "Mark", "A"))})
	assert.Equal(t, []string{"General_Mark"}, s.ColumnNames())
	assert.Equal(t, []string{DefaultCategory}, s.TopCategories)
}

func TestInfer_EmptySample(t *testing.T) {
	s := (&Inferrer{MaxColumns: 5}).Infer(nil)
	assert.Empty(t, s.Columns)
	assert.Empty(t, s.TopCategories)
}

func TestKeyColumn(t *testing.T) {
	assert.Equal(t, "Identity_Data_Type_Mark", KeyColumn("Identity Data", "Type Mark"))
	assert.Equal(t, "Dims_Width__mm_", KeyColumn("Dims", "Width (mm)"))
	assert.Equal(t, "A_b_c", KeyColumn("A", "b.c"))
}
