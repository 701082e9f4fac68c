package projector

import (
	"sort"

	"github.com/agentic-research/scenex/api"
	"github.com/agentic-research/scenex/internal/graph"
)

// PropertyStats counts how often each property key and category occurs in a
// sample. Every occurrence counts, so a key repeated on one node counts twice.
type PropertyStats struct {
	Records    int
	Keys       map[Key]int
	Categories map[string]int
}

// AnalyzeProperties gathers occurrence counts over records.
func AnalyzeProperties(records []*graph.RawRecord) *PropertyStats {
	st := &PropertyStats{
		Records:    len(records),
		Keys:       make(map[Key]int),
		Categories: make(map[string]int),
	}
	for _, r := range records {
		for _, p := range r.Properties {
			cat := categoryOf(p.Category)
			st.Keys[Key{Category: cat, Name: p.Name}]++
			st.Categories[cat]++
		}
	}
	return st
}

// RankedKeys returns keys by descending count, ties broken by key text.
func (st *PropertyStats) RankedKeys() []Key {
	keys := make([]Key, 0, len(st.Keys))
	for k := range st.Keys {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ci, cj := st.Keys[keys[i]], st.Keys[keys[j]]
		if ci != cj {
			return ci > cj
		}
		return keys[i].String() < keys[j].String()
	})
	return keys
}

// RankedCategories returns categories by descending count, ties by name.
func (st *PropertyStats) RankedCategories() []string {
	cats := make([]string, 0, len(st.Categories))
	for c := range st.Categories {
		cats = append(cats, c)
	}
	sort.Slice(cats, func(i, j int) bool {
		ci, cj := st.Categories[cats[i]], st.Categories[cats[j]]
		if ci != cj {
			return ci > cj
		}
		return cats[i] < cats[j]
	})
	return cats
}

// Inferrer builds rich-mode schemas from a sample.
type Inferrer struct {
	MaxColumns int
}

// Infer keeps the MaxColumns most frequent keys of sample. Keys whose column
// names collide with a higher-ranked key or an identity column are skipped.
func (inf *Inferrer) Infer(sample []*graph.RawRecord) *Schema {
	st := AnalyzeProperties(sample)
	s := &Schema{
		Mode:       api.ModeRich,
		SampleSize: len(sample),
		byKey:      make(map[Key]string),
		topSet:     make(map[string]bool),
	}

	taken := make(map[string]bool, len(IdentityColumns))
	for _, c := range IdentityColumns {
		taken[c] = true
	}
	for _, k := range st.RankedKeys() {
		if len(s.Columns) >= inf.MaxColumns {
			break
		}
		name := KeyColumn(k.Category, k.Name)
		if taken[name] {
			continue
		}
		taken[name] = true
		s.Columns = append(s.Columns, Column{Name: name, Key: k, Count: st.Keys[k]})
		s.byKey[k] = name
	}

	cats := st.RankedCategories()
	if len(cats) > topCategoryCount {
		cats = cats[:topCategoryCount]
	}
	s.TopCategories = cats
	for _, c := range cats {
		s.topSet[c] = true
	}
	return s
}
