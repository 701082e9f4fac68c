package projector

import "github.com/agentic-research/scenex/internal/graph"

// NestCategory stands in for a missing category in nested objects.
const NestCategory = "Item"

// NestedValue is one property in a nested object.
type NestedValue struct {
	Value any     `json:"value"`
	Units *string `json:"units"`
}

// NestedObject is the JSON-mode shape of a record: properties grouped by
// category, then by name. A later property with the same category and name
// replaces an earlier one.
type NestedObject struct {
	DbID       graph.NodeID                      `json:"dbId"`
	Name       string                            `json:"name"`
	ExternalID *string                           `json:"externalId"`
	Properties map[string]map[string]NestedValue `json:"properties"`
}

func Nest(raw *graph.RawRecord) *NestedObject {
	obj := &NestedObject{
		DbID:       raw.NodeID,
		Name:       raw.DisplayName,
		Properties: make(map[string]map[string]NestedValue),
	}
	if raw.ExternalID != "" {
		ext := raw.ExternalID
		obj.ExternalID = &ext
	}
	for _, p := range raw.Properties {
		cat := p.Category
		if cat == "" {
			cat = NestCategory
		}
		group, ok := obj.Properties[cat]
		if !ok {
			group = make(map[string]NestedValue)
			obj.Properties[cat] = group
		}
		v := NestedValue{Value: p.Value}
		if p.Units != "" {
			units := p.Units
			v.Units = &units
		}
		group[p.Name] = v
	}
	return obj
}
