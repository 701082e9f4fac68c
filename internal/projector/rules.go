package projector

import (
	"strings"

	"github.com/agentic-research/scenex/api"
)

// DefaultMaxProperties caps how many properties of one node minimal mode
// looks at.
const DefaultMaxProperties = 50

// Rule routes a property into a minimal-mode column when Match accepts the
// property name.
type Rule struct {
	Column string
	Match  func(name string) bool
}

// Contains matches names containing any keyword, ignoring case.
func Contains(keywords ...string) func(string) bool {
	lowered := make([]string, len(keywords))
	for i, k := range keywords {
		lowered[i] = strings.ToLower(k)
	}
	return func(name string) bool {
		n := strings.ToLower(name)
		for _, k := range lowered {
			if strings.Contains(n, k) {
				return true
			}
		}
		return false
	}
}

// DefaultRules is the minimal-mode classification, highest priority first.
func DefaultRules() []Rule {
	return []Rule{
		{Column: "Category", Match: Contains("category")},
		{Column: "Type", Match: Contains("type")},
		{Column: "Material", Match: Contains("material")},
		{Column: "Dimensions", Match: Contains("dimension")},
		{Column: "Code", Match: Contains("code")},
		{Column: "Description", Match: Contains("description")},
	}
}

// MinimalSchema builds a fixed schema from rules. At most maxColumns rules
// are kept; maxProps <= 0 means DefaultMaxProperties.
func MinimalSchema(rules []Rule, maxProps, maxColumns int) *Schema {
	if maxProps <= 0 {
		maxProps = DefaultMaxProperties
	}
	if maxColumns > 0 && len(rules) > maxColumns {
		rules = rules[:maxColumns]
	}
	s := &Schema{Mode: api.ModeMinimal, rules: rules, maxProps: maxProps}
	for _, r := range rules {
		s.Columns = append(s.Columns, Column{Name: r.Column})
	}
	return s
}
