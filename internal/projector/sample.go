package projector

import (
	"math"

	"github.com/agentic-research/scenex/internal/graph"
)

const (
	minSample = 100
	maxSample = 1000
)

// SampleSize is max(100, floor(total*rate)) capped at 1000 and at total.
func SampleSize(total int, rate float64) int {
	n := int(math.Floor(float64(total) * rate))
	n = max(n, minSample)
	n = min(n, maxSample, total)
	return n
}

// SampleIDs picks SampleSize ids by uniform stride from the start of ids.
// The same input always yields the same sample.
func SampleIDs(ids []graph.NodeID, rate float64) []graph.NodeID {
	size := SampleSize(len(ids), rate)
	if size == 0 {
		return nil
	}
	stride := max(1, len(ids)/size)
	out := make([]graph.NodeID, 0, size)
	for i := 0; i < len(ids) && len(out) < size; i += stride {
		out = append(out, ids[i])
	}
	return out
}
