package api

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidPolicy is returned by Policy.Validate and Tier.Validate.
var ErrInvalidPolicy = errors.New("invalid sizing policy")

// MaxSheetRows is the number of data rows a single worksheet can hold
// below its header row.
const MaxSheetRows = 1_048_575

// Tier is one row of the sizing policy. A scene is assigned the first tier
// whose MaxNodes exceeds its node count.
type Tier struct {
	Name string `yaml:"name" json:"name"`
	// MaxNodes is the exclusive upper bound for this tier. Zero means unbounded.
	MaxNodes            int     `yaml:"max_nodes" json:"maxNodes,omitempty"`
	BatchSize           int     `yaml:"batch_size" json:"batchSize"`
	MaxColumns          int     `yaml:"max_columns" json:"maxColumns"`
	MaxRowsPerPartition int     `yaml:"max_rows_per_partition" json:"maxRowsPerPartition"`
	SamplingRate        float64 `yaml:"sampling_rate" json:"samplingRate"`
	PauseEvery          int     `yaml:"pause_every" json:"pauseEvery"`
}

// Merge returns t with every non-zero field of o applied on top.
func (t Tier) Merge(o Tier) Tier {
	if o.BatchSize > 0 {
		t.BatchSize = o.BatchSize
	}
	if o.MaxColumns > 0 {
		t.MaxColumns = o.MaxColumns
	}
	if o.MaxRowsPerPartition > 0 {
		t.MaxRowsPerPartition = o.MaxRowsPerPartition
	}
	if o.SamplingRate > 0 {
		t.SamplingRate = o.SamplingRate
	}
	if o.PauseEvery > 0 {
		t.PauseEvery = o.PauseEvery
	}
	return t
}

// Validate checks that t's shape parameters are usable on their own,
// ignoring its threshold.
func (t Tier) Validate() error {
	switch {
	case t.BatchSize <= 0, t.MaxColumns <= 0, t.PauseEvery < 0:
		return fmt.Errorf("%w: tier %q has non-positive sizes", ErrInvalidPolicy, t.Name)
	case t.MaxRowsPerPartition <= 0 || t.MaxRowsPerPartition > MaxSheetRows:
		return fmt.Errorf("%w: tier %q rows per partition must be in 1..%d", ErrInvalidPolicy, t.Name, MaxSheetRows)
	case t.SamplingRate <= 0 || t.SamplingRate > 1:
		return fmt.Errorf("%w: tier %q sampling rate must be in (0,1]", ErrInvalidPolicy, t.Name)
	}
	return nil
}

// Policy maps scene size to throughput and shape parameters.
type Policy struct {
	Tiers []Tier `yaml:"tiers" json:"tiers"`
	// PauseDuration is slept every time a tier's PauseEvery boundary is crossed.
	PauseDuration time.Duration `yaml:"pause_duration" json:"pauseDuration"`
}

// DefaultPolicy returns the four-tier table used when no policy file is given.
func DefaultPolicy() Policy {
	return Policy{
		Tiers: []Tier{
			{Name: "small", MaxNodes: 1000, BatchSize: 200, MaxColumns: 100, MaxRowsPerPartition: 100000, SamplingRate: 0.5, PauseEvery: 2000},
			{Name: "medium", MaxNodes: 5000, BatchSize: 100, MaxColumns: 75, MaxRowsPerPartition: 65000, SamplingRate: 0.3, PauseEvery: 1000},
			{Name: "large", MaxNodes: 20000, BatchSize: 50, MaxColumns: 50, MaxRowsPerPartition: 40000, SamplingRate: 0.2, PauseEvery: 500},
			{Name: "xlarge", BatchSize: 25, MaxColumns: 30, MaxRowsPerPartition: 25000, SamplingRate: 0.1, PauseEvery: 250},
		},
		PauseDuration: 5 * time.Millisecond,
	}
}

// Select returns the tier for a scene of total nodes. The policy is assumed
// valid; an empty policy yields DefaultPolicy's choice.
func (p Policy) Select(total int) Tier {
	tiers := p.Tiers
	if len(tiers) == 0 {
		tiers = DefaultPolicy().Tiers
	}
	for _, t := range tiers {
		if t.MaxNodes == 0 || total < t.MaxNodes {
			return t
		}
	}
	return tiers[len(tiers)-1]
}

// Validate checks that thresholds ascend, the last tier is unbounded and
// that larger tiers never ask for bigger batches, more columns, more rows or
// a higher sampling rate than smaller ones.
func (p Policy) Validate() error {
	if len(p.Tiers) == 0 {
		return fmt.Errorf("%w: no tiers", ErrInvalidPolicy)
	}
	if p.PauseDuration < 0 {
		return fmt.Errorf("%w: negative pause duration", ErrInvalidPolicy)
	}
	for i, t := range p.Tiers {
		last := i == len(p.Tiers)-1
		switch {
		case t.Name == "":
			return fmt.Errorf("%w: tier %d has no name", ErrInvalidPolicy, i)
		case last && t.MaxNodes != 0:
			return fmt.Errorf("%w: last tier %q must be unbounded", ErrInvalidPolicy, t.Name)
		case !last && t.MaxNodes <= 0:
			return fmt.Errorf("%w: tier %q needs a positive max_nodes", ErrInvalidPolicy, t.Name)
		}
		if err := t.Validate(); err != nil {
			return err
		}
		if i == 0 {
			continue
		}
		prev := p.Tiers[i-1]
		if !last && t.MaxNodes <= prev.MaxNodes {
			return fmt.Errorf("%w: tier %q threshold %d does not exceed %d", ErrInvalidPolicy, t.Name, t.MaxNodes, prev.MaxNodes)
		}
		if t.BatchSize > prev.BatchSize || t.MaxColumns > prev.MaxColumns ||
			t.MaxRowsPerPartition > prev.MaxRowsPerPartition || t.SamplingRate > prev.SamplingRate {
			return fmt.Errorf("%w: tier %q is larger than %q on some dimension", ErrInvalidPolicy, t.Name, prev.Name)
		}
	}
	return nil
}
