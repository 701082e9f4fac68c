package scheduler

import (
	"math"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring"
	"github.com/google/uuid"

	"github.com/agentic-research/scenex/api"
	"github.com/agentic-research/scenex/internal/graph"
)

// State is the lifecycle position of an export job.
type State string

const (
	StatePending     State = "pending"
	StateEnumerating State = "enumerating"
	StateSampling    State = "sampling"
	StateFetching    State = "fetching"
	StateWriting     State = "writing"
	StateSucceeded   State = "succeeded"
	StateEmpty       State = "empty"
	StateFailed      State = "failed"
	StateCancelled   State = "cancelled"
)

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	switch s {
	case StateSucceeded, StateEmpty, StateFailed, StateCancelled:
		return true
	}
	return false
}

// Job tracks one export run. Counters only grow, and only between batches.
type Job struct {
	ID   string
	Tier api.Tier

	mu         sync.RWMutex
	state      State
	total      int
	processed  int
	valid      int
	duplicates int
	startedAt  time.Time
	finishedAt time.Time
	done       *roaring.Bitmap // NodeIDs already fetched
}

func NewJob() *Job {
	return &Job{
		ID:        uuid.NewString(),
		state:     StatePending,
		startedAt: time.Now(),
		done:      roaring.New(),
	}
}

func (j *Job) State() State {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.state
}

// SetState moves the job to s. Terminal states are sticky and stamp the
// finish time.
func (j *Job) SetState(s State) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.Terminal() {
		return
	}
	j.state = s
	if s.Terminal() {
		j.finishedAt = time.Now()
	}
}

func (j *Job) setTotal(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.total = n
}

// claim returns the ids of batch not fetched before, in order, and marks
// them fetched.
func (j *Job) claim(batch []graph.NodeID) []graph.NodeID {
	j.mu.Lock()
	defer j.mu.Unlock()
	fresh := make([]graph.NodeID, 0, len(batch))
	for _, id := range batch {
		if j.done.CheckedAdd(uint32(id)) {
			fresh = append(fresh, id)
		} else {
			j.duplicates++
		}
	}
	return fresh
}

func (j *Job) record(processed, valid int) (before, after int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	before = j.processed
	j.processed += processed
	j.valid += valid
	return before, j.processed
}

// Counts returns total distinct nodes, nodes fetched and nodes that
// produced a record.
func (j *Job) Counts() (total, processed, valid int) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.total, j.processed, j.valid
}

// Duplicates is the number of repeated NodeIDs skipped so far.
func (j *Job) Duplicates() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.duplicates
}

func (j *Job) Elapsed() time.Duration {
	j.mu.RLock()
	defer j.mu.RUnlock()
	end := j.finishedAt
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(j.startedAt)
}

func (j *Job) StartedAt() time.Time {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.startedAt
}

// Progress is a snapshot reported while a job fetches.
type Progress struct {
	JobID      string  `json:"jobId"`
	Processed  int     `json:"processed"`
	Total      int     `json:"total"`
	Valid      int     `json:"valid"`
	Percent    int     `json:"percent"`
	Throughput float64 `json:"throughput"` // nodes per second
	// EstimatedSecondsRemaining is -1 until a rate is known.
	EstimatedSecondsRemaining int  `json:"estimatedSecondsRemaining"`
	Final                     bool `json:"final"`
}

func (j *Job) progress(final bool) Progress {
	total, processed, valid := j.Counts()
	elapsed := j.Elapsed().Seconds()
	p := Progress{
		JobID:                     j.ID,
		Processed:                 processed,
		Total:                     total,
		Valid:                     valid,
		EstimatedSecondsRemaining: -1,
		Final:                     final,
	}
	if total > 0 {
		p.Percent = int(math.Round(float64(processed) / float64(total) * 100))
	}
	if elapsed > 0 && processed > 0 {
		p.Throughput = float64(processed) / elapsed
		p.EstimatedSecondsRemaining = int(math.Round(float64(total-processed) / p.Throughput))
	}
	return p
}

// Summary describes a finished job.
type Summary struct {
	JobID              string  `json:"jobId"`
	Tier               string  `json:"tier"`
	State              State   `json:"state"`
	TotalNodes         int     `json:"totalNodes"`
	ProcessedNodes     int     `json:"processedNodes"`
	TotalObjects       int     `json:"totalObjects"`
	SuccessRatePercent int     `json:"successRatePercent"`
	ElapsedMs          int64   `json:"elapsedMs"`
	Throughput         float64 `json:"throughput"`
}

func (j *Job) Summary() Summary {
	total, processed, valid := j.Counts()
	elapsed := j.Elapsed()
	s := Summary{
		JobID:          j.ID,
		Tier:           j.Tier.Name,
		State:          j.State(),
		TotalNodes:     total,
		ProcessedNodes: processed,
		TotalObjects:   valid,
		ElapsedMs:      elapsed.Milliseconds(),
	}
	if total > 0 {
		s.SuccessRatePercent = int(math.Round(float64(valid) / float64(total) * 100))
	}
	if elapsed > 0 {
		s.Throughput = float64(processed) / elapsed.Seconds()
	}
	return s
}
