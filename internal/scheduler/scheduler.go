// Package scheduler fetches node properties in bounded, ordered batches.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/RoaringBitmap/roaring"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/agentic-research/scenex/internal/graph"
	"github.com/agentic-research/scenex/internal/telemetry"
)

// Fetcher resolves one node. A nil record means the node is skipped.
type Fetcher interface {
	Fetch(ctx context.Context, id graph.NodeID) *graph.RawRecord
}

// ConsumeFunc receives each batch's records in enumeration order.
type ConsumeFunc func(records []*graph.RawRecord) error

// Config tunes a Scheduler.
type Config struct {
	// BatchSize bounds the requests in flight.
	BatchSize int
	// ProgressEvery is the processed-node cadence of progress reports.
	// Zero reports after every batch.
	ProgressEvery int
	// PauseEvery and PauseDuration yield to the host periodically.
	PauseEvery    int
	PauseDuration time.Duration
	OnProgress    func(Progress)
	Logger        *zap.Logger
	Metrics       *telemetry.Collector
}

// Scheduler drives a Job's fetch phase.
type Scheduler struct {
	job     *Job
	fetcher Fetcher
	cfg     Config
	logger  *zap.Logger

	lastReport int
}

func New(job *Job, fetcher Fetcher, cfg Config) *Scheduler {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		job:     job,
		fetcher: fetcher,
		cfg:     cfg,
		logger:  logger.With(zap.String("component", "scheduler"), zap.String("job_id", job.ID)),
	}
}

// Run fetches ids batch by batch. Within a batch at most BatchSize requests
// are in flight; the next batch starts only after every request of the
// current one has settled. Records reach consume in the order of ids,
// skipping absent nodes and repeated ids.
//
// Cancellation is honoured between batches: a batch already in flight is
// finished and consumed before Run returns the wrapped context error.
func (s *Scheduler) Run(ctx context.Context, ids []graph.NodeID, consume ConsumeFunc) error {
	distinct := roaring.New()
	for _, id := range ids {
		distinct.Add(uint32(id))
	}
	s.job.setTotal(int(distinct.GetCardinality()))
	s.job.SetState(StateFetching)

	for start := 0; start < len(ids); start += s.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			_, processed, _ := s.job.Counts()
			s.job.SetState(StateCancelled)
			s.logger.Info("export cancelled", zap.Int("processed", processed))
			return fmt.Errorf("cancelled after %d nodes: %w", processed, err)
		}
		end := min(start+s.cfg.BatchSize, len(ids))
		batch := s.job.claim(ids[start:end])
		if len(batch) == 0 {
			continue
		}

		began := time.Now()
		records := compact(fetchBatch(ctx, s.fetcher, batch, s.cfg.BatchSize))
		before, after := s.job.record(len(batch), len(records))
		s.cfg.Metrics.ObserveBatch(len(batch), len(records), time.Since(began))

		if len(records) > 0 {
			if err := consume(records); err != nil {
				s.job.SetState(StateFailed)
				return err
			}
		}
		s.maybeReport(after)
		s.maybePause(ctx, before, after)
	}

	s.report(true)
	return nil
}

// Collect fetches ids with the same batching as Run but leaves the job's
// counters alone. Repeated ids are fetched once. It returns the non-absent
// records in order.
func (s *Scheduler) Collect(ctx context.Context, ids []graph.NodeID) ([]*graph.RawRecord, error) {
	seen := roaring.New()
	unique := make([]graph.NodeID, 0, len(ids))
	for _, id := range ids {
		if seen.CheckedAdd(uint32(id)) {
			unique = append(unique, id)
		}
	}
	ids = unique

	var out []*graph.RawRecord
	for start := 0; start < len(ids); start += s.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+s.cfg.BatchSize, len(ids))
		out = append(out, compact(fetchBatch(ctx, s.fetcher, ids[start:end], s.cfg.BatchSize))...)
	}
	return out, nil
}

func fetchBatch(ctx context.Context, f Fetcher, ids []graph.NodeID, limit int) []*graph.RawRecord {
	// Indexed by batch position so completion order does not leak into output.
	out := make([]*graph.RawRecord, len(ids))
	var g errgroup.Group
	g.SetLimit(limit)
	for i, id := range ids {
		g.Go(func() error {
			out[i] = f.Fetch(ctx, id)
			return nil
		})
	}
	_ = g.Wait() // fetches never fail; absent nodes are nil
	return out
}

func compact(records []*graph.RawRecord) []*graph.RawRecord {
	out := records[:0]
	for _, r := range records {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

func (s *Scheduler) maybeReport(processed int) {
	every := s.cfg.ProgressEvery
	if every <= 0 || processed/every != s.lastReport/every {
		s.report(false)
	}
}

func (s *Scheduler) report(final bool) {
	p := s.job.progress(final)
	s.lastReport = p.Processed
	s.logger.Debug("progress",
		zap.Int("processed", p.Processed),
		zap.Int("total", p.Total),
		zap.Int("valid", p.Valid),
		zap.Int("percent", p.Percent))
	if s.cfg.OnProgress != nil {
		s.cfg.OnProgress(p)
	}
}

// maybePause sleeps when processed crossed a multiple of PauseEvery. A
// cancelled ctx cuts the pause short; Run notices it before the next batch.
func (s *Scheduler) maybePause(ctx context.Context, before, after int) {
	every := s.cfg.PauseEvery
	if every <= 0 || s.cfg.PauseDuration <= 0 || before/every == after/every {
		return
	}
	t := time.NewTimer(s.cfg.PauseDuration)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
