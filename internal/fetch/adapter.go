// Package fetch turns the callback-style property lookup into a blocking
// call with a timeout, bounded retries and request pacing.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/agentic-research/scenex/internal/graph"
	"github.com/agentic-research/scenex/internal/telemetry"
)

// DefaultTimeout bounds a single property request.
const DefaultTimeout = 30 * time.Second

var errNoReason = errors.New("property request failed")

// DisplayNamer resolves a node's human-readable name.
type DisplayNamer interface {
	DisplayName(id graph.NodeID) string
}

// Config tunes an Adapter. Zero values mean: DefaultTimeout, one attempt,
// no pacing.
type Config struct {
	Timeout           time.Duration
	MaxAttempts       int
	RequestsPerSecond float64
	Logger            *zap.Logger
	Metrics           *telemetry.Collector
}

// Adapter fetches one node's properties at a time. It is safe for
// concurrent use.
type Adapter struct {
	source   graph.PropertySource
	names    DisplayNamer
	timeout  time.Duration
	attempts int
	limiter  *rate.Limiter
	logger   *zap.Logger
	metrics  *telemetry.Collector
}

func NewAdapter(source graph.PropertySource, names DisplayNamer, cfg Config) *Adapter {
	a := &Adapter{
		source:   source,
		names:    names,
		timeout:  cfg.Timeout,
		attempts: cfg.MaxAttempts,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
	}
	if a.timeout <= 0 {
		a.timeout = DefaultTimeout
	}
	if a.attempts <= 0 {
		a.attempts = 1
	}
	if a.logger == nil {
		a.logger = zap.NewNop()
	}
	a.logger = a.logger.With(zap.String("component", "fetch"))
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		a.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return a
}

// Fetch returns the node's record, or nil when the node has no properties,
// the request failed on every attempt, or ctx ended first. It never
// returns an error: per-node problems are expected and only logged.
func (a *Adapter) Fetch(ctx context.Context, id graph.NodeID) *graph.RawRecord {
	var lastErr error
	for attempt := 1; attempt <= a.attempts; attempt++ {
		set, err := a.fetchOnce(ctx, id)
		if err == nil {
			return a.record(id, set)
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	a.logger.Debug("property fetch failed",
		zap.Uint32("node_id", uint32(id)),
		zap.Int("attempts", a.attempts),
		zap.Error(lastErr))
	a.metrics.FetchFailed()
	return nil
}

type outcome struct {
	set *graph.PropertySet
	err error
}

func (a *Adapter) fetchOnce(ctx context.Context, id graph.NodeID) (*graph.PropertySet, error) {
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	// Buffered so a late callback never blocks the source's goroutine.
	done := make(chan outcome, 1)
	var once sync.Once
	a.source.GetProperties(id,
		func(set *graph.PropertySet) {
			once.Do(func() { done <- outcome{set: set} })
		},
		func(err error) {
			if err == nil {
				err = errNoReason
			}
			once.Do(func() { done <- outcome{err: err} })
		},
	)

	select {
	case o := <-done:
		return o.set, o.err
	case <-ctx.Done():
		return nil, fmt.Errorf("node %d: %w", id, ctx.Err())
	}
}

func (a *Adapter) record(id graph.NodeID, set *graph.PropertySet) *graph.RawRecord {
	if set == nil || len(set.Properties) == 0 {
		return nil
	}
	name := ""
	if a.names != nil {
		name = a.names.DisplayName(id)
	}
	if name == "" {
		name = fmt.Sprintf("Object_%d", id)
	}
	return &graph.RawRecord{
		NodeID:      id,
		DisplayName: name,
		ExternalID:  set.ExternalID,
		Properties:  set.Properties,
	}
}
