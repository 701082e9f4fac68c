// Package pipeline runs one export job end to end: enumerate the scene,
// pick a sizing tier, infer or fix the column schema, fetch properties in
// batches and stream the records into an artifact.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/agentic-research/scenex/api"
	"github.com/agentic-research/scenex/internal/export"
	"github.com/agentic-research/scenex/internal/fetch"
	"github.com/agentic-research/scenex/internal/graph"
	"github.com/agentic-research/scenex/internal/projector"
	"github.com/agentic-research/scenex/internal/scheduler"
	"github.com/agentic-research/scenex/internal/telemetry"
)

// ErrNothingToExport marks a job that finished without a single node
// carrying properties.
var ErrNothingToExport = errors.New("no exportable objects")

// Options configures Run. The zero value exports a rich workbook with the
// default policy and keeps the artifact in memory only.
type Options struct {
	Format api.Format
	Mode   api.Mode
	Policy api.Policy
	// Overrides replaces non-zero fields of the selected tier.
	Overrides api.Tier
	Fetch     fetch.Config
	// MaxProperties caps the properties examined per node in minimal mode.
	MaxProperties int
	// ProgressEvery is the processed-node cadence of OnProgress. Zero means
	// max(100, total/100); negative reports after every batch.
	ProgressEvery    int
	MaxArtifactBytes int64
	// Store receives the artifact when set.
	Store *export.Store
	// SourceName identifies the scene in the artifact metadata.
	SourceName string
	OnProgress func(scheduler.Progress)
	Logger     *zap.Logger
	Metrics    *telemetry.Collector
	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
	Now            func() time.Time
}

// Result describes a finished job, successful or not.
type Result struct {
	JobID    string
	State    scheduler.State
	Summary  scheduler.Summary
	Artifact *export.Artifact
	// Path is where Store saved the artifact.
	Path string
}

// Err returns ErrNothingToExport for empty jobs and nil otherwise.
func (r *Result) Err() error {
	if r.State == scheduler.StateEmpty {
		return ErrNothingToExport
	}
	return nil
}

// Empty reports whether the job found nothing to export.
func (r *Result) Empty() bool { return r.State == scheduler.StateEmpty }

// Run exports src. It returns an error for enumeration, cancellation and
// writer failures; per-node fetch failures only lower the success rate.
// The returned Result is never nil.
func Run(ctx context.Context, src graph.Scene, opts Options) (*Result, error) {
	if opts.Format == "" {
		opts.Format = api.FormatXLSX
	}
	if opts.Mode == "" {
		opts.Mode = api.ModeRich
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tp := opts.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	tracer := tp.Tracer("scenex/pipeline")

	began := time.Now()
	job := scheduler.NewJob()
	res := &Result{JobID: job.ID}
	logger = logger.With(zap.String("component", "pipeline"), zap.String("job_id", job.ID))

	ctx, span := tracer.Start(ctx, "export", trace.WithAttributes(
		attribute.String("scenex.job_id", job.ID),
		attribute.String("scenex.format", string(opts.Format)),
		attribute.String("scenex.mode", string(opts.Mode)),
	))
	defer span.End()

	finish := func(s scheduler.State) {
		job.SetState(s)
		res.State = job.State()
		res.Summary = job.Summary()
		opts.Metrics.ObserveExport(string(opts.Format), string(res.State), time.Since(began))
		span.SetAttributes(
			attribute.String("scenex.state", string(res.State)),
			attribute.Int("scenex.objects", res.Summary.TotalObjects))
	}
	fail := func(s scheduler.State, err error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		finish(s)
	}

	job.SetState(scheduler.StateEnumerating)
	ids, err := phase(ctx, tracer, "enumerate", func(ctx context.Context) ([]graph.NodeID, error) {
		return graph.EnumerateFromRoot(ctx, src)
	})
	if err != nil {
		logger.Error("enumeration failed", zap.Error(err))
		fail(failState(err), err)
		return res, err
	}

	tier := opts.Policy.Select(len(ids)).Merge(opts.Overrides)
	if err := tier.Validate(); err != nil {
		logger.Error("tier overrides rejected", zap.Error(err))
		fail(scheduler.StateFailed, err)
		return res, err
	}
	job.Tier = tier
	span.SetAttributes(attribute.Int("scenex.nodes", len(ids)), attribute.String("scenex.tier", tier.Name))
	logger.Info("export started",
		zap.String("model", src.ModelName()),
		zap.Int("nodes", len(ids)),
		zap.String("tier", tier.Name),
		zap.String("format", string(opts.Format)),
		zap.String("mode", string(opts.Mode)))

	fetchCfg := opts.Fetch
	if fetchCfg.Logger == nil {
		fetchCfg.Logger = logger
	}
	if fetchCfg.Metrics == nil {
		fetchCfg.Metrics = opts.Metrics
	}
	adapter := fetch.NewAdapter(src, src, fetchCfg)
	cache, err := fetch.NewCache(adapter, projector.SampleSize(len(ids), tier.SamplingRate))
	if err != nil {
		fail(scheduler.StateFailed, err)
		return res, err
	}

	every := opts.ProgressEvery
	if every == 0 {
		every = max(100, len(ids)/100)
	}
	sched := scheduler.New(job, cache, scheduler.Config{
		BatchSize:     tier.BatchSize,
		ProgressEvery: every,
		PauseEvery:    tier.PauseEvery,
		PauseDuration: opts.Policy.PauseDuration,
		OnProgress:    opts.OnProgress,
		Logger:        logger,
		Metrics:       opts.Metrics,
	})

	var out sink
	if opts.Format == api.FormatJSON {
		out = &jsonSink{w: export.NewJSONWriter(opts.MaxArtifactBytes)}
	} else {
		schema, err := phase(ctx, tracer, "sample", func(ctx context.Context) (*projector.Schema, error) {
			return buildSchema(ctx, job, sched, ids, tier, opts)
		})
		if err != nil {
			logger.Info("sampling interrupted", zap.Error(err))
			fail(failState(err), err)
			return res, err
		}
		xs, err := newXLSXSink(schema, tier.MaxRowsPerPartition, opts.MaxArtifactBytes, opts.Metrics, logger)
		if err != nil {
			fail(scheduler.StateFailed, err)
			return res, err
		}
		out = xs
	}
	defer out.close()
	cache.Stop()

	_, err = phase(ctx, tracer, "fetch", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, sched.Run(ctx, ids, out.consume)
	})
	if err != nil {
		if job.State() != scheduler.StateCancelled {
			logger.Error("export failed", zap.Error(err))
		}
		fail(failState(err), err)
		return res, err
	}

	_, _, valid := job.Counts()
	if valid == 0 {
		logger.Info("nothing to export", zap.Int("nodes", len(ids)))
		finish(scheduler.StateEmpty)
		return res, nil
	}

	job.SetState(scheduler.StateWriting)
	sum := job.Summary()
	meta := export.Metadata{
		ModelName:          src.ModelName(),
		Source:             opts.SourceName,
		ExportDate:         opts.Now(),
		Mode:               opts.Mode,
		Tier:               tier,
		TotalNodes:         sum.TotalNodes,
		ProcessedNodes:     sum.ProcessedNodes,
		TotalObjects:       sum.TotalObjects,
		SuccessRatePercent: sum.SuccessRatePercent,
		ProcessingTimeMs:   sum.ElapsedMs,
		Throughput:         sum.Throughput,
	}
	art, err := phase(ctx, tracer, "write", func(context.Context) (*export.Artifact, error) {
		return out.finish(meta)
	})
	if err != nil {
		logger.Error("write artifact", zap.Error(err))
		err = fmt.Errorf("write artifact: %w", err)
		fail(scheduler.StateFailed, err)
		return res, err
	}
	if opts.Store != nil {
		path, err := opts.Store.Save(art)
		if err != nil {
			logger.Error("save artifact", zap.Error(err))
			fail(scheduler.StateFailed, err)
			return res, err
		}
		res.Path = path
	}
	res.Artifact = art
	finish(scheduler.StateSucceeded)

	logger.Info("export finished",
		zap.String("artifact", art.Filename),
		zap.Int("objects", res.Summary.TotalObjects),
		zap.Int("success_rate", res.Summary.SuccessRatePercent),
		zap.Int64("elapsed_ms", res.Summary.ElapsedMs))
	return res, nil
}

func buildSchema(ctx context.Context, job *scheduler.Job, sched *scheduler.Scheduler, ids []graph.NodeID, tier api.Tier, opts Options) (*projector.Schema, error) {
	if opts.Mode == api.ModeMinimal {
		return projector.MinimalSchema(projector.DefaultRules(), opts.MaxProperties, tier.MaxColumns), nil
	}
	job.SetState(scheduler.StateSampling)
	sampleIDs := projector.SampleIDs(ids, tier.SamplingRate)
	sample, err := sched.Collect(ctx, sampleIDs)
	if err != nil {
		return nil, fmt.Errorf("sample properties: %w", err)
	}
	inf := projector.Inferrer{MaxColumns: tier.MaxColumns}
	schema := inf.Infer(sample)
	schema.Sampled = len(sampleIDs)
	return schema, nil
}

// phase runs fn inside a child span named name.
func phase[T any](ctx context.Context, tracer trace.Tracer, name string, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := tracer.Start(ctx, name)
	defer span.End()
	v, err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return v, err
}

func failState(err error) scheduler.State {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return scheduler.StateCancelled
	}
	return scheduler.StateFailed
}
