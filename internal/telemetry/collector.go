// Package telemetry records export job metrics on a private registry.
package telemetry

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector holds the export metrics. A nil *Collector is valid and
// records nothing.
type Collector struct {
	registry *prometheus.Registry

	nodesProcessed prometheus.Counter
	nodesValid     prometheus.Counter
	fetchFailures  prometheus.Counter
	batches        prometheus.Counter
	batchDuration  prometheus.Histogram
	partitions     prometheus.Counter
	exportDuration *prometheus.HistogramVec
	jobsTotal      *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector registers the export metrics under namespace.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	c := &Collector{
		registry: reg,
		logger:   logger.With(zap.String("component", "metrics")),
	}

	c.nodesProcessed = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "nodes_processed_total",
		Help:      "Nodes whose properties were requested",
	})
	c.nodesValid = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "nodes_valid_total",
		Help:      "Nodes that produced at least one property",
	})
	c.fetchFailures = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fetch_failures_total",
		Help:      "Property requests that failed or timed out after all attempts",
	})
	c.batches = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "batches_total",
		Help:      "Fetch batches completed",
	})
	c.batchDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "batch_duration_seconds",
		Help:      "Wall time of one fetch batch",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
	})
	c.partitions = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "partitions_written_total",
		Help:      "Row partitions written to workbooks",
	})
	c.exportDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "export_duration_seconds",
		Help:      "End-to-end export job duration",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"format"})
	c.jobsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_total",
		Help:      "Export jobs by final state",
	}, []string{"state"})

	return c
}

// Registry exposes the collector's registry, for scraping or tests.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// ObserveBatch records one finished batch.
func (c *Collector) ObserveBatch(processed, valid int, d time.Duration) {
	if c == nil {
		return
	}
	c.batches.Inc()
	c.nodesProcessed.Add(float64(processed))
	c.nodesValid.Add(float64(valid))
	c.batchDuration.Observe(d.Seconds())
}

func (c *Collector) FetchFailed() {
	if c == nil {
		return
	}
	c.fetchFailures.Inc()
}

func (c *Collector) PartitionWritten() {
	if c == nil {
		return
	}
	c.partitions.Inc()
}

// ObserveExport records a finished job.
func (c *Collector) ObserveExport(format, state string, d time.Duration) {
	if c == nil {
		return
	}
	c.exportDuration.WithLabelValues(format).Observe(d.Seconds())
	c.jobsTotal.WithLabelValues(state).Inc()
}

// WriteTextfile writes every metric in the text exposition format, for
// node_exporter's textfile collector.
func (c *Collector) WriteTextfile(path string) error {
	if c == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	c.logger.Debug("metrics written", zap.String("path", path))
	return nil
}
