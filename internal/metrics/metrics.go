package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Recorder holds the counters of one conversion run. Each run owns its own
// registry so the values can be pushed as a batch job.
type Recorder struct {
	registry       *prometheus.Registry
	rowsTotal      *prometheus.CounterVec
	recordsTotal   *prometheus.CounterVec
	labelsTotal    *prometheus.CounterVec
	downloadsTotal *prometheus.CounterVec
	duration       *prometheus.HistogramVec
}

// New creates a Recorder with all collectors registered.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		rowsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dataset_rows_read_total",
				Help: "Number of source table rows read",
			},
			[]string{"dataset"},
		),
		recordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dataset_records_written_total",
				Help: "Number of JSONL records written",
			},
			[]string{"dataset", "dimension"},
		),
		labelsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dataset_label_total",
				Help: "Number of records whose correct answer is the given label",
			},
			[]string{"dataset", "dimension", "label"},
		),
		downloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dataset_downloads_total",
				Help: "Remote fetches by outcome",
			},
			[]string{"status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dataset_conversion_duration_seconds",
				Help:    "Time taken to convert a table to JSONL",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"dataset"},
		),
	}

	r.registry.MustRegister(
		r.rowsTotal,
		r.recordsTotal,
		r.labelsTotal,
		r.downloadsTotal,
		r.duration,
	)

	return r
}

// Registry exposes the underlying registry. A nil Recorder has none.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// RowRead counts one source row. Like every Recorder method it is a no-op on a
// nil Recorder, so callers may run without metrics.
func (r *Recorder) RowRead(dataset string) {
	if r == nil {
		return
	}
	r.rowsTotal.WithLabelValues(dataset).Inc()
}

// RecordWritten counts one emitted record and its correct label.
func (r *Recorder) RecordWritten(dataset, dimension, label string) {
	if r == nil {
		return
	}
	r.recordsTotal.WithLabelValues(dataset, dimension).Inc()
	r.labelsTotal.WithLabelValues(dataset, dimension, label).Inc()
}

// Download counts a fetch attempt. status is "ok", "failed" or an HTTP code.
func (r *Recorder) Download(status string) {
	if r == nil {
		return
	}
	r.downloadsTotal.WithLabelValues(status).Inc()
}

func (r *Recorder) ObserveDuration(dataset string, d time.Duration) {
	if r == nil {
		return
	}
	r.duration.WithLabelValues(dataset).Observe(d.Seconds())
}

// Push sends every collected metric to a Prometheus Pushgateway under job.
func (r *Recorder) Push(ctx context.Context, gatewayURL, job string) error {
	if r == nil {
		return nil
	}
	if err := push.New(gatewayURL, job).Gatherer(r.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", gatewayURL, err)
	}
	return nil
}
