// Package metrics records per-stage load counters on a private prometheus
// registry. A batch run writes them once, at the end, in the node_exporter
// textfile format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"reelshelf/internal/services"
	"reelshelf/internal/stage"
)

// Recorder implements stageexec.Observer.
type Recorder struct {
	reg         *prometheus.Registry
	Rows        *prometheus.CounterVec
	Duration    *prometheus.GaugeVec
	Failures    *prometheus.CounterVec
	LastSuccess *prometheus.GaugeVec
}

// NewRecorder builds a recorder with its own registry.
func NewRecorder() *Recorder {
	r := prometheus.NewRegistry()
	rows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reelshelf_stage_rows_total",
		Help: "Rows handled per stage and outcome.",
	}, []string{"stage", "outcome"})
	duration := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "reelshelf_stage_duration_seconds",
		Help: "Wall time of the last run of each stage.",
	}, []string{"stage"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reelshelf_stage_failures_total",
		Help: "Stage runs that ended in an error, by error kind.",
	}, []string{"stage", "kind"})
	lastSuccess := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "reelshelf_stage_last_success_timestamp_seconds",
		Help: "Unix time of the last successful run of each stage.",
	}, []string{"stage"})

	r.MustRegister(rows, duration, failures, lastSuccess)
	return &Recorder{
		reg:         r,
		Rows:        rows,
		Duration:    duration,
		Failures:    failures,
		LastSuccess: lastSuccess,
	}
}

// ObserveStage folds one stage result into the collectors.
func (r *Recorder) ObserveStage(name string, summary stage.Summary, elapsed time.Duration, err error) {
	outcomes := map[string]int64{
		"processed": summary.Processed,
		"inserted":  summary.Inserted,
		"updated":   summary.Updated,
		"skipped":   summary.Skipped,
		"dropped":   summary.Dropped,
		"failed":    summary.Failed,
	}
	for outcome, n := range outcomes {
		r.Rows.WithLabelValues(name, outcome).Add(float64(n))
	}
	r.Duration.WithLabelValues(name).Set(elapsed.Seconds())
	if err != nil {
		r.Failures.WithLabelValues(name, services.Kind(err)).Inc()
		return
	}
	r.LastSuccess.WithLabelValues(name).SetToCurrentTime()
}

// Gatherer exposes the private registry.
func (r *Recorder) Gatherer() prometheus.Gatherer { return r.reg }

// WriteTextfile writes every collector to path atomically.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.reg)
}
