// Package metrics exports per-stage provisioning results in the Prometheus
// textfile format so a node_exporter textfile collector can scrape them.
// hostctl runs to completion and exits, so there is no HTTP endpoint; each
// run rewrites one .prom file atomically via the client library.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cloudhand/hostctl/internal/provision"
)

// Collector holds the gauges describing the most recent run.
type Collector struct {
	registry       *prometheus.Registry
	stageDuration  *prometheus.GaugeVec
	stageSucceeded *prometheus.GaugeVec
	runTimestamp   prometheus.Gauge
	runOutcome     *prometheus.GaugeVec
}

// New constructs a collector registry with all gauges registered.
func New() *Collector {
	registry := prometheus.NewRegistry()

	stageDuration := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "hostctl",
			Subsystem: "stage",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of each stage in the last run.",
		},
		[]string{"stage"},
	)
	stageSucceeded := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "hostctl",
			Subsystem: "stage",
			Name:      "succeeded",
			Help:      "1 when the stage finished without a fatal error, 0 otherwise.",
		},
		[]string{"stage"},
	)
	runTimestamp := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "hostctl",
			Subsystem: "run",
			Name:      "timestamp_seconds",
			Help:      "Unix time when the last run finished.",
		},
	)
	runOutcome := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "hostctl",
			Subsystem: "run",
			Name:      "outcome",
			Help:      "1 for the outcome of the last run, 0 for the others.",
		},
		[]string{"outcome"},
	)

	registry.MustRegister(stageDuration, stageSucceeded, runTimestamp, runOutcome)
	return &Collector{
		registry:       registry,
		stageDuration:  stageDuration,
		stageSucceeded: stageSucceeded,
		runTimestamp:   runTimestamp,
		runOutcome:     runOutcome,
	}
}

// Observe records the outcome of a finished run.
func (c *Collector) Observe(report *provision.Report) {
	for _, step := range report.Steps {
		c.stageDuration.WithLabelValues(step.Name).Set(step.Duration.Seconds())
		succeeded := 1.0
		if step.Status == provision.StatusFatal {
			succeeded = 0
		}
		c.stageSucceeded.WithLabelValues(step.Name).Set(succeeded)
	}
	finished := report.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	c.runTimestamp.Set(float64(finished.Unix()))
	for _, outcome := range []provision.Status{provision.StatusOK, provision.StatusCleanStop, provision.StatusFatal} {
		value := 0.0
		if report.Outcome == outcome {
			value = 1
		}
		c.runOutcome.WithLabelValues(string(outcome)).Set(value)
	}
}

// WriteFile renders the registry to path in the textfile collector format.
func (c *Collector) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("write metrics file %s: %w", path, err)
	}
	return nil
}
