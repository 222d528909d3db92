// Package metrics exports verif run results as Prometheus metrics, written
// to a file in the text exposition format for a node_exporter textfile
// collector.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/abdul-hamid-achik/verif/packages/core/runner"
)

const namespace = "verif"

// Exporter collects the results of one verif invocation
type Exporter struct {
	registry *prometheus.Registry

	targetPassed    *prometheus.GaugeVec
	targetTests     *prometheus.GaugeVec
	targetFailures  *prometheus.GaugeVec
	runDuration     *prometheus.GaugeVec
	runRequests     *prometheus.GaugeVec
	transportErrors *prometheus.GaugeVec
	latency         *prometheus.GaugeVec
	lastRun         prometheus.Gauge
}

// NewExporter creates an exporter with its own registry
func NewExporter() *Exporter {
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		targetPassed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "target_passed",
			Help:      "1 when every check of the target passed, 0 otherwise.",
		}, []string{"file", "target"}),
		targetTests: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "target_tests",
			Help:      "Number of assertions evaluated for the target.",
		}, []string{"file", "target"}),
		targetFailures: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "target_failures",
			Help:      "Number of failures recorded for the target.",
		}, []string{"file", "target"}),
		runDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the suite run.",
		}, []string{"file"}),
		runRequests: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_requests",
			Help:      "HTTP requests issued by the suite run.",
		}, []string{"file"}),
		transportErrors: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_transport_errors",
			Help:      "Requests of the suite run that got no response.",
		}, []string{"file"}),
		latency: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "request_latency_seconds",
			Help:      "Request latency percentiles of the suite run.",
		}, []string{"file", "percentile"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the results were exported.",
		}),
	}

	e.registry.MustRegister(
		e.targetPassed,
		e.targetTests,
		e.targetFailures,
		e.runDuration,
		e.runRequests,
		e.transportErrors,
		e.latency,
		e.lastRun,
	)
	return e
}

// Observe records a run result. Skipped targets are left out.
func (e *Exporter) Observe(result *runner.RunResult) {
	for _, t := range result.Targets {
		if t.Skipped {
			continue
		}
		passed := 0.0
		if len(t.Failures) == 0 {
			passed = 1
		}
		e.targetPassed.WithLabelValues(result.File, t.Name).Set(passed)
		e.targetTests.WithLabelValues(result.File, t.Name).Set(float64(t.Tests))
		e.targetFailures.WithLabelValues(result.File, t.Name).Set(float64(len(t.Failures)))
	}

	e.runDuration.WithLabelValues(result.File).Set(result.Duration.Seconds())
	e.runRequests.WithLabelValues(result.File).Set(float64(result.Requests))
	e.transportErrors.WithLabelValues(result.File).Set(float64(result.TransportErrors))

	if result.Latency.Count > 0 {
		e.latency.WithLabelValues(result.File, "p50").Set(result.Latency.P50.Seconds())
		e.latency.WithLabelValues(result.File, "p95").Set(result.Latency.P95.Seconds())
		e.latency.WithLabelValues(result.File, "p99").Set(result.Latency.P99.Seconds())
		e.latency.WithLabelValues(result.File, "max").Set(result.Latency.Max.Seconds())
	}
	e.lastRun.SetToCurrentTime()
}

// Registry exposes the collected metrics
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// WriteFile atomically writes the metrics in the text exposition format
func (e *Exporter) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, e.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
