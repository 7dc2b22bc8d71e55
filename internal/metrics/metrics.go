// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics collects pipeline counters and phase timings on a
// private Prometheus registry and exports them as a node-exporter
// textfile. A nil *Metrics discards every observation.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pdiddy/pdfsplit/pkg/types"
)

const namespace = "pdfsplit"

// Phase names used as label values.
const (
	PhaseAnalyze = "analyze"
	PhasePlan    = "plan"
	PhaseWrite   = "write"
	PhaseConvert = "convert"
	PhaseMerge   = "merge"
)

// Phases lists the phases in pipeline order.
var Phases = []string{PhaseAnalyze, PhasePlan, PhaseWrite, PhaseConvert, PhaseMerge}

// Metrics holds the collectors of one process.
type Metrics struct {
	reg *prometheus.Registry

	chunksPlanned      prometheus.Counter
	chunksWritten      *prometheus.CounterVec
	conversions        *prometheus.CounterVec
	conversionDuration prometheus.Histogram
	workers            *prometheus.CounterVec
	phaseDuration      *prometheus.HistogramVec
	pagesMerged        prometheus.Counter
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		chunksPlanned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_planned_total",
			Help:      "Total chunks produced by planning",
		}),
		chunksWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_written_total",
			Help:      "Chunk artifacts written by result (ok, failed)",
		}, []string{"result"}),
		conversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversions_total",
			Help:      "Chunk conversions by result (ok, failed)",
		}, []string{"result"}),
		conversionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "conversion_duration_seconds",
			Help:      "Duration of single chunk conversions",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		workers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_events_total",
			Help:      "Worker lifecycle events (launched, retired, launch_failed)",
		}, []string{"event"}),
		phaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "phase_duration_seconds",
			Help:      "Duration of pipeline phases",
			Buckets:   prometheus.DefBuckets,
		}, []string{"phase"}),
		pagesMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_merged_total",
			Help:      "Pages covered by merged documents",
		}),
	}
	m.reg.MustRegister(m.chunksPlanned, m.chunksWritten, m.conversions, m.conversionDuration,
		m.workers, m.phaseDuration, m.pagesMerged)
	return m
}

// Registry exposes the registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

func (m *Metrics) ObservePlan(p types.Plan) {
	if m == nil {
		return
	}
	m.chunksPlanned.Add(float64(len(p.Specs)))
}

func (m *Metrics) ObserveWrites(ok, failed int) {
	if m == nil {
		return
	}
	m.chunksWritten.WithLabelValues("ok").Add(float64(ok))
	m.chunksWritten.WithLabelValues("failed").Add(float64(failed))
}

// ObserveConversions counts results and records their durations.
func (m *Metrics) ObserveConversions(results []types.ConversionResult) {
	if m == nil {
		return
	}
	for _, r := range results {
		if r.OK() {
			m.conversions.WithLabelValues("ok").Inc()
		} else {
			m.conversions.WithLabelValues("failed").Inc()
		}
		if r.Duration > 0 {
			m.conversionDuration.Observe(r.Duration.Seconds())
		}
	}
}

func (m *Metrics) ObserveWorkers(launched, retired, launchFailures int) {
	if m == nil {
		return
	}
	m.workers.WithLabelValues("launched").Add(float64(launched))
	m.workers.WithLabelValues("retired").Add(float64(retired))
	m.workers.WithLabelValues("launch_failed").Add(float64(launchFailures))
}

func (m *Metrics) ObservePhase(phase string, d time.Duration) {
	if m == nil {
		return
	}
	m.phaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

func (m *Metrics) ObserveMerge(pages int) {
	if m == nil {
		return
	}
	m.pagesMerged.Add(float64(pages))
}

// WriteTextfile writes all collected metrics to path in the text
// exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.reg); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	return nil
}
