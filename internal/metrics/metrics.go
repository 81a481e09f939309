// Package metrics exports engine decisions and load as Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rafters-studio/motion-coordinator/internal/events"
)

const namespace = "motion"

// Sample is a point-in-time reading of engine load.
type Sample struct {
	ArbiterLoad    int
	ControllerLoad int
	Active         int
	Queued         int
	Paused         bool
}

// Metrics holds the engine's collectors. It is an events.Observer: each
// event bumps the decision counter and refreshes the gauges from sample.
type Metrics struct {
	Decisions        *prometheus.CounterVec
	ProjectedLoad    prometheus.Histogram
	ArbiterLoad      prometheus.Gauge
	ControllerLoad   prometheus.Gauge
	ActiveAnimations prometheus.Gauge
	QueueDepth       prometheus.Gauge
	Paused           prometheus.Gauge
	BudgetLimit      *prometheus.GaugeVec

	sample func() Sample
}

// New registers the collectors on reg. sample may be nil, in which case the
// gauges only move with event payloads.
func New(reg prometheus.Registerer, sample func() Sample) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Decisions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "decisions_total",
				Help:      "Arbiter and controller decisions by kind",
			},
			[]string{"source", "kind"},
		),
		ProjectedLoad: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "refused_projected_load",
				Help:      "Projected cognitive load of requests refused or queued for budget",
				Buckets:   prometheus.LinearBuckets(5, 5, 6),
			},
		),
		ArbiterLoad: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "arbiter_load",
				Help:      "Sum of cognitive load of registered surfaces",
			},
		),
		ControllerLoad: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "controller_load",
				Help:      "Sum of cognitive load of active animations",
			},
		),
		ActiveAnimations: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_animations",
				Help:      "Number of animations currently running",
			},
		),
		QueueDepth: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "queue_depth",
				Help:      "Number of animation requests waiting for budget",
			},
		),
		Paused: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "paused",
				Help:      "1 while admissions are paused",
			},
		),
		BudgetLimit: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "budget_limit",
				Help:      "Load ceiling in force per component",
			},
			[]string{"source"},
		),
		sample: sample,
	}
}

// Observe implements events.Observer.
func (m *Metrics) Observe(evt events.Event) {
	m.Decisions.WithLabelValues(string(evt.Source), string(evt.Kind)).Inc()
	if evt.Limit > 0 {
		m.BudgetLimit.WithLabelValues(string(evt.Source)).Set(float64(evt.Limit))
	}

	switch evt.Kind {
	case events.BudgetExceeded, events.SurfaceRefused:
		m.ProjectedLoad.Observe(float64(evt.Load))
	}

	if m.sample == nil {
		switch evt.Source {
		case events.SourceArbiter:
			if evt.Kind != events.SurfaceRefused {
				m.ArbiterLoad.Set(float64(evt.Load))
			}
		case events.SourceController:
			if evt.Kind != events.BudgetExceeded {
				m.ControllerLoad.Set(float64(evt.Load))
			}
		}
		return
	}
	m.Refresh()
}

// Refresh reads a new sample into the gauges.
func (m *Metrics) Refresh() {
	if m.sample == nil {
		return
	}
	s := m.sample()
	m.ArbiterLoad.Set(float64(s.ArbiterLoad))
	m.ControllerLoad.Set(float64(s.ControllerLoad))
	m.ActiveAnimations.Set(float64(s.Active))
	m.QueueDepth.Set(float64(s.Queued))
	if s.Paused {
		m.Paused.Set(1)
	} else {
		m.Paused.Set(0)
	}
}
