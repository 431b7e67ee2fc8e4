// Package monitoring exports engine metrics and raises webhook alerts when
// recent reports drift out of their expected shape.
package monitoring

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"

	"github.com/connectingdocs/match-engine/internal/model"
)

// Metrics holds the Prometheus collectors updated while building reports.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	reports         *prometheus.CounterVec
	rangeViolations *prometheus.CounterVec
	classification  prometheus.Counter
	resimulations   prometheus.Counter
	alignment       prometheus.Histogram
}

// NewMetrics registers the engine collectors on reg, defaulting to the
// Prometheus default registerer. Registering twice reuses the existing
// collectors.
func NewMetrics(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	if namespace == "" {
		namespace = "match_engine"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{}
	var err error
	if m.reports, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reports_total",
		Help:      "Reports built, by status.",
	}, []string{"status"})); err != nil {
		return nil, err
	}
	if m.rangeViolations, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "range_violations_total",
		Help:      "Sub-scores computed outside [0,100], by axis.",
	}, []string{"axis"})); err != nil {
		return nil, err
	}
	if m.classification, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "classification_errors_total",
		Help:      "Risk levels outside the known vocabulary.",
	})); err != nil {
		return nil, err
	}
	if m.resimulations, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "resimulations_total",
		Help:      "What-if resimulations served.",
	})); err != nil {
		return nil, err
	}
	if m.alignment, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "alignment_score",
		Help:      "Alignment score of matched reports.",
		Buckets:   prometheus.LinearBuckets(0, 10, 11),
	})); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, eris.Wrap(err, "monitoring: register metric")
	}
	return c, nil
}

// ObserveReport records the status and alignment of a built report.
func (m *Metrics) ObserveReport(r *model.Report) {
	if m == nil || r == nil {
		return
	}
	m.reports.WithLabelValues(string(r.Status)).Inc()
	if r.Status == model.ReportMatched {
		m.alignment.Observe(float64(r.AlignmentScore))
	}
}

// RangeViolation records a sub-score outside its declared range.
func (m *Metrics) RangeViolation(axis string) {
	if m == nil {
		return
	}
	m.rangeViolations.WithLabelValues(axis).Inc()
}

// ClassificationError records an unknown risk level.
func (m *Metrics) ClassificationError() {
	if m == nil {
		return
	}
	m.classification.Inc()
}

// Resimulation records a served what-if request.
func (m *Metrics) Resimulation() {
	if m == nil {
		return
	}
	m.resimulations.Inc()
}
