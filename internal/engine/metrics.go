package engine

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/talgya/mini-economy/internal/agents"
)

// Metrics exports per-cycle allocation results.
type Metrics struct {
	Cycles        prometheus.Counter
	CycleDuration prometheus.Histogram
	Health        *prometheus.GaugeVec
	Imbalance     *prometheus.GaugeVec
	Value         *prometheus.GaugeVec
	FullTier      *prometheus.GaugeVec
	Residual      *prometheus.GaugeVec
	Supplied      prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "econsim",
			Name:      "cycles_total",
			Help:      "Allocation cycles completed.",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "econsim",
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of one allocation cycle across all pops.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		Health: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "econsim",
			Name:      "pop_health",
			Help:      "Satisfied against bounded demand, 0 to 1.",
		}, []string{"pop"}),
		Imbalance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "econsim",
			Name:      "pop_imbalance",
			Help:      "Bounded demand left unsatisfied.",
		}, []string{"pop"}),
		Value: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "econsim",
			Name:      "pop_satisfaction_value",
			Help:      "Satisfied quantity weighted by tier.",
		}, []string{"pop"}),
		FullTier: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "econsim",
			Name:      "pop_full_tier",
			Help:      "Highest tier fully satisfied.",
		}, []string{"pop"}),
		Residual: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "econsim",
			Name:      "pop_residual",
			Help:      "Projected quantity the commit could not deliver.",
		}, []string{"pop", "kind"}),
		Supplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "econsim",
			Name:      "supplied_quantity_total",
			Help:      "Product quantity delivered by the supply generator.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Cycles, m.CycleDuration, m.Health, m.Imbalance, m.Value, m.FullTier, m.Residual, m.Supplied)
	}
	return m
}

// Observe records one pop's cycle report.
func (m *Metrics) Observe(r agents.CycleReport) {
	if m == nil {
		return
	}
	m.Health.WithLabelValues(r.PopName).Set(r.Health)
	m.Imbalance.WithLabelValues(r.PopName).Set(r.Imbalance)
	m.Value.WithLabelValues(r.PopName).Set(r.Value)
	m.FullTier.WithLabelValues(r.PopName).Set(float64(r.FullTier))
	m.Residual.WithLabelValues(r.PopName, "product").Set(r.Residual.ProductTotal())
	m.Residual.WithLabelValues(r.PopName, "want").Set(r.Residual.WantTotal())
}
