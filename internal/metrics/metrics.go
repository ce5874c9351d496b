// Package metrics exposes the risk core's Prometheus metrics: sizing
// decisions, confirmed exits, regime switches and cycle timing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all Prometheus metrics for the risk core.
type Registry struct {
	reg *prometheus.Registry

	SizingDecisions *prometheus.CounterVec
	ExitSignals     *prometheus.CounterVec
	RegimeSwitches  *prometheus.CounterVec
	TierTransitions *prometheus.CounterVec

	OpenPositions prometheus.Gauge
	ActiveRegime  *prometheus.GaugeVec
	CycleDuration prometheus.Histogram
	DataOutages   prometheus.Counter
}

// NewRegistry creates and registers all metrics on a private registry.
func NewRegistry() *Registry {
	r := &Registry{reg: prometheus.NewRegistry()}

	r.SizingDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "optiondesk_sizing_decisions_total",
			Help: "Sizing decisions by strategy, binding ceiling and feasibility",
		},
		[]string{"strategy", "binding", "feasible"},
	)

	r.ExitSignals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "optiondesk_exit_signals_total",
			Help: "Confirmed position exits by reason",
		},
		[]string{"reason"},
	)

	r.RegimeSwitches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "optiondesk_regime_switches_total",
			Help: "Volatility regime transitions",
		},
		[]string{"from", "to"},
	)

	r.TierTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "optiondesk_tier_transitions_total",
			Help: "Account tier transitions by direction",
		},
		[]string{"direction"},
	)

	r.OpenPositions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "optiondesk_open_positions",
			Help: "Positions currently open in the registry",
		},
	)

	r.ActiveRegime = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "optiondesk_active_regime",
			Help: "1 for the active volatility regime, 0 otherwise",
		},
		[]string{"regime"},
	)

	r.CycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "optiondesk_cycle_duration_seconds",
			Help:    "Duration of one full evaluation cycle",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		},
	)

	r.DataOutages = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "optiondesk_data_outages_total",
			Help: "Cycles that fell back to the conservative regime on missing data",
		},
	)

	r.reg.MustRegister(
		r.SizingDecisions, r.ExitSignals, r.RegimeSwitches, r.TierTransitions,
		r.OpenPositions, r.ActiveRegime, r.CycleDuration, r.DataOutages,
	)
	return r
}

// SetActiveRegime marks one regime active and the rest inactive.
func (r *Registry) SetActiveRegime(active string, all []string) {
	for _, name := range all {
		v := 0.0
		if name == active {
			v = 1.0
		}
		r.ActiveRegime.WithLabelValues(name).Set(v)
	}
}

// Handler returns the scrape endpoint for the private registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
