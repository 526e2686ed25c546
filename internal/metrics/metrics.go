package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "wotkit_dashboard"

// Metrics groups the dashboard collectors. A nil *Metrics is valid and
// records nothing, which keeps call sites free of nil checks.
type Metrics struct {
	requests       *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	staleResponses *prometheus.CounterVec
	viewReplaced   *prometheus.CounterVec
	selections     prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wotkit",
			Name:      "requests_total",
			Help:      "WoTKit API requests by operation and outcome.",
		}, []string{"operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "wotkit",
			Name:      "request_duration_seconds",
			Help:      "WoTKit API request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		staleResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_responses_total",
			Help:      "Responses discarded because a newer selection or search superseded them.",
		}, []string{"operation"}),
		viewReplaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "view_replacements_total",
			Help:      "Live view instances replaced, by view kind.",
		}, []string{"view"}),
		selections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "selections_total",
			Help:      "Sensor selections started.",
		}),
	}
	reg.MustRegister(m.requests, m.duration, m.staleResponses, m.viewReplaced, m.selections)
	return m
}

func (m *Metrics) ObserveRequest(op string, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(op, outcome).Inc()
	m.duration.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Metrics) StaleResponse(op string) {
	if m == nil {
		return
	}
	m.staleResponses.WithLabelValues(op).Inc()
}

func (m *Metrics) ViewReplaced(view string) {
	if m == nil {
		return
	}
	m.viewReplaced.WithLabelValues(view).Inc()
}

func (m *Metrics) SelectionStarted() {
	if m == nil {
		return
	}
	m.selections.Inc()
}

// RequestsCounter exposes a single requests_total series, mainly for tests.
func (m *Metrics) RequestsCounter(op string, outcome string) prometheus.Counter {
	return m.requests.WithLabelValues(op, outcome)
}

// StaleCounter exposes a single stale_responses_total series.
func (m *Metrics) StaleCounter(op string) prometheus.Counter {
	return m.staleResponses.WithLabelValues(op)
}

func (m *Metrics) ViewReplacedCounter(view string) prometheus.Counter {
	return m.viewReplaced.WithLabelValues(view)
}

func (m *Metrics) SelectionsCounter() prometheus.Counter {
	return m.selections
}
