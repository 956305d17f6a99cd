package telemetry

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus instruments for the session core and route guard.
type Metrics struct {
	viewTransitions *prometheus.CounterVec
	staleResults    *prometheus.CounterVec
	profileLookup   *prometheus.HistogramVec
	guardDecisions  *prometheus.CounterVec
	liveControllers prometheus.Gauge
	reportedErrors  *prometheus.CounterVec
	sessionEvents   *prometheus.CounterVec
	policyReloads   *prometheus.CounterVec
}

// NewMetrics registers and returns the metrics on registerer. A nil registerer
// falls back to the default Prometheus registry.
func NewMetrics(registerer prometheus.Registerer) (*Metrics, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	viewTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "talentbay_auth_view_transitions_total",
		Help: "Auth view snapshots published, by resulting status.",
	}, []string{"status"})

	staleResults := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "talentbay_auth_stale_results_total",
		Help: "Asynchronous results discarded because a newer session event superseded them.",
	}, []string{"stage"})

	profileLookup := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "talentbay_profile_lookup_duration_seconds",
		Help:    "Profile lookup latency by outcome.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"outcome"})

	guardDecisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "talentbay_route_guard_decisions_total",
		Help: "Route guard decisions by decision kind and route requirement kind.",
	}, []string{"decision", "requirement"})

	liveControllers := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "talentbay_auth_controllers",
		Help: "Device session controllers currently held in memory.",
	})

	reportedErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "talentbay_reported_errors_total",
		Help: "Errors handed to the error sink, by kind.",
	}, []string{"kind"})

	sessionEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "talentbay_session_events_total",
		Help: "Session change events published, by kind.",
	}, []string{"kind"})

	policyReloads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "talentbay_route_policy_reloads_total",
		Help: "Route policy hot reloads by result.",
	}, []string{"result"})

	collectors := []prometheus.Collector{
		viewTransitions,
		staleResults,
		profileLookup,
		guardDecisions,
		liveControllers,
		reportedErrors,
		sessionEvents,
		policyReloads,
	}
	for _, c := range collectors {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}

	return &Metrics{
		viewTransitions: viewTransitions,
		staleResults:    staleResults,
		profileLookup:   profileLookup,
		guardDecisions:  guardDecisions,
		liveControllers: liveControllers,
		reportedErrors:  reportedErrors,
		sessionEvents:   sessionEvents,
		policyReloads:   policyReloads,
	}, nil
}

// RecordViewTransition counts a published auth view.
func (m *Metrics) RecordViewTransition(status string) {
	if m == nil {
		return
	}
	m.viewTransitions.WithLabelValues(sanitizeLabel(status)).Inc()
}

// RecordStaleResult counts a discarded session read or profile lookup.
func (m *Metrics) RecordStaleResult(stage string) {
	if m == nil {
		return
	}
	m.staleResults.WithLabelValues(sanitizeLabel(stage)).Inc()
}

// ObserveProfileLookup records lookup latency; outcome is found, absent or error.
func (m *Metrics) ObserveProfileLookup(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.profileLookup.WithLabelValues(sanitizeLabel(outcome)).Observe(duration.Seconds())
}

func (m *Metrics) RecordGuardDecision(decision, requirement string) {
	if m == nil {
		return
	}
	m.guardDecisions.WithLabelValues(sanitizeLabel(decision), sanitizeLabel(requirement)).Inc()
}

func (m *Metrics) SetLiveControllers(n int) {
	if m == nil {
		return
	}
	m.liveControllers.Set(float64(n))
}

func (m *Metrics) RecordReportedError(kind string) {
	if m == nil {
		return
	}
	m.reportedErrors.WithLabelValues(sanitizeLabel(kind)).Inc()
}

func (m *Metrics) RecordSessionEvent(kind string) {
	if m == nil {
		return
	}
	m.sessionEvents.WithLabelValues(sanitizeLabel(kind)).Inc()
}

func (m *Metrics) RecordPolicyReload(result string) {
	if m == nil {
		return
	}
	m.policyReloads.WithLabelValues(sanitizeLabel(result)).Inc()
}

func sanitizeLabel(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return "unknown"
	}
	return value
}
