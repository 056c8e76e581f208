// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "artvote"

// Metrics holds the admission counters. A nil *Metrics records nothing.
type Metrics struct {
	outcomes         *prometheus.CounterVec
	limiterDecisions *prometheus.CounterVec
	admissionSeconds *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vote_outcomes_total",
			Help:      "Vote submissions by outcome and code.",
		}, []string{"outcome", "code"}),
		limiterDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "limiter_decisions_total",
			Help:      "Rate limiter decisions by limiter and result.",
		}, []string{"limiter", "result"}),
		admissionSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "vote_admission_seconds",
			Help:      "Time spent admitting a vote, by outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.outcomes, m.limiterDecisions, m.admissionSeconds)
	return m
}

// ObserveOutcome counts one finished vote submission.
func (m *Metrics) ObserveOutcome(outcome, code string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(outcome, code).Inc()
	m.admissionSeconds.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// Limiter decision results
const (
	ResultAllowed     = "allowed"
	ResultDenied      = "denied"
	ResultDegraded    = "degraded"
	ResultUnavailable = "unavailable"
)

// ObserveLimiter counts one limiter decision.
func (m *Metrics) ObserveLimiter(limiter, result string) {
	if m == nil {
		return
	}
	m.limiterDecisions.WithLabelValues(limiter, result).Inc()
}
