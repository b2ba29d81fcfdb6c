// Copyright 2025 Omnilock Labs
//
// Processor Metrics
// Prometheus counters for the state machine lifecycle

package relayer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the processor's Prometheus collectors
type Metrics struct {
	ObservedTotal    prometheus.Counter
	TransitionsTotal *prometheus.CounterVec
	RetriesTotal     prometheus.Counter
	RollbacksTotal   prometheus.Counter
	SettlementsTotal *prometheus.CounterVec
	EventsTotal      prometheus.Counter
}

// NewMetrics registers the processor collectors with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ObservedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "relayer",
			Name:      "messages_observed_total",
			Help:      "Cross-chain requests ingested from the source chain.",
		}),
		TransitionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relayer",
			Name:      "state_transitions_total",
			Help:      "Completed state machine transitions.",
		}, []string{"from", "to"}),
		RetriesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "relayer",
			Name:      "retries_total",
			Help:      "Transition attempts that failed and were scheduled for retry.",
		}),
		RollbacksTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "relayer",
			Name:      "rollbacks_total",
			Help:      "Messages rolled back after retry budget exhaustion.",
		}),
		SettlementsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relayer",
			Name:      "settlements_total",
			Help:      "Settlement callbacks by mode (confirmed or simulated).",
		}, []string{"mode"}),
		EventsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "relayer",
			Name:      "lifecycle_events_total",
			Help:      "Lifecycle events persisted to the journal.",
		}),
	}
}
