package sfsquery

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sfsquery"

var (
	queriesTotal       *prometheus.CounterVec
	fetchAttemptsTotal *prometheus.CounterVec
	metricsOnce        sync.Once
)

// initMetrics initializes and registers query metrics with appropriate registry.
// Uses sync.Once to ensure single initialization across parallel tests.
func initMetrics() {
	metricsOnce.Do(func() {
		var registry prometheus.Registerer = prometheus.DefaultRegisterer

		if testing.Testing() {
			// Use isolated registry in tests to avoid metric collisions
			registry = prometheus.NewRegistry()
		}

		queriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Total number of lookups performed, by mode and outcome.",
		}, []string{"mode", "outcome"})

		fetchAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_attempts_total",
			Help:      "Total number of API fetch attempts, by fetcher and result.",
		}, []string{"fetcher", "result"})

		registry.MustRegister(queriesTotal, fetchAttemptsTotal)
	})
}

// incQuery counts one completed lookup.
func incQuery(mode Mode, err error) {
	if queriesTotal != nil {
		queriesTotal.WithLabelValues(mode.String(), errorLabel(err)).Inc()
	}
}

// incFetchAttempt counts one fetcher invocation.
func incFetchAttempt(fetcher string, err error) {
	if fetchAttemptsTotal != nil {
		result := "ok"
		if err != nil {
			result = "error"
		}
		fetchAttemptsTotal.WithLabelValues(fetcher, result).Inc()
	}
}
