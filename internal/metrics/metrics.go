// Package metrics exposes Prometheus collectors for the crawler.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Visit outcome labels.
const (
	OutcomeCommitted = "committed"
	OutcomeAbandoned = "abandoned"
	OutcomeSkipped   = "skipped"
)

var (
	visitsTotal       *prometheus.CounterVec
	fetchRetriesTotal prometheus.Counter
	rowsIngestedTotal *prometheus.CounterVec
	activeVisits      prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		visitsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "genealogy_visits_total",
				Help: "Total number of node visits, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		fetchRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "genealogy_fetch_retries_total",
				Help: "Total number of fetch retry attempts.",
			},
		)

		rowsIngestedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "genealogy_nodes_ingested_total",
				Help: "Total number of node transactions committed, labeled by kind.",
			},
			[]string{"kind"},
		)

		activeVisits = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "genealogy_active_visits",
				Help: "Number of visits currently in flight.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveVisit increments the visit counter for the given outcome.
func ObserveVisit(outcome string) {
	if visitsTotal == nil {
		return
	}
	visitsTotal.WithLabelValues(outcome).Inc()
}

// ObserveFetchRetry increments the fetch retry counter.
func ObserveFetchRetry() {
	if fetchRetriesTotal == nil {
		return
	}
	fetchRetriesTotal.Inc()
}

// ObserveIngest increments the ingest counter for the given kind
// ("visited" for the node itself, "neighbor" for one-hop stubs).
func ObserveIngest(kind string) {
	if rowsIngestedTotal == nil {
		return
	}
	rowsIngestedTotal.WithLabelValues(kind).Inc()
}

// IncActiveVisits increments the in-flight visit gauge.
func IncActiveVisits() {
	if activeVisits == nil {
		return
	}
	activeVisits.Inc()
}

// DecActiveVisits decrements the in-flight visit gauge.
func DecActiveVisits() {
	if activeVisits == nil {
		return
	}
	activeVisits.Dec()
}
