// Package metrics exposes Prometheus collectors for the filter engine.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	filtersParsedTotal   *prometheus.CounterVec
	matchQueriesTotal    *prometheus.CounterVec
	selectorQueriesTotal prometheus.Counter

	once sync.Once
)

// Init initializes the Prometheus collectors. It is safe to call this
// function multiple times.
func Init() {
	once.Do(func() {
		filtersParsedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "abpcore_filters_parsed_total",
				Help: "Total number of filter lines parsed, labeled by resulting type.",
			},
			[]string{"type"},
		)

		matchQueriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "abpcore_match_queries_total",
				Help: "Total number of request match queries, labeled by decision.",
			},
			[]string{"decision"},
		)

		selectorQueriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "abpcore_selector_queries_total",
				Help: "Total number of element-hiding selector queries.",
			},
		)
	})
}

// ObserveFilterParsed records one parsed filter line.
func ObserveFilterParsed(filterType string) {
	if filtersParsedTotal != nil {
		filtersParsedTotal.WithLabelValues(filterType).Inc()
	}
}

// ObserveMatchQuery records one match decision.
func ObserveMatchQuery(decision string) {
	if matchQueriesTotal != nil {
		matchQueriesTotal.WithLabelValues(decision).Inc()
	}
}

// ObserveSelectorQuery records one selector lookup.
func ObserveSelectorQuery() {
	if selectorQueriesTotal != nil {
		selectorQueriesTotal.Inc()
	}
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
