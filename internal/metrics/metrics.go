// Package metrics exposes Prometheus instrumentation for the scan and
// checkout pipelines.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ScansTotal counts scan pipeline runs by outcome
	ScansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gradecart_scans_total",
		Help: "Scan pipeline runs by outcome",
	}, []string{"status"})

	// PagesProcessed counts individual pages sent through extraction
	PagesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gradecart_pages_processed_total",
		Help: "Pages sent through the extraction provider",
	})

	// ExtractionSeconds observes end-to-end extraction latency per scan
	ExtractionSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gradecart_extraction_seconds",
		Help:    "End-to-end extraction latency per scan",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})

	// CatalogMatches counts catalog lookups by outcome
	CatalogMatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gradecart_catalog_matches_total",
		Help: "Catalog product lookups by outcome",
	}, []string{"outcome"})

	// CheckoutsTotal counts checkout attempts by outcome
	CheckoutsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gradecart_checkouts_total",
		Help: "Checkout attempts by outcome",
	}, []string{"status"})
)

// Handler returns the Prometheus scrape handler
func Handler() http.Handler {
	return promhttp.Handler()
}
