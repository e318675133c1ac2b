// Package metrics exposes prometheus instrumentation for scrapes and fetches.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/FranksOps/stylus/internal/extract"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ScrapesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stylus_scrapes_total",
			Help: "Total number of page scrapes by outcome",
		},
		[]string{"outcome"},
	)

	RecordsPerScrape = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stylus_scrape_records",
			Help:    "Number of records produced per scrape",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
		},
	)

	LocatorHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stylus_locator_hits_total",
			Help: "Locators first discovered by each locator strategy",
		},
		[]string{"strategy"},
	)

	FieldHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stylus_field_hits_total",
			Help: "Fields resolved by each field strategy",
		},
		[]string{"field", "strategy"},
	)

	HeuristicFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stylus_heuristic_failures_total",
			Help: "Heuristic steps that panicked and were skipped",
		},
	)

	FetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stylus_fetches_total",
			Help: "Document loads by loader and status",
		},
		[]string{"loader", "status"},
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stylus_fetch_duration_seconds",
			Help:    "Duration of document loads in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"loader"},
	)

	Challenges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stylus_challenges_total",
			Help: "Bot challenges and login walls detected",
		},
		[]string{"source"},
	)
)

// Outcome classifies a scrape for ScrapesTotal.
func Outcome(res extract.Result) string {
	switch {
	case len(res.Diagnostics.Failures) > 0:
		return "degraded"
	case len(res.Records) == 0:
		return "empty"
	default:
		return "ok"
	}
}

// RecordScrape counts one scrape result.
func RecordScrape(res extract.Result) {
	d := res.Diagnostics
	ScrapesTotal.WithLabelValues(Outcome(res)).Inc()
	RecordsPerScrape.Observe(float64(len(res.Records)))
	for name, n := range d.LocatorHits {
		LocatorHits.WithLabelValues(name).Add(float64(n))
	}
	for key, n := range d.FieldHits {
		field, strategy, _ := strings.Cut(key, ":")
		FieldHits.WithLabelValues(field, strategy).Add(float64(n))
	}
	HeuristicFailures.Add(float64(len(d.Failures)))
}

// RecordFetch counts one document load. A non-nil err is labelled "error".
func RecordFetch(loader string, status int, elapsed time.Duration, err error) {
	label := strconv.Itoa(status)
	if err != nil {
		label = "error"
	}
	FetchesTotal.WithLabelValues(loader, label).Inc()
	FetchDuration.WithLabelValues(loader).Observe(elapsed.Seconds())
}

// RecordChallenge counts a detected challenge page.
func RecordChallenge(source string) {
	Challenges.WithLabelValues(source).Inc()
}

// Handler serves the default registry in the prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
