// Package metrics exposes aggregation runs to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"offer-hunter/pkg/models"
)

// Collector implements aggregator.Recorder.
type Collector struct {
	sourceResults *prometheus.CounterVec
	sourceLatency *prometheus.HistogramVec
	sourceOffers  *prometheus.GaugeVec
	runDuration   prometheus.Histogram
	runsTotal     prometheus.Counter
	cheapestPrice prometheus.Gauge
}

// NewCollector registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		sourceResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "offerhunter_source_results_total",
			Help: "Source outcomes by status and reason.",
		}, []string{"source", "status", "reason"}),
		sourceLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "offerhunter_source_latency_seconds",
			Help:    "Time spent waiting on each source.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
		}, []string{"source"}),
		sourceOffers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "offerhunter_source_offers",
			Help: "Offers returned by each source in its latest run.",
		}, []string{"source"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "offerhunter_run_duration_seconds",
			Help:    "Duration of a full aggregation run.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		}),
		runsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "offerhunter_runs_total",
			Help: "Completed aggregation runs.",
		}),
		cheapestPrice: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "offerhunter_cheapest_price_inr",
			Help: "Cheapest price found by the latest run, 0 when none.",
		}),
	}

	reg.MustRegister(
		c.sourceResults,
		c.sourceLatency,
		c.sourceOffers,
		c.runDuration,
		c.runsTotal,
		c.cheapestPrice,
	)
	return c
}

func (c *Collector) RecordSource(res models.SourceResult, elapsed time.Duration) {
	reason := string(res.Reason)
	if reason == "" {
		reason = "none"
	}
	c.sourceResults.WithLabelValues(res.Source, string(res.Status), reason).Inc()
	c.sourceLatency.WithLabelValues(res.Source).Observe(elapsed.Seconds())
	c.sourceOffers.WithLabelValues(res.Source).Set(float64(len(res.Offers)))
}

func (c *Collector) RecordRun(res models.AggregatedResult, elapsed time.Duration) {
	c.runsTotal.Inc()
	c.runDuration.Observe(elapsed.Seconds())
	if res.Cheapest != nil {
		c.cheapestPrice.Set(res.Cheapest.Price)
	} else {
		c.cheapestPrice.Set(0)
	}
}

// Handler serves the scrape endpoint for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
