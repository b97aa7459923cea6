// Package prometheus exports search and catalog metrics in the Prometheus format.
package prometheus

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/custodia-labs/vetrina/internal/core/ports/driven"
)

// Ensure Observer implements the interface.
var _ driven.SearchObserver = (*Observer)(nil)

const namespace = "vetrina"

// Observer records search events into its own registry.
type Observer struct {
	registry *prometheus.Registry

	searches      *prometheus.CounterVec
	results       *prometheus.CounterVec
	skippedHits   prometheus.Counter
	brandFallback prometheus.Counter
	duration      prometheus.Histogram
	reloads       *prometheus.CounterVec
	catalogSize   prometheus.Gauge
}

// NewObserver creates an observer with a fresh registry that also carries
// the Go runtime and process collectors.
func NewObserver() *Observer {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Observer{
		registry: reg,
		searches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "searches_total",
				Help:      "Completed searches by outcome",
			},
			[]string{"outcome"},
		),
		results: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "search_results_total",
				Help:      "Products returned by retrieval phase",
			},
			[]string{"match_type"},
		),
		skippedHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_skipped_hits_total",
			Help:      "Vector hits dropped because their position had no metadata record",
		}),
		brandFallback: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_brand_fallback_total",
			Help:      "Searches whose brand filter matched nothing and fell back to semantic search",
		}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Search latency in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		}),
		reloads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "catalog_reloads_total",
				Help:      "Catalog reload attempts by result",
			},
			[]string{"result"},
		),
		catalogSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_products",
			Help:      "Products in the catalog currently serving queries",
		}),
	}
}

// ObserveSearch records one completed search.
func (o *Observer) ObserveSearch(e driven.SearchEvent) {
	o.searches.WithLabelValues(e.Outcome).Inc()
	o.results.WithLabelValues("keyword").Add(float64(e.KeywordHits))
	o.results.WithLabelValues("semantic").Add(float64(e.SemanticHits))
	o.skippedHits.Add(float64(e.SkippedHits))
	if e.BrandFallback {
		o.brandFallback.Inc()
	}
	o.duration.Observe(e.Duration.Seconds())
}

// ObserveReload records a catalog reload attempt and, on success, the new size.
func (o *Observer) ObserveReload(products int, err error) {
	if err != nil {
		o.reloads.WithLabelValues("error").Inc()
		return
	}
	o.reloads.WithLabelValues("ok").Inc()
	o.catalogSize.Set(float64(products))
}

// Handler serves the registry in the Prometheus exposition format.
func (o *Observer) Handler() http.Handler {
	return promhttp.HandlerFor(o.registry, promhttp.HandlerOpts{Registry: o.registry})
}

// Registry returns the underlying registry.
func (o *Observer) Registry() *prometheus.Registry {
	return o.registry
}
