package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// CacheMetrics counts the resolve outcomes the cache can take. All methods
// are nil-safe so call sites do not have to guard against a disabled setup.
type CacheMetrics struct {
	registry           *prometheus.Registry
	hits               prometheus.Counter
	misses             prometheus.Counter
	driftRepairs       prometheus.Counter
	embedFallbacks     prometheus.Counter
	generationFailures prometheus.Counter
	resolveDuration    prometheus.Histogram
}

func NewCacheMetrics() *CacheMetrics {
	m := &CacheMetrics{
		registry: prometheus.NewRegistry(),
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scry",
			Subsystem: "imagecache",
			Name:      "hits_total",
			Help:      "Resolves served from the cache",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scry",
			Subsystem: "imagecache",
			Name:      "misses_total",
			Help:      "Resolves that generated a new image",
		}),
		driftRepairs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scry",
			Subsystem: "imagecache",
			Name:      "drift_repairs_total",
			Help:      "Index entries pruned because the asset file was gone",
		}),
		embedFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scry",
			Subsystem: "imagecache",
			Name:      "embed_fallbacks_total",
			Help:      "Resolves that skipped the cache because embedding failed",
		}),
		generationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scry",
			Subsystem: "imagecache",
			Name:      "generation_failures_total",
			Help:      "Resolves that failed at image generation",
		}),
		resolveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "scry",
			Subsystem: "imagecache",
			Name:      "resolve_duration_seconds",
			Help:      "Wall time of a full resolve",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	m.registry.MustRegister(
		m.hits,
		m.misses,
		m.driftRepairs,
		m.embedFallbacks,
		m.generationFailures,
		m.resolveDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *CacheMetrics) IncHit() {
	if m == nil {
		return
	}
	m.hits.Inc()
}

func (m *CacheMetrics) IncMiss() {
	if m == nil {
		return
	}
	m.misses.Inc()
}

func (m *CacheMetrics) IncDriftRepair() {
	if m == nil {
		return
	}
	m.driftRepairs.Inc()
}

func (m *CacheMetrics) IncEmbedFallback() {
	if m == nil {
		return
	}
	m.embedFallbacks.Inc()
}

func (m *CacheMetrics) IncGenerationFailure() {
	if m == nil {
		return
	}
	m.generationFailures.Inc()
}

func (m *CacheMetrics) ObserveResolveSeconds(seconds float64) {
	if m == nil {
		return
	}
	m.resolveDuration.Observe(seconds)
}

// Handler exposes the registry in Prometheus text format.
func (m *CacheMetrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
