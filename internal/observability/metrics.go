package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the simulator.
type Metrics struct {
	// Simulation metrics.
	Simulations         *prometheus.CounterVec   // labels: crop, climate_source
	YieldEstimate       *prometheus.HistogramVec // labels: crop
	SustainabilityScore *prometheus.HistogramVec // labels: crop
	ClimateFallbacks    prometheus.Counter

	// Climate provider metrics.
	ClimateRequests    *prometheus.CounterVec // labels: outcome={success,error,empty}
	ClimateCache       *prometheus.CounterVec // labels: result={hit,miss}
	ClimateAPIDuration prometheus.Histogram
	BreakerState       prometheus.Gauge // 0 closed, 1 half-open, 2 open

	// Outcome publishing metrics.
	OutcomesPublished prometheus.Counter
	PublishErrors     prometheus.Counter
}

// NewMetrics creates and registers all simulator metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics(true)

	prometheus.MustRegister(
		m.Simulations,
		m.YieldEstimate,
		m.SustainabilityScore,
		m.ClimateFallbacks,
		m.ClimateRequests,
		m.ClimateCache,
		m.ClimateAPIDuration,
		m.BreakerState,
		m.OutcomesPublished,
		m.PublishErrors,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics(false)
}

func newMetrics(withHelp bool) *Metrics {
	help := func(s string) string {
		if withHelp {
			return s
		}
		return ""
	}

	return &Metrics{
		Simulations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agrisense",
			Name:      "simulations_total",
			Help:      help("Seasons simulated by crop and climate source."),
		}, []string{"crop", "climate_source"}),
		YieldEstimate: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agrisense",
			Name:      "yield_tons_per_hectare",
			Help:      help("Estimated yield per simulated season."),
			Buckets:   []float64{0.5, 1, 2, 3, 4, 5, 6, 8, 10, 12},
		}, []string{"crop"}),
		SustainabilityScore: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agrisense",
			Name:      "sustainability_score",
			Help:      help("Sustainability score per simulated season."),
			Buckets:   []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		}, []string{"crop"}),
		ClimateFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agrisense",
			Name:      "climate_fallbacks_total",
			Help:      help("Times the fallback climate averages were substituted."),
		}),
		ClimateRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agrisense",
			Name:      "climate_requests_total",
			Help:      help("NASA POWER requests by outcome."),
		}, []string{"outcome"}),
		ClimateCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agrisense",
			Name:      "climate_cache_total",
			Help:      help("Climate series cache lookups by result."),
		}, []string{"result"}),
		ClimateAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "agrisense",
			Name:      "climate_api_duration_seconds",
			Help:      help("NASA POWER request duration in seconds."),
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		BreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "agrisense",
			Name:      "climate_breaker_state",
			Help:      help("Climate provider circuit breaker state: 0 closed, 1 half-open, 2 open."),
		}),
		OutcomesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agrisense",
			Name:      "outcomes_published_total",
			Help:      help("Season outcomes written to the outcome topic."),
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agrisense",
			Name:      "outcome_publish_errors_total",
			Help:      help("Season outcomes that failed to publish."),
		}),
	}
}
