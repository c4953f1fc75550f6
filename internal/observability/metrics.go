package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/efebarandurmaz/qre/internal/errs"
	"github.com/efebarandurmaz/qre/internal/formula"
)

const (
	namespace = "qre"
	subsystem = "estimator"
)

// EstimatorMetrics holds the prometheus collectors of the estimator and its
// adapters. Each instance owns its registry.
type EstimatorMetrics struct {
	Registry *prometheus.Registry

	EstimatesTotal     *prometheus.CounterVec
	EstimateDuration   *prometheus.HistogramVec
	StageDuration      *prometheus.HistogramVec
	FactoryCandidates  prometheus.Counter
	HTTPRequestsTotal  *prometheus.CounterVec
	BatchJobsTotal     *prometheus.CounterVec
	ActiveWorkers      prometheus.Gauge
	formulaCacheHits   prometheus.CounterFunc
	formulaCacheMisses prometheus.CounterFunc
}

// NewEstimatorMetrics creates and registers all collectors on a fresh registry.
func NewEstimatorMetrics() *EstimatorMetrics {
	r := prometheus.NewRegistry()
	m := &EstimatorMetrics{
		Registry: r,
		EstimatesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "estimates_total",
				Help:      "Estimations by status and error kind.",
			},
			[]string{"status", "kind"},
		),
		EstimateDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "estimate_duration_seconds",
				Help:      "Wall time of a complete estimation.",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 16), // 100µs to ~3s
			},
			[]string{"status"},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "stage_duration_seconds",
				Help:      "Wall time of a single pipeline stage.",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 2, 16), // 10µs to ~300ms
			},
			[]string{"stage", "result"},
		),
		FactoryCandidates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tfactory_candidates_total",
			Help:      "Distillation rounds evaluated while searching for T factories.",
		}),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests by route and status code.",
			},
			[]string{"route", "code"},
		),
		BatchJobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "batch",
				Name:      "jobs_total",
				Help:      "Batch jobs by status.",
			},
			[]string{"status"},
		),
		ActiveWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "temporal",
			Name:      "active_workers",
			Help:      "Number of running Temporal workers.",
		}),
		formulaCacheHits: prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "formula",
			Name:      "cache_hits_total",
			Help:      "Formula compilations served from the program cache.",
		}, func() float64 {
			hits, _ := formula.CacheStats()
			return float64(hits)
		}),
		formulaCacheMisses: prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "formula",
			Name:      "cache_misses_total",
			Help:      "Formula compilations that built a new CEL program.",
		}, func() float64 {
			_, misses := formula.CacheStats()
			return float64(misses)
		}),
	}
	r.MustRegister(
		m.EstimatesTotal,
		m.EstimateDuration,
		m.StageDuration,
		m.FactoryCandidates,
		m.HTTPRequestsTotal,
		m.BatchJobsTotal,
		m.ActiveWorkers,
		m.formulaCacheHits,
		m.formulaCacheMisses,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *EstimatorMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// ObserveStage records the duration of one pipeline stage.
func (m *EstimatorMetrics) ObserveStage(stage string, d time.Duration, err error) {
	m.StageDuration.WithLabelValues(stage, result(err)).Observe(d.Seconds())
}

// ObserveFactoryCandidates adds the candidates of one factory search.
func (m *EstimatorMetrics) ObserveFactoryCandidates(n int) {
	m.FactoryCandidates.Add(float64(n))
}

// RecordEstimate records a finished estimation. The kind label is empty on
// success.
func (m *EstimatorMetrics) RecordEstimate(d time.Duration, err error) {
	status := "Success"
	if err != nil {
		status = "Failed"
	}
	m.EstimatesTotal.WithLabelValues(status, string(errs.KindOf(err))).Inc()
	m.EstimateDuration.WithLabelValues(status).Observe(d.Seconds())
}

// RecordBatchJob records one job of a batch.
func (m *EstimatorMetrics) RecordBatchJob(err error) {
	m.BatchJobsTotal.WithLabelValues(result(err)).Inc()
}

// RecordHTTPRequest records a served HTTP request.
func (m *EstimatorMetrics) RecordHTTPRequest(route string, code int) {
	m.HTTPRequestsTotal.WithLabelValues(route, statusText(code)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func statusText(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

var (
	globalMetrics *EstimatorMetrics
	metricsOnce   sync.Once
)

// Metrics returns the process-wide metrics instance.
func Metrics() *EstimatorMetrics {
	metricsOnce.Do(func() {
		globalMetrics = NewEstimatorMetrics()
	})
	return globalMetrics
}
