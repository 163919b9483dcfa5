package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/akademik-fk/curriculum-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	validations     *prometheus.CounterVec
	conflicts       *prometheus.CounterVec
	importRows      prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	validations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_validations_total",
		Help: "Outcomes of schedule write validations",
	}, []string{"kind", "outcome"})

	conflicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_conflicts_total",
		Help: "Conflicts found during schedule write validation, by shared dimension",
	}, []string{"kind", "dimension"})

	importRows := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "schedule_import_rows_total",
		Help: "Rows persisted through batch import",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, validations, conflicts, importRows, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		validations:     validations,
		conflicts:       conflicts,
		importRows:      importRows,
	}
}

// RegisterQueueDepth exposes a gauge over a background queue's buffered
// job count.
func (m *MetricsService) RegisterQueueDepth(queue string, depth func() float64) {
	if m == nil {
		return
	}
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name:        "queue_depth",
		Help:        "Jobs buffered in a background queue",
		ConstLabels: prometheus.Labels{"queue": queue},
	}, depth))
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveValidation counts one schedule write validation outcome
// (ok, conflict, capacity or error) per kind.
func (m *MetricsService) ObserveValidation(kind models.Kind, outcome string) {
	if m == nil {
		return
	}
	m.validations.WithLabelValues(string(kind), outcome).Inc()
}

// ObserveConflict counts one detected conflict by the dimension the
// candidate shared with the existing entry.
func (m *MetricsService) ObserveConflict(kind models.Kind, dimension models.Dimension) {
	if m == nil {
		return
	}
	m.conflicts.WithLabelValues(string(kind), string(dimension)).Inc()
}

// ObserveImport counts rows persisted by a successful batch import.
func (m *MetricsService) ObserveImport(rows int) {
	if m == nil {
		return
	}
	m.importRows.Add(float64(rows))
}
