package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/lostfound-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	itemTransitions *prometheus.CounterVec
	itemsCreated    *prometheus.CounterVec
	logins          *prometheus.CounterVec
	photoCleanup    *prometheus.CounterVec
}

// NewMetricsService registers core Prometheus collectors on a private registry.
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

	itemTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lostfound_item_transitions_total",
		Help: "Item status transitions by origin and target status",
	}, []string{"from", "to"})

	itemsCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lostfound_items_created_total",
		Help: "Items registered by initial status",
	}, []string{"status"})

	logins := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lostfound_logins_total",
		Help: "Login attempts by result",
	}, []string{"result"})

	photoCleanup := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lostfound_photo_cleanup_total",
		Help: "Photo removals by result",
	}, []string{"result"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, itemTransitions, itemsCreated, logins, photoCleanup, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		itemTransitions: itemTransitions,
		itemsCreated:    itemsCreated,
		logins:          logins,
		photoCleanup:    photoCleanup,
	}
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

// ObserveItemCreated counts a newly registered item.
func (m *MetricsService) ObserveItemCreated(status models.ItemStatus) {
	if m == nil {
		return
	}
	m.itemsCreated.WithLabelValues(string(status)).Inc()
}

// ObserveItemTransition counts a status change.
func (m *MetricsService) ObserveItemTransition(from, to models.ItemStatus) {
	if m == nil {
		return
	}
	m.itemTransitions.WithLabelValues(string(from), string(to)).Inc()
}

// ObserveLogin counts a login attempt.
func (m *MetricsService) ObserveLogin(success bool) {
	if m == nil {
		return
	}
	result := "failure"
	if success {
		result = "success"
	}
	m.logins.WithLabelValues(result).Inc()
}

// ObservePhotoCleanup counts a photo removal outcome.
func (m *MetricsService) ObservePhotoCleanup(success bool) {
	if m == nil {
		return
	}
	result := "failure"
	if success {
		result = "success"
	}
	m.photoCleanup.WithLabelValues(result).Inc()
}
