package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	uploadBytes      *prometheus.HistogramVec
	eventSubscribers prometheus.Gauge
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "diagramflow",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "diagramflow",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "diagramflow",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	uploadBytes := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "diagramflow",
			Subsystem: "http",
			Name:      "upload_size_bytes",
			Help:      "Distribution of accepted document upload sizes.",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
		},
		[]string{"service"},
	)
	eventSubscribers := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "diagramflow",
			Subsystem: "http",
			Name:      "event_subscribers",
			Help:      "Number of connected progress event streams.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(requestTotal, requestDuration, requestInFlight, uploadBytes, eventSubscribers)

	return &HTTPServerMetrics{
		registry:         registry,
		requestTotal:     requestTotal,
		requestDuration:  requestDuration,
		requestInFlight:  requestInFlight,
		uploadBytes:      uploadBytes,
		eventSubscribers: eventSubscribers,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func (m *HTTPServerMetrics) RecordUpload(service string, size int64) {
	if size < 0 {
		return
	}
	m.uploadBytes.WithLabelValues(service).Observe(float64(size))
}

func (m *HTTPServerMetrics) EventStreamOpened() { m.eventSubscribers.Inc() }

func (m *HTTPServerMetrics) EventStreamClosed() { m.eventSubscribers.Dec() }

// normalizePath collapses per-entity URLs so the path label stays bounded.
func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/documents/"):
		rest := strings.TrimPrefix(path, "/v1/documents/")
		if strings.HasSuffix(rest, "/diagrams") {
			return "/v1/documents/{document_id}/diagrams"
		}
		if strings.HasSuffix(rest, "/events") {
			return "/v1/documents/{document_id}/events"
		}
		return "/v1/documents/{document_id}"
	case strings.HasPrefix(path, "/v1/diagrams/"):
		rest := strings.TrimPrefix(path, "/v1/diagrams/")
		if strings.HasSuffix(rest, "/fix-syntax") {
			return "/v1/diagrams/{diagram_id}/fix-syntax"
		}
		if strings.HasSuffix(rest, "/visibility") {
			return "/v1/diagrams/{diagram_id}/visibility"
		}
		if strings.HasSuffix(rest, "/related") {
			return "/v1/diagrams/{diagram_id}/related"
		}
		return "/v1/diagrams/{diagram_id}"
	case strings.HasPrefix(path, "/v1/moderation/") && path != "/v1/moderation/queue":
		if strings.HasSuffix(path, "/decision") {
			return "/v1/moderation/{diagram_id}/decision"
		}
		if strings.HasSuffix(path, "/log") {
			return "/v1/moderation/{diagram_id}/log"
		}
		return path
	default:
		return path
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// Flush keeps SSE streaming working through the middleware chain.
func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}
