// Package metrics holds the Prometheus registries for the api and worker
// binaries. Each binary owns its registry; nothing registers globally.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Task outcomes recorded per consumed queue message.
const (
	OutcomeSuccess = "success"
	OutcomeRetry   = "retry"
	OutcomeError   = "error"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	taskTotal    *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec
	taskInFlight *prometheus.GaugeVec
	queueLag     *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	taskTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "diagramflow",
			Subsystem: "worker",
			Name:      "task_total",
			Help:      "Total consumed tasks by kind and outcome.",
		},
		[]string{"service", "task", "outcome"},
	)
	taskDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "diagramflow",
			Subsystem: "worker",
			Name:      "task_duration_seconds",
			Help:      "Task handler duration in seconds by kind and outcome.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "task", "outcome"},
	)
	taskInFlight := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "diagramflow",
			Subsystem: "worker",
			Name:      "task_in_flight",
			Help:      "Number of in-flight task handlers.",
		},
		[]string{"service", "task"},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "diagramflow",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between entity creation and task handling start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service", "task"},
	)

	registry.MustRegister(taskTotal, taskDuration, taskInFlight, queueLag)

	return &WorkerMetrics{
		registry:     registry,
		taskTotal:    taskTotal,
		taskDuration: taskDuration,
		taskInFlight: taskInFlight,
		queueLag:     queueLag,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartTask(service, task string) {
	m.taskInFlight.WithLabelValues(service, task).Inc()
}

func (m *WorkerMetrics) FinishTask(service, task, outcome string, duration time.Duration) {
	m.taskInFlight.WithLabelValues(service, task).Dec()
	m.taskTotal.WithLabelValues(service, task, outcome).Inc()
	m.taskDuration.WithLabelValues(service, task, outcome).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveQueueLag(service, task string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service, task).Observe(lag.Seconds())
}
