package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus observability primitives for provisioning.
type Metrics struct {
	provisionAttempts *prometheus.CounterVec
	provisionDuration *prometheus.HistogramVec
	tasksProcessed    *prometheus.CounterVec
	taskDuration      *prometheus.HistogramVec
	taskBacklog       prometheus.Gauge
	deadTasks         prometheus.Gauge
}

// NewMetrics registers and returns Prometheus metrics.
func NewMetrics() *Metrics {
	provisionAttempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gatehouse_provision_attempts_total",
		Help: "Counts provisioning attempts by flow and outcome.",
	}, []string{"flow", "outcome"})

	provisionDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gatehouse_provision_duration_seconds",
		Help:    "Provisioning latency per flow.",
		Buckets: prometheus.DefBuckets,
	}, []string{"flow"})

	tasksProcessed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gatehouse_tasks_processed_total",
		Help: "Counts processed tasks by kind and status.",
	}, []string{"kind", "status"})

	taskDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gatehouse_task_duration_seconds",
		Help:    "Task handler durations by kind.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	taskBacklog := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gatehouse_task_backlog",
		Help: "Number of queued tasks awaiting a worker.",
	})

	deadTasks := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gatehouse_tasks_dead",
		Help: "Number of tasks that exhausted their retry budget.",
	})

	prometheus.MustRegister(
		provisionAttempts,
		provisionDuration,
		tasksProcessed,
		taskDuration,
		taskBacklog,
		deadTasks,
	)

	return &Metrics{
		provisionAttempts: provisionAttempts,
		provisionDuration: provisionDuration,
		tasksProcessed:    tasksProcessed,
		taskDuration:      taskDuration,
		taskBacklog:       taskBacklog,
		deadTasks:         deadTasks,
	}
}

func (m *Metrics) ObserveProvision(flow, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.provisionAttempts.WithLabelValues(flow, outcome).Inc()
	m.provisionDuration.WithLabelValues(flow).Observe(d.Seconds())
}

func (m *Metrics) ObserveTask(kind, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.tasksProcessed.WithLabelValues(kind, status).Inc()
	m.taskDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (m *Metrics) SetTaskBacklog(n int64) {
	if m == nil {
		return
	}
	m.taskBacklog.Set(float64(n))
}

func (m *Metrics) SetDeadTasks(n int64) {
	if m == nil {
		return
	}
	m.deadTasks.Set(float64(n))
}
