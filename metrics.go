package serialsoc

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "serialsoc"

// metrics 为服务端指标；Registerer 为 nil 时照常计数但不注册。
// 同一 Registerer 上的多个 Server 需用 MetricLabels 区分。
type metrics struct {
	connections   prometheus.Gauge
	accepted      prometheus.Counter
	linesReceived prometheus.Counter
	linesSent     prometheus.Counter
	tasks         prometheus.Counter
	taskDuration  prometheus.Histogram
	failures      prometheus.Counter
}

func newMetrics(reg prometheus.Registerer, labels prometheus.Labels) *metrics {
	factory := promauto.With(reg)

	return &metrics{
		connections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   metricsNamespace,
			Name:        "connections",
			Help:        "Number of connections between onConnect and onDisconnect",
			ConstLabels: labels,
		}),
		accepted: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "connections_accepted_total",
			Help:        "Total number of transports returned by the listener",
			ConstLabels: labels,
		}),
		linesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "lines_received_total",
			Help:        "Total number of lines delivered to Receive",
			ConstLabels: labels,
		}),
		linesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "lines_sent_total",
			Help:        "Total number of lines flushed by Send",
			ConstLabels: labels,
		}),
		tasks: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "tasks_total",
			Help:        "Total number of tasks executed on the controlling goroutine",
			ConstLabels: labels,
		}),
		taskDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   metricsNamespace,
			Name:        "task_duration_seconds",
			Help:        "Task execution time on the controlling goroutine",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
		failures: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "failures_total",
			Help:        "Total number of uncaught failures passed to OnException",
			ConstLabels: labels,
		}),
	}
}
