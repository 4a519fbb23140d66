package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "gymchat"

// Metrics groups the counters and gauges exported on /metrics.
// Instances are bound to a registerer so tests can use an isolated registry.
type Metrics struct {
	Connections         prometheus.Gauge
	OnlineUsers         prometheus.Gauge
	MessagesSaved       prometheus.Counter
	PersistenceFailures prometheus.Counter
	Deliveries          *prometheus.CounterVec
	DedupSuppressed     prometheus.Counter
	DedupEntriesSwept   prometheus.Counter
	ExpiredMessages     prometheus.Counter
	Invocations         *prometheus.CounterVec
	ProcessRSSBytes     prometheus.Gauge
	ProcessCPUPercent   prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Connections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "connections",
			Help: "Live connections currently registered.",
		}),
		OnlineUsers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "online_users",
			Help: "Users with at least one live connection.",
		}),
		MessagesSaved: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "messages_saved_total",
			Help: "Direct messages durably stored.",
		}),
		PersistenceFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "persistence_failures_total",
			Help: "Store operations that failed.",
		}),
		Deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "deliveries_total",
			Help: "Events pushed to connections, by result.",
		}, []string{"result"}),
		DedupSuppressed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "dedup_suppressed_total",
			Help: "Fan-outs skipped because the message id was already seen.",
		}),
		DedupEntriesSwept: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "dedup_entries_swept_total",
			Help: "Dedup entries dropped after the window elapsed.",
		}),
		ExpiredMessages: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "expired_messages_total",
			Help: "Messages removed by the expiry sweep.",
		}),
		Invocations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "invocations_total",
			Help: "Hub method invocations, by method and outcome kind.",
		}, []string{"method", "outcome"}),
		ProcessRSSBytes: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "process_rss_bytes",
			Help: "Resident memory of the server process.",
		}),
		ProcessCPUPercent: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "process_cpu_percent",
			Help: "CPU usage of the server process.",
		}),
	}
}
