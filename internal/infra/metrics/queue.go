package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(queueDepth, queueEventsTotal) }

var queueDepth = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "queue_depth",
		Help: "Events currently waiting in the upload queue.",
	},
)

var queueEventsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "queue_events_total",
		Help: "Events consumed from the upload queue, labeled by kind.",
	},
	[]string{"kind"}, // 'job', 'submit', 'batch'
)

func SetQueueDepth(n int64) { queueDepth.Set(float64(n)) }

func IncEvent(kind string) { queueEventsTotal.WithLabelValues(norm(kind)).Inc() }
