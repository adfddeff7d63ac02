package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(notificationsTotal) }

var notificationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "notifications_total",
		Help: "Notification deliveries by kind and result.",
	},
	[]string{"kind", "success"}, // kind: 'job', 'batch'
)

func IncNotification(kind string, ok bool) {
	notificationsTotal.WithLabelValues(norm(kind), strconv.FormatBool(ok)).Inc()
}
