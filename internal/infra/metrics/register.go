package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once    sync.Once
	pending []prometheus.Collector
)

// register is called by init() in each metrics file to enqueue collectors.
func register(cs ...prometheus.Collector) {
	pending = append(pending, cs...)
}

// MustRegister registers every enqueued collector with the default
// Prometheus registry, exactly once.
func MustRegister() {
	once.Do(func() {
		if len(pending) > 0 {
			prometheus.MustRegister(pending...)
		}
	})
}

// norm keeps label values lowercase so dashboards see one series per value.
func norm(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
