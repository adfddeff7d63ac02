package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(providerCallsTotal, providerLatencyMs, providerRetriesTotal, providerBreakerState)
}

var providerCallsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "provider_calls_total",
		Help: "Guarded provider calls by stage and outcome.",
	},
	[]string{"stage", "provider", "success"}, // stage: 'analysis', 'editing'
)

var providerLatencyMs = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "provider_call_latency_ms",
		Help:    "Provider call latency distribution in milliseconds, retries included.",
		Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
	},
	[]string{"stage", "provider", "success"},
)

var providerRetriesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "provider_retries_total",
		Help: "Attempts beyond the first, per stage and provider.",
	},
	[]string{"stage", "provider"},
)

var providerBreakerState = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "provider_breaker_state",
		Help: "Circuit breaker state per provider: 0 closed, 1 half-open, 2 open.",
	},
	[]string{"provider"},
)

func ObserveProviderCall(stage, provider string, success bool, durationMs int64, retries int) {
	s := strconv.FormatBool(success)
	providerCallsTotal.WithLabelValues(norm(stage), norm(provider), s).Inc()
	providerLatencyMs.WithLabelValues(norm(stage), norm(provider), s).Observe(float64(durationMs))
	if retries > 0 {
		providerRetriesTotal.WithLabelValues(norm(stage), norm(provider)).Add(float64(retries))
	}
}

func SetBreakerState(provider, state string) {
	var v float64
	switch norm(state) {
	case "open":
		v = 2
	case "halfopen":
		v = 1
	default:
		v = 0
	}
	providerBreakerState.WithLabelValues(norm(provider)).Set(v)
}
