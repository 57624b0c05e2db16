package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the coordinator.
type Metrics struct {
	ActiveCalls      prometheus.Gauge
	CallEvents       *prometheus.CounterVec
	ActionErrors     *prometheus.CounterVec
	EngineErrors     *prometheus.CounterVec
	WatchdogTimeouts prometheus.Counter
	WSListeners      prometheus.Gauge
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveCalls: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_calls",
			Help:      "Number of live call sessions in the registry.",
		}),
		CallEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "call_events_total",
			Help:      "Outbound call events by name.",
		}, []string{"event"}),
		ActionErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "action_errors_total",
			Help:      "Rejected inbound actions by action and error class.",
		}, []string{"action", "code"}),
		EngineErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_errors_total",
			Help:      "Telephony engine rejections by transaction kind.",
		}, []string{"kind"}),
		WatchdogTimeouts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watchdog_timeouts_total",
			Help:      "Incoming calls force-ended by the reachability watchdog.",
		}),
		WSListeners: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_listeners",
			Help:      "Connected websocket event listeners.",
		}),
	}
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
