package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels domain loads that replaced state.
	OutcomeSuccess = "success"
	// OutcomeError labels domain loads that left prior state untouched.
	OutcomeError = "error"
	// OutcomeDiscarded labels results dropped by the sequence guard or after unmount.
	OutcomeDiscarded = "discarded"
)

var (
	domainLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mirador_console",
			Name:      "domain_loads_total",
			Help:      "Domain loads handled by the view model store, partitioned by domain and outcome.",
		},
		[]string{"domain", "outcome"},
	)

	domainLoadSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mirador_console",
			Name:      "domain_load_seconds",
			Help:      "Domain load latency in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"domain"},
	)

	fallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mirador_console",
			Name:      "endpoint_fallbacks_total",
			Help:      "Times a source adapter fell back to its secondary endpoint.",
		},
		[]string{"domain"},
	)

	backendRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mirador_console",
			Name:      "backend_requests_total",
			Help:      "HTTP requests sent to the backend, partitioned by method and status code (0 for transport failures).",
		},
		[]string{"method", "code"},
	)

	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mirador_console",
			Name:      "notifications_total",
			Help:      "Notifications raised, partitioned by kind.",
		},
		[]string{"kind"},
	)

	operatorActionSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mirador_console",
			Name:      "operator_action_seconds",
			Help:      "Operator action latency in seconds, partitioned by action and outcome.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15},
		},
		[]string{"action", "outcome"},
	)

	wsClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mirador_console",
			Name:      "ws_clients",
			Help:      "Connected websocket snapshot subscribers.",
		},
	)
)

// Register attaches mirador-console collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		domainLoadsTotal,
		domainLoadSeconds,
		fallbacksTotal,
		backendRequestsTotal,
		notificationsTotal,
		operatorActionSeconds,
		wsClients,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveDomainLoad records a domain load duration and outcome label.
func ObserveDomainLoad(domain string, duration time.Duration, outcome string) {
	switch outcome {
	case OutcomeError, OutcomeDiscarded:
	default:
		outcome = OutcomeSuccess
	}
	domainLoadsTotal.WithLabelValues(domain, outcome).Inc()
	if duration < 0 {
		duration = 0
	}
	domainLoadSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveFallback counts a fallback endpoint attempt.
func ObserveFallback(domain string) {
	fallbacksTotal.WithLabelValues(domain).Inc()
}

// ObserveBackendRequest counts one backend HTTP exchange; status 0 means no response.
func ObserveBackendRequest(method string, status int) {
	backendRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

// ObserveNotification counts a raised banner.
func ObserveNotification(kind string) {
	notificationsTotal.WithLabelValues(kind).Inc()
}

// ObserveAction records an operator action's latency and outcome.
func ObserveAction(action string, duration time.Duration, outcome string) {
	if outcome != OutcomeError {
		outcome = OutcomeSuccess
	}
	operatorActionSeconds.WithLabelValues(action, outcome).Observe(max(duration, 0).Seconds())
}

// SetWSClients publishes the current websocket subscriber count.
func SetWSClients(n int) {
	wsClients.Set(float64(n))
}
