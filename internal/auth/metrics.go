package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the authentication counters. A nil *Metrics records nothing.
type Metrics struct {
	resolutions     *prometheus.CounterVec
	invalidSessions *prometheus.CounterVec
	logins          *prometheus.CounterVec
	resolveDuration prometheus.Histogram
}

// NewMetrics registers the authentication metrics on registry.
func NewMetrics(registry prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		resolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "resolutions_total",
			Help:      "Session resolutions by winning path and outcome",
		}, []string{"auth_type", "status"}),

		invalidSessions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "invalid_sessions_total",
			Help:      "Session artifacts discarded as undecodable or incomplete",
		}, []string{"reason"}),

		logins: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "logins_total",
			Help:      "Login attempts by method and result",
		}, []string{"auth_type", "result"}),

		resolveDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "resolve_duration_seconds",
			Help:      "Time spent resolving a session",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) observeResolution(authType AuthType, status Status, seconds float64) {
	if m == nil {
		return
	}
	label := string(authType)
	if label == "" {
		label = "none"
	}
	m.resolutions.WithLabelValues(label, string(status)).Inc()
	m.resolveDuration.Observe(seconds)
}

func (m *Metrics) invalidSession(reason string) {
	if m == nil {
		return
	}
	m.invalidSessions.WithLabelValues(reason).Inc()
}

func (m *Metrics) login(authType AuthType, result string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(string(authType), result).Inc()
}
