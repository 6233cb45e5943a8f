package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the SSO flow.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Logins          *prometheus.CounterVec
	Failures        *prometheus.CounterVec
	UsersCreated    prometheus.Counter
	Authorizations  prometheus.Counter
	OutboundLatency *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg
// (prometheus.DefaultRegisterer when nil).
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Logins: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ssokit_logins_total",
			Help: "Completed single sign-on logins by grant and reconciliation outcome",
		}, []string{"grant", "outcome"}),
		Failures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ssokit_failures_total",
			Help: "Aborted single sign-on attempts by error kind",
		}, []string{"kind"}),
		UsersCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "ssokit_users_created_total",
			Help: "Local accounts provisioned from remote profiles",
		}),
		Authorizations: f.NewCounter(prometheus.CounterOpts{
			Name: "ssokit_authorize_redirects_total",
			Help: "Redirects issued to the authorization endpoint",
		}),
		OutboundLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ssokit_outbound_request_seconds",
			Help:    "Latency of token exchange and userinfo calls",
			Buckets: prometheus.DefBuckets,
		}, []string{"call", "result"}),
	}
}

func (m *Metrics) IncLogin(grant, outcome string) {
	if m == nil {
		return
	}
	m.Logins.WithLabelValues(grant, outcome).Inc()
}

func (m *Metrics) IncFailure(kind string) {
	if m == nil {
		return
	}
	m.Failures.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncUsersCreated() {
	if m == nil {
		return
	}
	m.UsersCreated.Inc()
}

func (m *Metrics) IncAuthorize() {
	if m == nil {
		return
	}
	m.Authorizations.Inc()
}

// ObserveOutbound records the duration of an outbound call since start.
func (m *Metrics) ObserveOutbound(call string, start time.Time, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.OutboundLatency.WithLabelValues(call, result).Observe(time.Since(start).Seconds())
}
