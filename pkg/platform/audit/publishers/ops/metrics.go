package ops

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for kyc_audit_ops_events_total.
const (
	outcomeTracked     = "tracked"
	outcomeSampledOut  = "sampled_out"
	outcomeBreakerOpen = "breaker_open"
	outcomeFailed      = "persist_failed"
)

// Metrics counts what happened to each ops event. All methods accept a nil
// receiver.
type Metrics struct {
	Events      *prometheus.CounterVec
	BreakerOpen prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Events: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_audit_ops_events_total",
			Help: "Operational audit events by action and outcome",
		}, []string{"action", "outcome"}),
		BreakerOpen: f.NewGauge(prometheus.GaugeOpts{
			Name: "kyc_audit_ops_breaker_open",
			Help: "1 while the ops audit breaker is open and events are dropped",
		}),
	}
}

func (m *Metrics) record(action, outcome string) {
	if m != nil {
		m.Events.WithLabelValues(action, outcome).Inc()
	}
}

func (m *Metrics) setBreakerOpen(open bool) {
	if m == nil {
		return
	}
	v := 0.0
	if open {
		v = 1
	}
	m.BreakerOpen.Set(v)
}
