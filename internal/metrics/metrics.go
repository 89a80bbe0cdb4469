package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's collectors. A nil *Metrics records nothing.
type Metrics struct {
	reg         *prometheus.Registry
	enrollments *prometheus.CounterVec
	setups      *prometheus.CounterVec
	expiries    *prometheus.CounterVec
	routed      prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		enrollments: f.NewCounterVec(prometheus.CounterOpts{
			Name: "signupboard_enrollments_total",
			Help: "Category clicks by outcome.",
		}, []string{"outcome"}),
		setups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "signupboard_setup_sessions_total",
			Help: "Setup wizard runs by result.",
		}, []string{"result"}),
		expiries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "signupboard_expiries_total",
			Help: "Event expiries by result.",
		}, []string{"result"}),
		routed: f.NewGauge(prometheus.GaugeOpts{
			Name: "signupboard_routed_messages",
			Help: "Published messages with live controls.",
		}),
	}
}

func (m *Metrics) Enrollment(outcome string) {
	if m == nil {
		return
	}
	m.enrollments.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Setup(result string) {
	if m == nil {
		return
	}
	m.setups.WithLabelValues(result).Inc()
}

func (m *Metrics) Expiry(result string) {
	if m == nil {
		return
	}
	m.expiries.WithLabelValues(result).Inc()
}

func (m *Metrics) SetRoutedMessages(n int) {
	if m == nil {
		return
	}
	m.routed.Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
