package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

// Payments holds the payment lifecycle counters on its own registry.
type Payments struct {
	registry *prometheus.Registry

	Created      *prometheus.CounterVec
	Finalized    *prometheus.CounterVec
	Callbacks    *prometheus.CounterVec
	AccessChecks *prometheus.CounterVec
	Lapsed       prometheus.Counter
}

func NewPayments() *Payments {
	reg := prometheus.NewRegistry()
	m := &Payments{
		registry: reg,
		Created: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tutor",
			Name:      "payments_created_total",
			Help:      "Pending subscription/payment pairs created",
		}, []string{"provider"}),
		Finalized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tutor",
			Name:      "payments_finalized_total",
			Help:      "Payments moved to a terminal status",
		}, []string{"provider", "status"}),
		Callbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tutor",
			Name:      "payment_callbacks_total",
			Help:      "Gateway callbacks by outcome",
		}, []string{"provider", "outcome"}),
		AccessChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tutor",
			Name:      "access_checks_total",
			Help:      "Access gate evaluations",
		}, []string{"granted"}),
		Lapsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tutor",
			Name:      "subscriptions_lapsed_total",
			Help:      "ACTIVE subscriptions moved to EXPIRED on read",
		}),
	}
	reg.MustRegister(m.Created, m.Finalized, m.Callbacks, m.AccessChecks, m.Lapsed)
	return m
}

func (m *Payments) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Payments) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// CounterValue reads a counter's current value.
func CounterValue(c prometheus.Counter) float64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}
