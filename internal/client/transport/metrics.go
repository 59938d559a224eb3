package transport

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	requestsTotal *prometheus.CounterVec
	refreshTotal  *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) (m *metrics, err error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	// promauto panics on duplicate registration; report it as an error instead.
	defer func() {
		if r := recover(); r != nil {
			m, err = nil, fmt.Errorf("register transport metrics: %v", r)
		}
	}()

	f := promauto.With(reg)
	return &metrics{
		requestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "nextshape",
				Subsystem: "client",
				Name:      "requests_total",
				Help:      "API requests by HTTP method and response code (\"error\" when no response).",
			},
			[]string{"method", "code"},
		),
		refreshTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "nextshape",
				Subsystem: "client",
				Name:      "session_refresh_total",
				Help:      "Session refresh attempts by result.",
			},
			[]string{"result"},
		),
	}, nil
}

func (m *metrics) request(method, code string) {
	m.requestsTotal.WithLabelValues(method, code).Inc()
}

func (m *metrics) refresh(result string) {
	m.refreshTotal.WithLabelValues(result).Inc()
}
