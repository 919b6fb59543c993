package guard

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics may be nil; every method is a no-op then.
type Metrics struct {
	ticks   *prometheus.CounterVec
	logouts *prometheus.CounterVec
}

func NewMetrics(reg *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "console",
			Subsystem: "session_guard",
			Name:      "checks_total",
			Help:      "Session validation ticks by outcome.",
		}, []string{"outcome"}),
		logouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "console",
			Subsystem: "session_guard",
			Name:      "forced_logouts_total",
			Help:      "Forced logouts by cause.",
		}, []string{"cause"}),
	}

	for _, c := range []prometheus.Collector{m.ticks, m.logouts} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) tick(o Outcome) {
	if m == nil {
		return
	}
	m.ticks.WithLabelValues(string(o)).Inc()
}

func (m *Metrics) forcedLogout(cause string) {
	if m == nil {
		return
	}
	m.logouts.WithLabelValues(cause).Inc()
}
