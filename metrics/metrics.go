// Package metrics exposes Prometheus counters for portal operations.
package metrics

import (
	"github.com/irsalhamdi/course-portal/core/failure"
	"github.com/irsalhamdi/course-portal/core/ledger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	operations *prometheus.CounterVec
	moved      *prometheus.CounterVec
}

// New registers the portal collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		operations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_operations_total",
				Help: "Portal operations by name and outcome",
			},
			[]string{"operation", "result"},
		),
		moved: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_value_moved_total",
				Help: "Units of value moved by committed ledger entries",
			},
			[]string{"kind"},
		),
	}
}

// Observe counts one finished operation. A nil receiver is a no-op.
func (m *Metrics) Observe(op string, err error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, failure.Label(err)).Inc()
}

// Moved counts the value of a committed journal entry.
func (m *Metrics) Moved(e ledger.Entry) {
	if m == nil || e.Amount == 0 {
		return
	}
	m.moved.WithLabelValues(string(e.Kind)).Add(float64(e.Amount))
}
