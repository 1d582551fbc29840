package processor

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts row transitions and callback outcomes.
type Metrics struct {
	TransitionsTotal  *prometheus.CounterVec
	EditsSkippedTotal *prometheus.CounterVec
	CallbacksTotal    *prometheus.CounterVec
}

// NewMetrics constructs the processor metrics and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	transitions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheethook_row_transitions_total",
			Help: "Row status transitions by target status.",
		},
		[]string{"status"},
	)
	skipped := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheethook_edits_skipped_total",
			Help: "Edit events that left the row untouched, by reason.",
		},
		[]string{"reason"},
	)
	callbacks := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheethook_callbacks_total",
			Help: "Workflow callbacks applied, by reported success.",
		},
		[]string{"success"},
	)

	if reg != nil {
		reg.MustRegister(transitions, skipped, callbacks)
	}

	return &Metrics{
		TransitionsTotal:  transitions,
		EditsSkippedTotal: skipped,
		CallbacksTotal:    callbacks,
	}
}

func (m *Metrics) incTransition(status string) {
	if m == nil {
		return
	}
	m.TransitionsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) incSkipped(reason string) {
	if m == nil {
		return
	}
	m.EditsSkippedTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) incCallback(success bool) {
	if m == nil {
		return
	}
	m.CallbacksTotal.WithLabelValues(strconv.FormatBool(success)).Inc()
}
