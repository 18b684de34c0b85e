package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ScheduleMetrics exposes lifecycle activity for scheduled messages.
type ScheduleMetrics struct {
	transitions *prometheus.CounterVec
	overdue     prometheus.Gauge
}

func NewScheduleMetrics(reg prometheus.Registerer) *ScheduleMetrics {
	if reg == nil {
		return &ScheduleMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_transitions_total",
		Help: "Scheduled message lifecycle transitions by action and resulting status.",
	}, []string{"action", "status"})
	overdue := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "schedules_overdue",
		Help: "Active scheduled messages whose time passed beyond the grace window.",
	})
	reg.MustRegister(transitions, overdue)
	return &ScheduleMetrics{transitions: transitions, overdue: overdue}
}

// RecordTransition counts a committed lifecycle transition.
func (m *ScheduleMetrics) RecordTransition(action, status string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(action), normalizeLabel(status)).Inc()
}

// SetOverdue publishes the latest overdue count.
func (m *ScheduleMetrics) SetOverdue(count int64) {
	if m == nil || m.overdue == nil {
		return
	}
	m.overdue.Set(float64(count))
}
