package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/statekit/pkg/domain"
)

const namespace = "statekit"

// Metrics collects prometheus metrics about actions and subscriber fan-outs.
type Metrics struct {
	actions          *prometheus.CounterVec
	duration         *prometheus.HistogramVec
	changes          *prometheus.CounterVec
	notifications    *prometheus.CounterVec
	subscriberErrors *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		actions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "actions_total",
				Help:      "Total number of completed actions by outcome",
			},
			[]string{"action", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "action_duration_seconds",
				Help:      "Time spent inside the critical section per action",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
			[]string{"action"},
		),
		changes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "changes_total",
				Help:      "Total number of changes emitted in deltas",
			},
			[]string{"action"},
		),
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Total number of subscriber fan-outs",
			},
			[]string{"action"},
		),
		subscriberErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "subscriber_errors_total",
				Help:      "Total number of failed or panicking subscribers",
			},
			[]string{"action"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.actions, m.duration, m.changes, m.notifications, m.subscriberErrors)
	}
	return m
}

// Collectors returns every collector, for callers registering them by hand.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.actions, m.duration, m.changes, m.notifications, m.subscriberErrors}
}

// Hooks returns lifecycle hooks that record into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnActionEnd: func(_ context.Context, e *domain.ActionEvent) {
			m.actions.WithLabelValues(e.Action, outcome(e)).Inc()
			m.duration.WithLabelValues(e.Action).Observe(e.Duration.Seconds())
			if e.Changes > 0 {
				m.changes.WithLabelValues(e.Action).Add(float64(e.Changes))
			}
		},
		OnNotify: func(_ context.Context, e *domain.NotifyEvent) {
			m.notifications.WithLabelValues(e.Action).Inc()
		},
		OnSubscriberError: func(_ context.Context, e *domain.SubscriberError) {
			m.subscriberErrors.WithLabelValues(e.Action).Inc()
		},
	}
}

func outcome(e *domain.ActionEvent) string {
	switch {
	case e.Err != nil:
		return "error"
	case e.Scope.IsNoOp():
		return "noop"
	default:
		return "ok"
	}
}
