// Package metrics holds the Prometheus collectors for the ledger service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Actions         *prometheus.CounterVec
	ActionDuration  *prometheus.HistogramVec
	UsersRegistered prometheus.Counter
	AccountsOpened  prometheus.Counter
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Actions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mockbank_actions_total",
			Help: "Dispatched actions by name and outcome",
		}, []string{"action", "outcome"}),
		ActionDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mockbank_action_duration_seconds",
			Help:    "Time spent executing a dispatched action",
			Buckets: prometheus.DefBuckets,
		}, []string{"action"}),
		UsersRegistered: f.NewCounter(prometheus.CounterOpts{
			Name: "mockbank_users_registered_total",
			Help: "Users registered",
		}),
		AccountsOpened: f.NewCounter(prometheus.CounterOpts{
			Name: "mockbank_accounts_opened_total",
			Help: "Accounts created",
		}),
	}
}

// ObserveAction records one dispatched action.
func (m *Metrics) ObserveAction(action string, success bool, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "failure"
	if success {
		outcome = "success"
	}
	m.Actions.WithLabelValues(action, outcome).Inc()
	m.ActionDuration.WithLabelValues(action).Observe(d.Seconds())
}

func (m *Metrics) IncUsersRegistered() {
	if m != nil {
		m.UsersRegistered.Inc()
	}
}

func (m *Metrics) IncAccountsOpened() {
	if m != nil {
		m.AccountsOpened.Inc()
	}
}
