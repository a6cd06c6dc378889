package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics records write activity against the ledger.
type LedgerMetrics struct {
	writes *prometheus.CounterVec
	alerts *prometheus.CounterVec
}

// SchedulerMetrics records background task executions.
type SchedulerMetrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// OutboxMetrics tracks the pending-notification backlog.
type OutboxMetrics struct {
	pending   prometheus.Gauge
	delivered prometheus.Counter
}

var (
	ledgerOnce sync.Once
	ledgerReg  *LedgerMetrics

	schedulerOnce sync.Once
	schedulerReg  *SchedulerMetrics

	outboxOnce sync.Once
	outboxReg  *OutboxMetrics
)

// Ledger returns the lazily-initialised ledger metrics registry.
func Ledger() *LedgerMetrics {
	ledgerOnce.Do(func() {
		ledgerReg = &LedgerMetrics{
			writes: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "finbot",
				Subsystem: "ledger",
				Name:      "writes_total",
				Help:      "Ledger write operations segmented by entity and outcome.",
			}, []string{"entity", "outcome"}),
			alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "finbot",
				Subsystem: "ledger",
				Name:      "alerts_fired_total",
				Help:      "Spending-limit alerts fired on expense writes, by scope.",
			}, []string{"scope"}),
		}
		prometheus.MustRegister(ledgerReg.writes, ledgerReg.alerts)
	})
	return ledgerReg
}

// RecordWrite counts one ledger write for the given entity.
func (m *LedgerMetrics) RecordWrite(entity string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.writes.WithLabelValues(entity, outcome).Inc()
}

// RecordAlert counts one fired spending alert.
func (m *LedgerMetrics) RecordAlert(scope string) {
	if m == nil {
		return
	}
	m.alerts.WithLabelValues(scope).Inc()
}

// Scheduler returns the lazily-initialised scheduler metrics registry.
func Scheduler() *SchedulerMetrics {
	schedulerOnce.Do(func() {
		schedulerReg = &SchedulerMetrics{
			runs: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "finbot",
				Subsystem: "scheduler",
				Name:      "task_runs_total",
				Help:      "Scheduled task executions segmented by task and outcome.",
			}, []string{"task", "outcome"}),
			duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "finbot",
				Subsystem: "scheduler",
				Name:      "task_duration_seconds",
				Help:      "Latency distribution for scheduled tasks.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"task"}),
		}
		prometheus.MustRegister(schedulerReg.runs, schedulerReg.duration)
	})
	return schedulerReg
}

// RecordRun counts one task execution and observes its duration.
func (m *SchedulerMetrics) RecordRun(task string, took time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.runs.WithLabelValues(task, outcome).Inc()
	m.duration.WithLabelValues(task).Observe(took.Seconds())
}

// Outbox returns the lazily-initialised outbox metrics registry.
func Outbox() *OutboxMetrics {
	outboxOnce.Do(func() {
		outboxReg = &OutboxMetrics{
			pending: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "finbot",
				Subsystem: "outbox",
				Name:      "pending",
				Help:      "Notifications waiting for delivery.",
			}),
			delivered: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "finbot",
				Subsystem: "outbox",
				Name:      "delivered_total",
				Help:      "Notifications handed to the chat transport and marked processed.",
			}),
		}
		prometheus.MustRegister(outboxReg.pending, outboxReg.delivered)
	})
	return outboxReg
}

// SetPending records the current pending-notification depth.
func (m *OutboxMetrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.pending.Set(float64(n))
}

// RecordDelivered counts one delivered notification.
func (m *OutboxMetrics) RecordDelivered() {
	if m == nil {
		return
	}
	m.delivered.Inc()
}
