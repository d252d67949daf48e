// Package telemetry holds the Prometheus metrics shared by the tracker and
// the notification dispatcher.
//
// Metrics exported:
//
//   - habitlab_cache_lookups_total: record cache lookups by result (hit, miss)
//   - habitlab_records_saved_total: daily record writes by outcome
//   - habitlab_experiments_total: experiment lifecycle events by action
//   - habitlab_notifications_sent_total: reminder sends by status
//   - habitlab_device_tokens_pruned_total: tokens removed after permanent failure
//   - habitlab_dispatch_duration_seconds: duration of one dispatcher pass
//
// All methods are safe to call on a nil *Metrics, which records nothing.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "habitlab"

type Metrics struct {
	CacheLookups      *prometheus.CounterVec
	RecordsSaved      *prometheus.CounterVec
	Experiments       *prometheus.CounterVec
	NotificationsSent *prometheus.CounterVec
	TokensPruned      prometheus.Counter
	DispatchDuration  prometheus.Histogram
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Record cache lookups by result.",
		}, []string{"result"}),
		RecordsSaved: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_saved_total",
			Help:      "Daily record writes by outcome.",
		}, []string{"outcome"}),
		Experiments: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "experiments_total",
			Help:      "Experiment lifecycle events by action.",
		}, []string{"action"}),
		NotificationsSent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_sent_total",
			Help:      "Reminder sends by status.",
		}, []string{"status"}),
		TokensPruned: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_tokens_pruned_total",
			Help:      "Device tokens removed after a permanent delivery failure.",
		}),
		DispatchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Duration of one reminder dispatch pass.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// RecordSaved counts a record write. outcome is "created", "updated" or "error".
func (m *Metrics) RecordSaved(outcome string) {
	if m == nil {
		return
	}
	m.RecordsSaved.WithLabelValues(outcome).Inc()
}

// ExperimentEvent counts a lifecycle transition such as "created" or "ended".
func (m *Metrics) ExperimentEvent(action string) {
	if m == nil {
		return
	}
	m.Experiments.WithLabelValues(action).Inc()
}

func (m *Metrics) NotificationSent(success bool) {
	if m == nil {
		return
	}
	status := "failure"
	if success {
		status = "success"
	}
	m.NotificationsSent.WithLabelValues(status).Inc()
}

func (m *Metrics) TokensRemoved(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.TokensPruned.Add(float64(n))
}

func (m *Metrics) ObserveDispatch(seconds float64) {
	if m == nil {
		return
	}
	m.DispatchDuration.Observe(seconds)
}
