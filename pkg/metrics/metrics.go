// Package metrics exposes Prometheus collectors for session orchestration.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "camlink"

// Metrics holds the collectors. Construct with New.
type Metrics struct {
	connects     *prometheus.CounterVec
	decodes      *prometheus.CounterVec
	enqueues     *prometheus.CounterVec
	tokenUpdates *prometheus.CounterVec
	notifies     *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
// A nil reg leaves the collectors unregistered.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		connects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channel_connects_total",
			Help:      "Secure channel initialization attempts by first-time flag and result.",
		}, []string{"first_time", "result"}),
		decodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_decodes_total",
			Help:      "Push payload decode outcomes by result kind.",
		}, []string{"kind"}),
		enqueues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_enqueues_total",
			Help:      "Unique work enqueue requests by task and outcome.",
		}, []string{"task", "outcome"}),
		tokenUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_updates_total",
			Help:      "Relay token pushes to the secure channel by result.",
		}, []string{"result"}),
		notifies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Motion notifications by outcome.",
		}, []string{"outcome"}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{m.connects, m.decodes, m.enqueues, m.tokenUpdates, m.notifies} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func result(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// ObserveConnect records one Initialize attempt.
func (m *Metrics) ObserveConnect(firstTime bool, err error) {
	if m == nil {
		return
	}
	m.connects.WithLabelValues(strconv.FormatBool(firstTime), result(err)).Inc()
}

// ObserveDecode records one classified push.
func (m *Metrics) ObserveDecode(kind string) {
	if m == nil {
		return
	}
	m.decodes.WithLabelValues(kind).Inc()
}

// ObserveEnqueue records a unique-enqueue request. created is false when the
// request was absorbed by an outstanding task.
func (m *Metrics) ObserveEnqueue(task string, created bool) {
	if m == nil {
		return
	}
	outcome := "absorbed"
	if created {
		outcome = "created"
	}
	m.enqueues.WithLabelValues(task, outcome).Inc()
}

// ObserveTokenUpdate records one token push.
func (m *Metrics) ObserveTokenUpdate(err error) {
	if m == nil {
		return
	}
	m.tokenUpdates.WithLabelValues(result(err)).Inc()
}

// ObserveNotify records a notification outcome such as "sent", "denied",
// "failed" or "disabled".
func (m *Metrics) ObserveNotify(outcome string) {
	if m == nil {
		return
	}
	m.notifies.WithLabelValues(outcome).Inc()
}
