package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	m.ObserveConnect(true, nil)
	m.ObserveConnect(true, errors.New("x"))
	m.ObserveConnect(false, nil)
	m.ObserveEnqueue("DownloadTask", true)
	m.ObserveEnqueue("DownloadTask", false)
	m.ObserveEnqueue("DownloadTask", false)

	if got := testutil.ToFloat64(m.connects.WithLabelValues("true", "success")); got != 1 {
		t.Errorf("first-time successes = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.connects.WithLabelValues("true", "failure")); got != 1 {
		t.Errorf("first-time failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.enqueues.WithLabelValues("DownloadTask", "absorbed")); got != 2 {
		t.Errorf("absorbed enqueues = %v, want 2", got)
	}
}

func TestMetrics_DoubleRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := New(reg); err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := New(reg); err == nil {
		t.Error("second New() on same registry should fail")
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveConnect(true, nil)
	m.ObserveDecode("Failure")
	m.ObserveEnqueue("x", true)
	m.ObserveTokenUpdate(nil)
	m.ObserveNotify("sent")
}
