package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestRegisterMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRegisterMetrics(reg)

	m.ObserveTransition("card_processing", "failed")
	m.ObserveGatewayStep("process", 300*time.Millisecond, errors.New("declined"))
	m.IncSKUAllocation("db", "ok")
	m.IncSKUAllocation("db", "ok")
	m.IncSKUAllocation("db", "fallback")
	m.IncOrderFinalized("cash")
	m.IncReconciliation("card")
	m.IncIdleLogout("deferred")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	assertCounter(t, mfs, "pos_payment_transitions_total", "to", "failed", 1)
	assertCounter(t, mfs, "pos_sku_allocations_total", "outcome", "ok", 2)
	assertCounter(t, mfs, "pos_sku_allocations_total", "outcome", "fallback", 1)
	assertCounter(t, mfs, "pos_orders_finalized_total", "method", "cash", 1)
	assertCounter(t, mfs, "pos_reconciliation_alerts_total", "method", "card", 1)
	assertCounter(t, mfs, "pos_idle_logouts_total", "outcome", "deferred", 1)

	if got, err := fetchHistogramSum(mfs, "pos_gateway_step_duration_seconds", "outcome", "error"); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestRegisterMetricsNilSafe(t *testing.T) {
	var m *RegisterMetrics
	m.ObserveTransition("idle", "awaiting_method")
	m.IncOrderFinalized("cash")

	noop := NewRegisterMetrics(nil)
	noop.IncSKUAllocation("redis", "ok")
	noop.ObserveGatewayStep("capture", time.Second, nil)
}

func assertCounter(t *testing.T, mfs []*dto.MetricFamily, name, label, value string, want float64) {
	t.Helper()
	got, err := fetchCounterValue(mfs, name, label, value)
	if err != nil {
		t.Fatalf("fetch %s: %v", name, err)
	}
	if got != want {
		t.Fatalf("expected %s{%s=%q}=%v, got %v", name, label, value, want, got)
	}
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
