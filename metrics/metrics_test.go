package metrics

import (
	"testing"
)

// Global metrics instance (reused across enabled tests to avoid Prometheus registry conflicts)
var globalMetrics *Metrics

func init() {
	globalMetrics = New(true)
}

func TestMetricsEnabled(t *testing.T) {
	if globalMetrics == nil {
		t.Fatal("metrics should not be nil")
	}

	// Recording against real collectors must not panic.
	globalMetrics.RecordAdmission("global", true)
	globalMetrics.RecordAdmission("sensitive", false)
	globalMetrics.RecordBlacklist("global")
	globalMetrics.RecordResolution("refreshed")
	globalMetrics.RecordRefresh("success", 0.02)
	globalMetrics.RecordVerification("success")
}

func TestMetricsDisabled(t *testing.T) {
	metrics := New(false)

	if metrics == nil {
		t.Fatal("metrics should not be nil (noop)")
	}

	// These should not panic even though they're noop
	metrics.RecordAdmission("global", true)
	metrics.RecordBlacklist("global")
	metrics.RecordResolution("none")
	metrics.RecordRefresh("failure", 0.5)
	metrics.RecordVerification("rejected")
}

func TestMetricsNil(t *testing.T) {
	var metrics *Metrics

	// A nil sink is valid everywhere a *Metrics is accepted.
	metrics.RecordAdmission("global", false)
	metrics.RecordResolution("expired")
	metrics.RecordRefresh("success", 0.1)
	metrics.RecordVerification("error")
}
