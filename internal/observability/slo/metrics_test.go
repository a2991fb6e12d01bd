package slo

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	io_prometheus_client "github.com/prometheus/client_model/go"
)

func gaugeValue(t *testing.T, gauge prometheus.Gauge) float64 {
	t.Helper()

	metric := &io_prometheus_client.Metric{}
	if err := gauge.Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	return metric.GetGauge().GetValue()
}

func TestRecordRun(t *testing.T) {
	SLOTaskSuccess.Set(0)
	SLODegradedRate.Set(0)
	SLORunDuration.Set(0)

	// 10 tasks: 1 failed, 2 degraded, 90 seconds
	RecordRun(10, 1, 2, 90*time.Second)

	if got := gaugeValue(t, SLOTaskSuccess); got != 0.9 {
		t.Errorf("SLOTaskSuccess = %v, want 0.9", got)
	}
	if got := gaugeValue(t, SLODegradedRate); got != 0.2 {
		t.Errorf("SLODegradedRate = %v, want 0.2", got)
	}
	if got := gaugeValue(t, SLORunDuration); got != 90.0 {
		t.Errorf("SLORunDuration = %v, want 90", got)
	}
}

func TestRecordRun_AllSucceeded(t *testing.T) {
	RecordRun(4, 0, 0, 30*time.Second)

	if got := gaugeValue(t, SLOTaskSuccess); got != 1.0 {
		t.Errorf("SLOTaskSuccess = %v, want 1.0", got)
	}
	if got := gaugeValue(t, SLODegradedRate); got != 0 {
		t.Errorf("SLODegradedRate = %v, want 0", got)
	}
}

func TestRecordRun_ZeroTasksKeepsRatios(t *testing.T) {
	SLOTaskSuccess.Set(0.5)
	SLODegradedRate.Set(0.25)

	RecordRun(0, 0, 0, time.Second)

	if got := gaugeValue(t, SLOTaskSuccess); got != 0.5 {
		t.Errorf("SLOTaskSuccess = %v, want untouched 0.5", got)
	}
	if got := gaugeValue(t, SLODegradedRate); got != 0.25 {
		t.Errorf("SLODegradedRate = %v, want untouched 0.25", got)
	}
	if got := gaugeValue(t, SLORunDuration); got != 1.0 {
		t.Errorf("SLORunDuration = %v, want 1", got)
	}
}

func TestMetricsAreRegistered(t *testing.T) {
	metrics := []prometheus.Collector{
		SLOTaskSuccess,
		SLODegradedRate,
		SLORunDuration,
	}

	for _, metric := range metrics {
		desc := make(chan *prometheus.Desc, 1)
		metric.Describe(desc)
		select {
		case d := <-desc:
			if d == nil {
				t.Error("metric descriptor is nil")
			}
		default:
			t.Error("no descriptor received")
		}
	}
}

func TestSLOTargetsAreReasonable(t *testing.T) {
	if TaskSuccessSLO <= 0.9 || TaskSuccessSLO > 1.0 {
		t.Errorf("TaskSuccessSLO = %v, should be between 0.9 and 1.0", TaskSuccessSLO)
	}

	if DegradedRateSLO <= 0 || DegradedRateSLO > 0.5 {
		t.Errorf("DegradedRateSLO = %v, should be between 0 and 0.5", DegradedRateSLO)
	}

	// A run must fit well inside the default 30 minute schedule slot.
	if RunDurationSLO <= 0 || RunDurationSLO > 1800 {
		t.Errorf("RunDurationSLO = %v, should be between 0 and 1800 seconds", RunDurationSLO)
	}
}
