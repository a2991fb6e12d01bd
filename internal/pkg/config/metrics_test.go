package config

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

// TestNewConfigMetrics_Registration tests that metrics are registered correctly
func TestNewConfigMetrics_Registration(t *testing.T) {
	// Create metrics with unique component name to avoid conflicts
	componentName := "test_component_registration"
	metrics := NewConfigMetrics(componentName)

	// Verify all metrics are initialized
	assert.NotNil(t, metrics.LoadTimestamp, "LoadTimestamp should be initialized")
	assert.NotNil(t, metrics.ValidationErrorsTotal, "ValidationErrorsTotal should be initialized")
	assert.NotNil(t, metrics.FallbacksTotal, "FallbacksTotal should be initialized")
	assert.NotNil(t, metrics.FallbackActive, "FallbackActive should be initialized")

	// Verify component name is stored
	assert.Equal(t, componentName, metrics.componentName, "Component name should be stored")
}

// TestNewConfigMetrics_UniqueNames tests that different components create unique metrics
func TestNewConfigMetrics_UniqueNames(t *testing.T) {
	workerMetrics := NewConfigMetrics("test_worker_cfg")
	probeMetrics := NewConfigMetrics("test_probe_cfg")

	assert.NotSame(t, workerMetrics.LoadTimestamp, probeMetrics.LoadTimestamp,
		"Different components should have different metric instances")

	// Both should be usable without panic
	workerMetrics.RecordLoadTimestamp()
	probeMetrics.RecordLoadTimestamp()
}

// TestRecordLoadTimestamp_UpdatesMetric tests that load timestamp is recorded
func TestRecordLoadTimestamp_UpdatesMetric(t *testing.T) {
	metrics := NewConfigMetrics("test_load_timestamp")

	metrics.RecordLoadTimestamp()

	value := testutil.ToFloat64(metrics.LoadTimestamp)
	assert.Greater(t, value, float64(0), "Load timestamp should be greater than 0")
}

// TestRecordValidationError_IncrementsCounter tests validation error recording
func TestRecordValidationError_IncrementsCounter(t *testing.T) {
	metrics := NewConfigMetrics("test_validation_error")

	initialValue := testutil.ToFloat64(metrics.ValidationErrorsTotal.WithLabelValues("pipeline_schedule"))
	assert.Equal(t, float64(0), initialValue, "Initial validation error count should be 0")

	metrics.RecordValidationError("pipeline_schedule")

	newValue := testutil.ToFloat64(metrics.ValidationErrorsTotal.WithLabelValues("pipeline_schedule"))
	assert.Equal(t, float64(1), newValue, "Validation error count should be 1 after recording")

	metrics.RecordValidationError("pipeline_schedule")

	finalValue := testutil.ToFloat64(metrics.ValidationErrorsTotal.WithLabelValues("pipeline_schedule"))
	assert.Equal(t, float64(2), finalValue, "Validation error count should be 2 after second recording")
}

// TestRecordValidationError_DifferentFields tests that errors are tracked per field
func TestRecordValidationError_DifferentFields(t *testing.T) {
	metrics := NewConfigMetrics("test_validation_fields")

	metrics.RecordValidationError("pipeline_schedule")
	metrics.RecordValidationError("timezone")
	metrics.RecordValidationError("pipeline_schedule")

	scheduleCount := testutil.ToFloat64(metrics.ValidationErrorsTotal.WithLabelValues("pipeline_schedule"))
	timezoneCount := testutil.ToFloat64(metrics.ValidationErrorsTotal.WithLabelValues("timezone"))

	assert.Equal(t, float64(2), scheduleCount, "Pipeline schedule should have 2 errors")
	assert.Equal(t, float64(1), timezoneCount, "Timezone should have 1 error")
}

// TestRecordFallback_IncrementsCounter tests fallback recording
func TestRecordFallback_IncrementsCounter(t *testing.T) {
	metrics := NewConfigMetrics("test_fallback")

	initialValue := testutil.ToFloat64(metrics.FallbacksTotal.WithLabelValues("run_timeout"))
	assert.Equal(t, float64(0), initialValue, "Initial fallback count should be 0")

	metrics.RecordFallback("run_timeout")

	newValue := testutil.ToFloat64(metrics.FallbacksTotal.WithLabelValues("run_timeout"))
	assert.Equal(t, float64(1), newValue, "Fallback count should be 1 after recording")
}

// TestRecordFallback_DifferentFields tests that fallbacks are tracked per field
func TestRecordFallback_DifferentFields(t *testing.T) {
	metrics := NewConfigMetrics("test_fallback_fields")

	metrics.RecordFallback("pipeline_schedule")
	metrics.RecordFallback("timezone")
	metrics.RecordFallback("run_timeout")
	metrics.RecordFallback("pipeline_schedule")

	scheduleCount := testutil.ToFloat64(metrics.FallbacksTotal.WithLabelValues("pipeline_schedule"))
	timezoneCount := testutil.ToFloat64(metrics.FallbacksTotal.WithLabelValues("timezone"))
	timeoutCount := testutil.ToFloat64(metrics.FallbacksTotal.WithLabelValues("run_timeout"))

	assert.Equal(t, float64(2), scheduleCount, "Pipeline schedule should have 2 fallbacks")
	assert.Equal(t, float64(1), timezoneCount, "Timezone should have 1 fallback")
	assert.Equal(t, float64(1), timeoutCount, "Run timeout should have 1 fallback")
}

// TestSetFallbackActive tests the fallback active gauge transitions
func TestSetFallbackActive(t *testing.T) {
	metrics := NewConfigMetrics("test_fallback_active")

	metrics.SetFallbackActive(true)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.FallbackActive),
		"FallbackActive should be 1 when active")

	metrics.SetFallbackActive(false)
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.FallbackActive),
		"FallbackActive should be 0 when inactive")
}
