package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// ============================================================================
// Test Group 1: LoadEnvString
// ============================================================================

func TestLoadEnvString_WithValue(t *testing.T) {
	t.Setenv("TEST_STRING", "custom_value")

	result := LoadEnvString("TEST_STRING", "default_value")

	assert.Equal(t, "custom_value", result)
}

func TestLoadEnvString_WithoutValue(t *testing.T) {
	result := LoadEnvString("TEST_STRING", "default_value")

	assert.Equal(t, "default_value", result)
}

func TestLoadEnvString_EmptyString(t *testing.T) {
	t.Setenv("TEST_STRING", "")

	result := LoadEnvString("TEST_STRING", "default_value")

	// Empty string should use default
	assert.Equal(t, "default_value", result)
}

// ============================================================================
// Test Group 2: LoadEnvWithFallback
// ============================================================================

func TestLoadEnvWithFallback_WithValidValue(t *testing.T) {
	t.Setenv("TEST_SCHEDULE", "0 */6 * * *")

	result := LoadEnvWithFallback("TEST_SCHEDULE", "*/30 * * * *", ValidateCronSchedule)

	assert.Equal(t, "0 */6 * * *", result.Value)
	assert.Empty(t, result.Warnings)
	assert.False(t, result.FallbackApplied)
}

func TestLoadEnvWithFallback_WithoutValue(t *testing.T) {
	result := LoadEnvWithFallback("TEST_SCHEDULE", "*/30 * * * *", ValidateCronSchedule)

	assert.Equal(t, "*/30 * * * *", result.Value)
	assert.Empty(t, result.Warnings)
	assert.False(t, result.FallbackApplied)
}

func TestLoadEnvWithFallback_NoValidator(t *testing.T) {
	t.Setenv("TEST_STRING", "any value at all")

	result := LoadEnvWithFallback("TEST_STRING", "default", nil)

	// Without validator, any value should be accepted
	assert.Equal(t, "any value at all", result.Value)
	assert.False(t, result.FallbackApplied)
}

func TestLoadEnvWithFallback_InvalidValue(t *testing.T) {
	t.Setenv("TEST_SCHEDULE", "whenever")

	result := LoadEnvWithFallback("TEST_SCHEDULE", "*/30 * * * *", ValidateCronSchedule)

	// Should fallback to default with a warning
	assert.Equal(t, "*/30 * * * *", result.Value)
	assert.True(t, result.FallbackApplied)
	assert.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "TEST_SCHEDULE")
	assert.Contains(t, result.Warnings[0], "falling back to default")
}

// ============================================================================
// Test Group 3: LoadEnvDuration
// ============================================================================

func TestLoadEnvDuration_WithValidValue(t *testing.T) {
	t.Setenv("TEST_TIMEOUT", "15m")

	result := LoadEnvDuration("TEST_TIMEOUT", 10*time.Minute, ValidatePositiveDuration)

	assert.Equal(t, 15*time.Minute, result.Value)
	assert.False(t, result.FallbackApplied)
}

func TestLoadEnvDuration_WithoutValue(t *testing.T) {
	result := LoadEnvDuration("TEST_TIMEOUT", 10*time.Minute, ValidatePositiveDuration)

	assert.Equal(t, 10*time.Minute, result.Value)
	assert.False(t, result.FallbackApplied)
}

func TestLoadEnvDuration_ParseFailure(t *testing.T) {
	t.Setenv("TEST_TIMEOUT", "ten minutes")

	result := LoadEnvDuration("TEST_TIMEOUT", 10*time.Minute, ValidatePositiveDuration)

	assert.Equal(t, 10*time.Minute, result.Value)
	assert.True(t, result.FallbackApplied)
	assert.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "TEST_TIMEOUT")
}

func TestLoadEnvDuration_ValidationFailure(t *testing.T) {
	t.Setenv("TEST_TIMEOUT", "-5m")

	result := LoadEnvDuration("TEST_TIMEOUT", 10*time.Minute, ValidatePositiveDuration)

	assert.Equal(t, 10*time.Minute, result.Value)
	assert.True(t, result.FallbackApplied)
}

func TestLoadEnvDuration_RangeValidator(t *testing.T) {
	t.Setenv("TEST_TIMEOUT", "5h")

	result := LoadEnvDuration("TEST_TIMEOUT", 10*time.Minute, func(d time.Duration) error {
		return ValidateDuration(d, 1*time.Minute, 2*time.Hour)
	})

	// 5h exceeds the 2h ceiling
	assert.Equal(t, 10*time.Minute, result.Value)
	assert.True(t, result.FallbackApplied)
}

// ============================================================================
// Test Group 4: LoadEnvInt
// ============================================================================

func TestLoadEnvInt_WithValidValue(t *testing.T) {
	t.Setenv("TEST_PARALLELISM", "8")

	result := LoadEnvInt("TEST_PARALLELISM", 4, func(v int) error {
		return ValidateIntRange(v, 1, 32)
	})

	assert.Equal(t, 8, result.Value)
	assert.False(t, result.FallbackApplied)
}

func TestLoadEnvInt_WithoutValue(t *testing.T) {
	result := LoadEnvInt("TEST_PARALLELISM", 4, nil)

	assert.Equal(t, 4, result.Value)
	assert.False(t, result.FallbackApplied)
}

func TestLoadEnvInt_ParseFailure(t *testing.T) {
	t.Setenv("TEST_PARALLELISM", "four")

	result := LoadEnvInt("TEST_PARALLELISM", 4, nil)

	assert.Equal(t, 4, result.Value)
	assert.True(t, result.FallbackApplied)
	assert.Contains(t, result.Warnings[0], "invalid integer format")
}

func TestLoadEnvInt_ValidationFailure(t *testing.T) {
	t.Setenv("TEST_PARALLELISM", "500")

	result := LoadEnvInt("TEST_PARALLELISM", 4, func(v int) error {
		return ValidateIntRange(v, 1, 32)
	})

	assert.Equal(t, 4, result.Value)
	assert.True(t, result.FallbackApplied)
}

// ============================================================================
// Test Group 5: LoadEnvBool
// ============================================================================

func TestLoadEnvBool_TrueValues(t *testing.T) {
	trueValues := []string{"1", "t", "T", "true", "TRUE", "True"}

	for _, v := range trueValues {
		t.Run(v, func(t *testing.T) {
			t.Setenv("TEST_FLAG", v)

			result := LoadEnvBool("TEST_FLAG", false)

			assert.Equal(t, true, result.Value)
			assert.False(t, result.FallbackApplied)
		})
	}
}

func TestLoadEnvBool_FalseValues(t *testing.T) {
	falseValues := []string{"0", "f", "F", "false", "FALSE", "False"}

	for _, v := range falseValues {
		t.Run(v, func(t *testing.T) {
			t.Setenv("TEST_FLAG", v)

			result := LoadEnvBool("TEST_FLAG", true)

			assert.Equal(t, false, result.Value)
			assert.False(t, result.FallbackApplied)
		})
	}
}

func TestLoadEnvBool_WithoutValue(t *testing.T) {
	result := LoadEnvBool("TEST_FLAG", true)

	assert.Equal(t, true, result.Value)
	assert.False(t, result.FallbackApplied)
}

func TestLoadEnvBool_InvalidValue(t *testing.T) {
	t.Setenv("TEST_FLAG", "yes please")

	result := LoadEnvBool("TEST_FLAG", true)

	assert.Equal(t, true, result.Value)
	assert.True(t, result.FallbackApplied)
	assert.Contains(t, result.Warnings[0], "invalid boolean format")
}
