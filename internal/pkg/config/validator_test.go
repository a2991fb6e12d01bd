package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// ============================================================
// Test Group 1: ValidateCronSchedule
// ============================================================

func TestValidateCronSchedule_Valid(t *testing.T) {
	tests := []struct {
		name     string
		schedule string
	}{
		{"every 30 minutes", "*/30 * * * *"},
		{"daily at midnight", "0 0 * * *"},
		{"every 6 hours", "0 */6 * * *"},
		{"weekdays at 9:30", "30 9 * * 1-5"},
		{"first day of month", "0 0 1 * *"},
		{"every minute", "* * * * *"},
		{"complex expression", "15,45 */2 * * 1,3,5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCronSchedule(tt.schedule)
			assert.NoError(t, err, "Expected valid cron schedule: %s", tt.schedule)
		})
	}
}

func TestValidateCronSchedule_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		schedule string
	}{
		{"empty string", ""},
		{"too few fields", "0 0"},
		{"too many fields", "0 0 * * * * *"},
		{"invalid minute", "60 0 * * *"},
		{"invalid hour", "0 24 * * *"},
		{"invalid month", "0 0 * 13 *"},
		{"random text", "whenever it suits"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCronSchedule(tt.schedule)
			assert.Error(t, err, "Expected error for invalid schedule: %s", tt.schedule)
			assert.Contains(t, err.Error(), "invalid cron schedule")
		})
	}
}

// ============================================================
// Test Group 2: ValidateTimezone
// ============================================================

func TestValidateTimezone_Valid(t *testing.T) {
	tests := []struct {
		name     string
		timezone string
	}{
		{"UTC", "UTC"},
		{"Tokyo", "Asia/Tokyo"},
		{"New York", "America/New_York"},
		{"London", "Europe/London"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTimezone(tt.timezone)
			assert.NoError(t, err)
		})
	}
}

func TestValidateTimezone_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		timezone string
	}{
		{"empty string", ""},
		{"UTC offset", "+09:00"},
		{"typo", "Asia/Tokio"},
		{"random text", "somewhere"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTimezone(tt.timezone)
			assert.Error(t, err)
			assert.Contains(t, err.Error(), "invalid timezone")
		})
	}
}

// ============================================================
// Test Group 3: ValidateDuration
// ============================================================

func TestValidateDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		min      time.Duration
		max      time.Duration
		wantErr  bool
	}{
		{"within range", 10 * time.Minute, time.Minute, time.Hour, false},
		{"at minimum", time.Minute, time.Minute, time.Hour, false},
		{"at maximum", time.Hour, time.Minute, time.Hour, false},
		{"below minimum", 30 * time.Second, time.Minute, time.Hour, true},
		{"above maximum", 2 * time.Hour, time.Minute, time.Hour, true},
		{"inverted range", 10 * time.Minute, time.Hour, time.Minute, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDuration(tt.duration, tt.min, tt.max)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// ============================================================
// Test Group 4: ValidateIntRange
// ============================================================

func TestValidateIntRange(t *testing.T) {
	tests := []struct {
		name    string
		value   int
		min     int
		max     int
		wantErr bool
	}{
		{"within range", 8, 1, 32, false},
		{"at minimum", 1, 1, 32, false},
		{"at maximum", 32, 1, 32, false},
		{"below minimum", 0, 1, 32, true},
		{"above maximum", 33, 1, 32, true},
		{"inverted range", 5, 10, 1, true},
		{"port in range", 8090, 1024, 65535, false},
		{"privileged port", 80, 1024, 65535, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIntRange(tt.value, tt.min, tt.max)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// ============================================================
// Test Group 5: ValidatePositiveDuration
// ============================================================

func TestValidatePositiveDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		wantErr  bool
	}{
		{"positive", 30 * time.Second, false},
		{"one nanosecond", time.Nanosecond, false},
		{"zero", 0, true},
		{"negative", -time.Second, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePositiveDuration(tt.duration)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// ============================================================
// Test Group 6: ValidateAbsoluteURL
// ============================================================

func TestValidateAbsoluteURL_Valid(t *testing.T) {
	tests := []struct {
		name   string
		rawURL string
	}{
		{"https feed", "https://blog.golang.org/feed.atom"},
		{"http endpoint", "http://alerts.internal:9093/webhook"},
		{"with path and query", "https://example.com/rss?format=atom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAbsoluteURL(tt.rawURL)
			assert.NoError(t, err)
		})
	}
}

func TestValidateAbsoluteURL_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		rawURL string
	}{
		{"empty string", ""},
		{"relative path", "/feed.atom"},
		{"missing scheme", "example.com/rss"},
		{"unsupported scheme", "ftp://example.com/feed"},
		{"scheme only", "https://"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAbsoluteURL(tt.rawURL)
			assert.Error(t, err)
			assert.Contains(t, err.Error(), "invalid URL")
		})
	}
}
