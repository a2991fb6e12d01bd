package resilience

import (
	"testing"
	"time"
)

func TestDefaultRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig()

	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.MaxRetries)
	}
	if cfg.BaseDelay != time.Second {
		t.Errorf("BaseDelay = %v, want 1s", cfg.BaseDelay)
	}
	if cfg.MaxDelay != 60*time.Second {
		t.Errorf("MaxDelay = %v, want 60s", cfg.MaxDelay)
	}
	if cfg.JitterFraction != 0.1 {
		t.Errorf("JitterFraction = %g, want 0.1", cfg.JitterFraction)
	}
	if cfg.RateLimitMultiplier != 2.0 {
		t.Errorf("RateLimitMultiplier = %g, want 2.0", cfg.RateLimitMultiplier)
	}
	if cfg.AttemptTimeout != 0 {
		t.Errorf("AttemptTimeout = %v, want 0 (disabled)", cfg.AttemptTimeout)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.FailureThreshold != 5 {
		t.Errorf("FailureThreshold = %d, want 5", cfg.FailureThreshold)
	}
	if cfg.OpenTimeout != 60*time.Second {
		t.Errorf("OpenTimeout = %v, want 60s", cfg.OpenTimeout)
	}
	if cfg.CacheTTL != 30*time.Minute {
		t.Errorf("CacheTTL = %v, want 30m", cfg.CacheTTL)
	}
	if cfg.Retry.MaxRetries != 3 {
		t.Errorf("Retry.MaxRetries = %d, want 3", cfg.Retry.MaxRetries)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestPresetConfigs(t *testing.T) {
	t.Run("generation", func(t *testing.T) {
		cfg := GenerationConfig()
		if cfg.Retry.BaseDelay != 2*time.Second {
			t.Errorf("BaseDelay = %v, want 2s", cfg.Retry.BaseDelay)
		}
		if cfg.Retry.AttemptTimeout != 90*time.Second {
			t.Errorf("AttemptTimeout = %v, want 90s", cfg.Retry.AttemptTimeout)
		}
		if cfg.CacheTTL != 30*time.Minute {
			t.Errorf("CacheTTL = %v, want 30m", cfg.CacheTTL)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() = %v, want nil", err)
		}
	})

	t.Run("scraper", func(t *testing.T) {
		cfg := ScraperConfig()
		if cfg.Retry.MaxRetries != 4 {
			t.Errorf("MaxRetries = %d, want 4", cfg.Retry.MaxRetries)
		}
		if cfg.Retry.MaxDelay != 30*time.Second {
			t.Errorf("MaxDelay = %v, want 30s", cfg.Retry.MaxDelay)
		}
		if cfg.CacheTTL != 15*time.Minute {
			t.Errorf("CacheTTL = %v, want 15m", cfg.CacheTTL)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() = %v, want nil", err)
		}
	})

	t.Run("analysis", func(t *testing.T) {
		cfg := AnalysisConfig()
		if cfg.Retry.MaxRetries != 2 {
			t.Errorf("MaxRetries = %d, want 2", cfg.Retry.MaxRetries)
		}
		if cfg.Retry.BaseDelay != 500*time.Millisecond {
			t.Errorf("BaseDelay = %v, want 500ms", cfg.Retry.BaseDelay)
		}
		if cfg.CacheTTL != 5*time.Minute {
			t.Errorf("CacheTTL = %v, want 5m", cfg.CacheTTL)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() = %v, want nil", err)
		}
	})
}

func TestRetryConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     RetryConfig
		wantErr bool
	}{
		{"default is valid", DefaultRetryConfig(), false},
		{"zero value is valid", RetryConfig{}, false},
		{"negative retries", RetryConfig{MaxRetries: -1}, true},
		{"negative base delay", RetryConfig{BaseDelay: -time.Second}, true},
		{"negative max delay", RetryConfig{MaxDelay: -time.Second}, true},
		{"base above max", RetryConfig{BaseDelay: 2 * time.Second, MaxDelay: time.Second}, true},
		{"negative jitter", RetryConfig{JitterFraction: -0.1}, true},
		{"jitter above one", RetryConfig{JitterFraction: 1.5}, true},
		{"negative multiplier", RetryConfig{RateLimitMultiplier: -1}, true},
		{"negative attempt timeout", RetryConfig{AttemptTimeout: -time.Second}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"default is valid", DefaultConfig(), false},
		{"zero value is valid", Config{}, false},
		{"negative threshold", Config{FailureThreshold: -1}, true},
		{"negative open timeout", Config{OpenTimeout: -time.Second}, true},
		{"negative cache TTL", Config{CacheTTL: -time.Second}, true},
		{"invalid nested retry", Config{Retry: RetryConfig{MaxRetries: -1}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewRegistry_Defaults(t *testing.T) {
	registry := NewRegistry(Config{})

	if registry.Breakers() == nil {
		t.Error("Breakers() should not be nil")
	}
	if registry.Limits() == nil {
		t.Error("Limits() should not be nil")
	}
	if registry.Cache() == nil {
		t.Error("Cache() should not be nil")
	}

	cfg := registry.Config()
	if cfg.FailureThreshold != 5 {
		t.Errorf("FailureThreshold = %d, want 5", cfg.FailureThreshold)
	}
	if cfg.OpenTimeout != 60*time.Second {
		t.Errorf("OpenTimeout = %v, want 60s", cfg.OpenTimeout)
	}
	if cfg.CacheTTL != 30*time.Minute {
		t.Errorf("CacheTTL = %v, want 30m", cfg.CacheTTL)
	}
	if cfg.Retry.MaxRetries != 3 {
		t.Errorf("Retry.MaxRetries = %d, want 3", cfg.Retry.MaxRetries)
	}
	if cfg.Clock == nil || cfg.Metrics == nil || cfg.Events == nil {
		t.Error("collaborators should be defaulted, not nil")
	}
}

func TestNewRegistry_SharesCollaborators(t *testing.T) {
	clock := NewMockClock(time.Now())
	registry := NewRegistry(Config{Clock: clock})

	if registry.Config().Clock != clock {
		t.Error("registry should keep the provided clock")
	}

	// The shared clock drives the cache
	registry.Cache().Set("k", "v", time.Second)
	clock.Advance(2 * time.Second)
	if _, ok := registry.Cache().Get("k"); ok {
		t.Error("cache should observe the shared mock clock")
	}
}
