package config

import (
	"fmt"

	pkgconfig "callguard/pkg/config"
)

// StatusConfig holds configuration for the status HTTP surface.
// Health endpoints are always public; only the resilience snapshot
// endpoint is guarded by bearer-token auth.
type StatusConfig struct {
	// AuthEnabled controls whether /status/resilience requires a bearer
	// token. Disabling it is an explicit opt-out for local development.
	// Loaded from STATUS_AUTH_ENABLED. Default: true
	AuthEnabled bool

	// JWTSecret is the HMAC secret used to validate status tokens.
	// Loaded from STATUS_JWT_SECRET. Required when AuthEnabled is true.
	JWTSecret string

	// RequiredRole is the role claim a token must carry to read the
	// status endpoint.
	// Loaded from STATUS_REQUIRED_ROLE. Default: "ops"
	RequiredRole string
}

// LoadStatusConfig loads status-surface configuration from environment
// variables. It fails closed: when auth is enabled and no secret is
// set, the process should refuse to start rather than expose breaker
// and rate-limit state unauthenticated.
func LoadStatusConfig() (*StatusConfig, error) {
	config := &StatusConfig{
		AuthEnabled:  pkgconfig.GetEnvBool("STATUS_AUTH_ENABLED", true),
		JWTSecret:    pkgconfig.GetEnvString("STATUS_JWT_SECRET", ""),
		RequiredRole: pkgconfig.GetEnvString("STATUS_REQUIRED_ROLE", "ops"),
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid status configuration: %w", err)
	}

	return config, nil
}

// Validate checks configuration correctness.
func (c *StatusConfig) Validate() error {
	if !c.AuthEnabled {
		return nil
	}

	if c.JWTSecret == "" {
		return fmt.Errorf("STATUS_JWT_SECRET cannot be empty when STATUS_AUTH_ENABLED is true")
	}

	if c.RequiredRole == "" {
		return fmt.Errorf("STATUS_REQUIRED_ROLE cannot be empty")
	}

	return nil
}
