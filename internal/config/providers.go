package config

import (
	"fmt"
	"time"

	pkgconfig "callguard/pkg/config"
)

// Provider names accepted in task files and used as metrics labels.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// ProvidersConfig holds configuration for the outbound dependencies the
// pipeline calls through the resilience layer.
type ProvidersConfig struct {
	// Anthropic is the primary generation provider.
	Anthropic AnthropicConfig

	// OpenAI is the fallback generation provider.
	OpenAI OpenAIConfig

	// Analysis is the optional gRPC analysis service.
	Analysis AnalysisConfig
}

// AnthropicConfig holds settings for the Anthropic Messages API.
type AnthropicConfig struct {
	// APIKey authenticates requests.
	// Loaded from ANTHROPIC_API_KEY. Empty disables the provider.
	APIKey string

	// Model is the model identifier used for generation.
	// Default: "claude-3-5-haiku-latest"
	Model string

	// BaseURL overrides the API endpoint. Empty uses the SDK default.
	BaseURL string

	// MaxTokens caps the response size. Default: 1024
	MaxTokens int

	// Timeout bounds a single generation attempt. The execution layer
	// enforces it; the adapter itself never times out internally.
	// Default: 60 seconds
	Timeout time.Duration
}

// OpenAIConfig holds settings for the OpenAI chat completion API.
type OpenAIConfig struct {
	// APIKey authenticates requests.
	// Loaded from OPENAI_API_KEY. Empty disables the provider.
	APIKey string

	// Model is the model identifier used for generation.
	// Default: "gpt-4o-mini"
	Model string

	// BaseURL overrides the API endpoint. Empty uses the SDK default.
	BaseURL string

	// MaxTokens caps the response size. Default: 1024
	MaxTokens int

	// Timeout bounds a single generation attempt. Default: 60 seconds
	Timeout time.Duration
}

// AnalysisConfig holds settings for the gRPC analysis service.
type AnalysisConfig struct {
	// Enabled controls whether analysis tasks run at all.
	// When false, analysis tasks are skipped without error.
	// Default: false
	Enabled bool

	// GRPCAddress is the analysis server address.
	// Format: "host:port" (e.g., "localhost:50051")
	// Default: "localhost:50051"
	GRPCAddress string

	// ConnectionTimeout is the timeout for establishing the gRPC
	// connection. Default: 10 seconds
	ConnectionTimeout time.Duration

	// CallTimeout bounds a single analysis attempt. Default: 30 seconds
	CallTimeout time.Duration
}

// LoadProvidersConfig loads provider configuration from environment
// variables. MaxTokens and Timeout are shared by both generation
// providers so that switching or falling back between them does not
// change the shape of the output.
//
// Environment variables:
//   - ANTHROPIC_API_KEY, ANTHROPIC_MODEL, ANTHROPIC_BASE_URL
//   - OPENAI_API_KEY, OPENAI_MODEL, OPENAI_BASE_URL
//   - GENERATION_MAX_TOKENS, GENERATION_TIMEOUT
//   - ANALYSIS_ENABLED, ANALYSIS_GRPC_ADDRESS,
//     ANALYSIS_CONNECTION_TIMEOUT, ANALYSIS_CALL_TIMEOUT
//
// Returns an error when no generation provider is configured or a value
// fails validation.
func LoadProvidersConfig() (*ProvidersConfig, error) {
	maxTokens := pkgconfig.GetEnvInt("GENERATION_MAX_TOKENS", 1024)
	timeout := pkgconfig.GetEnvDuration("GENERATION_TIMEOUT", 60*time.Second)

	config := &ProvidersConfig{
		Anthropic: AnthropicConfig{
			APIKey:    pkgconfig.GetEnvString("ANTHROPIC_API_KEY", ""),
			Model:     pkgconfig.GetEnvString("ANTHROPIC_MODEL", "claude-3-5-haiku-latest"),
			BaseURL:   pkgconfig.GetEnvString("ANTHROPIC_BASE_URL", ""),
			MaxTokens: maxTokens,
			Timeout:   timeout,
		},
		OpenAI: OpenAIConfig{
			APIKey:    pkgconfig.GetEnvString("OPENAI_API_KEY", ""),
			Model:     pkgconfig.GetEnvString("OPENAI_MODEL", "gpt-4o-mini"),
			BaseURL:   pkgconfig.GetEnvString("OPENAI_BASE_URL", ""),
			MaxTokens: maxTokens,
			Timeout:   timeout,
		},
		Analysis: AnalysisConfig{
			Enabled:           pkgconfig.GetEnvBool("ANALYSIS_ENABLED", false),
			GRPCAddress:       pkgconfig.GetEnvString("ANALYSIS_GRPC_ADDRESS", "localhost:50051"),
			ConnectionTimeout: pkgconfig.GetEnvDuration("ANALYSIS_CONNECTION_TIMEOUT", 10*time.Second),
			CallTimeout:       pkgconfig.GetEnvDuration("ANALYSIS_CALL_TIMEOUT", 30*time.Second),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid provider configuration: %w", err)
	}

	return config, nil
}

// Validate checks configuration correctness.
func (c *ProvidersConfig) Validate() error {
	if c.Anthropic.APIKey == "" && c.OpenAI.APIKey == "" {
		return fmt.Errorf("at least one of ANTHROPIC_API_KEY or OPENAI_API_KEY must be set")
	}

	if c.Anthropic.Model == "" {
		return fmt.Errorf("ANTHROPIC_MODEL cannot be empty")
	}

	if c.OpenAI.Model == "" {
		return fmt.Errorf("OPENAI_MODEL cannot be empty")
	}

	if c.Anthropic.MaxTokens <= 0 || c.OpenAI.MaxTokens <= 0 {
		return fmt.Errorf("GENERATION_MAX_TOKENS must be positive")
	}

	if c.Anthropic.Timeout <= 0 || c.OpenAI.Timeout <= 0 {
		return fmt.Errorf("GENERATION_TIMEOUT must be positive")
	}

	if c.Analysis.Enabled {
		if c.Analysis.GRPCAddress == "" {
			return fmt.Errorf("ANALYSIS_GRPC_ADDRESS cannot be empty when analysis is enabled")
		}

		if c.Analysis.ConnectionTimeout <= 0 {
			return fmt.Errorf("ANALYSIS_CONNECTION_TIMEOUT must be positive")
		}

		if c.Analysis.CallTimeout <= 0 {
			return fmt.Errorf("ANALYSIS_CALL_TIMEOUT must be positive")
		}
	}

	return nil
}

// HasAnthropic reports whether the Anthropic provider is configured.
func (c *ProvidersConfig) HasAnthropic() bool {
	return c.Anthropic.APIKey != ""
}

// HasOpenAI reports whether the OpenAI provider is configured.
func (c *ProvidersConfig) HasOpenAI() bool {
	return c.OpenAI.APIKey != ""
}
