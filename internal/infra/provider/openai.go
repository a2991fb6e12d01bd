package provider

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"callguard/internal/config"
	"callguard/internal/observability/metrics"
	"callguard/pkg/resilience"
)

// OpenAIGenerator adapts the OpenAI chat completion API to the
// pipeline's generation step. It is the fallback generation provider.
type OpenAIGenerator struct {
	client *openai.Client
	config config.OpenAIConfig
	limits *resilience.RateLimitTracker
	logger *slog.Logger
}

// NewOpenAIGenerator creates a generator from provider configuration.
//
// Parameters:
//   - cfg: API key, model, and token budget
//   - limits: shared tracker receiving quota headers; may be nil
//   - logger: structured logger; nil uses slog.Default()
func NewOpenAIGenerator(cfg config.OpenAIConfig, limits *resilience.RateLimitTracker, logger *slog.Logger) *OpenAIGenerator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &OpenAIGenerator{
		client: openai.NewClientWithConfig(clientCfg),
		config: cfg,
		limits: limits,
		logger: logger,
	}
}

// Generate runs one chat completion call and returns the generated
// text with usage accounting.
func (o *OpenAIGenerator) Generate(ctx context.Context, prompt string) (*Generation, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, &resilience.ValidationError{Field: "prompt", Message: "prompt cannot be empty"}
	}

	requestID := uuid.New().String()
	prompt = truncateRunes(prompt, maxPromptChars)

	o.logger.Debug("openai generation starting",
		slog.String("request_id", requestID),
		slog.String("model", o.config.Model),
		slog.Int("prompt_chars", len(prompt)))

	start := time.Now()

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     o.config.Model,
		MaxTokens: o.config.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})

	duration := time.Since(start)

	if err != nil {
		o.logger.Warn("openai api call failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.Any("error", err))
		return nil, o.classify(err)
	}

	if len(resp.Choices) == 0 {
		return nil, &resilience.ServiceError{
			DependencyKey: DependencyOpenAI,
			Err:           errors.New("openai returned empty response"),
		}
	}

	gen := &Generation{
		Text:         resp.Choices[0].Message.Content,
		Provider:     DependencyOpenAI,
		Model:        resp.Model,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}

	metrics.RecordGeneration(DependencyOpenAI, duration, gen.InputTokens, gen.OutputTokens)
	o.logger.Info("openai generation completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", duration),
		slog.Int("output_chars", len(gen.Text)),
		slog.Int("input_tokens", gen.InputTokens),
		slog.Int("output_tokens", gen.OutputTokens))

	return gen, nil
}

// classify maps a go-openai error onto a resilience kind. The SDK
// reports JSON API errors as *openai.APIError and non-JSON failures as
// *openai.RequestError; both carry the HTTP status. The SDK does not
// expose response headers, so a 429 carries no Retry-After hint and
// backoff falls back to the rate-limit multiplier.
func (o *OpenAIGenerator) classify(err error) error {
	var statusCode int
	var apiErr *openai.APIError
	var reqErr *openai.RequestError

	switch {
	case errors.As(err, &apiErr):
		statusCode = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		statusCode = reqErr.HTTPStatusCode
	default:
		return &resilience.NetworkError{Op: "openai chat completion", Err: err}
	}

	switch {
	case statusCode == http.StatusTooManyRequests:
		return &resilience.RateLimitError{Message: "openai rate limit exceeded"}
	case statusCode == http.StatusRequestTimeout:
		return &resilience.NetworkError{Op: "openai chat completion", Err: err}
	case statusCode >= 500:
		return &resilience.ServiceError{
			DependencyKey: DependencyOpenAI,
			StatusCode:    statusCode,
			Err:           err,
		}
	case statusCode >= 400:
		return &resilience.ValidationError{Field: "request", Message: err.Error()}
	default:
		return &resilience.ServiceError{
			DependencyKey: DependencyOpenAI,
			StatusCode:    statusCode,
			Err:           err,
		}
	}
}
