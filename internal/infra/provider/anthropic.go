package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"

	"callguard/internal/config"
	"callguard/internal/observability/metrics"
	"callguard/pkg/resilience"
)

// maxPromptChars bounds the prompt sent to generation providers.
// Longer prompts are truncated on a rune boundary with a marker so the
// model knows content was cut.
const maxPromptChars = 10000

// AnthropicGenerator adapts the Anthropic Messages API to the
// pipeline's generation step. It is the primary generation provider.
type AnthropicGenerator struct {
	client anthropic.Client
	config config.AnthropicConfig
	limits *resilience.RateLimitTracker
	logger *slog.Logger
}

// NewAnthropicGenerator creates a generator from provider
// configuration. The SDK's built-in retry is disabled; the execution
// layer owns retries and would otherwise multiply attempts.
//
// Parameters:
//   - cfg: API key, model, and token budget
//   - limits: shared tracker receiving quota headers; may be nil
//   - logger: structured logger; nil uses slog.Default()
func NewAnthropicGenerator(cfg config.AnthropicConfig, limits *resilience.RateLimitTracker, logger *slog.Logger) *AnthropicGenerator {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &AnthropicGenerator{
		client: anthropic.NewClient(opts...),
		config: cfg,
		limits: limits,
		logger: logger,
	}
}

// Generate runs one Messages API call and returns the generated text
// with usage accounting. Quota headers on the response are recorded
// into the tracker whether the call succeeded or not.
func (g *AnthropicGenerator) Generate(ctx context.Context, prompt string) (*Generation, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, &resilience.ValidationError{Field: "prompt", Message: "prompt cannot be empty"}
	}

	requestID := uuid.New().String()
	prompt = truncateRunes(prompt, maxPromptChars)

	g.logger.Debug("anthropic generation starting",
		slog.String("request_id", requestID),
		slog.String("model", g.config.Model),
		slog.Int("prompt_chars", len(prompt)))

	start := time.Now()

	var httpResp *http.Response
	message, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(g.config.Model),
		MaxTokens: int64(g.config.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}, option.WithResponseInto(&httpResp))

	duration := time.Since(start)

	if httpResp != nil {
		g.recordLimits(httpResp.Header)
	}

	if err != nil {
		g.logger.Warn("anthropic api call failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.Any("error", err))
		return nil, g.classify(err)
	}

	if len(message.Content) == 0 {
		return nil, &resilience.ServiceError{
			DependencyKey: DependencyAnthropic,
			Err:           errors.New("anthropic returned empty response"),
		}
	}

	block, ok := message.Content[0].AsAny().(anthropic.TextBlock)
	if !ok {
		return nil, &resilience.ServiceError{
			DependencyKey: DependencyAnthropic,
			Err:           fmt.Errorf("anthropic returned unexpected content type %T", message.Content[0].AsAny()),
		}
	}

	gen := &Generation{
		Text:         block.Text,
		Provider:     DependencyAnthropic,
		Model:        string(message.Model),
		InputTokens:  int(message.Usage.InputTokens),
		OutputTokens: int(message.Usage.OutputTokens),
	}

	metrics.RecordGeneration(DependencyAnthropic, duration, gen.InputTokens, gen.OutputTokens)
	g.logger.Info("anthropic generation completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", duration),
		slog.Int("output_chars", len(gen.Text)),
		slog.Int("input_tokens", gen.InputTokens),
		slog.Int("output_tokens", gen.OutputTokens))

	return gen, nil
}

// recordLimits feeds Anthropic quota headers into the shared tracker.
func (g *AnthropicGenerator) recordLimits(h http.Header) {
	if g.limits == nil {
		return
	}
	if info, ok := rateLimitFromHeaders(DependencyAnthropic, h, time.Now()); ok {
		g.limits.Update(DependencyAnthropic, info)
	}
}

// classify maps an Anthropic SDK error onto a resilience kind. API
// errors carry the HTTP status; anything else is a transport failure.
func (g *AnthropicGenerator) classify(err error) error {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return &resilience.NetworkError{Op: "anthropic messages", Err: err}
	}

	switch {
	case apiErr.StatusCode == http.StatusTooManyRequests:
		var hint time.Duration
		if apiErr.Response != nil {
			hint, _ = retryAfterHeader(apiErr.Response.Header, time.Now())
		}
		return &resilience.RateLimitError{
			RetryAfter: hint,
			Message:    "anthropic rate limit exceeded",
		}
	case apiErr.StatusCode == http.StatusRequestTimeout:
		return &resilience.NetworkError{Op: "anthropic messages", Err: err}
	case apiErr.StatusCode >= 500:
		return &resilience.ServiceError{
			DependencyKey: DependencyAnthropic,
			StatusCode:    apiErr.StatusCode,
			Err:           err,
		}
	case apiErr.StatusCode >= 400:
		return &resilience.ValidationError{Field: "request", Message: err.Error()}
	default:
		return &resilience.ServiceError{
			DependencyKey: DependencyAnthropic,
			StatusCode:    apiErr.StatusCode,
			Err:           err,
		}
	}
}
