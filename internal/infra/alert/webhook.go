// Package alert delivers resilience events to an operator webhook.
//
// The sink filters for events an operator can act on (breaker
// transitions and failed call cycles), queues them, and posts JSON from
// a single background worker. Delivery carries its own protection: a
// token bucket, a delivery circuit breaker, and a short retry. The sink
// never calls back into the execution layer it observes.
package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"callguard/internal/observability/metrics"
	pkgconfig "callguard/pkg/config"
	"callguard/pkg/resilience"
)

const (
	// maxErrorTextLength caps the error text carried in a payload.
	maxErrorTextLength = 500
	truncationSuffix   = "..."

	// maxErrorBodyBytes bounds how much of a webhook error response is
	// read for diagnostics.
	maxErrorBodyBytes = 4096
)

// Config contains configuration for the alert webhook sink.
type Config struct {
	// Enabled indicates whether alert delivery is enabled.
	Enabled bool

	// WebhookURL is the operator webhook endpoint. Required when
	// delivery is enabled.
	WebhookURL string

	// Timeout is the HTTP request timeout for a single delivery.
	Timeout time.Duration

	// QueueSize bounds the in-memory delivery queue. Events arriving on
	// a full queue are dropped and counted.
	QueueSize int
}

// DefaultConfig returns the default alert sink configuration. Delivery
// is off until a webhook URL is configured.
func DefaultConfig() Config {
	return Config{
		Enabled:   false,
		Timeout:   10 * time.Second,
		QueueSize: 64,
	}
}

// LoadConfigFromEnv loads alert sink configuration from environment
// variables.
//
// Environment variables:
//   - ALERT_WEBHOOK_ENABLED: "true" to deliver alerts (default: false)
//   - ALERT_WEBHOOK_URL: operator webhook endpoint
//   - ALERT_WEBHOOK_TIMEOUT: delivery timeout (default: 10s)
//   - ALERT_QUEUE_SIZE: delivery queue bound (default: 64)
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	cfg.Enabled = pkgconfig.GetEnvBool("ALERT_WEBHOOK_ENABLED", cfg.Enabled)
	cfg.WebhookURL = pkgconfig.GetEnvString("ALERT_WEBHOOK_URL", cfg.WebhookURL)
	cfg.Timeout = pkgconfig.GetEnvDuration("ALERT_WEBHOOK_TIMEOUT", cfg.Timeout)
	cfg.QueueSize = pkgconfig.GetEnvInt("ALERT_QUEUE_SIZE", cfg.QueueSize)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid alert configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration. A disabled sink needs no webhook
// URL.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.WebhookURL == "" {
		return errors.New("webhook URL is required when alerts are enabled")
	}
	u, err := url.Parse(c.WebhookURL)
	if err != nil {
		return fmt.Errorf("webhook URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("webhook URL must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("webhook URL has no host")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("queue size must be positive, got %d", c.QueueSize)
	}
	return nil
}

// WebhookSink posts operator-relevant resilience events to a webhook.
// It implements the execution layer's EventSink interface.
type WebhookSink struct {
	config  Config
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	logger  *slog.Logger

	queue  chan resilience.Event
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWebhookSink creates the sink and starts its delivery worker.
//
// The worker posts queued events one at a time through a token bucket
// and a delivery circuit breaker that opens after three consecutive
// failed deliveries. A disabled config produces a sink that discards
// everything.
func NewWebhookSink(cfg Config, logger *slog.Logger) (*WebhookSink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &WebhookSink{
		config: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: rate.NewLimiter(1.0, 5), // 1 req/s sustained, burst of 5
		logger:  logger,
		queue:   make(chan resilience.Event, cfg.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
	}

	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "alert-webhook",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     120 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("alert delivery breaker state changed",
				slog.String("circuit", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})

	if cfg.Enabled {
		s.wg.Add(1)
		go s.deliverLoop()
	}

	return s, nil
}

// Emit enqueues an operator-relevant event for delivery. It never
// blocks: events arriving on a full queue are dropped and counted.
func (s *WebhookSink) Emit(event resilience.Event) {
	if !s.config.Enabled {
		return
	}
	if !operatorRelevant(event.Type) {
		return
	}

	select {
	case s.queue <- event:
	default:
		metrics.RecordAlertDropped("queue_full")
		s.logger.Warn("alert queue full, dropping event",
			slog.String("event", string(event.Type)),
			slog.String("dependency", event.Dependency))
	}
}

// Close stops the delivery worker. Queued events that have not been
// posted yet are discarded.
func (s *WebhookSink) Close() {
	s.cancel()
	s.wg.Wait()
}

// operatorRelevant reports whether an event type is worth paging about.
// Retries, cache traffic, and successes stay in logs and metrics.
func operatorRelevant(t resilience.EventType) bool {
	switch t {
	case resilience.EventBreakerTransition, resilience.EventCallFailure:
		return true
	default:
		return false
	}
}

func (s *WebhookSink) deliverLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case event := <-s.queue:
			s.deliver(event)
		}
	}
}

// deliver posts one event through the token bucket and the delivery
// breaker. Breaker rejections count as drops, not delivery failures.
func (s *WebhookSink) deliver(event resilience.Event) {
	if err := s.limiter.Wait(s.ctx); err != nil {
		metrics.RecordAlertDropped("shutdown")
		return
	}

	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, s.sendWithRetry(s.ctx, event)
	})
	if err == nil {
		metrics.RecordAlertDelivered(true)
		return
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.RecordAlertDropped("breaker_open")
		s.logger.Warn("alert delivery skipped, breaker open",
			slog.String("event", string(event.Type)),
			slog.String("dependency", event.Dependency))
		return
	}

	metrics.RecordAlertDelivered(false)
	s.logger.Error("alert delivery failed",
		slog.String("event", string(event.Type)),
		slog.String("dependency", event.Dependency),
		slog.Any("error", err))
}

// sendWithRetry posts the event with a short retry. 429 responses wait
// out the reported Retry-After; server and network errors back off on
// the base delay; client rejections fail immediately.
func (s *WebhookSink) sendWithRetry(ctx context.Context, event resilience.Event) error {
	const (
		maxAttempts = 2
		baseDelay   = 5 * time.Second
	)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := s.send(ctx, event)
		if err == nil {
			return nil
		}
		lastErr = err

		var rateLimitErr *resilience.RateLimitError
		if errors.As(err, &rateLimitErr) {
			s.logger.Warn("alert webhook rate limit hit, backing off",
				slog.Duration("retry_after", rateLimitErr.RetryAfter),
				slog.Int("attempt", attempt))

			select {
			case <-time.After(rateLimitErr.RetryAfter):
				continue
			case <-ctx.Done():
				return fmt.Errorf("context canceled during rate limit backoff: %w", ctx.Err())
			}
		}

		if !resilience.IsRetryable(err) {
			return err
		}

		if attempt < maxAttempts {
			delay := baseDelay * time.Duration(attempt)
			s.logger.Warn("alert webhook request failed, retrying",
				slog.Any("error", err),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay))

			select {
			case <-time.After(delay):
				continue
			case <-ctx.Done():
				return fmt.Errorf("context canceled during retry backoff: %w", ctx.Err())
			}
		}
	}

	return fmt.Errorf("webhook delivery failed after %d attempts: %w", maxAttempts, lastErr)
}

// send posts the payload once and classifies the response.
func (s *WebhookSink) send(ctx context.Context, event resilience.Event) error {
	jsonData, err := json.Marshal(buildPayload(event))
	if err != nil {
		return &resilience.ValidationError{Field: "payload", Message: fmt.Sprintf("marshal alert payload: %v", err)}
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.WebhookURL, bytes.NewReader(jsonData))
	if err != nil {
		return &resilience.ValidationError{Field: "webhook_url", Message: fmt.Sprintf("create webhook request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return &resilience.NetworkError{Op: "post alert webhook", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return &resilience.RateLimitError{
			RetryAfter: extractRetryAfter(resp, body),
			Message:    "alert webhook rate limit exceeded",
		}
	}

	if resp.StatusCode >= 500 {
		return &resilience.ServiceError{
			DependencyKey: "alert-webhook",
			StatusCode:    resp.StatusCode,
			Err:           fmt.Errorf("webhook server error: %s", string(body)),
		}
	}

	return &resilience.ValidationError{
		Field:   "payload",
		Message: fmt.Sprintf("webhook rejected request with HTTP %d: %s", resp.StatusCode, string(body)),
	}
}

// webhookErrorResponse is the error body shape some webhook services
// return on 429.
type webhookErrorResponse struct {
	Message    string  `json:"message"`
	RetryAfter float64 `json:"retry_after"` // In seconds
}

// extractRetryAfter extracts the retry delay from a 429 response. It
// tries the JSON body first, then the Retry-After header.
//
// Returns:
//   - time.Duration: Retry delay (default 5s if not found)
func extractRetryAfter(resp *http.Response, body []byte) time.Duration {
	var webhookErr webhookErrorResponse
	if err := json.Unmarshal(body, &webhookErr); err == nil && webhookErr.RetryAfter > 0 {
		return time.Duration(webhookErr.RetryAfter * float64(time.Second))
	}

	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}

	return 5 * time.Second
}

// AlertPayload is the JSON document posted to the operator webhook.
type AlertPayload struct {
	Event      string `json:"event"`
	Dependency string `json:"dependency"`
	At         string `json:"at"`
	Text       string `json:"text"`
	FromState  string `json:"from_state,omitempty"`
	ToState    string `json:"to_state,omitempty"`
	Attempts   int    `json:"attempts,omitempty"`
	Error      string `json:"error,omitempty"`
}

func buildPayload(event resilience.Event) AlertPayload {
	return AlertPayload{
		Event:      string(event.Type),
		Dependency: event.Dependency,
		At:         event.At.UTC().Format(time.RFC3339),
		Text:       alertText(event),
		FromState:  event.FromState,
		ToState:    event.ToState,
		Attempts:   event.Attempt,
		Error:      truncateText(event.Err, maxErrorTextLength, truncationSuffix),
	}
}

// alertText builds the human-readable summary line for the payload.
func alertText(event resilience.Event) string {
	switch event.Type {
	case resilience.EventBreakerTransition:
		return fmt.Sprintf("circuit breaker for %q moved from %s to %s",
			event.Dependency, event.FromState, event.ToState)
	case resilience.EventCallFailure:
		return fmt.Sprintf("call to %q failed after %d attempt(s): %s",
			event.Dependency, event.Attempt, truncateText(event.Err, maxErrorTextLength, truncationSuffix))
	default:
		return fmt.Sprintf("%s on %q", event.Type, event.Dependency)
	}
}

// truncateText truncates text to maxLength characters. If truncated,
// appends suffix to indicate continuation.
func truncateText(text string, maxLength int, suffix string) string {
	if len(text) <= maxLength {
		return text
	}

	truncateAt := maxLength - len(suffix)
	if truncateAt < 0 {
		truncateAt = 0
	}

	return text[:truncateAt] + suffix
}
