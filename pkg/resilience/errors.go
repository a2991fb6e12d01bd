package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"time"
)

// ErrCircuitOpen is returned (wrapped in a ServiceError) when a call is
// skipped because the dependency's circuit breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Kind is the tagged discriminator for error classification.
//
// The retry executor and the call executor branch on Kind instead of
// inspecting error messages or concrete types, so callers and providers
// can introduce their own error values as long as they carry a kind.
type Kind int

const (
	// KindUnknown marks errors that carry no kind tag and match no
	// transport heuristic. Unknown errors are not retried.
	KindUnknown Kind = iota

	// KindValidation marks malformed input. Fatal: never retried, never
	// cached, never recorded against a circuit breaker.
	KindValidation

	// KindNetwork marks connectivity failures (timeouts, refused or
	// reset connections). Retryable.
	KindNetwork

	// KindService marks upstream server failures (5xx-class). Retryable.
	KindService

	// KindRateLimit marks upstream quota exhaustion (429-class).
	// Retryable; the error may carry an explicit wait hint.
	KindRateLimit

	// KindSystem marks unexpected internal faults. Not retried and
	// surfaced as critical.
	KindSystem
)

// String returns a string representation of the error kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNetwork:
		return "network"
	case KindService:
		return "service"
	case KindRateLimit:
		return "rate_limit"
	case KindSystem:
		return "system"
	default:
		return "unknown"
	}
}

// ValidationError represents malformed caller input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field '%s': %s", e.Field, e.Message)
}

// Kind returns KindValidation.
func (e *ValidationError) Kind() Kind { return KindValidation }

// NetworkError represents a connectivity failure while reaching a
// dependency.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("network failure during %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("network failure during %s", e.Op)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Kind returns KindNetwork.
func (e *NetworkError) Kind() Kind { return KindNetwork }

// ServiceError represents an upstream service failure. It is also the
// wrapper the retry executor produces on exhaustion, carrying the
// dependency key, the attempt count, and the elapsed time for
// diagnostics.
type ServiceError struct {
	DependencyKey string
	StatusCode    int
	Attempts      int
	Elapsed       time.Duration
	Err           error
}

func (e *ServiceError) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("dependency %q failed after %d attempt(s) in %s: %v",
			e.DependencyKey, e.Attempts, e.Elapsed, e.Err)
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("dependency %q returned status %d: %v",
			e.DependencyKey, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("dependency %q failed: %v", e.DependencyKey, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Kind returns KindService.
func (e *ServiceError) Kind() Kind { return KindService }

// RateLimitError represents a 429-class rate limit response from a
// dependency. RetryAfter carries the upstream wait hint when the
// response provided one; zero means no hint.
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (retry after %v)", e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("rate limit exceeded (retry after %v)", e.RetryAfter)
}

// Kind returns KindRateLimit.
func (e *RateLimitError) Kind() Kind { return KindRateLimit }

// SystemError represents an unexpected internal fault (a bug, a broken
// invariant) rather than a dependency problem.
type SystemError struct {
	Op  string
	Err error
}

func (e *SystemError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("internal fault during %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("internal fault during %s", e.Op)
}

func (e *SystemError) Unwrap() error { return e.Err }

// Kind returns KindSystem.
func (e *SystemError) Kind() Kind { return KindSystem }

// Classify determines the kind of an error.
//
// Errors carrying their own Kind tag (the typed errors above, or any
// caller-defined error with a `Kind() Kind` method anywhere in its
// chain) are classified by that tag. Untagged errors fall back to
// transport heuristics: network timeouts and connection-level syscall
// failures are KindNetwork; errors exposing an HTTP status code map by
// status class. Context cancellation classifies as KindUnknown; the
// executor handles cancellation before classification applies.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	// The tag wins over everything else: a tagged wrapper around a
	// context error (e.g. a retryable per-attempt timeout) keeps its kind.
	var tagged interface{ Kind() Kind }
	if errors.As(err, &tagged) {
		return tagged.Kind()
	}

	// Context errors are handled by the caller, never retried here.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindUnknown
	}

	// Network errors (timeout)
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindNetwork
	}

	// Syscall errors
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return KindNetwork
	}

	// HTTP status codes from foreign errors
	var statusErr interface{ HTTPStatus() int }
	if errors.As(err, &statusErr) {
		status := statusErr.HTTPStatus()
		switch {
		case status == http.StatusTooManyRequests:
			return KindRateLimit
		case status == http.StatusRequestTimeout:
			return KindNetwork
		case status >= 500 && status < 600:
			return KindService
		}
	}

	return KindUnknown
}

// IsRetryable determines if an error is worth retrying.
//
// Network, service, and rate-limit kinds are retryable. Validation,
// system, unknown, and context errors are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	switch Classify(err) {
	case KindNetwork, KindService, KindRateLimit:
		return true
	default:
		return false
	}
}

// RetryAfterHint extracts an explicit upstream wait hint from an error
// chain, if one is present.
func RetryAfterHint(err error) (time.Duration, bool) {
	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) && rateLimitErr.RetryAfter > 0 {
		return rateLimitErr.RetryAfter, true
	}
	return 0, false
}

// statusOf extracts an HTTP-ish status code from an error chain for
// diagnostics. Returns 0 when none is available.
func statusOf(err error) int {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) && svcErr.StatusCode > 0 {
		return svcErr.StatusCode
	}
	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return http.StatusTooManyRequests
	}
	var statusErr interface{ HTTPStatus() int }
	if errors.As(err, &statusErr) {
		return statusErr.HTTPStatus()
	}
	return 0
}
