package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecordPipelineRun(t *testing.T) {
	tests := []struct {
		name     string
		status   string
		duration time.Duration
	}{
		{
			name:     "successful run",
			status:   "success",
			duration: 12 * time.Second,
		},
		{
			name:     "partial run",
			status:   "partial",
			duration: 30 * time.Second,
		},
		{
			name:     "failed run",
			status:   "failure",
			duration: 2 * time.Second,
		},
		{
			name:     "zero duration",
			status:   "success",
			duration: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				RecordPipelineRun(tt.status, tt.duration)
			})
		})
	}
}

func TestRecordTask(t *testing.T) {
	tests := []struct {
		name     string
		kind     string
		status   string
		duration time.Duration
	}{
		{
			name:     "feed task success",
			kind:     "feed",
			status:   "success",
			duration: 800 * time.Millisecond,
		},
		{
			name:     "generation task degraded",
			kind:     "generation",
			status:   "degraded",
			duration: 3 * time.Second,
		},
		{
			name:     "page task failure",
			kind:     "page",
			status:   "failure",
			duration: 15 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				RecordTask(tt.kind, tt.status, tt.duration)
			})
		})
	}
}

func TestRecordGeneration(t *testing.T) {
	tests := []struct {
		name         string
		provider     string
		duration     time.Duration
		inputTokens  int
		outputTokens int
	}{
		{
			name:         "anthropic call with usage",
			provider:     "anthropic",
			duration:     2 * time.Second,
			inputTokens:  1200,
			outputTokens: 300,
		},
		{
			name:         "openai call with usage",
			provider:     "openai",
			duration:     1 * time.Second,
			inputTokens:  900,
			outputTokens: 250,
		},
		{
			name:         "usage not reported",
			provider:     "anthropic",
			duration:     500 * time.Millisecond,
			inputTokens:  0,
			outputTokens: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				RecordGeneration(tt.provider, tt.duration, tt.inputTokens, tt.outputTokens)
			})
		})
	}
}

func TestRecordFeedItemsFetched(t *testing.T) {
	tests := []struct {
		name  string
		task  string
		count int
	}{
		{
			name:  "several items",
			task:  "go-blog",
			count: 12,
		},
		{
			name:  "single item",
			task:  "release-notes",
			count: 1,
		},
		{
			name:  "zero items",
			task:  "quiet-feed",
			count: 0,
		},
		{
			name:  "negative count ignored",
			task:  "broken-feed",
			count: -3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				RecordFeedItemsFetched(tt.task, tt.count)
			})
		})
	}
}

func TestRecordPageFetch(t *testing.T) {
	tests := []struct {
		name    string
		success bool
		size    int
	}{
		{
			name:    "small page",
			success: true,
			size:    2048,
		},
		{
			name:    "large page",
			success: true,
			size:    1 << 20,
		},
		{
			name:    "failed fetch",
			success: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				if tt.success {
					RecordPageFetchSuccess(tt.size)
				} else {
					RecordPageFetchFailed()
				}
			})
		})
	}
}

func TestRecordAlertDelivered(t *testing.T) {
	tests := []struct {
		name    string
		success bool
	}{
		{
			name:    "delivered",
			success: true,
		},
		{
			name:    "delivery failed",
			success: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				RecordAlertDelivered(tt.success)
			})
		})
	}
}

func TestRecordAlertDropped(t *testing.T) {
	tests := []struct {
		name   string
		reason string
	}{
		{
			name:   "queue full",
			reason: "queue_full",
		},
		{
			name:   "breaker open",
			reason: "breaker_open",
		},
		{
			name:   "rate limited",
			reason: "rate_limited",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				RecordAlertDropped(tt.reason)
			})
		})
	}
}

func TestMetricsFunctions_AllCallable(t *testing.T) {
	// Test that all functions can be called in sequence without panic
	assert.NotPanics(t, func() {
		RecordPipelineRun("success", 10*time.Second)
		RecordTask("feed", "success", time.Second)
		RecordRunSkipped()
		RecordGeneration("anthropic", 2*time.Second, 1000, 200)
		RecordFeedItemsFetched("go-blog", 5)
		RecordPageFetchSuccess(4096)
		RecordPageFetchFailed()
		RecordAlertDelivered(true)
		RecordAlertDropped("queue_full")
		RecordHTTPRequest("GET", "/status/resilience", "200", 5*time.Millisecond)
	})
}
